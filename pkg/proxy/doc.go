// Package proxy provides the shared types of the facet-dispatch proxy.
//
// This package defines the core abstractions used by every other component:
//   - Selector: 8-byte routing key derived from a function signature
//   - Address: 32-byte identifier of a deployed contract
//   - Identity: a principal that can call a contract or own a proxy
//   - Implementation: anything callable with a Call, returning bytes or a revert
//   - Revert: the tagged error carried by every failed call
//
// A proxy keeps a flat table from Selector to implementation Address. Calls
// whose selector is routed are forwarded to the implementation, and the
// implementation's result (or revert) is returned unchanged. Calls whose
// selector is not routed revert with ErrUnresolvedSelector. Administrative
// calls are gated on the proxy owner and revert with ErrAuth otherwise.
//
// Example usage:
//
//	impl := proxy.ImplementationFunc(func(ctx context.Context, call proxy.Call) ([]byte, error) {
//		return call.Args, nil
//	})
//
//	result, err := impl.Call(ctx, proxy.Call{Selector: sel, Args: args})
//	if reason, ok := proxy.ReasonOf(err); ok {
//		log.Printf("reverted: %s", reason)
//	}
//
// Reverts are values, never panics. Use errors.Is against ErrAuth and
// ErrUnresolvedSelector to tell the registry's own failures apart from
// reverts raised by an implementation.
package proxy
