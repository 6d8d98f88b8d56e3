package proxy

import "context"

// Call is a single contract invocation.
type Call struct {
	// Caller is the identity that signed the transaction (or the calling contract)
	Caller Identity

	// Contract is the address of the contract being executed
	Contract Address

	// Selector picks the function to run
	Selector Selector

	// Args is the ABI-encoded argument payload, opaque to the proxy
	Args []byte

	// Value is the amount of the base asset forwarded with the call
	Value uint64
}

// Implementation is anything callable with a Call. A proxy forwards to
// implementations without knowing what they are: a local facet, a remote
// contract behind a gRPC link, or a test double.
//
// Call returns the ABI-encoded result, or an error. Reverts are reported as
// *Revert; any other error is a failure of the environment.
type Implementation interface {
	Call(ctx context.Context, call Call) ([]byte, error)
}

// SelectorLister is implemented by implementations that can enumerate the
// selectors they export. Proxies deployed with a TARGET use it to seed routes.
type SelectorLister interface {
	Selectors() []Selector
}

// ImplementationFunc adapts an ordinary function to the Implementation interface.
type ImplementationFunc func(ctx context.Context, call Call) ([]byte, error)

// Call calls f(ctx, call).
func (f ImplementationFunc) Call(ctx context.Context, call Call) ([]byte, error) {
	return f(ctx, call)
}

// Verify that ImplementationFunc implements the Implementation interface at compile time
var _ Implementation = ImplementationFunc(nil)
