// Package registry holds the routing and ownership logic of a facet-dispatch
// proxy.
//
// A proxy keeps a table from selector to implementation address and a single
// owner. Anyone may dispatch a call; only the owner may change the table or
// hand the proxy to someone else. Once ownership is revoked nothing can
// change the table again.
//
// The registry is stateless. Handlers take the storage transaction of the
// proxy being executed, so the surrounding runtime decides atomicity: a
// handler that returns an error leaves its writes uncommitted.
package registry
