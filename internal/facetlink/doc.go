// Package facetlink lets a proxy route selectors to implementation contracts
// that live in another process.
//
// The server side exposes the contracts of a local directory over gRPC. The
// client side wraps a remote contract as a proxy.Implementation, so the
// registry forwards to it exactly as it forwards to a local facet. Reverts
// cross the link with their kind and reason intact.
//
// Messages are protobuf well-known types; the call itself travels as an
// ABI-encoded envelope inside a BytesValue.
package facetlink
