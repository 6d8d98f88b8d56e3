// Package abi derives function selectors and encodes call arguments for
// proxied contracts.
//
// Arguments use a word-based layout: every u64 is 8 big-endian bytes, every
// b256 (addresses, contract ids) is 32 raw bytes, and enums are a u64
// discriminant followed by the variant payload.
package abi

import (
	"crypto/sha256"
	"encoding/binary"
	"strings"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
)

// SelectorOf derives the selector of a function signature such as
// "double(u64)". The selector is the first four bytes of the SHA-256 of the
// signature, widened to a u64.
func SelectorOf(signature string) proxy.Selector {
	sum := sha256.Sum256([]byte(signature))
	return proxy.Selector(binary.BigEndian.Uint32(sum[:4]))
}

// Signature builds a canonical signature from a function name and its
// parameter types.
func Signature(name string, params ...string) string {
	return name + "(" + strings.Join(params, ",") + ")"
}

// ParseSelector accepts either a function signature such as "double(u64)" or
// a hex selector.
func ParseSelector(s string) (proxy.Selector, error) {
	if strings.Contains(s, "(") {
		return SelectorOf(strings.TrimSpace(s)), nil
	}
	return proxy.ParseSelector(s)
}
