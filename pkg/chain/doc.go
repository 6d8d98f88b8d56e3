// Package chain provides interfaces for the in-process execution environment
// proxies run in.
//
// A Node deploys contracts at addresses, executes one transaction at a time
// and records a receipt for every transaction it executes. It is the surface
// the HTTP API and the command line tools talk to.
//
// Example usage:
//
//	receipt, err := node.Call(ctx, alice, proxyAddr, abi.SelectorOf("double(u64)"), abi.EncodeU64(5), 0)
//	if err != nil {
//		return err // the environment failed, nothing was recorded
//	}
//	if !receipt.Succeeded() {
//		return fmt.Errorf("reverted: %s", receipt.Reason)
//	}
//	doubled, err := abi.DecodeU64(receipt.Return)
package chain
