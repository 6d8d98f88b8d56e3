// Package storage provides interfaces for proxy contract storage.
//
// This package defines the abstractions the registry reads and writes:
//   - Store: a backend holding the storage of every deployed proxy
//   - Tx: a transaction scoped to one proxy's storage
//   - Route: a single selector-to-implementation entry
//
// Each proxy owns two storage slots: the owner identity and the routing table.
// Every read and write goes through a Tx, and a Tx is either committed as a
// whole or rolled back as a whole. A reverted call therefore leaves storage
// exactly as it was before the call.
//
// Example usage:
//
//	tx, err := store.Begin(ctx, proxyAddr)
//	if err != nil {
//		return err
//	}
//	defer tx.Rollback()
//
//	if err := tx.SetRoute(ctx, sel, implAddr); err != nil {
//		return err
//	}
//	return tx.Commit()
//
// Rollback after Commit is a no-op, so deferring it is always safe.
package storage
