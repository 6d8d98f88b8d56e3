// Package txlog provides interfaces for the append-only transaction receipt log.
//
// This package defines the abstractions the chain runtime records into:
//   - Receipt: the outcome of one executed transaction
//   - Log: append-only receipt storage with lookup by transaction id
//
// Receipts are ordered by height. The first receipt has height 0 and every
// append takes the next height, so a height doubles as a replay cursor.
//
// Example usage:
//
//	// Look up the status of a transaction
//	receipt, err := log.Get(ctx, txID)
//	if err != nil {
//		return err
//	}
//
//	// Follow every receipt from height 0, including future ones
//	receipts, errs := log.Watch(ctx, 0)
//	for {
//		select {
//		case r, ok := <-receipts:
//			if !ok {
//				return <-errs
//			}
//			handle(r)
//		case <-ctx.Done():
//			return ctx.Err()
//		}
//	}
package txlog
