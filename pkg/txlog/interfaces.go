package txlog

import (
	"context"
	"io"
)

// Log is append-only receipt storage.
type Log interface {
	io.Closer

	// Append stores a receipt at the next height and returns the stored copy.
	Append(ctx context.Context, receipt *Receipt) (*Receipt, error)

	// Get returns the receipt of a transaction by id.
	Get(ctx context.Context, txID string) (*Receipt, error)

	// Read returns up to maxCount receipts starting at height.
	Read(ctx context.Context, height int64, maxCount int) ([]*Receipt, error)

	// EndHeight returns the height the next receipt will be stored at.
	EndHeight(ctx context.Context) (int64, error)

	// Watch streams receipts from height onwards and keeps following new
	// appends until ctx is cancelled or the log is closed. Both channels are
	// closed when the stream ends.
	Watch(ctx context.Context, height int64) (<-chan *Receipt, <-chan error)

	// Statistics returns aggregate counts over the log.
	Statistics(ctx context.Context) (Statistics, error)
}

// Statistics provides aggregate counts over the receipt log
type Statistics struct {
	Total    int64            `json:"total"`
	ByStatus map[Status]int64 `json:"by_status"`
	ByTarget map[string]int64 `json:"by_target"` // contract address -> receipts
}
