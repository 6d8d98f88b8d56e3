package txlog

import (
	"context"
	"errors"
	"sync"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/txlog"
)

var (
	// ErrNegativeHeight is returned when a negative height is provided
	ErrNegativeHeight = errors.New("height cannot be negative")
	// ErrNegativeMaxCount is returned when a negative max count is provided
	ErrNegativeMaxCount = errors.New("max count cannot be negative")
	// ErrNilReceipt is returned when a nil receipt is provided
	ErrNilReceipt = errors.New("receipt cannot be nil")
	// ErrEmptyTxID is returned when a receipt has no transaction id
	ErrEmptyTxID = errors.New("receipt must have a transaction id")
	// ErrDuplicateTxID is returned when a transaction id is appended twice
	ErrDuplicateTxID = errors.New("transaction id already recorded")
	// ErrNotFound is returned when no receipt has the requested id
	ErrNotFound = errors.New("receipt not found")
	// ErrClosed is returned when the log is used after Close
	ErrClosed = errors.New("receipt log is closed")
)

// InMemoryLog implements txlog.Log in memory.
// Receipts are kept in height order with an index by transaction id.
// It is safe for concurrent use.
type InMemoryLog struct {
	mu       sync.RWMutex
	receipts []*txlog.Receipt
	byID     map[string]*txlog.Receipt
	appended chan struct{} // closed and replaced on every append
	closed   bool
}

// NewInMemoryLog creates an empty receipt log.
func NewInMemoryLog() *InMemoryLog {
	return &InMemoryLog{
		byID:     make(map[string]*txlog.Receipt),
		appended: make(chan struct{}),
	}
}

// Append stores a copy of receipt at the next height.
func (l *InMemoryLog) Append(ctx context.Context, receipt *txlog.Receipt) (*txlog.Receipt, error) {
	if receipt == nil {
		return nil, ErrNilReceipt
	}
	if receipt.TxID == "" {
		return nil, ErrEmptyTxID
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}
	if _, exists := l.byID[receipt.TxID]; exists {
		return nil, ErrDuplicateTxID
	}

	stored := receipt.WithHeight(int64(len(l.receipts)))
	l.receipts = append(l.receipts, stored)
	l.byID[stored.TxID] = stored

	// Wake every watcher waiting for a new receipt.
	close(l.appended)
	l.appended = make(chan struct{})

	return stored, nil
}

// Get returns the receipt of a transaction by id.
func (l *InMemoryLog) Get(ctx context.Context, txID string) (*txlog.Receipt, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, ErrClosed
	}
	r, ok := l.byID[txID]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

// Read returns up to maxCount receipts starting at height.
func (l *InMemoryLog) Read(ctx context.Context, height int64, maxCount int) ([]*txlog.Receipt, error) {
	if height < 0 {
		return nil, ErrNegativeHeight
	}
	if maxCount < 0 {
		return nil, ErrNegativeMaxCount
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, ErrClosed
	}
	if maxCount == 0 || height >= int64(len(l.receipts)) {
		return make([]*txlog.Receipt, 0), nil
	}

	end := height + int64(maxCount)
	if end > int64(len(l.receipts)) {
		end = int64(len(l.receipts))
	}
	out := make([]*txlog.Receipt, end-height)
	copy(out, l.receipts[height:end])
	return out, nil
}

// EndHeight returns the height the next receipt will be stored at.
func (l *InMemoryLog) EndHeight(ctx context.Context) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return 0, ErrClosed
	}
	return int64(len(l.receipts)), nil
}

// Watch streams receipts from height onwards, then follows new appends.
// The error channel receives ctx.Err() on cancellation and nothing when the
// log is closed.
func (l *InMemoryLog) Watch(ctx context.Context, height int64) (<-chan *txlog.Receipt, <-chan error) {
	out := make(chan *txlog.Receipt)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		if height < 0 {
			errs <- ErrNegativeHeight
			return
		}

		next := height
		for {
			l.mu.RLock()
			if l.closed {
				l.mu.RUnlock()
				return
			}
			var batch []*txlog.Receipt
			if next < int64(len(l.receipts)) {
				batch = make([]*txlog.Receipt, int64(len(l.receipts))-next)
				copy(batch, l.receipts[next:])
			}
			wake := l.appended
			l.mu.RUnlock()

			for _, r := range batch {
				select {
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				case out <- r:
					next++
				}
			}

			if len(batch) > 0 {
				continue
			}

			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case <-wake:
			}
		}
	}()

	return out, errs
}

// Statistics returns aggregate counts over the log.
func (l *InMemoryLog) Statistics(ctx context.Context) (txlog.Statistics, error) {
	select {
	case <-ctx.Done():
		return txlog.Statistics{}, ctx.Err()
	default:
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return txlog.Statistics{}, ErrClosed
	}
	stats := txlog.Statistics{
		Total:    int64(len(l.receipts)),
		ByStatus: make(map[txlog.Status]int64),
		ByTarget: make(map[string]int64),
	}
	for _, r := range l.receipts {
		stats.ByStatus[r.Status]++
		stats.ByTarget[r.To.String()]++
	}
	return stats, nil
}

// Close drops all receipts and ends every watcher. Closing twice is a no-op.
func (l *InMemoryLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.receipts = nil
	l.byID = make(map[string]*txlog.Receipt)
	l.closed = true
	close(l.appended)

	return nil
}

// Verify that InMemoryLog implements the Log interface at compile time
var _ txlog.Log = (*InMemoryLog)(nil)
