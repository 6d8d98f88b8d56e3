package txlog

import (
	"time"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
)

// Status is the outcome of a transaction.
type Status string

const (
	// StatusSuccess means the call returned and its writes were committed
	StatusSuccess Status = "success"
	// StatusRevert means the call reverted and its writes were discarded
	StatusRevert Status = "revert"
	// StatusFailure means the environment failed (storage, transport) and nothing was committed
	StatusFailure Status = "failure"
)

// Receipt records the outcome of one transaction.
type Receipt struct {
	TxID     string         `json:"tx_id"`
	Height   int64          `json:"height"`
	From     proxy.Identity `json:"from"`
	To       proxy.Address  `json:"to"`
	Selector proxy.Selector `json:"selector"`
	Value    uint64         `json:"value,omitempty"`

	Status     Status `json:"status"`
	RevertKind string `json:"revert_kind,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Error      string `json:"error,omitempty"`
	Return     []byte `json:"return,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Succeeded reports whether the transaction committed.
func (r *Receipt) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Revert rebuilds the revert carried by a reverted receipt.
func (r *Receipt) Revert() (*proxy.Revert, bool) {
	if r.Status != StatusRevert {
		return nil, false
	}
	return &proxy.Revert{Kind: proxy.ParseRevertKind(r.RevertKind), Reason: r.Reason}, true
}

// WithHeight returns a copy of the receipt at the given height.
func (r *Receipt) WithHeight(height int64) *Receipt {
	cp := *r
	cp.Height = height
	if r.Return != nil {
		cp.Return = append([]byte(nil), r.Return...)
	}
	return &cp
}
