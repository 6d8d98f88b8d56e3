package facets

import (
	"context"
	"math"
	"sync"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
)

// Revert reasons raised by the sample facets.
const (
	ReasonOverflow  = "Overflow"
	ReasonUnderflow = "Underflow"
)

func double(_ context.Context, _ proxy.Call, v uint64) (uint64, error) {
	if v > math.MaxUint64/2 {
		return 0, proxy.NewRevert(ReasonOverflow)
	}
	return v * 2, nil
}

func triple(_ context.Context, _ proxy.Call, v uint64) (uint64, error) {
	if v > math.MaxUint64/3 {
		return 0, proxy.NewRevert(ReasonOverflow)
	}
	return v * 3, nil
}

// NewMyContract returns the first version of the sample contract. It
// exports double(u64).
func NewMyContract() *Contract {
	return NewContract("MyContract").
		Handle("double(u64)", U64Handler(double))
}

// NewMyContractV2 is the upgraded sample contract: double(u64) is kept,
// triple(u64) and version() are new.
func NewMyContractV2() *Contract {
	return NewContract("MyContractV2").
		Handle("double(u64)", U64Handler(double)).
		Handle("triple(u64)", U64Handler(triple)).
		Handle("version()", NoArgHandler(func(context.Context, proxy.Call) (uint64, error) {
			return 2, nil
		}))
}

// NewCounter returns a counter facet. Its count lives in the storage of the
// contract executing it, so two proxies routing to the same counter keep
// separate counts.
func NewCounter() *Contract {
	var (
		mu     sync.Mutex
		counts = make(map[proxy.Address]uint64)
	)

	return NewContract("Counter").
		Handle("increment()", NoArgHandler(func(_ context.Context, call proxy.Call) (uint64, error) {
			mu.Lock()
			defer mu.Unlock()
			if counts[call.Contract] == math.MaxUint64 {
				return 0, proxy.NewRevert(ReasonOverflow)
			}
			counts[call.Contract]++
			return counts[call.Contract], nil
		})).
		Handle("decrement()", NoArgHandler(func(_ context.Context, call proxy.Call) (uint64, error) {
			mu.Lock()
			defer mu.Unlock()
			if counts[call.Contract] == 0 {
				return 0, proxy.NewRevert(ReasonUnderflow)
			}
			counts[call.Contract]--
			return counts[call.Contract], nil
		})).
		Handle("count()", NoArgHandler(func(_ context.Context, call proxy.Call) (uint64, error) {
			mu.Lock()
			defer mu.Unlock()
			return counts[call.Contract], nil
		}))
}
