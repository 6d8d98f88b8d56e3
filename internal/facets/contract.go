package facets

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/abi"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
)

// ErrUnknownFacet is returned by New for a name with no built-in facet
var ErrUnknownFacet = errors.New("unknown facet")

// HandlerFunc runs one function of a contract.
type HandlerFunc func(ctx context.Context, call proxy.Call) ([]byte, error)

// Function describes one exported function of a contract.
type Function struct {
	Signature string         `json:"signature"`
	Selector  proxy.Selector `json:"selector"`
}

// Contract is an implementation contract assembled from handlers keyed by
// function signature. Calls to a selector it does not export revert with
// "Revert(0)", the same reason an unrouted proxy selector reverts with.
type Contract struct {
	name     string
	mu       sync.RWMutex
	handlers map[proxy.Selector]HandlerFunc
	funcs    map[proxy.Selector]string
}

// NewContract creates a contract with no functions.
func NewContract(name string) *Contract {
	return &Contract{
		name:     name,
		handlers: make(map[proxy.Selector]HandlerFunc),
		funcs:    make(map[proxy.Selector]string),
	}
}

// Handle registers h under the selector of signature and returns c.
func (c *Contract) Handle(signature string, h HandlerFunc) *Contract {
	sel := abi.SelectorOf(signature)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[sel] = h
	c.funcs[sel] = signature
	return c
}

// Name returns the contract name.
func (c *Contract) Name() string {
	return c.name
}

// Call runs the handler registered for call.Selector.
func (c *Contract) Call(ctx context.Context, call proxy.Call) ([]byte, error) {
	c.mu.RLock()
	h, ok := c.handlers[call.Selector]
	c.mu.RUnlock()

	if !ok {
		return nil, proxy.NewRevert(proxy.ReasonUnresolved)
	}
	return h(ctx, call)
}

// Selectors returns every exported selector in ascending order.
func (c *Contract) Selectors() []proxy.Selector {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sels := make([]proxy.Selector, 0, len(c.handlers))
	for sel := range c.handlers {
		sels = append(sels, sel)
	}
	sort.Slice(sels, func(i, j int) bool { return sels[i] < sels[j] })
	return sels
}

// Functions returns the contract's ABI ordered by selector.
func (c *Contract) Functions() []Function {
	sels := c.Selectors()

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Function, 0, len(sels))
	for _, sel := range sels {
		out = append(out, Function{Signature: c.funcs[sel], Selector: sel})
	}
	return out
}

// U64Handler adapts a function of one u64 to a HandlerFunc. Malformed
// arguments revert with "InvalidArgs".
func U64Handler(fn func(ctx context.Context, call proxy.Call, v uint64) (uint64, error)) HandlerFunc {
	return func(ctx context.Context, call proxy.Call) ([]byte, error) {
		v, err := abi.DecodeU64(call.Args)
		if err != nil {
			return nil, proxy.NewRevert(proxy.ReasonInvalidArgs)
		}
		out, err := fn(ctx, call, v)
		if err != nil {
			return nil, err
		}
		return abi.EncodeU64(out), nil
	}
}

// NoArgHandler adapts a function with no arguments returning a u64.
func NoArgHandler(fn func(ctx context.Context, call proxy.Call) (uint64, error)) HandlerFunc {
	return func(ctx context.Context, call proxy.Call) ([]byte, error) {
		if len(call.Args) != 0 {
			return nil, proxy.NewRevert(proxy.ReasonInvalidArgs)
		}
		out, err := fn(ctx, call)
		if err != nil {
			return nil, err
		}
		return abi.EncodeU64(out), nil
	}
}

var builtins = map[string]func() *Contract{
	"MyContract":   NewMyContract,
	"MyContractV2": NewMyContractV2,
	"Counter":      NewCounter,
}

// New returns a fresh instance of the built-in facet called name.
func New(name string) (*Contract, error) {
	ctor, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFacet, name)
	}
	return ctor(), nil
}

// Names lists the built-in facets.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Verify that Contract implements the Implementation interface at compile time
var (
	_ proxy.Implementation = (*Contract)(nil)
	_ proxy.SelectorLister = (*Contract)(nil)
)
