package facets

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/abi"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
)

var contractAddr = proxy.BytesToAddress([]byte{0x01})

func call(t *testing.T, c *Contract, signature string, args []byte) ([]byte, error) {
	t.Helper()
	return c.Call(context.Background(), proxy.Call{
		Contract: contractAddr,
		Selector: abi.SelectorOf(signature),
		Args:     args,
	})
}

func callU64(t *testing.T, c *Contract, signature string, args []byte) uint64 {
	t.Helper()
	out, err := call(t, c, signature, args)
	require.NoError(t, err)
	v, err := abi.DecodeU64(out)
	require.NoError(t, err)
	return v
}

func TestMyContract_Double(t *testing.T) {
	c := NewMyContract()

	assert.Equal(t, uint64(10), callU64(t, c, "double(u64)", abi.EncodeU64(5)))
	assert.Equal(t, uint64(0), callU64(t, c, "double(u64)", abi.EncodeU64(0)))

	_, err := call(t, c, "double(u64)", abi.EncodeU64(math.MaxUint64))
	reason, _ := proxy.ReasonOf(err)
	assert.Equal(t, ReasonOverflow, reason)
}

func TestMyContract_InvalidArgs(t *testing.T) {
	c := NewMyContract()

	_, err := call(t, c, "double(u64)", []byte{1, 2})
	reason, _ := proxy.ReasonOf(err)
	assert.Equal(t, proxy.ReasonInvalidArgs, reason)
}

func TestMyContract_UnknownSelector(t *testing.T) {
	c := NewMyContract()

	_, err := call(t, c, "triple(u64)", abi.EncodeU64(1))
	rev, ok := proxy.AsRevert(err)
	require.True(t, ok)
	assert.Equal(t, proxy.ReasonUnresolved, rev.Reason)
	assert.Equal(t, proxy.RevertImplementation, rev.Kind, "raised by the implementation, not by dispatch")
	assert.NotErrorIs(t, err, proxy.ErrUnresolvedSelector)
}

func TestMyContractV2(t *testing.T) {
	c := NewMyContractV2()

	assert.Equal(t, uint64(10), callU64(t, c, "double(u64)", abi.EncodeU64(5)))
	assert.Equal(t, uint64(15), callU64(t, c, "triple(u64)", abi.EncodeU64(5)))
	assert.Equal(t, uint64(2), callU64(t, c, "version()", nil))

	_, err := call(t, c, "version()", abi.EncodeU64(1))
	reason, _ := proxy.ReasonOf(err)
	assert.Equal(t, proxy.ReasonInvalidArgs, reason)
}

func TestCounter(t *testing.T) {
	c := NewCounter()

	_, err := call(t, c, "decrement()", nil)
	reason, _ := proxy.ReasonOf(err)
	assert.Equal(t, ReasonUnderflow, reason)

	assert.Equal(t, uint64(1), callU64(t, c, "increment()", nil))
	assert.Equal(t, uint64(2), callU64(t, c, "increment()", nil))
	assert.Equal(t, uint64(1), callU64(t, c, "decrement()", nil))
	assert.Equal(t, uint64(1), callU64(t, c, "count()", nil))
}

func TestCounter_CountsPerExecutingContract(t *testing.T) {
	c := NewCounter()
	other := proxy.BytesToAddress([]byte{0x02})

	callU64(t, c, "increment()", nil)
	out, err := c.Call(context.Background(), proxy.Call{
		Contract: other,
		Selector: abi.SelectorOf("count()"),
	})
	require.NoError(t, err)
	assert.Equal(t, abi.EncodeU64(0), out)
}

func TestContract_SelectorsAndFunctions(t *testing.T) {
	c := NewMyContractV2()

	sels := c.Selectors()
	require.Len(t, sels, 3)
	for i := 1; i < len(sels); i++ {
		assert.Less(t, sels[i-1], sels[i])
	}

	funcs := c.Functions()
	require.Len(t, funcs, 3)
	for _, fn := range funcs {
		assert.Equal(t, abi.SelectorOf(fn.Signature), fn.Selector)
	}
}

func TestNew(t *testing.T) {
	for _, name := range Names() {
		c, err := New(name)
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}

	_, err := New("Nope")
	assert.ErrorIs(t, err, ErrUnknownFacet)
}
