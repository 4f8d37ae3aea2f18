package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

type fakeMirror struct {
	mu    sync.Mutex
	calls int
}

func (m *fakeMirror) RecordFill(orderID string, order ftypes.Order, result ftypes.ExecutionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return nil
}

func TestCache_RecordAndSeen(t *testing.T) {
	c := New(nil)
	assert.False(t, c.Seen("a"))

	c.Record("a", ftypes.Order{})
	assert.True(t, c.Seen("a"))
	assert.False(t, c.Filled("a"))
}

func TestCache_ResolveDeduplicatesConcurrentCallers(t *testing.T) {
	mirror := &fakeMirror{}
	c := New(mirror)

	var calls int32
	var wg sync.WaitGroup
	results := make([]ftypes.ExecutionResult, 20)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := c.Resolve("order-1", ftypes.Order{}, func() (ftypes.ExecutionResult, error) {
				calls++
				return ftypes.ExecutionResult{Success: true, StrategyName: "BasicFiller"}, nil
			})
			require.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	assert.True(t, c.Filled("order-1"))
	for _, r := range results {
		assert.True(t, r.Success)
	}
	assert.Equal(t, 1, mirror.calls)
}

func TestCache_ResolveShortCircuitsAlreadyFilled(t *testing.T) {
	c := New(nil)
	_, err := c.Resolve("order-2", ftypes.Order{}, func() (ftypes.ExecutionResult, error) {
		return ftypes.ExecutionResult{Success: true}, nil
	})
	require.NoError(t, err)

	called := false
	res, err := c.Resolve("order-2", ftypes.Order{}, func() (ftypes.ExecutionResult, error) {
		called = true
		return ftypes.ExecutionResult{}, nil
	})
	require.NoError(t, err)
	assert.False(t, called)
	assert.True(t, res.Success)
}

func TestCache_Len(t *testing.T) {
	c := New(nil)
	c.Record("a", ftypes.Order{})
	c.Record("b", ftypes.Order{})
	c.Record("a", ftypes.Order{}) // duplicate, first wins
	assert.Equal(t, 2, c.Len())
}

func TestCache_GasEstimate_SetThenGet(t *testing.T) {
	c := New(nil)
	_, ok := c.GasEstimate("order-1")
	assert.False(t, ok)

	want := ftypes.GasEstimate{FillGas: 123, PostGas: 45, RelayerFeeInFeeToken: ftypes.DefaultGasEstimate().RelayerFeeInFeeToken}
	c.SetGasEstimate("order-1", ftypes.Order{}, want)

	got, ok := c.GasEstimate("order-1")
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestCache_SwapPlan_SetThenGet(t *testing.T) {
	c := New(nil)
	_, ok := c.SwapPlan("order-1")
	assert.False(t, ok)

	want := ftypes.SwapPlan{TotalGasEstimate: 99}
	c.SetSwapPlan("order-1", ftypes.Order{}, want)

	got, ok := c.SwapPlan("order-1")
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestCache_GasEstimate_SurvivesResolve(t *testing.T) {
	c := New(nil)
	c.SetGasEstimate("order-1", ftypes.Order{}, ftypes.GasEstimate{FillGas: 7})

	_, err := c.Resolve("order-1", ftypes.Order{}, func() (ftypes.ExecutionResult, error) {
		return ftypes.ExecutionResult{Success: true}, nil
	})
	require.NoError(t, err)

	got, ok := c.GasEstimate("order-1")
	require.True(t, ok)
	assert.Equal(t, uint64(7), got.FillGas)
}

func TestCache_SetGasEstimate_ConcurrentWithResolve(t *testing.T) {
	c := New(nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i uint64) {
			defer wg.Done()
			c.SetGasEstimate("order-1", ftypes.Order{}, ftypes.GasEstimate{FillGas: i})
		}(uint64(i))
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Resolve("order-1", ftypes.Order{}, func() (ftypes.ExecutionResult, error) {
			return ftypes.ExecutionResult{Success: true}, nil
		})
	}()
	wg.Wait()

	_, ok := c.GasEstimate("order-1")
	assert.True(t, ok)
}
