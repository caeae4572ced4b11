package postflop

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFloatSlicePoolZeroes(t *testing.T) {
	pool := &floatSlicePool{}
	v := pool.alloc(4)
	for i := range v {
		v[i] = float32(i + 1)
	}
	pool.free(v)

	w := pool.alloc(6)
	require.Len(t, w, 6)
	for i, x := range w {
		require.Zero(t, x, "entry %d", i)
	}
}

func TestFloatSlicePoolReuses(t *testing.T) {
	pool := &floatSlicePool{}
	v := pool.alloc(8)
	for i := range v {
		v[i] = float32(i + 1)
	}
	pool.free(v)

	w := pool.alloc(5)
	require.Len(t, w, 5)
	require.True(t, &v[0] == &w[0], "expected the freed slice to be reused")
	require.Equal(t, make([]float32, 5), w)

	pool.free(w)
	allocs := testing.AllocsPerRun(100, func() {
		x := pool.alloc(8)
		pool.free(x)
	})
	require.Zero(t, allocs)
}

// BenchmarkFloatSlicePoolAllocFree-24      	200000000	         9.63 ns/op
func BenchmarkFloatSlicePoolAllocFree(b *testing.B) {
	pool := &floatSlicePool{}
	for i := 0; i < b.N; i++ {
		v := pool.alloc(10)
		pool.free(v)
	}
}

func BenchmarkIntSlicePoolAllocFree(b *testing.B) {
	pool := &intSlicePool{}
	for i := 0; i < b.N; i++ {
		v := pool.alloc()
		v = append(v, 1, 2, 3)
		pool.free(v)
	}
}
