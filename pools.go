package postflop

import "github.com/timpalpant/go-postflop/internal/f32"

// floatSlicePool recycles scratch vectors within one worker.
// It is not safe for concurrent use.
type floatSlicePool struct {
	pool [][]float32
}

// alloc returns a zeroed slice of length n.
func (p *floatSlicePool) alloc(n int) []float32 {
	if len(p.pool) > 0 {
		m := len(p.pool)
		next := p.pool[m-1]
		p.pool = p.pool[:m-1]
		if cap(next) >= n {
			next = next[:n]
			f32.Zero(next)
			return next
		}
	}

	return make([]float32, n)
}

func (p *floatSlicePool) free(s []float32) {
	if cap(s) > 0 {
		p.pool = append(p.pool, s[:0])
	}
}

// intSlicePool recycles action index lists.
type intSlicePool struct {
	pool [][]int
}

// alloc returns an empty slice to append to.
func (p *intSlicePool) alloc() []int {
	if len(p.pool) > 0 {
		m := len(p.pool)
		next := p.pool[m-1]
		p.pool = p.pool[:m-1]
		return next
	}

	return nil
}

func (p *intSlicePool) free(s []int) {
	if cap(s) > 0 {
		p.pool = append(p.pool, s[:0])
	}
}
