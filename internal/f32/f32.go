// Package f32 implements the float32 vector kernels used by the CFR passes.
package f32

// Add is
//  for i, v := range s {
//  	dst[i] += v
//  }
func Add(dst, s []float32) {
	for i, v := range s {
		dst[i] += v
	}
}

// MulTo is
//  for i, v := range s {
//  	dst[i] = v * t[i]
//  }
//  return dst
func MulTo(dst, s, t []float32) []float32 {
	for i, v := range s {
		dst[i] = v * t[i]
	}
	return dst
}

// MulAddTo is
//  for i, v := range s {
//  	dst[i] += v * t[i]
//  }
func MulAddTo(dst, s, t []float32) {
	for i, v := range s {
		dst[i] += v * t[i]
	}
}

// MaxTo is
//  for i, v := range s {
//  	dst[i] = max(dst[i], v)
//  }
func MaxTo(dst, s []float32) {
	for i, v := range s {
		if v > dst[i] {
			dst[i] = v
		}
	}
}

// Zero is
//  for i := range x {
//  	x[i] = 0
//  }
func Zero(x []float32) {
	for i := range x {
		x[i] = 0
	}
}

// Sum is
//  var sum float32
//  for i := range x {
//      sum += x[i]
//  }
func Sum(x []float32) float32 {
	var sum float32
	for _, v := range x {
		sum += v
	}
	return sum
}
