package render

// Mix blends two frames (a,b) into dst using alpha (0..1).
func Mix(dst, a, b []float64, alpha float64) {
	if alpha <= 0 {
		copy(dst, a)
		return
	}
	if alpha >= 1 {
		copy(dst, b)
		return
	}
	for i := range dst {
		dst[i] = a[i]*(1-alpha) + b[i]*alpha
	}
}
