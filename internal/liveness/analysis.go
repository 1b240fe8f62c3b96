package liveness

// Pixel-level helpers shared by the quality validator and the scorer.

// luminance converts a frame to its single-channel luminance plane using the
// ITU-R 601 weights (299/587/114), matching the usual L-mode conversion.
func luminance(f *Frame) []uint8 {
	lum := make([]uint8, f.Width*f.Height)
	for i := 0; i < len(lum); i++ {
		r := int(f.Pix[i*3])
		g := int(f.Pix[i*3+1])
		b := int(f.Pix[i*3+2])
		lum[i] = uint8((r*299 + g*587 + b*114) / 1000)
	}
	return lum
}

// findEdges applies a 3x3 Laplacian-style high-pass filter (8*center minus
// the eight neighbors) to a luminance plane, clamped to [0,255]. Border
// pixels are left at zero.
func findEdges(lum []uint8, w, h int) []uint8 {
	out := make([]uint8, len(lum))
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			v := 8*int(lum[i]) -
				int(lum[i-w-1]) - int(lum[i-w]) - int(lum[i-w+1]) -
				int(lum[i-1]) - int(lum[i+1]) -
				int(lum[i+w-1]) - int(lum[i+w]) - int(lum[i+w+1])
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			out[i] = uint8(v)
		}
	}
	return out
}

// meanVariance returns the arithmetic mean and population variance of a
// pixel plane.
func meanVariance(data []uint8) (mean, variance float64) {
	if len(data) == 0 {
		return 0, 0
	}

	var sum float64
	for _, v := range data {
		sum += float64(v)
	}
	mean = sum / float64(len(data))

	var sq float64
	for _, v := range data {
		d := float64(v) - mean
		sq += d * d
	}
	variance = sq / float64(len(data))

	return mean, variance
}

// channelVariance returns the population variance of one RGB channel
// (0=R, 1=G, 2=B).
func channelVariance(f *Frame, channel int) float64 {
	n := f.Width * f.Height
	if n == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(f.Pix[i*3+channel])
	}
	mean := sum / float64(n)

	var sq float64
	for i := 0; i < n; i++ {
		d := float64(f.Pix[i*3+channel]) - mean
		sq += d * d
	}
	return sq / float64(n)
}
