package imaging

import (
	"image"
	"image/color"
	"math"
)

// Photometric correction targets and clamps. The gain/bias clamps keep the
// adjustment gentle so over- or under-exposed shots are nudged, not rewritten.
const (
	DefaultTargetLuma    = 140.0
	DefaultTargetLumaStd = 55.0

	minGain = 0.9
	maxGain = 1.3
	maxBias = 25.0

	stdEpsilon = 1e-5
)

// Correct normalizes the luma channel of img toward the target mean and
// standard deviation, sharpens it with a fixed 3×3 kernel and returns the
// result resized to size×size. Chroma channels pass through untouched. The
// transform is deterministic: the only data-dependent behavior is clamping.
func Correct(img image.Image, targetMean, targetStd float64, size int) *image.RGBA {
	src := ToRGBA(img)
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	luma := make([]float64, w*h)
	cb := make([]uint8, w*h)
	cr := make([]uint8, w*h)

	var sum float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := src.PixOffset(x+bounds.Min.X, y+bounds.Min.Y)
			yy, cbv, crv := color.RGBToYCbCr(src.Pix[i], src.Pix[i+1], src.Pix[i+2])
			idx := y*w + x
			luma[idx] = float64(yy)
			cb[idx] = cbv
			cr[idx] = crv
			sum += float64(yy)
		}
	}

	n := float64(len(luma))
	mean := sum / n
	var variance float64
	for _, v := range luma {
		d := v - mean
		variance += d * d
	}
	std := math.Sqrt(variance / n)

	alpha := clamp(targetStd/(std+stdEpsilon), minGain, maxGain)
	beta := clamp(targetMean-alpha*mean, -maxBias, maxBias)

	adjusted := make([]float64, len(luma))
	for i, v := range luma {
		adjusted[i] = clamp(alpha*v+beta, 0, 255)
	}

	sharp := sharpen(adjusted, w, h)

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			r, g, b := color.YCbCrToRGB(uint8(math.Round(sharp[idx])), cb[idx], cr[idx])
			o := out.PixOffset(x, y)
			out.Pix[o] = r
			out.Pix[o+1] = g
			out.Pix[o+2] = b
			out.Pix[o+3] = 0xff
		}
	}

	if w == size && h == size {
		return out
	}
	return Resize(out, size, size)
}

// sharpen applies the fixed kernel (center 5, four-connected neighbors −1,
// corners 0) with replicated borders, clamping the result to [0, 255].
func sharpen(luma []float64, w, h int) []float64 {
	at := func(x, y int) float64 {
		if x < 0 {
			x = 0
		}
		if x >= w {
			x = w - 1
		}
		if y < 0 {
			y = 0
		}
		if y >= h {
			y = h - 1
		}
		return luma[y*w+x]
	}

	out := make([]float64, len(luma))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := 5*at(x, y) - at(x-1, y) - at(x+1, y) - at(x, y-1) - at(x, y+1)
			out[y*w+x] = clamp(v, 0, 255)
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
