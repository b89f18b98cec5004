package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// meanLuma averages the Y channel of an RGBA image.
func meanLuma(img *image.RGBA) float64 {
	b := img.Bounds()
	var sum float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			yy, _, _ := color.RGBToYCbCr(c.R, c.G, c.B)
			sum += float64(yy)
		}
	}
	return sum / float64(b.Dx()*b.Dy())
}

func TestCorrectOutputSize(t *testing.T) {
	src := solidImage(64, 64, color.RGBA{R: 100, G: 100, B: 100, A: 255})
	out := Correct(src, DefaultTargetLuma, DefaultTargetLumaStd, 320)
	assert.Equal(t, 320, out.Bounds().Dx())
	assert.Equal(t, 320, out.Bounds().Dy())
}

func TestCorrectIsDeterministic(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			v := uint8((x*8 + y*3) % 256)
			src.SetRGBA(x, y, color.RGBA{R: v, G: v / 2, B: 255 - v, A: 255})
		}
	}

	a := Correct(src, DefaultTargetLuma, DefaultTargetLumaStd, 32)
	b := Correct(src, DefaultTargetLuma, DefaultTargetLumaStd, 32)
	assert.Equal(t, a.Pix, b.Pix)
}

func TestCorrectBrightensUniformMidtone(t *testing.T) {
	// A flat image has zero luma spread, so gain saturates at its upper clamp
	// and bias pulls the mean toward the target.
	src := solidImage(32, 32, color.RGBA{R: 100, G: 100, B: 100, A: 255})
	out := Correct(src, DefaultTargetLuma, DefaultTargetLumaStd, 32)

	before := meanLuma(src)
	after := meanLuma(out)
	require.InDelta(t, 100, before, 2)
	assert.Greater(t, after, before)
	assert.InDelta(t, DefaultTargetLuma, after, 5)
}

func TestCorrectClampsStayGentle(t *testing.T) {
	// A nearly black frame cannot be forced all the way to the target; the
	// gain and bias clamps bound the adjustment.
	src := solidImage(32, 32, color.RGBA{R: 10, G: 10, B: 10, A: 255})
	out := Correct(src, DefaultTargetLuma, DefaultTargetLumaStd, 32)

	after := meanLuma(out)
	assert.Greater(t, after, 20.0)
	assert.Less(t, after, 60.0)
}

func TestCorrectDarkensBrightHighContrast(t *testing.T) {
	// Bright content with a wide luma spread drives the gain below 1 and the
	// bias negative, pulling the mean down toward the target.
	src := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			v := uint8(255)
			if x >= 16 {
				v = 120
			}
			src.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	out := Correct(src, DefaultTargetLuma, DefaultTargetLumaStd, 32)

	assert.Less(t, meanLuma(out), meanLuma(src))
}

func TestSharpenUniformIsIdentity(t *testing.T) {
	luma := make([]float64, 16)
	for i := range luma {
		luma[i] = 140
	}
	out := sharpen(luma, 4, 4)
	for _, v := range out {
		assert.InDelta(t, 140, v, 1e-9)
	}
}

func TestSharpenAmplifiesEdges(t *testing.T) {
	// A bright pixel on a dark field gets brighter, its neighbors darker.
	luma := make([]float64, 25)
	for i := range luma {
		luma[i] = 50
	}
	luma[12] = 100 // center of 5×5

	out := sharpen(luma, 5, 5)
	assert.Greater(t, out[12], 100.0)
	assert.Less(t, out[11], 50.0)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, clamp(-5, 0, 255))
	assert.Equal(t, 255.0, clamp(300, 0, 255))
	assert.Equal(t, 42.0, clamp(42, 0, 255))
}
