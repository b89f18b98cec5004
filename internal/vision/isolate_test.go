package vision

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testFrame(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// fullMask covers the whole frame at the given mask resolution.
func fullMask(w, h int) []float32 {
	m := make([]float32, w*h)
	for i := range m {
		m[i] = 1
	}
	return m
}

func TestCompositeNoInstancesIsBlack(t *testing.T) {
	frame := testFrame(8, 8, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	out := Composite(frame, nil)

	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			c := out.RGBAAt(x, y)
			assert.Equal(t, color.RGBA{A: 255}, c)
		}
	}
}

func TestCompositeKeepsMaskedPixels(t *testing.T) {
	frame := testFrame(8, 8, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	// Mask covers only the left half at frame resolution.
	mask := make([]float32, 8*8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 4; x++ {
			mask[y*8+x] = 1
		}
	}

	out := Composite(frame, []Instance{{
		Class: PersonClass,
		Score: 0.9,
		Mask:  mask,
		MaskW: 8,
		MaskH: 8,
	}})

	assert.Equal(t, uint8(200), out.RGBAAt(1, 4).R)
	assert.Equal(t, color.RGBA{A: 255}, out.RGBAAt(6, 4))
}

func TestCompositeIgnoresNonPersonInstances(t *testing.T) {
	frame := testFrame(4, 4, color.RGBA{G: 255, A: 255})

	out := Composite(frame, []Instance{{
		Class: 16, // dog
		Score: 0.99,
		Mask:  fullMask(4, 4),
		MaskW: 4,
		MaskH: 4,
	}})

	assert.Equal(t, color.RGBA{A: 255}, out.RGBAAt(2, 2))
}

func TestCompositeUnionsMultiplePeople(t *testing.T) {
	frame := testFrame(4, 4, color.RGBA{B: 255, A: 255})

	left := make([]float32, 16)
	right := make([]float32, 16)
	for y := 0; y < 4; y++ {
		left[y*4] = 1
		right[y*4+3] = 1
	}

	out := Composite(frame, []Instance{
		{Class: PersonClass, Mask: left, MaskW: 4, MaskH: 4},
		{Class: PersonClass, Mask: right, MaskW: 4, MaskH: 4},
	})

	assert.Equal(t, uint8(255), out.RGBAAt(0, 1).B)
	assert.Equal(t, uint8(255), out.RGBAAt(3, 1).B)
	assert.Equal(t, color.RGBA{A: 255}, out.RGBAAt(1, 1))
}

func TestCompositeUpsamplesMask(t *testing.T) {
	// A 2×2 mask with only the top-left cell set covers the top-left quadrant
	// of an 8×8 frame after nearest-neighbour upsampling.
	frame := testFrame(8, 8, color.RGBA{R: 255, A: 255})
	mask := []float32{1, 0, 0, 0}

	out := Composite(frame, []Instance{{
		Class: PersonClass,
		Mask:  mask,
		MaskW: 2,
		MaskH: 2,
	}})

	assert.Equal(t, uint8(255), out.RGBAAt(2, 2).R)
	assert.Equal(t, color.RGBA{A: 255}, out.RGBAAt(5, 5))
	assert.Equal(t, color.RGBA{A: 255}, out.RGBAAt(5, 2))
}
