package imaging

import (
	"bytes"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// DefaultCanvasSize is the edge length of the square working canvas.
const DefaultCanvasSize = 320

// Decode decodes raw image bytes in any registered format.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Letterbox scales img so its long edge equals target, preserving aspect
// ratio, and centers it on a white target×target canvas. Images smaller than
// the canvas are upscaled; nothing is ever cropped or distorted.
func Letterbox(img image.Image, target int) *image.RGBA {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	long := w
	if h > long {
		long = h
	}
	scale := float64(target) / float64(long)
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	canvas := image.NewRGBA(image.Rect(0, 0, target, target))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	xOff := (target - newW) / 2
	yOff := (target - newH) / 2
	dst := image.Rect(xOff, yOff, xOff+newW, yOff+newH)
	draw.BiLinear.Scale(canvas, dst, img, bounds, draw.Over, nil)

	return canvas
}

// Resize scales img to exactly w×h with bilinear filtering.
func Resize(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// ToRGBA returns img as *image.RGBA, copying only when necessary.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return dst
}
