package vision

import "image"

// Composite keeps the pixels of frame covered by a person-class mask and
// forces everything else to black. Multiple person instances are unioned by
// iterative compositing; overlapping regions resolve last-detected-wins,
// which is harmless because every mask copies from the same source frame.
// With no person instances the result is an all-black canvas, a valid frame
// that simply yields no face downstream.
func Composite(frame *image.RGBA, instances []Instance) *image.RGBA {
	bounds := frame.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}

	for _, inst := range instances {
		if inst.Class != PersonClass || len(inst.Mask) == 0 {
			continue
		}
		for y := 0; y < h; y++ {
			// nearest-neighbour upsample from mask resolution
			my := y * inst.MaskH / h
			for x := 0; x < w; x++ {
				mx := x * inst.MaskW / w
				if inst.Mask[my*inst.MaskW+mx] == 0 {
					continue
				}
				si := frame.PixOffset(x+bounds.Min.X, y+bounds.Min.Y)
				di := out.PixOffset(x, y)
				out.Pix[di] = frame.Pix[si]
				out.Pix[di+1] = frame.Pix[si+1]
				out.Pix[di+2] = frame.Pix[si+2]
			}
		}
	}

	return out
}
