package vision

import (
	"fmt"
	"image"
)

// Face is one detected face with its raw feature vector.
type Face struct {
	BBox       [4]float32
	Confidence float32
	Embedding  []float32 // EmbeddingDim values, not yet unit-normalized
}

// FaceAnalyzer is the face-embedding capability boundary: given a canonical
// frame it returns zero or more faces, each with a feature vector, in the
// backend's own ranking order.
type FaceAnalyzer interface {
	Analyze(img image.Image) ([]Face, error)
	Close()
}

// ONNXFaceAnalyzer chains the RetinaFace detector and the ArcFace embedder.
type ONNXFaceAnalyzer struct {
	detector *Detector
	embedder *Embedder
}

// NewONNXFaceAnalyzer wires a detector and an embedder into one analyzer.
// Ownership of both transfers to the analyzer; Close releases them.
func NewONNXFaceAnalyzer(detector *Detector, embedder *Embedder) *ONNXFaceAnalyzer {
	return &ONNXFaceAnalyzer{detector: detector, embedder: embedder}
}

// Analyze detects faces in img and extracts an embedding for each, keeping
// the detector's confidence ordering.
func (a *ONNXFaceAnalyzer) Analyze(img image.Image) ([]Face, error) {
	bounds := img.Bounds()
	origW := bounds.Dx()
	origH := bounds.Dy()

	detW, detH := a.detector.InputSize()
	detInput := imageToCHW(img, detW, detH, [3]float32{127.5, 127.5, 127.5}, [3]float32{128.0, 128.0, 128.0})

	detections, err := a.detector.Detect(detInput, origW, origH)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	faces := make([]Face, 0, len(detections))
	for _, det := range detections {
		crop := cropFace(img, det.BBox)
		if crop == nil {
			continue
		}

		embW, embH := a.embedder.InputSize()
		embInput := imageToCHW(crop, embW, embH, [3]float32{127.5, 127.5, 127.5}, [3]float32{127.5, 127.5, 127.5})
		embedding, err := a.embedder.Extract(embInput)
		if err != nil {
			return nil, fmt.Errorf("extract embedding: %w", err)
		}

		faces = append(faces, Face{
			BBox:       det.BBox,
			Confidence: det.Confidence,
			Embedding:  embedding,
		})
	}

	return faces, nil
}

func (a *ONNXFaceAnalyzer) Close() {
	if a.detector != nil {
		a.detector.Close()
	}
	if a.embedder != nil {
		a.embedder.Close()
	}
}

// imageToCHW converts an image to CHW float32 with per-channel
// normalization: pixel = (pixel - mean) / std.
func imageToCHW(img image.Image, targetW, targetH int, mean, std [3]float32) []float32 {
	resized := resizeNearest(img, targetW, targetH)
	bounds := resized.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	data := make([]float32, 3*h*w)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := resized.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()

			rf := float32(r >> 8)
			gf := float32(g >> 8)
			bf := float32(b >> 8)

			idx := y*w + x
			data[0*h*w+idx] = (rf - mean[0]) / std[0]
			data[1*h*w+idx] = (gf - mean[1]) / std[1]
			data[2*h*w+idx] = (bf - mean[2]) / std[2]
		}
	}

	return data
}

// resizeNearest performs nearest-neighbour resize (fast, good enough for
// model input).
func resizeNearest(img image.Image, targetW, targetH int) image.Image {
	bounds := img.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()
	if srcW == targetW && srcH == targetH {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	for y := 0; y < targetH; y++ {
		for x := 0; x < targetW; x++ {
			srcX := bounds.Min.X + x*srcW/targetW
			srcY := bounds.Min.Y + y*srcH/targetH
			dst.Set(x, y, img.At(srcX, srcY))
		}
	}
	return dst
}

// cropFace extracts the face region with 10% padding, clamped to the frame.
func cropFace(img image.Image, bbox [4]float32) image.Image {
	bounds := img.Bounds()

	x1 := int(bbox[0])
	y1 := int(bbox[1])
	x2 := int(bbox[2])
	y2 := int(bbox[3])

	w := x2 - x1
	h := y2 - y1
	if w <= 0 || h <= 0 {
		return nil
	}

	padW := int(float32(w) * 0.1)
	padH := int(float32(h) * 0.1)
	x1 -= padW
	y1 -= padH
	x2 += padW
	y2 += padH

	if x1 < bounds.Min.X {
		x1 = bounds.Min.X
	}
	if y1 < bounds.Min.Y {
		y1 = bounds.Min.Y
	}
	if x2 > bounds.Max.X {
		x2 = bounds.Max.X
	}
	if y2 > bounds.Max.Y {
		y2 = bounds.Max.Y
	}
	if x2-x1 <= 0 || y2-y1 <= 0 {
		return nil
	}

	crop := image.NewRGBA(image.Rect(0, 0, x2-x1, y2-y1))
	for cy := y1; cy < y2; cy++ {
		for cx := x1; cx < x2; cx++ {
			crop.Set(cx-x1, cy-y1, img.At(cx, cy))
		}
	}

	return crop
}
