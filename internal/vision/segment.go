package vision

import (
	"fmt"
	"image"
	"math"
	"sort"

	ort "github.com/yalue/onnxruntime_go"
)

// PersonClass is the COCO class id for "person".
const PersonClass = 0

// Instance is one segmented object: class, confidence, box and a binary mask
// covering the full frame at proto resolution.
type Instance struct {
	Class int
	Score float32
	BBox  [4]float32 // x1, y1, x2, y2 in source pixel coordinates
	Mask  []float32  // 0/1 values, MaskW×MaskH, row-major
	MaskW int
	MaskH int
}

// Segmenter is the instance-segmentation capability boundary. Any backend
// that can produce class-labelled masks for a frame can stand behind it.
type Segmenter interface {
	Segment(img image.Image) ([]Instance, error)
	Close()
}

// ONNXSegmenter runs a YOLO segmentation model (yoloe-11l-seg export) with
// ONNX Runtime.
type ONNXSegmenter struct {
	session     *ort.AdvancedSession
	inputTensor *ort.Tensor[float32]
	boxTensor   *ort.Tensor[float32]
	protoTensor *ort.Tensor[float32]
	threshold   float32
	inputW      int
	inputH      int
}

// YOLO segmentation export geometry: 8400 candidates, 80 classes, 32 mask
// coefficients, mask prototypes at input/4 resolution.
const (
	segCandidates = 8400
	segClasses    = 80
	segCoeffs     = 32
	segProtoW     = 160
	segProtoH     = 160
	segMaskProb   = 0.5
	segNMSIoU     = 0.45
)

// NewONNXSegmenter loads the segmentation model. threshold is the minimum
// instance confidence kept.
func NewONNXSegmenter(modelPath string, threshold float32, opts *ort.SessionOptions) (*ONNXSegmenter, error) {
	inputW, inputH := 640, 640

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(inputH), int64(inputW)))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	// output0: [1, 4+classes+coeffs, candidates], output1: mask prototypes
	boxTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(4+segClasses+segCoeffs), segCandidates))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create box tensor: %w", err)
	}

	protoTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, segCoeffs, segProtoH, segProtoW))
	if err != nil {
		inputTensor.Destroy()
		boxTensor.Destroy()
		return nil, fmt.Errorf("create proto tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"images"},
		[]string{"output0", "output1"},
		[]ort.Value{inputTensor},
		[]ort.Value{boxTensor, protoTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		boxTensor.Destroy()
		protoTensor.Destroy()
		return nil, fmt.Errorf("create segmenter session: %w", err)
	}

	return &ONNXSegmenter{
		session:     session,
		inputTensor: inputTensor,
		boxTensor:   boxTensor,
		protoTensor: protoTensor,
		threshold:   threshold,
		inputW:      inputW,
		inputH:      inputH,
	}, nil
}

// Segment runs instance segmentation on img and returns every instance with
// confidence at or above the threshold, all classes included. Callers filter
// by class.
func (s *ONNXSegmenter) Segment(img image.Image) ([]Instance, error) {
	bounds := img.Bounds()
	origW := bounds.Dx()
	origH := bounds.Dy()

	input := imageToCHW(img, s.inputW, s.inputH, [3]float32{0, 0, 0}, [3]float32{255, 255, 255})
	copy(s.inputTensor.GetData(), input)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("run segmentation: %w", err)
	}

	candidates := s.parseCandidates(origW, origH)
	candidates = nmsInstances(candidates, segNMSIoU)

	proto := s.protoTensor.GetData()
	out := make([]Instance, len(candidates))
	for i := range candidates {
		s.buildMask(&candidates[i], proto)
		out[i] = candidates[i].Instance
	}

	return out, nil
}

type segCandidate struct {
	Instance
	coeffs []float32
	// box in model input coordinates, for mask cropping
	inX1, inY1, inX2, inY2 float32
}

// parseCandidates decodes the attribute-major [4+classes+coeffs, candidates]
// output into thresholded instances.
func (s *ONNXSegmenter) parseCandidates(origW, origH int) []segCandidate {
	data := s.boxTensor.GetData()
	at := func(attr, c int) float32 { return data[attr*segCandidates+c] }

	scaleW := float32(origW) / float32(s.inputW)
	scaleH := float32(origH) / float32(s.inputH)

	var out []segCandidate
	for c := 0; c < segCandidates; c++ {
		cls := 0
		best := at(4, c)
		for k := 1; k < segClasses; k++ {
			if v := at(4+k, c); v > best {
				best = v
				cls = k
			}
		}
		if best < s.threshold {
			continue
		}

		cx := at(0, c)
		cy := at(1, c)
		w := at(2, c)
		h := at(3, c)

		coeffs := make([]float32, segCoeffs)
		for k := 0; k < segCoeffs; k++ {
			coeffs[k] = at(4+segClasses+k, c)
		}

		inX1 := cx - w/2
		inY1 := cy - h/2
		inX2 := cx + w/2
		inY2 := cy + h/2

		out = append(out, segCandidate{
			Instance: Instance{
				Class: cls,
				Score: best,
				BBox: [4]float32{
					clampF(inX1*scaleW, 0, float32(origW)),
					clampF(inY1*scaleH, 0, float32(origH)),
					clampF(inX2*scaleW, 0, float32(origW)),
					clampF(inY2*scaleH, 0, float32(origH)),
				},
			},
			coeffs: coeffs,
			inX1:   inX1,
			inY1:   inY1,
			inX2:   inX2,
			inY2:   inY2,
		})
	}
	return out
}

// buildMask combines the instance's coefficients with the prototype masks,
// binarizes at segMaskProb and zeroes everything outside the instance box.
func (s *ONNXSegmenter) buildMask(c *segCandidate, proto []float32) {
	mask := make([]float32, segProtoW*segProtoH)

	// proto resolution is input/4
	px1 := int(c.inX1 / 4)
	py1 := int(c.inY1 / 4)
	px2 := int(math.Ceil(float64(c.inX2 / 4)))
	py2 := int(math.Ceil(float64(c.inY2 / 4)))
	if px1 < 0 {
		px1 = 0
	}
	if py1 < 0 {
		py1 = 0
	}
	if px2 > segProtoW {
		px2 = segProtoW
	}
	if py2 > segProtoH {
		py2 = segProtoH
	}

	for y := py1; y < py2; y++ {
		for x := px1; x < px2; x++ {
			var logit float32
			for k := 0; k < segCoeffs; k++ {
				logit += c.coeffs[k] * proto[k*segProtoH*segProtoW+y*segProtoW+x]
			}
			if sigmoid(logit) >= segMaskProb {
				mask[y*segProtoW+x] = 1
			}
		}
	}

	c.Mask = mask
	c.MaskW = segProtoW
	c.MaskH = segProtoH
}

func (s *ONNXSegmenter) Close() {
	if s.session != nil {
		s.session.Destroy()
	}
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.boxTensor != nil {
		s.boxTensor.Destroy()
	}
	if s.protoTensor != nil {
		s.protoTensor.Destroy()
	}
}

func nmsInstances(cands []segCandidate, iouThreshold float32) []segCandidate {
	if len(cands) == 0 {
		return nil
	}

	sort.Slice(cands, func(i, j int) bool {
		return cands[i].Score > cands[j].Score
	})

	keep := make([]bool, len(cands))
	for i := range keep {
		keep[i] = true
	}

	for i := 0; i < len(cands); i++ {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(cands); j++ {
			if !keep[j] || cands[i].Class != cands[j].Class {
				continue
			}
			if iou(cands[i].BBox, cands[j].BBox) > iouThreshold {
				keep[j] = false
			}
		}
	}

	var out []segCandidate
	for i, c := range cands {
		if keep[i] {
			out = append(out, c)
		}
	}
	return out
}

func sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(x))))
}
