package recognition

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/faceid/internal/imaging"
	"github.com/your-org/faceid/internal/index"
	"github.com/your-org/faceid/internal/observability"
	"github.com/your-org/faceid/internal/vision"
)

// Scratch persists per-request diagnostic frames. storage.MinIOStore
// satisfies it; a nil Scratch disables persistence.
type Scratch interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

// Frame is the outcome of one pipeline run. FaceFound reports whether the
// embedding stage saw any face; when false, Vector is nil and the call site
// decides what that means (NEW result for identification, failure for
// enrollment).
type Frame struct {
	Vector         []float32
	FaceFound      bool
	FaceConfidence float32
	SnapshotKey    string
}

// PipelineConfig carries the normalization targets and inference bounds.
type PipelineConfig struct {
	CanvasSize       int
	TargetLuma       float64
	TargetLumaStd    float64
	InferenceTimeout time.Duration
}

// Pipeline runs the image-normalization stages that make an arbitrary photo
// comparable to stored reference vectors: letterbox → subject isolation →
// photometric correction → face embedding. Stages run strictly in order and
// never retry; the first failure aborts the request.
type Pipeline struct {
	segmenter vision.Segmenter
	analyzer  vision.FaceAnalyzer
	scratch   Scratch
	cfg       PipelineConfig
}

// NewPipeline assembles the pipeline. scratch may be nil.
func NewPipeline(segmenter vision.Segmenter, analyzer vision.FaceAnalyzer, scratch Scratch, cfg PipelineConfig) *Pipeline {
	if cfg.CanvasSize == 0 {
		cfg.CanvasSize = imaging.DefaultCanvasSize
	}
	if cfg.TargetLuma == 0 {
		cfg.TargetLuma = imaging.DefaultTargetLuma
	}
	if cfg.TargetLumaStd == 0 {
		cfg.TargetLumaStd = imaging.DefaultTargetLumaStd
	}
	return &Pipeline{segmenter: segmenter, analyzer: analyzer, scratch: scratch, cfg: cfg}
}

// Process runs the full pipeline on raw image bytes and returns a unit
// feature vector for the most prominent detected face.
//
// Errors map onto the failure taxonomy: ErrDecode for undecodable input,
// ErrNoSubject when segmentation finds no masks at all, ErrModelUnavailable
// when an inference backend fails or exceeds the timeout. A frame with no
// detectable face is not an error here.
func (p *Pipeline) Process(ctx context.Context, imageData []byte) (*Frame, error) {
	img, err := imaging.Decode(imageData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	canvas := stageTimed("normalize", func() *image.RGBA {
		return imaging.Letterbox(img, p.cfg.CanvasSize)
	})

	instances, err := runBounded(ctx, p.cfg.InferenceTimeout, "segment", func() ([]vision.Instance, error) {
		return p.segmenter.Segment(canvas)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: segmentation: %v", ErrModelUnavailable, err)
	}
	// Zero masks means the segmenter saw nothing to isolate. That ends the
	// request: embedding an un-isolated frame would not be comparable to the
	// stored vectors, which all went through isolation.
	if len(instances) == 0 {
		return nil, ErrNoSubject
	}

	isolated := stageTimed("isolate", func() *image.RGBA {
		return vision.Composite(canvas, instances)
	})

	canonical := stageTimed("correct", func() *image.RGBA {
		return imaging.Correct(isolated, p.cfg.TargetLuma, p.cfg.TargetLumaStd, p.cfg.CanvasSize)
	})

	snapshotKey := p.persistSnapshot(ctx, canonical)

	faces, err := runBounded(ctx, p.cfg.InferenceTimeout, "embed", func() ([]vision.Face, error) {
		return p.analyzer.Analyze(canonical)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: face analysis: %v", ErrModelUnavailable, err)
	}

	if len(faces) == 0 {
		return &Frame{SnapshotKey: snapshotKey}, nil
	}

	// First face only: the analyzer's own ranking is authoritative.
	face := faces[0]
	vector := make([]float32, len(face.Embedding))
	copy(vector, face.Embedding)
	if err := index.Normalize(vector); err != nil {
		return nil, fmt.Errorf("%w: normalize embedding: %v", ErrModelUnavailable, err)
	}

	return &Frame{
		Vector:         vector,
		FaceFound:      true,
		FaceConfidence: face.Confidence,
		SnapshotKey:    snapshotKey,
	}, nil
}

// persistSnapshot stores the canonical frame under a request-scoped key.
// Best effort only.
func (p *Pipeline) persistSnapshot(ctx context.Context, canonical *image.RGBA) string {
	if p.scratch == nil {
		return ""
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canonical); err != nil {
		slog.Warn("encode canonical frame", "error", err)
		return ""
	}

	key := "frames/" + uuid.New().String() + ".png"
	if err := p.scratch.PutObject(ctx, key, buf.Bytes(), "image/png"); err != nil {
		slog.Warn("persist canonical frame", "error", err, "key", key)
		return ""
	}
	return key
}

// runBounded executes an inference call with an explicit upper bound so a
// hung model cannot block the request forever. The abandoned goroutine is
// left to finish on its own; ONNX runs are finite even when slow.
func runBounded[T any](ctx context.Context, timeout time.Duration, stage string, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	ch := make(chan result, 1)
	go func() {
		val, err := fn()
		ch <- result{val: val, err: err}
	}()

	select {
	case res := <-ch:
		observability.PipelineStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
		return res.val, res.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%s: %w", stage, ctx.Err())
	}
}

func stageTimed(stage string, fn func() *image.RGBA) *image.RGBA {
	start := time.Now()
	out := fn()
	observability.PipelineStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	return out
}
