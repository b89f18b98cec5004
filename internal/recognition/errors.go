package recognition

import "errors"

// Pipeline and service failure classes. Stage errors wrap these so callers
// can map them to transport status codes with errors.Is.
var (
	// ErrDecode means the submitted image could not be decoded.
	ErrDecode = errors.New("image decode failed")

	// ErrNoSubject means segmentation produced no masks at all, so there is
	// nothing to isolate. Terminal for the request at both call sites.
	ErrNoSubject = errors.New("no subject detected")

	// ErrNoFace means the embedding stage found zero faces in the canonical
	// frame. Terminal for enrollment; identification degrades to NEW instead.
	ErrNoFace = errors.New("no face detected")

	// ErrStoreUnavailable means the durable identity store could not be
	// reached.
	ErrStoreUnavailable = errors.New("identity store unavailable")

	// ErrModelUnavailable means an inference capability failed to load, timed
	// out or crashed.
	ErrModelUnavailable = errors.New("inference model unavailable")
)
