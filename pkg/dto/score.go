package dto

import (
	"encoding/json"
	"math"
)

// Score is a similarity score that serializes NaN and ±Inf as JSON null,
// since JSON cannot represent them.
type Score float32

func (s Score) MarshalJSON() ([]byte, error) {
	f := float64(s)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(float32(s))
}
