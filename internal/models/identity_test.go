package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoFlattening(t *testing.T) {
	r := IdentityRecord{
		Name:     "Alice",
		Age:      34,
		Crime:    "theft",
		Sections: "379",
		Extra:    map[string]any{"alias_count": 2},
	}

	info := r.Info()
	assert.Equal(t, "Alice", info["name"])
	assert.Equal(t, 34, info["age"])
	assert.Equal(t, "theft", info["crime"])
	assert.Equal(t, 2, info["alias_count"])

	// Empty fields stay out of the document.
	_, ok := info["nickname"]
	assert.False(t, ok)
}

func TestInfoNamedFieldsWinOverExtra(t *testing.T) {
	r := IdentityRecord{
		Name:  "Real Name",
		Extra: map[string]any{"name": "Shadowed"},
	}

	assert.Equal(t, "Real Name", r.Info()["name"])
}

func TestRecordFromInfoRoundTrip(t *testing.T) {
	orig := IdentityRecord{
		Name:          "Bob",
		Nickname:      "Bobby",
		Age:           41,
		PoliceStation: "Central",
		Crime:         "fraud",
		Sections:      "420",
		Notes:         "repeat offender",
		Extra:         map[string]any{"case_id": "C-991"},
	}

	got := RecordFromInfo(orig.Info())
	assert.Equal(t, orig, got)
}

func TestRecordFromInfoHandlesJSONNumbers(t *testing.T) {
	// json.Unmarshal hands back float64 for every number.
	got := RecordFromInfo(map[string]any{"name": "Carol", "age": float64(29)})
	assert.Equal(t, "Carol", got.Name)
	assert.Equal(t, 29, got.Age)
}

func TestRecordFromInfoPreservesUnknownKeys(t *testing.T) {
	got := RecordFromInfo(map[string]any{"name": "Dan", "blood_type": "O+"})
	assert.Equal(t, "Dan", got.Name)
	assert.Equal(t, "O+", got.Extra["blood_type"])
}
