package models

import (
	"time"

	"github.com/google/uuid"
)

// Reserved info keys. Anything else submitted at enrollment lands in Extra.
const (
	InfoName          = "name"
	InfoNickname      = "nickname"
	InfoAge           = "age"
	InfoPoliceStation = "police_station"
	InfoCrime         = "crime"
	InfoSections      = "sections"
	InfoNotes         = "notes"
	InfoPhoto         = "photo"
)

// IdentityRecord is the descriptive side of an enrolled identity. All fields
// are optional; nothing is required to be unique. Records are immutable once
// stored; corrections are new enrollments.
type IdentityRecord struct {
	Name          string         `json:"name,omitempty"`
	Nickname      string         `json:"nickname,omitempty"`
	Age           int            `json:"age,omitempty"`
	PoliceStation string         `json:"police_station,omitempty"`
	Crime         string         `json:"crime,omitempty"`
	Sections      string         `json:"sections,omitempty"`
	Notes         string         `json:"notes,omitempty"`
	Photo         string         `json:"photo,omitempty"` // reference image as data URI
	Extra         map[string]any `json:"extra,omitempty"`
}

// Info flattens the record into the open document mapping persisted alongside
// the embedding. Named fields win over Extra on key collisions.
func (r IdentityRecord) Info() map[string]any {
	info := make(map[string]any, len(r.Extra)+8)
	for k, v := range r.Extra {
		info[k] = v
	}
	if r.Name != "" {
		info[InfoName] = r.Name
	}
	if r.Nickname != "" {
		info[InfoNickname] = r.Nickname
	}
	if r.Age != 0 {
		info[InfoAge] = r.Age
	}
	if r.PoliceStation != "" {
		info[InfoPoliceStation] = r.PoliceStation
	}
	if r.Crime != "" {
		info[InfoCrime] = r.Crime
	}
	if r.Sections != "" {
		info[InfoSections] = r.Sections
	}
	if r.Notes != "" {
		info[InfoNotes] = r.Notes
	}
	if r.Photo != "" {
		info[InfoPhoto] = r.Photo
	}
	return info
}

// RecordFromInfo rebuilds a record from a stored info mapping. Unknown keys
// are preserved in Extra so schema growth never loses data.
func RecordFromInfo(info map[string]any) IdentityRecord {
	var r IdentityRecord
	for k, v := range info {
		switch k {
		case InfoName:
			r.Name = asString(v)
		case InfoNickname:
			r.Nickname = asString(v)
		case InfoAge:
			r.Age = asInt(v)
		case InfoPoliceStation:
			r.PoliceStation = asString(v)
		case InfoCrime:
			r.Crime = asString(v)
		case InfoSections:
			r.Sections = asString(v)
		case InfoNotes:
			r.Notes = asString(v)
		case InfoPhoto:
			r.Photo = asString(v)
		default:
			if r.Extra == nil {
				r.Extra = make(map[string]any)
			}
			r.Extra[k] = v
		}
	}
	return r
}

// Identity is one durable document: a stored feature vector plus its record.
type Identity struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	Embedding []float32      `json:"-" db:"embedding"`
	Record    IdentityRecord `json:"record" db:"info"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		// json.Unmarshal decodes numbers as float64
		return int(n)
	}
	return 0
}
