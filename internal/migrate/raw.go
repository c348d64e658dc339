// Package migrate upgrades persisted dayline documents from older shapes to
// the current schema. Everything here is pure: functions take loosely typed
// payloads and always return a usable document, never an error.
package migrate

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/mschirtzinger/dayline/internal/schema"
)

// Version identifies the shape of a persisted document.
type Version int

const (
	// V1 documents carry a single flat "schedule" array instead of
	// per-archetype templates.
	V1 Version = iota + 1
	// V2 documents carry tasks with a legacy "dueDate" and no date range.
	V2
	// V3 is the current shape.
	V3
)

// String returns a human-readable representation of the version.
func (v Version) String() string {
	switch v {
	case V1:
		return "v1 (single schedule)"
	case V2:
		return "v2 (due dates)"
	case V3:
		return "v3 (current)"
	default:
		return "unknown"
	}
}

// RawDocument is a persisted document exactly as stored. It may be in any
// historical shape and may carry fields this version does not know about;
// those are preserved when partial updates are applied.
type RawDocument struct {
	data []byte
}

// NewRawDocument wraps stored JSON. The payload must be a JSON object.
func NewRawDocument(data []byte) (*RawDocument, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid document JSON")
	}
	if !gjson.ParseBytes(data).IsObject() {
		return nil, fmt.Errorf("document must be a JSON object")
	}
	return &RawDocument{data: append([]byte(nil), data...)}, nil
}

// RawFromDocument encodes a current-shape document.
func RawFromDocument(doc schema.Document) *RawDocument {
	data, err := json.Marshal(doc)
	if err != nil {
		// Document holds only strings, ints, bools and slices of those.
		panic(fmt.Sprintf("marshal document: %v", err))
	}
	return &RawDocument{data: data}
}

// Bytes returns the stored JSON.
func (r *RawDocument) Bytes() []byte {
	return append([]byte(nil), r.data...)
}

// MarshalJSON implements json.Marshaler.
func (r *RawDocument) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	return r.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *RawDocument) UnmarshalJSON(data []byte) error {
	doc, err := NewRawDocument(data)
	if err != nil {
		return err
	}
	r.data = doc.data
	return nil
}

// Has reports whether the top-level field is present.
func (r *RawDocument) Has(field string) bool {
	return gjson.GetBytes(r.data, field).Exists()
}

// Get returns a top-level field for probing.
func (r *RawDocument) Get(field string) gjson.Result {
	return gjson.GetBytes(r.data, field)
}

// Version detects the document shape.
func (r *RawDocument) Version() Version {
	if !r.Has("scheduleTemplates") && r.Has("schedule") {
		return V1
	}
	legacy := false
	r.Get("tasks").ForEach(func(_, t gjson.Result) bool {
		if t.Get("dueDate").String() != "" && t.Get("startDate").String() == "" {
			legacy = true
			return false
		}
		return true
	})
	if legacy {
		return V2
	}
	return V3
}

// Apply shallow-merges p into the document and returns the result. Fields
// not carried by p, including unknown ones, are kept verbatim.
func (r *RawDocument) Apply(p schema.PartialDocument) (*RawDocument, error) {
	data := []byte("{}")
	if r != nil {
		data = r.Bytes()
	}

	set := func(field string, v any) error {
		enc, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", field, err)
		}
		data, err = sjson.SetRawBytes(data, field, enc)
		if err != nil {
			return fmt.Errorf("failed to set %s: %w", field, err)
		}
		return nil
	}

	if p.Tasks != nil {
		if err := set("tasks", nonNil(*p.Tasks)); err != nil {
			return nil, err
		}
	}
	if p.Groups != nil {
		if err := set("groups", nonNil(*p.Groups)); err != nil {
			return nil, err
		}
	}
	if p.Milestones != nil {
		if err := set("milestones", nonNil(*p.Milestones)); err != nil {
			return nil, err
		}
	}
	if p.ScheduleTemplates != nil {
		if err := set("scheduleTemplates", *p.ScheduleTemplates); err != nil {
			return nil, err
		}
	}
	return &RawDocument{data: data}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
