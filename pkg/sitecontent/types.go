package sitecontent

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Field names one of the optional, typed slots of a Slot.
// The string value is also the JSON name and the database column.
type Field string

// Slot field constants (typed).
const (
	FieldTitle1     Field = "title_1"
	FieldTitle2     Field = "title_2"
	FieldImage1     Field = "image_1"
	FieldImage2     Field = "image_2"
	FieldDesc       Field = "description"
	FieldLinkTitle1 Field = "link_title_1"
	FieldLink1      Field = "link_1"
	FieldLinkTitle2 Field = "link_title_2"
	FieldLink2      Field = "link_2"
)

// Fields lists every optional slot field in column order.
var Fields = []Field{
	FieldTitle1, FieldTitle2,
	FieldImage1, FieldImage2,
	FieldDesc,
	FieldLinkTitle1, FieldLink1,
	FieldLinkTitle2, FieldLink2,
}

// IsValid reports whether f is a known slot field.
func (f Field) IsValid() bool {
	for _, known := range Fields {
		if f == known {
			return true
		}
	}
	return false
}

// IsImage reports whether f holds an asset reference.
func (f Field) IsImage() bool {
	return f == FieldImage1 || f == FieldImage2
}

// ParseField converts a user supplied name into a Field.
func ParseField(name string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(name)))
	if !f.IsValid() {
		return "", &ValidationError{Field: name, Reason: "unknown slot field"}
	}
	return f, nil
}

// Slot is the content record stored for one (page, key) pair.
//
// Optional fields are pointers: nil means "never configured" and is
// serialized as null, an empty string means "explicitly cleared".
type Slot struct {
	ID          int64     `json:"id"`
	Page        string    `json:"page"`
	Key         string    `json:"key"`
	Title1      *string   `json:"title_1"`
	Title2      *string   `json:"title_2"`
	Image1      *string   `json:"image_1"`
	Image2      *string   `json:"image_2"`
	Description *string   `json:"description"`
	LinkTitle1  *string   `json:"link_title_1"`
	Link1       *string   `json:"link_1"`
	LinkTitle2  *string   `json:"link_title_2"`
	Link2       *string   `json:"link_2"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Ref returns a pointer to the storage of field f, or nil for an unknown field.
func (s *Slot) Ref(f Field) **string {
	switch f {
	case FieldTitle1:
		return &s.Title1
	case FieldTitle2:
		return &s.Title2
	case FieldImage1:
		return &s.Image1
	case FieldImage2:
		return &s.Image2
	case FieldDesc:
		return &s.Description
	case FieldLinkTitle1:
		return &s.LinkTitle1
	case FieldLink1:
		return &s.Link1
	case FieldLinkTitle2:
		return &s.LinkTitle2
	case FieldLink2:
		return &s.Link2
	}
	return nil
}

// Get returns the value of field f and whether it is set.
func (s *Slot) Get(f Field) (string, bool) {
	ref := s.Ref(f)
	if ref == nil || *ref == nil {
		return "", false
	}
	return **ref, true
}

// Clone returns a deep copy of the slot.
func (s *Slot) Clone() *Slot {
	if s == nil {
		return nil
	}
	c := *s
	for _, f := range Fields {
		ref := c.Ref(f)
		if *ref != nil {
			v := **ref
			*ref = &v
		}
	}
	return &c
}

// Patch is a partial update of a slot. A field present in the map
// overwrites the stored value; a field missing from the map is left as is.
type Patch map[Field]string

// Set records a value for f and returns the patch for chaining.
func (p Patch) Set(f Field, value string) Patch {
	p[f] = value
	return p
}

// Has reports whether f is part of the patch.
func (p Patch) Has(f Field) bool {
	_, ok := p[f]
	return ok
}

// Fields returns the patched fields in column order.
func (p Patch) Fields() []Field {
	out := make([]Field, 0, len(p))
	for _, f := range Fields {
		if _, ok := p[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Validate rejects patches that name unknown fields.
func (p Patch) Validate() error {
	var unknown []string
	for f := range p {
		if !f.IsValid() {
			unknown = append(unknown, string(f))
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return &ValidationError{Field: strings.Join(unknown, ","), Reason: "unknown slot field"}
	}
	return nil
}

// ApplyTo copies every patched value onto s.
func (p Patch) ApplyTo(s *Slot) {
	for f, v := range p {
		if ref := s.Ref(f); ref != nil {
			value := v
			*ref = &value
		}
	}
}

// Clone returns a copy of the patch.
func (p Patch) Clone() Patch {
	c := make(Patch, len(p))
	for f, v := range p {
		c[f] = v
	}
	return c
}

// SlotKey identifies a slot.
type SlotKey struct {
	Page string
	Key  string
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s/%s", k.Page, k.Key)
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
