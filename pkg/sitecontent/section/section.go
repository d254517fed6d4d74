// Package section interprets the description column of a slot. The store
// keeps it as an opaque string; by convention a section holds either prose,
// a JSON array of exhibitions, or a boolean flag.
package section

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Kind tags the interpretation of a description.
type Kind string

const (
	KindProse          Kind = "prose"
	KindExhibitionList Kind = "exhibitions"
	KindFlag           Kind = "flag"
)

// KindFor returns the description convention used by a section.
func KindFor(page, key string) Kind {
	switch {
	case page == "about" && key == "hero":
		return KindFlag
	case key == "exhibitions":
		return KindExhibitionList
	default:
		return KindProse
	}
}

// Description is a decoded description column.
type Description struct {
	Kind        Kind         `json:"kind"`
	Paragraphs  []string     `json:"paragraphs,omitempty"`
	HTML        string       `json:"html,omitempty"`
	Exhibitions []Exhibition `json:"exhibitions,omitempty"`
	Flag        *bool        `json:"flag,omitempty"`
}

// Decode interprets raw according to kind. A nil raw value decodes to an
// empty description of that kind.
func Decode(kind Kind, raw *string) (Description, error) {
	d := Description{Kind: kind}
	if raw == nil {
		return d, nil
	}

	switch kind {
	case KindExhibitionList:
		d.Exhibitions = DecodeExhibitions(*raw)
	case KindFlag:
		flag, err := ParseFlag(*raw)
		if err != nil {
			return d, err
		}
		d.Flag = &flag
	default:
		p := Prose(*raw)
		d.Paragraphs = p.Paragraphs()
		html, err := p.HTML()
		if err != nil {
			return d, err
		}
		d.HTML = html
	}
	return d, nil
}

// Prose is free text entered in an admin textarea.
type Prose string

var (
	escapedNewline = strings.NewReplacer(`\r\n`, "\n", "\r\n", "\n", "\r", "\n")
	blankRun       = regexp.MustCompile(`\n+`)

	markdown = goldmark.New(goldmark.WithExtensions(extension.Linkify, extension.Strikethrough))
	policy   = bluemonday.UGCPolicy()
)

// Paragraphs splits the text on line breaks, including the literal "\r\n"
// sequences some clients send, and drops empty lines.
func (p Prose) Paragraphs() []string {
	normalized := escapedNewline.Replace(string(p))
	var out []string
	for _, line := range blankRun.Split(normalized, -1) {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// HTML renders the paragraphs as Markdown and sanitizes the result.
func (p Prose) HTML() (string, error) {
	paragraphs := p.Paragraphs()
	if len(paragraphs) == 0 {
		return "", nil
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(strings.Join(paragraphs, "\n\n")), &buf); err != nil {
		return "", fmt.Errorf("render prose: %w", err)
	}
	return strings.TrimSpace(policy.Sanitize(buf.String())), nil
}

// Year is an exhibition year. Editors send it as a JSON number or string;
// the text is kept and integer years are written back as numbers.
type Year string

func (y *Year) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch firstByte(b) {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*y = Year(strings.TrimSpace(s))
		return nil
	case 'n':
		*y = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("year must be a number or a string: %w", err)
	}
	*y = Year(n.String())
	return nil
}

func (y Year) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(y), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(y) {
		return []byte(y), nil
	}
	return json.Marshal(string(y))
}

// Exhibition is one entry of the exhibitions section.
type Exhibition struct {
	Year        Year   `json:"year"`
	Description string `json:"description"`
	Href        string `json:"href,omitempty"`
}

// EncodeExhibitions serializes items for the description column.
func EncodeExhibitions(items []Exhibition) (string, error) {
	if items == nil {
		items = []Exhibition{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeExhibitions parses a stored exhibitions list. Entries that do not
// decode are dropped; anything that is not a list yields no items.
func DecodeExhibitions(raw string) []Exhibition {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		return []Exhibition{}
	}
	items := make([]Exhibition, 0, len(elems))
	for _, elem := range elems {
		var item Exhibition
		if err := json.Unmarshal(elem, &item); err != nil || firstByte(elem) != '{' {
			continue
		}
		items = append(items, item)
	}
	return items
}

// ValidateExhibitions checks raw with ValidateFlatArray and then requires
// every element to decode as an Exhibition, so DecodeExhibitions returns
// each accepted entry.
func ValidateExhibitions(field string, raw []byte) (string, error) {
	compact, err := ValidateFlatArray(field, raw)
	if err != nil {
		return "", err
	}
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(compact), &elems); err != nil {
		return "", &sitecontent.ValidationError{Field: field, Reason: err.Error()}
	}
	for i, elem := range elems {
		var item Exhibition
		if err := json.Unmarshal(elem, &item); err != nil {
			return "", &sitecontent.ValidationError{Field: fmt.Sprintf("%s[%d]", field, i), Reason: err.Error()}
		}
	}
	return compact, nil
}

// ValidateFlatArray checks that raw is a JSON array whose elements are
// objects holding only scalar values. It returns the compacted array.
func ValidateFlatArray(field string, raw []byte) (string, error) {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return "", &sitecontent.ValidationError{Field: field, Reason: "must be a JSON array of objects"}
	}

	for i, item := range items {
		for name, value := range item {
			switch firstByte(value) {
			case '{', '[':
				return "", &sitecontent.ValidationError{
					Field:  fmt.Sprintf("%s[%d].%s", field, i, name),
					Reason: "nested values are not allowed",
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", &sitecontent.ValidationError{Field: field, Reason: err.Error()}
	}
	return buf.String(), nil
}

func firstByte(b json.RawMessage) byte {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return 0
	}
	return b[0]
}

// EncodeFlag stores a boolean as "true" or "false".
func EncodeFlag(v bool) string {
	return strconv.FormatBool(v)
}

// ParseFlag accepts the usual boolean spellings plus the "on"/"off"
// values sent by HTML checkboxes. An empty string is false.
func ParseFlag(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off", "no":
		return false, nil
	case "on", "yes":
		return true, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, &sitecontent.ValidationError{Field: "flag", Reason: fmt.Sprintf("invalid boolean %q", s)}
	}
	return v, nil
}
