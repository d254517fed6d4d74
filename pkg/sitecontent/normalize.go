package sitecontent

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNameLength bounds page and key names.
const MaxNameLength = 128

// NormalizeName trims a page or key name and checks it is usable.
// Names are free-form otherwise; case is preserved.
func NormalizeName(kind, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &ValidationError{Field: kind, Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", &ValidationError{Field: kind, Reason: "too long"}
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", &ValidationError{Field: kind, Reason: "contains control characters"}
		}
	}
	return name, nil
}

// NormalizeSlotKey normalizes both halves of a slot identifier.
func NormalizeSlotKey(page, key string) (SlotKey, error) {
	p, err := NormalizeName("page", page)
	if err != nil {
		return SlotKey{}, err
	}
	k, err := NormalizeName("key", key)
	if err != nil {
		return SlotKey{}, err
	}
	return SlotKey{Page: p, Key: k}, nil
}
