package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNameLength bounds node names. Names are labels, not content.
const MaxNameLength = 256

// ValidateName checks that a node name can be displayed and persisted.
// Names must be non-blank valid UTF-8 without control characters; tabs and
// newlines are rejected too since names are rendered on a single line.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return Errorf(ErrInvalidOperation, "node name is empty")
	}
	if len(name) > MaxNameLength {
		return Errorf(ErrInvalidOperation, "node name exceeds %d bytes", MaxNameLength)
	}
	if !utf8.ValidString(name) {
		return Errorf(ErrInvalidOperation, "node name is not valid UTF-8")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return Errorf(ErrInvalidOperation, "node name contains control character %U", r)
		}
	}
	return nil
}
