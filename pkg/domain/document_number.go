package domain

import (
	"strings"

	dErrors "zimmet/pkg/domain-errors"
)

// DocumentNumber is the natural key of a document: a non-empty string of ASCII digits.
//
// Usage: construct via ParseDocumentNumber at trust boundaries; direct casting
// bypasses validation.
type DocumentNumber string

const maxDocumentNumberLength = 64

// ParseDocumentNumber trims s and checks it matches ^[0-9]+$.
//
// Errors: CodeValidation when the value is blank, too long, or contains a
// non-digit.
func ParseDocumentNumber(s string) (DocumentNumber, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "document number is required")
	}
	if len(s) > maxDocumentNumberLength {
		return "", dErrors.New(dErrors.CodeValidation, "document number is too long")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", dErrors.New(dErrors.CodeValidation, "document number must contain digits only")
		}
	}
	return DocumentNumber(s), nil
}

func (n DocumentNumber) String() string { return string(n) }
