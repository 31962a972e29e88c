// Package validation checks storage object keys before any side effect
// happens. The same rules guard both the S3 trigger and the metadata
// writer, so the two stages can never disagree about what a safe key is.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxKeyLength is the longest accepted object key, counted in characters
// rather than bytes so multi-byte names are not penalized.
const MaxKeyLength = 1024

// Reason identifies why a key was rejected.
type Reason string

const (
	ReasonEmpty         Reason = "empty"
	ReasonTooLong       Reason = "too-long"
	ReasonPathTraversal Reason = "path-traversal"
	ReasonNullByte      Reason = "null-byte"
)

// InvalidKeyError reports a key that failed validation. Validation
// failures are a property of the input, never a system fault.
type InvalidKeyError struct {
	Key    string
	Reason Reason
}

func (e *InvalidKeyError) Error() string {
	switch e.Reason {
	case ReasonEmpty:
		return "key cannot be empty"
	case ReasonTooLong:
		return fmt.Sprintf("key too long: %d characters (max: %d)", utf8.RuneCountInString(e.Key), MaxKeyLength)
	case ReasonPathTraversal:
		return fmt.Sprintf("invalid key path (path traversal attempt): %s", e.Key)
	case ReasonNullByte:
		return fmt.Sprintf("key contains null bytes: %s", e.Key)
	default:
		return fmt.Sprintf("invalid key: %s", e.Key)
	}
}

// ValidateObjectKey rejects unsafe or malformed object keys. It returns
// *InvalidKeyError on rejection and nil for any other string.
func ValidateObjectKey(key string) error {
	if strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return &InvalidKeyError{Key: key, Reason: ReasonPathTraversal}
	}
	if strings.ContainsRune(key, '\x00') {
		return &InvalidKeyError{Key: key, Reason: ReasonNullByte}
	}
	if utf8.RuneCountInString(key) > MaxKeyLength {
		return &InvalidKeyError{Key: key, Reason: ReasonTooLong}
	}
	if strings.TrimSpace(key) == "" {
		return &InvalidKeyError{Key: key, Reason: ReasonEmpty}
	}
	return nil
}
