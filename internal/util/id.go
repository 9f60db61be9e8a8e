package util

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// NewID returns a prefixed identifier, e.g. "pmt_9f86d081884c7d65fa1c...".
func NewID(prefix string) string {
	id := uuid.New()
	encoded := hex.EncodeToString(id[:])
	if prefix == "" {
		return encoded
	}
	return prefix + "_" + encoded
}

// ValidID reports whether value is a well-formed identifier carrying the
// given prefix. It performs no lookup.
func ValidID(value, prefix string) bool {
	if prefix != "" {
		rest, ok := strings.CutPrefix(value, prefix+"_")
		if !ok {
			return false
		}
		value = rest
	}
	if len(value) != 32 {
		return false
	}
	_, err := hex.DecodeString(value)
	return err == nil
}
