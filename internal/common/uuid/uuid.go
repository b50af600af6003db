// Package uuid issues time-ordered UUIDv7 identifiers for catalog entries and
// request tracing. It wraps github.com/google/uuid.
package uuid

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UUID is an alias of github.com/google/uuid.UUID.
type UUID = uuid.UUID

// Nil is the zero UUID value.
var Nil = uuid.Nil

// NewRandom returns a new UUIDv7.
func NewRandom() (UUID, error) {
	return uuid.NewV7()
}

// New returns a new UUIDv7 and panics if the random source fails.
func New() UUID {
	id, err := uuid.NewV7()
	if err != nil {
		panic(err)
	}
	return id
}

// NewString returns a new UUIDv7 in canonical string form. It falls back to a
// timestamp based identifier if the random source fails.
func NewString() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return id.String()
}

// Parse parses a UUID string.
func Parse(s string) (UUID, error) {
	return uuid.Parse(s)
}

// IsValid reports whether s is a well formed UUID of any version.
func IsValid(s string) bool {
	return uuid.Validate(s) == nil
}
