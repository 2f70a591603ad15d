// Package uid issues the identifiers that tag each API request in logs and
// the X-Request-ID response header.
package uid

import "github.com/google/uuid"

// canonicalLen is the length of a hyphenated UUID string.
const canonicalLen = 36

// New returns a random UUID in canonical form.
func New() string {
	return uuid.NewString()
}

// IsValid accepts only canonical hyphenated UUIDs. uuid.Parse also takes
// braced and urn: forms, which would be echoed back to callers verbatim.
func IsValid(id string) bool {
	if len(id) != canonicalLen {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
