// Package uuid generates the identifiers used as primary keys.
// UUID v7 is sortable by timestamp (better for database indexes than v4).
package uuid

import (
	guuid "github.com/google/uuid"
)

// NewV7 returns a new UUID v7 in canonical string form.
func NewV7() string {
	return guuid.Must(guuid.NewV7()).String()
}

// Valid reports whether s is a canonical UUID string.
func Valid(s string) bool {
	if len(s) != 36 {
		return false
	}
	return guuid.Validate(s) == nil
}
