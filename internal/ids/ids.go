package ids

import (
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// New returns a time-sortable identifier for stored resources.
func New() string {
	return ksuid.New().String()
}

// NewIdempotencyKey returns a fresh random key for one logical vote attempt.
func NewIdempotencyKey() string {
	return uuid.NewString()
}
