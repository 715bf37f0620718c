package library

import (
	"time"

	"github.com/google/uuid"
)

// ToTimestamp normalizes a time to UTC with microsecond precision, which is what PostgreSQL stores.
func ToTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// NewID returns a new time-ordered identifier for an entity.
func NewID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}

	return id
}
