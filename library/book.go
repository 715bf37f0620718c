package library

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// AvailabilityStatus is the derived availability of a Book.
type AvailabilityStatus string

const (
	Available AvailabilityStatus = "AVAILABLE"
	Borrowed  AvailabilityStatus = "BORROWED"
)

// ParseAvailabilityStatus converts a client supplied string into an AvailabilityStatus.
// Matching is case-insensitive, unknown values fail with ErrValidationFailed.
func ParseAvailabilityStatus(s string) (AvailabilityStatus, error) {
	switch AvailabilityStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case Available:
		return Available, nil
	case Borrowed:
		return Borrowed, nil
	default:
		return "", errors.Join(ErrValidationFailed, errors.New("unknown availability status: "+s))
	}
}

func (s AvailabilityStatus) String() string {
	return string(s)
}

// Book is a registered book. The ISBN is its natural key and unique across all books.
type Book struct {
	ID                 uuid.UUID
	Title              string
	Author             string
	ISBN               string
	AvailabilityStatus AvailabilityStatus
}

// IsAvailable reports whether the book can currently be borrowed.
func (b Book) IsAvailable() bool {
	return b.AvailabilityStatus == Available
}
