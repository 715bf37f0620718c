package bookservice

import (
	"errors"
	"strings"

	"github.com/AntonStoeckl/library-borrowing-go/library"
)

// CreateBookCommand represents the intent to register a new book.
type CreateBookCommand struct {
	Title              string
	Author             string
	ISBN               string
	AvailabilityStatus library.AvailabilityStatus
}

// BuildCreateBookCommand trims and validates the input. A blank title, author or ISBN, or a missing or
// unknown availability status fails with library.ErrValidationFailed.
func BuildCreateBookCommand(title, author, isbn, availabilityStatus string) (CreateBookCommand, error) {
	command := CreateBookCommand{
		Title:  strings.TrimSpace(title),
		Author: strings.TrimSpace(author),
		ISBN:   strings.TrimSpace(isbn),
	}

	var problems []error

	if command.Title == "" {
		problems = append(problems, errors.New("title is required"))
	}

	if command.Author == "" {
		problems = append(problems, errors.New("author is required"))
	}

	if command.ISBN == "" {
		problems = append(problems, errors.New("isbn is required"))
	}

	if strings.TrimSpace(availabilityStatus) == "" {
		problems = append(problems, errors.New("availability status is required"))
	} else {
		status, err := library.ParseAvailabilityStatus(availabilityStatus)
		if err != nil {
			problems = append(problems, err)
		}
		command.AvailabilityStatus = status
	}

	if len(problems) > 0 {
		return CreateBookCommand{}, errors.Join(append([]error{library.ErrValidationFailed}, problems...)...)
	}

	return command, nil
}
