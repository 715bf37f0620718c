package bookservice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-borrowing-go/library"
	"github.com/AntonStoeckl/library-borrowing-go/service/bookservice"
)

func Test_BuildCreateBookCommand_TrimsInput(t *testing.T) {
	command, err := bookservice.BuildCreateBookCommand("  The Hobbit ", " J.R.R. Tolkien", "978-0547928241 ", "available")

	require.NoError(t, err)
	assert.Equal(t, "The Hobbit", command.Title)
	assert.Equal(t, "J.R.R. Tolkien", command.Author)
	assert.Equal(t, "978-0547928241", command.ISBN)
	assert.Equal(t, library.Available, command.AvailabilityStatus)
}

func Test_BuildCreateBookCommand_Rejects_Invalid_Input(t *testing.T) {
	testCases := []struct {
		name   string
		title  string
		author string
		isbn   string
		status string
	}{
		{name: "blank title", title: "  ", author: "Jane Austen", isbn: "978-0141439518", status: "AVAILABLE"},
		{name: "blank author", title: "Pride and Prejudice", author: "", isbn: "978-0141439518", status: "AVAILABLE"},
		{name: "blank isbn", title: "Pride and Prejudice", author: "Jane Austen", isbn: "\t", status: "AVAILABLE"},
		{name: "missing status", title: "Pride and Prejudice", author: "Jane Austen", isbn: "978-0141439518", status: ""},
		{name: "unknown status", title: "Pride and Prejudice", author: "Jane Austen", isbn: "978-0141439518", status: "LOST"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := bookservice.BuildCreateBookCommand(tc.title, tc.author, tc.isbn, tc.status)

			assert.ErrorIs(t, err, library.ErrValidationFailed)
		})
	}
}

func Test_BuildCreateBookCommand_Reports_All_Problems(t *testing.T) {
	_, err := bookservice.BuildCreateBookCommand("", "", "", "")

	require.ErrorIs(t, err, library.ErrValidationFailed)
	assert.Contains(t, err.Error(), "title is required")
	assert.Contains(t, err.Error(), "author is required")
	assert.Contains(t, err.Error(), "isbn is required")
	assert.Contains(t, err.Error(), "availability status is required")
}

func Test_BuildCreateBookCommand_Reports_Unknown_Status_With_Other_Problems(t *testing.T) {
	_, err := bookservice.BuildCreateBookCommand("", "Jane Austen", "", "LOST")

	require.ErrorIs(t, err, library.ErrValidationFailed)
	assert.Contains(t, err.Error(), "title is required")
	assert.Contains(t, err.Error(), "isbn is required")
	assert.Contains(t, err.Error(), "unknown availability status: LOST")
}
