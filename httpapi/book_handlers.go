package httpapi

import (
	"errors"
	"net/http"

	"github.com/AntonStoeckl/library-borrowing-go/library"
	"github.com/AntonStoeckl/library-borrowing-go/service/bookservice"
)

func (h *Handler) createBook(w http.ResponseWriter, r *http.Request) {
	var request bookRequest
	if err := readJSON(w, r, &request); err != nil {
		h.writeError(w, r, err, http.StatusBadRequest)
		return
	}

	command, err := bookservice.BuildCreateBookCommand(request.Title, request.Author, request.ISBN, request.AvailabilityStatus)
	if err != nil {
		h.writeError(w, r, err, http.StatusBadRequest)
		return
	}

	book, err := h.books.CreateBook(r.Context(), command)
	if err != nil {
		h.writeError(w, r, err, http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, toBookResponse(book))
}

func (h *Handler) getBook(w http.ResponseWriter, r *http.Request) {
	isbn := r.PathValue("isbn")

	found, err := h.books.FindByISBN(r.Context(), isbn)
	if err != nil {
		h.writeError(w, r, err, http.StatusNotFound)
		return
	}

	book, ok := found.Get()
	if !ok {
		h.writeError(w, r, errors.Join(library.ErrNotFound, errors.New("book not found with isbn: "+isbn)), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, toBookResponse(book))
}

func (h *Handler) getAvailability(w http.ResponseWriter, r *http.Request) {
	status, err := h.books.GetAvailability(r.Context(), r.PathValue("isbn"))
	if err != nil {
		h.writeError(w, r, err, http.StatusNotFound)
		return
	}

	writeText(w, http.StatusOK, status.String())
}

func (h *Handler) listBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.books.ListAll(r.Context())
	if err != nil {
		h.writeError(w, r, err, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, toBookResponses(books))
}

func (h *Handler) listAvailableBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.books.ListAvailable(r.Context())
	if err != nil {
		h.writeError(w, r, err, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, toBookResponses(books))
}
