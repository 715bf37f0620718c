package httpapi

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-borrowing-go/library"
	"github.com/AntonStoeckl/library-borrowing-go/service/borrowing"
)

func (h *Handler) createBorrowing(w http.ResponseWriter, r *http.Request) {
	var request borrowingRequest
	if err := readJSON(w, r, &request); err != nil {
		h.writeError(w, r, err, http.StatusBadRequest)
		return
	}

	borrowDate, err := parseBorrowDate(request.BorrowDate)
	if err != nil {
		h.writeError(w, r, err, http.StatusBadRequest)
		return
	}

	command, err := borrowing.BuildBorrowCommand(request.ISBN, request.BorrowerName, borrowDate)
	if err != nil {
		h.writeError(w, r, err, http.StatusBadRequest)
		return
	}

	response, err := h.borrowings.CreateBorrowingTransaction(r.Context(), command)
	if err != nil {
		h.writeError(w, r, err, http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, toBorrowingResponse(response))
}

func (h *Handler) returnBook(w http.ResponseWriter, r *http.Request) {
	id, err := transactionIDFrom(r)
	if err != nil {
		h.writeError(w, r, err, http.StatusBadRequest)
		return
	}

	response, err := h.borrowings.ReturnBook(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, toBorrowingResponse(response))
}

func (h *Handler) getBorrowing(w http.ResponseWriter, r *http.Request) {
	id, err := transactionIDFrom(r)
	if err != nil {
		h.writeError(w, r, err, http.StatusNotFound)
		return
	}

	found, err := h.borrowings.FindByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, http.StatusNotFound)
		return
	}

	response, ok := found.Get()
	if !ok {
		h.writeError(w, r, errors.Join(library.ErrNotFound, errors.New("borrowing transaction not found: "+id.String())), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, toBorrowingResponse(response))
}

func (h *Handler) listBorrowings(w http.ResponseWriter, r *http.Request) {
	responses, err := h.borrowings.ListAll(r.Context())
	if err != nil {
		h.writeError(w, r, err, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, toBorrowingResponses(responses))
}

func (h *Handler) listBorrowingsByStatus(w http.ResponseWriter, r *http.Request) {
	status, err := library.ParseBorrowingStatus(r.PathValue("status"))
	if err != nil {
		h.writeError(w, r, err, http.StatusBadRequest)
		return
	}

	responses, err := h.borrowings.ListByStatus(r.Context(), status)
	if err != nil {
		h.writeError(w, r, err, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, toBorrowingResponses(responses))
}

// transactionIDFrom parses the {id} path value. A malformed ID cannot address any transaction,
// so it is reported as not found.
func transactionIDFrom(r *http.Request) (uuid.UUID, error) {
	raw := r.PathValue("id")

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.Join(library.ErrNotFound, errors.New("borrowing transaction not found: "+raw))
	}

	return id, nil
}
