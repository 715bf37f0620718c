package httpapi

import (
	"net/http"
)

type route struct {
	method  string
	pattern string
	handler http.HandlerFunc
}

// routes is the route table of the API.
func (h *Handler) routes() []route {
	return []route{
		{method: http.MethodPost, pattern: "/books", handler: h.createBook},
		{method: http.MethodGet, pattern: "/books", handler: h.listBooks},
		{method: http.MethodGet, pattern: "/books/available", handler: h.listAvailableBooks},
		{method: http.MethodGet, pattern: "/books/{isbn}", handler: h.getBook},
		{method: http.MethodGet, pattern: "/books/{isbn}/availability", handler: h.getAvailability},

		{method: http.MethodPost, pattern: "/borrowings", handler: h.createBorrowing},
		{method: http.MethodGet, pattern: "/borrowings", handler: h.listBorrowings},
		{method: http.MethodGet, pattern: "/borrowings/{id}", handler: h.getBorrowing},
		{method: http.MethodPut, pattern: "/borrowings/{id}/return", handler: h.returnBook},
		{method: http.MethodGet, pattern: "/borrowings/status/{status}", handler: h.listBorrowingsByStatus},
	}
}
