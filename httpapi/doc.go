// Package httpapi exposes the book and borrowing services over HTTP with JSON bodies.
//
// Routes are declared in one explicit table and served by a net/http ServeMux. Business errors map to
// 4xx responses with a body of the form {"error": "..."}; a lost race against a concurrent request
// that could not be resolved by retrying maps to 409.
package httpapi
