package httpapi

import (
	"errors"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/library-borrowing-go/library"
)

const maxBodyBytes = 1 << 20

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, text)
}

// readJSON decodes the request body into dst. A missing or malformed body fails with library.ErrValidationFailed.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return errors.Join(library.ErrValidationFailed, errors.New("reading request body: "+err.Error()))
	}

	if len(body) == 0 {
		return errors.Join(library.ErrValidationFailed, errors.New("request body is required"))
	}

	if err = json.Unmarshal(body, dst); err != nil {
		return errors.Join(library.ErrValidationFailed, errors.New("request body is not valid JSON"))
	}

	return nil
}
