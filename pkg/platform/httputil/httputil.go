// Package httputil centralizes JSON response writing and error translation
// for the HTTP transport.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "sigil/pkg/domain-errors"
)

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeBadRequest:   http.StatusBadRequest,
	dErrors.CodeUnauthorized: http.StatusUnauthorized,
	dErrors.CodeForbidden:    http.StatusForbidden,
	dErrors.CodeNotFound:     http.StatusNotFound,
	dErrors.CodeConflict:     http.StatusConflict,
	dErrors.CodeUnavailable:  http.StatusServiceUnavailable,
	dErrors.CodeInternal:     http.StatusInternalServerError,
}

// WriteJSON writes a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteError translates a coded error into an HTTP response. Internal errors
// omit the description so infrastructure details never leak to callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
		code = dErrors.CodeInternal
	}

	body := errorBody{Error: string(code)}
	if code != dErrors.CodeInternal {
		var de *dErrors.Error
		if errors.As(err, &de) {
			body.ErrorDescription = de.Message
		}
	}
	WriteJSON(w, status, body)
}

// Decode parses a JSON request body into T, returning a bad_request coded
// error on malformed input.
func Decode[T any](r *http.Request) (T, error) {
	var payload T
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return payload, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed request body")
	}
	return payload, nil
}
