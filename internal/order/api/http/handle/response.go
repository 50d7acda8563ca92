package handle

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"order-router/internal/routing/app/core"
)

const maxBodyBytes = 1 << 20

// jsonResponse writes data as JSON with the specified HTTP status code.
func jsonResponse(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// jsonError writes an error response as JSON with the specified HTTP status code.
func jsonError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   err.Error(),
		"code":    code,
	})
}

// decodeJSON reads an optional JSON body into v. An empty body leaves v
// untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errors.New("failed to parse JSON")
	}
	return nil
}

// statusCode maps domain errors to HTTP status codes.
func statusCode(err error) int {
	switch {
	case errors.Is(err, core.ErrFieldIsEmpty),
		errors.Is(err, core.ErrValidation),
		errors.Is(err, core.ErrInvalidID),
		errors.Is(err, core.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrOrderNotInStore):
		return http.StatusForbidden
	case errors.Is(err, core.ErrOrderNotFound),
		errors.Is(err, core.ErrStoreNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrStoreExists),
		errors.Is(err, core.ErrAlreadyAssigned),
		errors.Is(err, core.ErrInvalidTransition),
		errors.Is(err, core.ErrAutoAssignRunning):
		return http.StatusConflict
	case errors.Is(err, core.ErrDBConn):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError answers with the mapped status. Internal errors are not
// exposed to the client.
func writeError(w http.ResponseWriter, err error) {
	code := statusCode(err)
	if code == http.StatusInternalServerError {
		err = errors.New("internal server error")
	}
	jsonError(w, code, err)
}
