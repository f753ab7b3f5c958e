package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/flowplane/flowplane/pkg/apierr"
)

// errorBody is the wire shape of every non-2xx response.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details,omitempty"`
	} `json:"error"`
}

func statusFor(kind apierr.Kind) int {
	switch kind {
	case apierr.Validation, apierr.Config:
		return http.StatusBadRequest
	case apierr.NotFound:
		return http.StatusNotFound
	case apierr.Forbidden:
		return http.StatusForbidden
	case apierr.Conflict:
		return http.StatusConflict
	case apierr.ServiceUnavailable, apierr.Backend:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) int {
	kind := apierr.KindOf(err)
	status := statusFor(kind)

	var body errorBody
	body.Error.Code = string(kind)
	body.Error.Message = err.Error()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
	return status
}

func writeJSON(w http.ResponseWriter, status int, v any) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
	return status
}

func writeValidationError(w http.ResponseWriter, message string) {
	var body errorBody
	body.Error.Code = string(apierr.Validation)
	body.Error.Message = message
	writeJSON(w, http.StatusBadRequest, body)
}
