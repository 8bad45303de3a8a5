package response

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body rendered for faults
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// RenderError renders a JSON error body with the given status
func RenderError(w http.ResponseWriter, statusCode int, err error) {
	message := http.StatusText(statusCode)
	if err != nil {
		message = err.Error()
	}

	resp := &ErrorResponse{
		Error:   "error",
		Message: message,
		Code:    errorCodeFromStatus(statusCode),
	}

	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

// RenderInternalError renders a 500 Internal Server Error. The error text
// is included only when showDetails is set.
func RenderInternalError(w http.ResponseWriter, err error, showDetails bool) {
	if !showDetails {
		err = nil
	}
	RenderError(w, http.StatusInternalServerError, err)
}

// errorCodeFromStatus maps HTTP status codes to error codes
func errorCodeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusRequestTimeout:
		return "request_timeout"
	case http.StatusTooManyRequests:
		return "too_many_requests"
	case http.StatusInternalServerError:
		return "internal_error"
	case http.StatusServiceUnavailable:
		return "service_unavailable"
	default:
		return "error"
	}
}
