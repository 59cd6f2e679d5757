package authclient

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// APIError is a structured error answered by the service. The Code values
// mirror the service's error taxonomy ("validation", "unauthorized",
// "conflict", "too_many_requests", ...).
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error"`
	Message    string `json:"message"`
	Field      string `json:"field,omitempty"`
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// parseErrorResponse turns a non-2xx response body into an *APIError.
// Bodies that are not the service's error shape still produce a usable error
// carrying the status code.
func parseErrorResponse(resp *http.Response, body []byte) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Code == "" {
		apiErr.Code = "unexpected_status"
		apiErr.Message = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return apiErr
}
