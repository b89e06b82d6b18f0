package dida

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNoToken is returned when the client has no access token configured.
var ErrNoToken = errors.New("no Dida365 access token configured")

// errorMessageFields are the JSON fields checked, in order, for a
// human-readable error message.
var errorMessageFields = []string{"message", "errorMessage", "error_description", "errorCode", "error"}

// APIError is a failed Dida365 API call. StatusCode is zero when no response
// was received.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	return "Dida365 API Error: " + e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func newAPIError(status int, body []byte) *APIError {
	return &APIError{
		StatusCode: status,
		Message:    errorMessage(status, body),
		Body:       string(body),
	}
}

func newTransportError(err error) *APIError {
	return &APIError{Message: err.Error(), Err: err}
}

func errorMessage(status int, body []byte) string {
	if gjson.ValidBytes(body) {
		for _, field := range errorMessageFields {
			if v := gjson.GetBytes(body, field); v.Exists() && v.String() != "" {
				return v.String()
			}
		}
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return fmt.Sprintf("request failed with status code %d", status)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether the API rejected the token.
func IsUnauthorized(err error) bool {
	code := StatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// IsNotFound reports whether the addressed task or project does not exist.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}
