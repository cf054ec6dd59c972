package content

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Common errors returned by the client.
var (
	// ErrNotFound is wrapped by APIError for 404 responses.
	ErrNotFound = errors.New("resource not found")
)

// APIError represents a failed Content API call with additional context.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Operation  string
	Message    string

	// Reasons holds the machine-readable reasons of a Google error body.
	Reasons []string
	Err     error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "content %s error", e.ErrorClass)
	if e.Operation != "" {
		fmt.Fprintf(&b, " in %s", e.Operation)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	fmt.Fprintf(&b, ": %s", e.Message)
	if len(e.Reasons) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Reasons, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// ClassOf returns the ErrorClass of err, or "" when err is not an APIError.
func ClassOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ""
}

// parseErrorBody extracts the message and reasons of a Google error body:
//
//	{"error": {"code": 400, "message": "...", "errors": [{"reason": "...", "message": "..."}]}}
//
// Plain {"error": "..."} bodies and non-JSON bodies are accepted too.
func parseErrorBody(body []byte, fallback string) (string, []string) {
	if !gjson.ValidBytes(body) {
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return msg, nil
		}
		return fallback, nil
	}

	errField := gjson.GetBytes(body, "error")
	if errField.Type == gjson.String {
		return errField.String(), nil
	}

	message := errField.Get("message").String()
	if message == "" {
		message = fallback
	}

	var reasons []string
	for _, r := range errField.Get("errors.#.reason").Array() {
		if r.String() != "" {
			reasons = append(reasons, r.String())
		}
	}
	return message, reasons
}
