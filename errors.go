package notify

import (
	"fmt"
	"net/http"
	"strings"
)

// Fixed status and message carried by every RequestError, so that callers can
// tell "the API responded with an error" apart from "the API was unreachable".
const (
	RequestErrorStatusCode = http.StatusServiceUnavailable
	RequestErrorMessage    = "Request failed"
)

// ErrorDetail is one entry of the errors list returned by the API.
type ErrorDetail struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HTTPError is returned when the API responds with a status of 400 or above.
type HTTPError struct {
	StatusCode int
	Errors     []ErrorDetail
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("notify: status %d: %s", e.StatusCode, e.Message())
}

// Message joins the messages of all error details.
func (e *HTTPError) Message() string {
	if len(e.Errors) == 0 {
		return RequestErrorMessage
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, d := range e.Errors {
		msgs = append(msgs, d.Message)
	}
	return strings.Join(msgs, "; ")
}

// NotFoundError is the HTTPError returned for a 404 response.
type NotFoundError struct {
	HTTPError
}

func (e *NotFoundError) Unwrap() error {
	return &e.HTTPError
}

// RequestError is returned when no response was received from the API
// (DNS failure, refused connection, timeout, cancelled context). StatusCode and
// Message are always RequestErrorStatusCode and RequestErrorMessage; the
// transport error is only reachable through Unwrap.
type RequestError struct {
	StatusCode int
	Message    string
	err        error
}

func newRequestError(cause error) *RequestError {
	return &RequestError{
		StatusCode: RequestErrorStatusCode,
		Message:    RequestErrorMessage,
		err:        cause,
	}
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("notify: status %d: %s", e.StatusCode, e.Message)
}

func (e *RequestError) Unwrap() error {
	return e.err
}

// CredentialFormatError is returned by New when the API key is malformed.
type CredentialFormatError struct {
	Reason string
}

func (e *CredentialFormatError) Error() string {
	return "notify: invalid api key: " + e.Reason
}

// DocumentUploadError is returned by PrepareUpload when a document cannot be
// attached.
type DocumentUploadError struct {
	Message string
}

func (e *DocumentUploadError) Error() string {
	return "notify: " + e.Message
}

// ValidationError is returned when a request fails local validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("notify: %s: %s", e.Field, e.Message)
}

// InvalidResponseError is returned when a successful response has a body that
// cannot be decoded.
type InvalidResponseError struct {
	StatusCode int
	err        error
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("notify: invalid response body (status %d): %v", e.StatusCode, e.err)
}

func (e *InvalidResponseError) Unwrap() error {
	return e.err
}
