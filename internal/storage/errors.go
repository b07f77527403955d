package storage

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

var (
	// ErrUnexpectedStatus matches every RequestError.
	ErrUnexpectedStatus = errors.New("unexpected response status")

	// ErrNotFound matches a RequestError whose status is 404.
	ErrNotFound = errors.New("remote file not found")

	// ErrReadOnly is returned when writing to a handle opened read-only.
	ErrReadOnly = errors.New("file was opened for read-only access")
)

// RequestError is returned when the server answers an operation with a
// status other than the one its contract expects.
type RequestError struct {
	Method     string
	URL        string
	StatusCode int
	Reason     string
}

// NewRequestError builds a RequestError from a response.
func NewRequestError(method, url string, resp *http.Response) *RequestError {
	return &RequestError{
		Method:     method,
		URL:        url,
		StatusCode: resp.StatusCode,
		Reason:     reasonPhrase(resp),
	}
}

func (e *RequestError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, e.Reason)
}

// Is makes errors.Is(err, ErrUnexpectedStatus) and, for 404,
// errors.Is(err, ErrNotFound) hold.
func (e *RequestError) Is(target error) bool {
	switch target {
	case ErrUnexpectedStatus:
		return true
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// reasonPhrase returns the textual part of the status line, falling back to
// the standard text when the server sent none.
func reasonPhrase(resp *http.Response) string {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return reason
}

// UnsupportedModeError is returned by Open for any flag that is not
// read-only.
type UnsupportedModeError struct {
	Flag int
}

func (e *UnsupportedModeError) Error() string {
	return fmt.Sprintf("unsupported open mode %#o: remote files are read-only", e.Flag)
}

// ConfigurationError reports missing or malformed backend configuration.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}
