package adapter

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Code classifies an adapter failure. The set is closed.
type Code string

const (
	CodeAuthFailed            Code = "AUTH_FAILED"
	CodeRateLimit             Code = "RATE_LIMIT"
	CodeNotFound              Code = "NOT_FOUND"
	CodeFetchFailed           Code = "FETCH_FAILED"
	CodeValidationFailed      Code = "VALIDATION_FAILED"
	CodeAdapterNotFound       Code = "ADAPTER_NOT_FOUND"
	CodeAdapterCreationFailed Code = "ADAPTER_CREATION_FAILED"
)

// Error is the only error type that leaves an adapter or the registry.
type Error struct {
	Code     Code
	Platform string
	Message  string
	Err      error
	// ResetAt is set for CodeRateLimit when the platform reported when the
	// limit window ends.
	ResetAt *time.Time
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Platform != "" {
		b.WriteString(e.Platform)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	b.WriteString(" (")
	b.WriteString(string(e.Code))
	b.WriteString(")")
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, platform, msg string, cause error) *Error {
	return &Error{Code: code, Platform: platform, Message: msg, Err: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsCode reports whether any *Error in err's chain carries code, so a
// VALIDATION_FAILED wrapped in ADAPTER_CREATION_FAILED matches both.
func IsCode(err error, code Code) bool {
	for err != nil {
		if ae, ok := err.(*Error); ok && ae.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// StatusError is returned by platform clients for any non-2xx reply. It is
// the input HandleError classifies; it never escapes an adapter unwrapped.
type StatusError struct {
	StatusCode int
	Header     http.Header
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// resetTime extracts the end of a rate-limit window from response headers.
// Retry-After carries seconds or an HTTP date, X-Rate-Limit-Reset an epoch
// second and X-Ratelimit-Reset the seconds remaining.
func resetTime(h http.Header, now time.Time) *time.Time {
	if h == nil {
		return nil
	}
	if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			t := now.Add(time.Duration(secs * float64(time.Second)))
			return &t
		}
		if t, err := http.ParseTime(v); err == nil {
			return &t
		}
	}
	if v := strings.TrimSpace(h.Get("X-Rate-Limit-Reset")); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			t := time.Unix(epoch, 0).UTC()
			return &t
		}
	}
	if v := strings.TrimSpace(h.Get("X-Ratelimit-Reset")); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			t := now.Add(time.Duration(secs * float64(time.Second)))
			return &t
		}
	}
	return nil
}
