package mailchimp

import (
	"fmt"
	"net/http"
)

// PlatformError is returned for every failed call to the Marketing API.
// Status is zero when the request never got a response.
type PlatformError struct {
	Op     string
	Status int
	Title  string
	Detail string
	Err    error
}

func (e *PlatformError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("mailchimp %s: %v", e.Op, e.Err)
	}
	if e.Detail != "" {
		return fmt.Sprintf("mailchimp %s: status %d %s: %s", e.Op, e.Status, e.Title, e.Detail)
	}
	return fmt.Sprintf("mailchimp %s: status %d", e.Op, e.Status)
}

func (e *PlatformError) Unwrap() error { return e.Err }

// Temporary reports whether the call may succeed when repeated later:
// transport failures, rate limiting and server errors.
func (e *PlatformError) Temporary() bool {
	switch {
	case e.Status == 0:
		return true
	case e.Status == http.StatusTooManyRequests:
		return true
	case e.Status >= 500:
		return true
	}
	return false
}

// apiError is the problem document the API returns on failure.
type apiError struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}
