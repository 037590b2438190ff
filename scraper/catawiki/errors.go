package catawiki

import "fmt"

// FetchError is returned when the marketplace could not be read. It is
// fatal to the run.
type FetchError struct {
	URL        string
	Page       int
	StatusCode int
	Message    string
	Cause      error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch error for %s", e.URL)
	if e.Page > 0 {
		msg = fmt.Sprintf("fetch error for page %d (%s)", e.Page, e.URL)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": HTTP status %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// statusError marks a non-2xx response so it can be retried and reported.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d", e.code)
}
