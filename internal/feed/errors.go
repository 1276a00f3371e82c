package feed

import "fmt"

// FetchError wraps every failure of retrieving a feed payload — transport
// errors, timeouts and non-2xx responses alike — so callers need a single
// failure branch per feed. StatusCode is zero unless a response arrived.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}

	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// FormatError reports a payload that matched no supported feed dialect or
// failed to decode as the dialect it claimed to be.
type FormatError struct {
	URL    string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.URL, e.Reason, e.Err)
	}

	return fmt.Sprintf("parse %s: %s", e.URL, e.Reason)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}
