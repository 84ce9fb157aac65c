package spindle

import "fmt"

// FetchError reports a failed fetch: either a transport error (Err set) or a
// non-200 status code. Fetch failures are the only failures the worker
// retries.
type FetchError struct {
	Url        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.Url, e.Err)
	}
	return fmt.Sprintf("fetch %s: unexpected status %d", e.Url, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError reports a spider failure while parsing a response. Parse
// failures are never retried; refetching an identical page will not fix a
// spider bug.
type ParseError struct {
	Url string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Url, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
