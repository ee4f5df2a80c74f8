package backend

import "fmt"

// FetchError is a transport-level failure: the backend never answered.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: fetch failed: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// BackendError is a non-2xx response, with the message parsed from the body
// when the backend supplied one.
type BackendError struct {
	Op      string
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: backend returned %d", e.Op, e.Status)
}

// ValidationError is a 2xx response whose body could not be decoded.
type ValidationError struct {
	Op  string
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
