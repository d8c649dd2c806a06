package driver

import (
	"errors"
	"fmt"
)

var (
	// ErrNodeNotFound is returned when an indexed node does not exist
	ErrNodeNotFound = errors.New("node not found")

	// ErrAttributeMissing is returned when a node lacks the requested attribute
	ErrAttributeMissing = errors.New("attribute missing")
)

// UIError records the driver operation and selector that failed
type UIError struct {
	Op       string
	Selector string
	Err      error
}

func (e *UIError) Error() string {
	if e.Selector == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Selector, e.Err)
}

func (e *UIError) Unwrap() error {
	return e.Err
}

func uiError(op, selector string, err error) error {
	return &UIError{Op: op, Selector: selector, Err: err}
}
