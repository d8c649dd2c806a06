package exporter

import (
	"errors"
	"fmt"
)

var (
	// ErrNavigation is returned when a page does not show its landing marker
	ErrNavigation = errors.New("navigation failed")

	// ErrSessionConflict is returned when the UI asks to choose an account.
	// The session must be re-established before the run can continue.
	ErrSessionConflict = errors.New("session conflict")

	// ErrProjectListMissing is returned when the project list file does not exist
	ErrProjectListMissing = errors.New("project list not found")

	// ErrDownloadFailed is returned when an export artifact never arrives
	ErrDownloadFailed = errors.New("download failed")
)

// Step names one UI element of an export sequence, e.g. {"Select all", "checkbox"}
type Step struct {
	Name string
	Kind string
}

func (s Step) found() string {
	return fmt.Sprintf("[%s] %s found", s.Name, s.Kind)
}

func (s Step) notFound() string {
	return fmt.Sprintf("[%s] %s not found", s.Name, s.Kind)
}

// StepError records the UI element a sequence stopped at
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step.notFound(), e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func stepErr(step Step, err error) error {
	return &StepError{Step: step, Err: err}
}
