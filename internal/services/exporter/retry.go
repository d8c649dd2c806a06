package exporter

import (
	"context"
	"errors"

	"github.com/ternarybob/arbor"
)

// OutcomeKind tags the result of one attempt
type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeRetryable
	OutcomeFatal
)

// Outcome is the tagged result of one attempt of a unit of work
type Outcome struct {
	Kind   OutcomeKind
	Reason string
	Err    error
}

// Ok reports a successful attempt
func Ok() Outcome {
	return Outcome{Kind: OutcomeOK}
}

// Retryable reports a transient failure; reason is recorded if retries run out
func Retryable(reason string) Outcome {
	return Outcome{Kind: OutcomeRetryable, Reason: reason}
}

// Fatal reports a failure that must unwind the whole run
func Fatal(err error) Outcome {
	return Outcome{Kind: OutcomeFatal, Reason: err.Error(), Err: err}
}

// Classify maps an attempt error to an outcome.
// Session conflicts and cancellation of ctx are fatal; everything else is retryable.
func Classify(ctx context.Context, err error) Outcome {
	if err == nil {
		return Ok()
	}
	if errors.Is(err, ErrSessionConflict) {
		return Fatal(err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Fatal(ctxErr)
	}

	var se *StepError
	if errors.As(err, &se) {
		return Retryable(se.Step.notFound())
	}
	return Retryable(err.Error())
}

// Result is the terminal state of a retry loop that did not unwind
type Result struct {
	OK       bool
	Reason   string // Reason of the last failed attempt when OK is false
	Attempts int
}

// Retry runs attempt up to ceiling+1 times. After every retryable failure recovery
// runs (when set) before the next attempt. A fatal outcome, a recovery error or
// cancellation of ctx is returned as an error.
func Retry(ctx context.Context, ceiling int, logger arbor.ILogger, unit string, attempt func(ctx context.Context) Outcome, recovery func(ctx context.Context) error) (Result, error) {
	var last Outcome
	for n := 0; n <= ceiling; n++ {
		if err := ctx.Err(); err != nil {
			return Result{Attempts: n}, err
		}
		if n > 0 {
			logger.Warn().
				Str("unit", unit).
				Int("retry", n).
				Int("max_retry", ceiling).
				Msg("Retrying")
		}

		outcome := attempt(ctx)
		switch outcome.Kind {
		case OutcomeOK:
			return Result{OK: true, Attempts: n + 1}, nil
		case OutcomeFatal:
			return Result{Reason: outcome.Reason, Attempts: n + 1}, outcome.Err
		}

		last = outcome
		logger.Warn().
			Str("unit", unit).
			Str("reason", outcome.Reason).
			Msg("Attempt failed")

		if recovery != nil {
			if err := recovery(ctx); err != nil {
				return Result{Reason: last.Reason, Attempts: n + 1}, err
			}
		}
	}

	logger.Warn().
		Str("unit", unit).
		Int("max_retry", ceiling).
		Str("reason", last.Reason).
		Msg("Max retry reached")
	return Result{Reason: last.Reason, Attempts: ceiling + 1}, nil
}
