package exporter

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestRetry_ExhaustsAfterCeilingPlusOne(t *testing.T) {
	for _, ceiling := range []int{0, 1, 5} {
		t.Run(fmt.Sprintf("ceiling_%d", ceiling), func(t *testing.T) {
			attempts, recoveries := 0, 0
			result, err := Retry(context.Background(), ceiling, arbor.NewLogger(), "unit", func(ctx context.Context) Outcome {
				attempts++
				return Retryable(fmt.Sprintf("failure %d", attempts))
			}, func(ctx context.Context) error {
				recoveries++
				return nil
			})

			require.NoError(t, err)
			assert.False(t, result.OK)
			assert.Equal(t, ceiling+1, attempts)
			assert.Equal(t, ceiling+1, result.Attempts)
			assert.Equal(t, ceiling+1, recoveries)
			assert.Equal(t, fmt.Sprintf("failure %d", ceiling+1), result.Reason, "last reason is recorded")
		})
	}
}

func TestRetry_CounterIsPerUnit(t *testing.T) {
	logger := arbor.NewLogger()
	for unit := 0; unit < 3; unit++ {
		attempts := 0
		result, err := Retry(context.Background(), 5, logger, "unit", func(ctx context.Context) Outcome {
			attempts++
			if attempts == 3 {
				return Ok()
			}
			return Retryable("flaky")
		}, nil)
		require.NoError(t, err)
		assert.True(t, result.OK)
		assert.Equal(t, 3, result.Attempts)
	}
}

func TestRetry_FatalUnwinds(t *testing.T) {
	attempts := 0
	conflict := fmt.Errorf("%w: page title %q", ErrSessionConflict, "Choose an Account")

	_, err := Retry(context.Background(), 5, arbor.NewLogger(), "unit", func(ctx context.Context) Outcome {
		attempts++
		return Fatal(conflict)
	}, func(ctx context.Context) error {
		t.Fatal("recovery must not run after a fatal outcome")
		return nil
	})

	assert.True(t, errors.Is(err, ErrSessionConflict))
	assert.Equal(t, 1, attempts)
}

func TestRetry_RecoveryErrorUnwinds(t *testing.T) {
	attempts, recoveries := 0, 0
	conflict := fmt.Errorf("%w: page title %q", ErrSessionConflict, "Choose an Account")

	result, err := Retry(context.Background(), 5, arbor.NewLogger(), "unit", func(ctx context.Context) Outcome {
		attempts++
		return Retryable("[Inspections] heading not found")
	}, func(ctx context.Context) error {
		recoveries++
		return conflict
	})

	assert.ErrorIs(t, err, ErrSessionConflict)
	assert.False(t, result.OK)
	assert.Equal(t, 1, attempts, "no attempt after a failed recovery")
	assert.Equal(t, 1, recoveries)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, "[Inspections] heading not found", result.Reason)
}

func TestRetry_CancelledBeforeAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	_, err := Retry(ctx, 5, arbor.NewLogger(), "unit", func(ctx context.Context) Outcome {
		attempts++
		cancel()
		return Retryable("cancelled mid attempt")
	}, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestClassify(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, OutcomeOK, Classify(ctx, nil).Kind)

	conflict := Classify(ctx, fmt.Errorf("wrapped: %w", ErrSessionConflict))
	assert.Equal(t, OutcomeFatal, conflict.Kind)

	step := Classify(ctx, stepErr(Step{"Select all", "checkbox"}, errors.New("timeout")))
	assert.Equal(t, OutcomeRetryable, step.Kind)
	assert.Equal(t, "[Select all] checkbox not found", step.Reason)

	plain := Classify(ctx, errors.New("boom"))
	assert.Equal(t, OutcomeRetryable, plain.Kind)
	assert.Equal(t, "boom", plain.Reason)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Equal(t, OutcomeFatal, Classify(cancelled, errors.New("driver stopped")).Kind)
}
