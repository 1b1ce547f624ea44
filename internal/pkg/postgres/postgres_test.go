package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalcBackoff(t *testing.T) {
	assert.Equal(t, 1*time.Second, calcBackoff(1))
	assert.Equal(t, 2*time.Second, calcBackoff(2))
	assert.Equal(t, 8*time.Second, calcBackoff(4))
	assert.Equal(t, 16*time.Second, calcBackoff(5))
	assert.Equal(t, 16*time.Second, calcBackoff(10))
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	attempts, err := retry(context.Background(), 3, func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestRetry_SingleAttemptReturnsError(t *testing.T) {
	boom := errors.New("connection refused")
	attempts, err := retry(context.Background(), 0, func() error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}

func TestRetry_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := retry(ctx, 5, func() error {
		calls++
		cancel()
		return errors.New("connection refused")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), Config{URL: "://not a url"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse database url")
}
