package extract

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallWithTimeoutReturnsResult(t *testing.T) {
	got, err := callWithTimeout(context.Background(), 2*time.Second, "fast", func() (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestCallWithTimeoutPropagatesError(t *testing.T) {
	wantErr := eris.New("upstream broke")
	_, err := callWithTimeout(context.Background(), 2*time.Second, "failing", func() (int, error) {
		return 0, wantErr
	})
	assert.Same(t, wantErr, err)
}

func TestCallWithTimeoutAbandonsSlowWorker(t *testing.T) {
	start := time.Now()
	_, err := callWithTimeout(context.Background(), time.Second, "slow", func() (int, error) {
		time.Sleep(3 * time.Second)
		return 1, nil
	})

	var te *TimeoutError
	require.True(t, eris.As(err, &te))
	assert.Equal(t, "slow", te.Label)
	// Caller got control back at the budget, not after the worker finished.
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCallWithTimeoutRespectsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := callWithTimeout(ctx, 5*time.Second, "cancelled", func() (int, error) {
		time.Sleep(3 * time.Second)
		return 1, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
