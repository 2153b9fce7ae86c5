package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() Policy {
	return Policy{
		Attempts:       3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), "test", func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), "test", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return NewNetworkError(eris.New("boom"), 503)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := eris.New("bad request")
	err := Do(context.Background(), fastPolicy(), "test", func(ctx context.Context) error {
		calls++
		return permanent
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), "test", func(ctx context.Context) error {
		calls++
		return NewNetworkError(eris.New("still down"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoValReturnsValue(t *testing.T) {
	calls := 0
	v, err := DoVal(context.Background(), fastPolicy(), "test", func(ctx context.Context) (int, error) {
		calls++
		if calls < 2 {
			return 0, NewNetworkError(eris.New("flap"), 502)
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, fastPolicy(), "test", func(ctx context.Context) error {
		calls++
		cancel()
		return NewNetworkError(eris.New("down"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(eris.New("validation failed")))
	assert.True(t, IsRetryable(NewNetworkError(eris.New("x"), 429)))
	assert.True(t, IsRetryable(eris.Wrap(NewNetworkError(eris.New("x"), 500), "outer")))
	assert.True(t, IsRetryable(eris.New("read tcp: i/o timeout")))
}

func TestIsRetryableHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsRetryableHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404} {
		assert.False(t, IsRetryableHTTPStatus(code), "status %d", code)
	}
}
