package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:    2,
		AttemptTimeout: 50 * time.Millisecond,
		Wait:           time.Millisecond,
		MaxWait:        5 * time.Millisecond,
	}
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage(`{"ok":true}`)})
	p := WithRetry(mock, fastRetry())

	resp, err := p.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Content))
	assert.Equal(t, 1, mock.CallCount())
}

func TestRetry_RetriesTransientOnce(t *testing.T) {
	cases := map[string]error{
		"unavailable": &ErrProviderUnavailable{Err: errors.New("down")},
		"rate limit":  &ErrRateLimit{RetryAfter: time.Millisecond, Err: errors.New("429")},
	}
	for name, first := range cases {
		t.Run(name, func(t *testing.T) {
			mock := NewMockProvider(
				MockResponse{Err: first},
				MockResponse{Content: json.RawMessage(`{"ok":true}`)},
			)
			resp, err := WithRetry(mock, fastRetry()).Generate(context.Background(), Request{})
			require.NoError(t, err)
			assert.NotNil(t, resp)
			assert.Equal(t, 2, mock.CallCount())
		})
	}
}

func TestRetry_GivesUpAfterOneRetry(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}},
		MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("still down")}},
		MockResponse{Content: json.RawMessage(`{"ok":true}`)},
	)
	_, err := WithRetry(mock, fastRetry()).Generate(context.Background(), Request{})

	var unavail *ErrProviderUnavailable
	require.ErrorAs(t, err, &unavail)
	assert.Equal(t, 2, mock.CallCount())
}

func TestRetry_DoesNotRetryPermanentErrors(t *testing.T) {
	cases := map[string]error{
		"invalid":    &ErrInvalidResponse{Err: errors.New("bad json")},
		"max tokens": &ErrMaxTokensExceeded{},
		"other":      errors.New("request rejected"),
	}
	for name, first := range cases {
		t.Run(name, func(t *testing.T) {
			mock := NewMockProvider(
				MockResponse{Err: first},
				MockResponse{Content: json.RawMessage(`{"ok":true}`)},
			)
			_, err := WithRetry(mock, fastRetry()).Generate(context.Background(), Request{})
			require.Error(t, err)
			assert.Equal(t, 1, mock.CallCount())
		})
	}
}

func TestRetry_AttemptTimeoutIsRetried(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Delay: WaitForCancel},
		MockResponse{Content: json.RawMessage(`{"ok":true}`)},
	)
	resp, err := WithRetry(mock, fastRetry()).Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.NotNil(t, resp)
	assert.Equal(t, 2, mock.CallCount())
}

func TestRetry_CallerCancellationIsNotRetried(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Delay: WaitForCancel},
		MockResponse{Content: json.RawMessage(`{"ok":true}`)},
	)
	cfg := fastRetry()
	cfg.AttemptTimeout = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := WithRetry(mock, cfg).Generate(ctx, Request{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, mock.CallCount())
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&ErrRateLimit{}))
	assert.True(t, IsTransient(&ErrAttemptTimeout{After: time.Second}))
	assert.True(t, IsTransient(&ErrProviderUnavailable{}))
	assert.False(t, IsTransient(&ErrInvalidResponse{Err: errors.New("x")}))
	assert.False(t, IsTransient(context.Canceled))
}
