package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonitorErrorFormatting(t *testing.T) {
	err := NewFetch("https://example.com", "request failed", context.DeadlineExceeded)
	assert.Equal(t, "[fetch] https://example.com: request failed - context deadline exceeded", err.Error())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	err = NewValidation("target", "price range inverted")
	assert.Equal(t, "[validation] target: price range inverted", err.Error())
	assert.False(t, err.Time.IsZero())
}

func TestTypeOfWrapped(t *testing.T) {
	wrapped := fmt.Errorf("check 7: %w", NewStore("7", "record check", nil))
	assert.Equal(t, ErrorTypeStore, TypeOf(wrapped))
	assert.True(t, Is(wrapped, ErrorTypeStore))
	assert.False(t, Is(wrapped, ErrorTypeFetch))
	assert.Equal(t, ErrorType(""), TypeOf(fmt.Errorf("plain")))
}

func TestReason(t *testing.T) {
	assert.Equal(t, "", Reason(nil))
	assert.Equal(t, "status 503", Reason(NewFetch("u", "status 503", nil)))
	assert.Equal(t, "request failed: boom", Reason(NewFetch("u", "request failed", fmt.Errorf("boom"))))
	assert.Equal(t, "plain", Reason(fmt.Errorf("plain")))
}
