package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOfWrapped(t *testing.T) {
	base := New(ReplayDetected, "nonce reused")
	wrapped := fmt.Errorf("verify: %w", base)

	assert.Equal(t, ReplayDetected, CodeOf(wrapped))
	assert.Equal(t, "nonce reused", MessageOf(wrapped))
	assert.True(t, errors.Is(wrapped, New(ReplayDetected, "")))
	assert.False(t, errors.Is(wrapped, New(SignatureMismatch, "")))
}

func TestCodeOfForeignError(t *testing.T) {
	assert.Equal(t, Internal, CodeOf(errors.New("boom")))
	assert.Equal(t, Code(""), CodeOf(nil))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("token is malformed")
	err := Wrap(ParseFailed, "channel token rejected", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "PARSE_FAILED")
	assert.Contains(t, err.Error(), "token is malformed")
}

func TestIsAuth(t *testing.T) {
	assert.True(t, IsAuth(MissingFields))
	assert.True(t, IsAuth(NoCredentials))
	assert.False(t, IsAuth(TicketLookupTimeout))
	assert.False(t, IsAuth(Internal))
}
