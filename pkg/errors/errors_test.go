package errors

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := &Error{Type: ErrorTypeNotFound, Message: "pool 12 not found", Code: 404}
	assert.Equal(t, "not_found error (code 404): pool 12 not found", err.Error())

	err = Filesystem(io.ErrShortWrite, "write %s", "1.png")
	assert.Equal(t, "filesystem error: write 1.png", err.Error())
}

func TestTypeOfWrapped(t *testing.T) {
	base := Network(io.ErrUnexpectedEOF, "GET /pools/1.json")
	wrapped := fmt.Errorf("resolve pool: %w", base)

	assert.True(t, IsNetwork(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.True(t, errors.Is(wrapped, io.ErrUnexpectedEOF))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(io.EOF))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		want      bool
	}{
		{ErrorTypeNetwork, true},
		{ErrorTypeRateLimit, true},
		{ErrorTypeServerError, true},
		{ErrorTypeNotFound, false},
		{ErrorTypeAuth, false},
		{ErrorTypeFilesystem, false},
		{ErrorTypeCorruptDatabase, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.errorType), func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.errorType))
		})
	}
}

func TestFromStatusCode(t *testing.T) {
	assert.Equal(t, ErrorTypeNotFound, FromStatusCode(404))
	assert.Equal(t, ErrorTypeAuth, FromStatusCode(401))
	assert.Equal(t, ErrorTypeAuth, FromStatusCode(403))
	assert.Equal(t, ErrorTypeRateLimit, FromStatusCode(429))
	assert.Equal(t, ErrorTypeRateLimit, FromStatusCode(503))
	assert.Equal(t, ErrorTypeServerError, FromStatusCode(502))
	assert.Equal(t, ErrorTypeUnknown, FromStatusCode(418))
}

func TestRetryAfterOf(t *testing.T) {
	limited := &Error{Type: ErrorTypeRateLimit, Code: 429, RetryAfter: 5 * time.Second}
	assert.Equal(t, 5*time.Second, RetryAfterOf(fmt.Errorf("GET /pools/1.json: %w", limited)))
	assert.Zero(t, RetryAfterOf(io.EOF))
}
