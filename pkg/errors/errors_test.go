package errors

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ErrorTypeConnection, "refused")
	assert.Equal(t, ErrorTypeConnection, err.Type)
	assert.Equal(t, "connection: refused", err.Error())
	assert.NotEmpty(t, err.Stack)
}

func TestWrap(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, ErrorTypeUnit, "ignored"))
	})

	t.Run("foreign error", func(t *testing.T) {
		err := Wrap(io.ErrUnexpectedEOF, ErrorTypeData, "short read")
		require.NotNil(t, err)
		assert.Equal(t, "data: short read: unexpected EOF", err.Error())
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("preserves inner stack", func(t *testing.T) {
		inner := New(ErrorTypeConnection, "reset")
		outer := Wrap(inner, ErrorTypeUnit, "scan failed")
		assert.Equal(t, inner.Stack, outer.Stack)
		assert.ErrorIs(t, outer, inner)
	})
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		name      string
		errType   ErrorType
		retryable bool
		fatal     bool
	}{
		{"connection is retryable", ErrorTypeConnection, true, false},
		{"timeout is retryable", ErrorTypeTimeout, true, false},
		{"authentication is fatal", ErrorTypeAuthentication, false, true},
		{"unavailable is fatal", ErrorTypeUnavailable, false, true},
		{"config is fatal", ErrorTypeConfig, false, true},
		{"permission is unit-level", ErrorTypePermission, false, false},
		{"query is unit-level", ErrorTypeQuery, false, false},
		{"validation is neither", ErrorTypeValidation, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.errType, "x")
			assert.Equal(t, tt.retryable, IsRetryable(err))
			assert.Equal(t, tt.fatal, IsFatal(err))
		})
	}
}

func TestSeverityForeignError(t *testing.T) {
	err := fmt.Errorf("plain failure")
	assert.False(t, IsRetryable(err))
	assert.False(t, IsFatal(err))
	assert.Equal(t, ErrorTypeInternal, Type(err))
}

func TestIsTypeThroughWrapping(t *testing.T) {
	inner := New(ErrorTypeAuthentication, "bad password")
	outer := Wrap(inner, ErrorTypeConnection, "connect failed")

	// As unwraps to the outermost typed error only.
	assert.True(t, IsType(outer, ErrorTypeConnection))
	assert.False(t, IsType(outer, ErrorTypeAuthentication))
	assert.True(t, IsType(inner, ErrorTypeAuthentication))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeUnit, "skipped").
		WithDetail("unit", "hr.employees").
		WithDetail("attempt", 2)

	assert.Equal(t, "hr.employees", err.Details["unit"])
	assert.Equal(t, 2, err.Details["attempt"])
}
