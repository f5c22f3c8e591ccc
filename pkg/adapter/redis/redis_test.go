package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/sleuth/pkg/config"
	"github.com/ajitpratap0/sleuth/pkg/errors"
)

func TestMatchPattern(t *testing.T) {
	cfg := config.NewScanConfig("redis://localhost:6379/0")
	a := &Adapter{cfg: cfg}
	assert.Equal(t, "*", a.matchPattern())

	cfg.Filters.Namespace = "sessions:"
	assert.Equal(t, "sessions:*", a.matchPattern())
}

func TestClassifyReplies(t *testing.T) {
	tests := []struct {
		reply string
		want  errors.ErrorType
	}{
		{"NOAUTH Authentication required.", errors.ErrorTypeAuthentication},
		{"WRONGPASS invalid username-password pair", errors.ErrorTypeAuthentication},
		{"NOPERM this user has no permissions", errors.ErrorTypePermission},
		{"LOADING Redis is loading the dataset in memory", errors.ErrorTypeConnection},
		{"CLUSTERDOWN The cluster is down", errors.ErrorTypeConnection},
	}

	for _, tt := range tests {
		err := classify(errText(tt.reply), "ping")
		assert.True(t, errors.IsType(err, tt.want), "reply %q classified as %v", tt.reply, err)
	}
}

func TestClassifyAuthIsFatal(t *testing.T) {
	err := classify(errText("NOAUTH Authentication required."), "ping")
	assert.True(t, errors.IsFatal(err))

	loading := classify(errText("LOADING Redis is loading the dataset in memory"), "ping")
	assert.True(t, errors.IsRetryable(loading))
}

func TestNewReportsName(t *testing.T) {
	a, err := New(config.NewScanConfig("redis://localhost:6379/0"))
	require.NoError(t, err)
	assert.Equal(t, "redis", a.Name())
}

type errText string

func (e errText) Error() string { return string(e) }
