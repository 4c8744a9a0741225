package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	cases := []struct {
		env, level string
		want       zapcore.Level
	}{
		{"local", "", zapcore.DebugLevel},
		{"prod", "", zapcore.InfoLevel},
		{"prod", "warn", zapcore.WarnLevel},
		{"local", "error", zapcore.ErrorLevel},
		{"prod", "verbose", zapcore.InfoLevel},
	}
	for _, tc := range cases {
		l, err := New("round-service", tc.env, tc.level)
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(tc.want), "%s/%s", tc.env, tc.level)
		if tc.want > zapcore.DebugLevel {
			assert.False(t, l.Core().Enabled(tc.want-1), "%s/%s", tc.env, tc.level)
		}
	}
}
