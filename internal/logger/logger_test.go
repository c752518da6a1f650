package logger_test

import (
	"bytes"
	"testing"

	"codeberg.org/mutker/dockd/internal/errors"
	"codeberg.org/mutker/dockd/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		want  logger.LogLevel
		valid bool
	}{
		{"debug", logger.DebugLevel, true},
		{"INFO", logger.InfoLevel, true},
		{"warning", logger.WarnLevel, true},
		{"error", logger.ErrorLevel, true},
		{"loud", logger.WarnLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, ok := logger.ParseLevel(tt.name)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.want, level)
		})
	}
}

func TestComponentLogger(t *testing.T) {
	logger.SetLogLevel(logger.DebugLevel)
	defer logger.SetLogLevel(logger.WarnLevel)

	var buf bytes.Buffer
	log := logger.New(&buf).With("power")

	log.Info().Str("profile", "ECO").Msg("Profile applied")
	assert.Contains(t, buf.String(), `"component":"power"`)
	assert.Contains(t, buf.String(), `"profile":"ECO"`)
	assert.Contains(t, buf.String(), "Profile applied")

	buf.Reset()
	err := errors.New().WithData(errors.ErrInvalidArgument, "bad")
	log.ErrorWithCode(err).Msg("Request failed")
	assert.Contains(t, buf.String(), `"error_code":"invalid_argument"`)
}
