package logger_test

import (
	"bytes"
	"testing"

	"codeberg.org/mutker/hwsnap/internal/errors"
	"codeberg.org/mutker/hwsnap/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "warning", true)

	logger.Debug().Msg("hidden")
	logger.Warn().Str("source", "hwmon").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "source=hwmon")
}

func TestErrorWithCode(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "debug", true)

	err := errors.New().WithMessage(errors.ErrReadConfig, "bad toml")
	logger.Default().ErrorWithCode(err).Msg("config")

	assert.Contains(t, buf.String(), "error_code=read_config_failed")
	assert.Contains(t, buf.String(), "bad toml")
}
