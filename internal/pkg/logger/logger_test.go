package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestFromFallsBackToDefault(t *testing.T) {
	assert.NotNil(t, From(context.Background()))

	ctx := With(context.Background(), "company_id", "c-1")
	assert.NotSame(t, Default(), From(ctx))
}
