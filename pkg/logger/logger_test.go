package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiLevelHandlerRoutesErrors(t *testing.T) {
	var console, info, errs bytes.Buffer
	log := slog.New(NewMultiLevelHandler(slog.LevelInfo, &console, &info, &errs))

	log.Debug("hidden")
	log.Info("progress saved", slog.String("lesson", "L1"))
	log.Error("progress save failed", slog.String("error", "boom"))

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "progress saved")
	assert.Contains(t, info.String(), `"lesson":"L1"`)
	assert.Contains(t, errs.String(), "progress save failed")
	assert.NotContains(t, errs.String(), "progress saved")
}

func TestContextAttrsReachEverySink(t *testing.T) {
	var console, info, errs bytes.Buffer
	log := slog.New(NewMultiLevelHandler(slog.LevelInfo, &console, &info, &errs))

	ctx := WithAttrs(context.Background(), slog.String("request_id", "req-1"))
	ctx = WithAttrs(ctx, slog.String("user", "U1"))
	log.ErrorContext(ctx, "store call failed")
	log.Info("no context")

	assert.Contains(t, console.String(), "request_id=req-1")
	assert.Contains(t, info.String(), `"user":"U1"`)
	assert.Contains(t, errs.String(), `"request_id":"req-1"`)
	assert.Equal(t, 1, strings.Count(info.String(), "req-1"))
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARNING")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl.Level())

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNewWritesFiles(t *testing.T) {
	dir := t.TempDir()

	log, err := New("debug", dir)
	require.NoError(t, err)
	log.Error("written")

	assert.FileExists(t, dir+"/info.log")
	assert.FileExists(t, dir+"/error.log")
}
