package slogger

import (
	"arxivshorts/internal/application/common/logging"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFacadeWritesThroughGlobalLogger(t *testing.T) {
	logger, err := logging.NewApplicationLogger(logging.Config{Level: "DEBUG", Format: "json", Output: "buffer"})
	require.NoError(t, err)
	SetGlobalLogger(logger)
	t.Cleanup(func() { require.NoError(t, Configure("info", "json")) })

	ctx := logging.WithBatchID(context.Background(), "2025-01-15")
	Info(ctx, "batch counted", Fields2("success", 3, "failure", 1))
	ErrorWithError(ctx, errors.New("boom"), "counter update failed", nil)

	lines := logging.BufferedLines(logger)
	require.Len(t, lines, 2)

	var first, second logging.LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "batch counted", first.Message)
	assert.Equal(t, "2025-01-15", first.Context["batch_id"])
	assert.InDelta(t, 3, first.Metadata["success"], 0)

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "ERROR", second.Level)
	assert.Equal(t, "boom", second.Error)
}

func TestFieldHelpers(t *testing.T) {
	assert.Equal(t, Fields{"a": 1}, Field("a", 1))
	assert.Equal(t, Fields{"a": 1, "b": "x"}, Fields2("a", 1, "b", "x"))
	assert.Equal(t, Fields{"a": 1, "b": "x", "c": true}, Fields3("a", 1, "b", "x", "c", true))
}
