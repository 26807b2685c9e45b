package service

import (
	"arxivshorts/internal/domain/entity"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testOutputKey = "inferred-outputs/B1/batch-inference-B1-abc.jsonl.out"

func outputLine(t *testing.T, recordID, prompt, generated string) string {
	t.Helper()
	input := entity.NewTextModelInput(prompt, 350)
	line, err := json.Marshal(entity.BatchOutputRecord{
		RecordID:    recordID,
		ModelInput:  &input,
		ModelOutput: entity.ModelOutput{Content: []entity.ContentBlock{{Type: "text", Text: generated}}},
	})
	require.NoError(t, err)
	return string(line)
}

func TestOutputLoader_Load(t *testing.T) {
	// Arrange
	ctx := context.Background()
	blobs := newMemBlobStore()
	results := newMemResultRepository()
	lines := []string{
		outputLine(t, "B1#2501.1", "prompt",
			`{"headline":"Small models win","summary":"A summary.","eyebrow":"NLP","url":"https://arxiv.org/abs/2501.1","authors":["Ada","Alan"]}`),
		outputLine(t, "B1#2501.2", "prompt",
			`{"headline":"Second","summary":"S","byline":"Vision","authors":"Grace Hopper, Edsger Dijkstra","articleId":"custom"}`),
		outputLine(t, "B1#dummy_3", PlaceholderPromptText, "ok"),
		outputLine(t, "B1#2501.4", "prompt", "I could not produce JSON"),
		"{this is not json",
		"",
	}
	require.NoError(t, blobs.Put(ctx, testOutputKey, []byte(strings.Join(lines, "\n"))))
	loader := NewOutputLoader(blobs, results, nil)

	// Act
	summary, err := loader.Load(ctx, testOutputKey)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Lines)
	assert.Equal(t, 3, summary.Loaded)
	assert.Equal(t, 1, summary.Placeholders)
	assert.Equal(t, 1, summary.Malformed)
	assert.Equal(t, 1, summary.EmptyPayloads)

	stored, err := results.ListByBatch(ctx, "B1")
	require.NoError(t, err)
	require.Len(t, stored, 3)

	first := stored[0]
	assert.Equal(t, "2501.1", first.ItemID())
	assert.Equal(t, "Small models win", first.Headline())
	assert.Equal(t, "NLP", first.Byline())
	assert.Equal(t, "https://arxiv.org/abs/2501.1", first.ArticleURL())
	assert.Equal(t, []string{"Ada", "Alan"}, first.Authors())
	assert.Equal(t, "2501.1", first.ArticleID())

	second := stored[1]
	assert.Equal(t, "Vision", second.Byline())
	assert.Equal(t, []string{"Grace Hopper", "Edsger Dijkstra"}, second.Authors())
	assert.Equal(t, "custom", second.ArticleID())

	empty := stored[2]
	assert.Equal(t, "2501.4", empty.ItemID())
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, "2501.4", empty.ArticleID())
}

func TestOutputLoader_SkipsPlaceholders(t *testing.T) {
	tests := []struct {
		name string
		line func(t *testing.T) string
	}{
		{name: "bare placeholder id", line: func(t *testing.T) string { return outputLine(t, "dummy_7", "x", "y") }},
		{name: "composite placeholder id", line: func(t *testing.T) string { return outputLine(t, "B1#dummy_3", "x", "y") }},
		{name: "sentinel in prompt", line: func(t *testing.T) string { return outputLine(t, "B1#odd", PlaceholderPromptText, "{}") }},
		{name: "sentinel in output", line: func(t *testing.T) string {
			return outputLine(t, "B1#odd", "x", "SKIP PARSING THIS RECORD")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			blobs := newMemBlobStore()
			results := newMemResultRepository()
			require.NoError(t, blobs.Put(ctx, testOutputKey, []byte(tt.line(t))))

			summary, err := NewOutputLoader(blobs, results, nil).Load(ctx, testOutputKey)

			require.NoError(t, err)
			assert.Equal(t, 1, summary.Placeholders)
			assert.Zero(t, summary.Loaded)
			assert.Zero(t, results.upserts)
		})
	}
}

func TestOutputLoader_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	blobs := newMemBlobStore()
	results := newMemResultRepository()
	data := outputLine(t, "B1#a", "p", `{"headline":"H"}`) + "\n" + outputLine(t, "B1#b", "p", `{"headline":"I"}`) + "\n"
	require.NoError(t, blobs.Put(ctx, testOutputKey, []byte(data)))
	loader := NewOutputLoader(blobs, results, nil)

	_, err := loader.Load(ctx, testOutputKey)
	require.NoError(t, err)
	_, err = loader.Load(ctx, testOutputKey)
	require.NoError(t, err)

	stored, err := results.ListByBatch(ctx, "B1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	assert.Equal(t, 4, results.upserts)
}

func TestOutputLoader_InvalidRecordIDIsMalformed(t *testing.T) {
	ctx := context.Background()
	blobs := newMemBlobStore()
	results := newMemResultRepository()
	require.NoError(t, blobs.Put(ctx, testOutputKey, []byte(outputLine(t, "no-separator", "p", "{}"))))

	summary, err := NewOutputLoader(blobs, results, nil).Load(ctx, testOutputKey)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Malformed)
	assert.Zero(t, results.upserts)
}

func TestOutputLoader_WriteFailureDoesNotStopLoad(t *testing.T) {
	ctx := context.Background()
	blobs := newMemBlobStore()
	data := outputLine(t, "B1#a", "p", `{"headline":"H"}`) + "\n" + outputLine(t, "B1#b", "p", `{"headline":"I"}`)
	require.NoError(t, blobs.Put(ctx, testOutputKey, []byte(data)))

	results := new(MockResultRepository)
	results.On("Upsert", mock.Anything, mock.MatchedBy(func(r *entity.ResultRecord) bool { return r.ItemID() == "a" })).
		Return(errors.New("deadline exceeded"))
	results.On("Upsert", mock.Anything, mock.MatchedBy(func(r *entity.ResultRecord) bool { return r.ItemID() == "b" })).
		Return(nil)

	summary, err := NewOutputLoader(blobs, results, nil).Load(ctx, testOutputKey)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.WriteFailures)
	assert.Equal(t, 1, summary.Loaded)
	results.AssertNumberOfCalls(t, "Upsert", 2)
}

func TestOutputLoader_RejectsUnrelatedOrMissingObjects(t *testing.T) {
	ctx := context.Background()
	loader := NewOutputLoader(newMemBlobStore(), newMemResultRepository(), nil)

	_, err := loader.Load(ctx, "B1/output_jsonl/batch_prompts.jsonl")
	assert.ErrorIs(t, err, ErrNotOutputArtifact)

	_, err = loader.Load(ctx, testOutputKey)
	require.Error(t, err)
}
