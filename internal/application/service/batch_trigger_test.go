package service

import (
	"arxivshorts/internal/domain/valueobject"
	"arxivshorts/internal/port/outbound"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestJobDispatcher_Submit(t *testing.T) {
	// Arrange
	ctx := context.Background()
	executor := new(MockBatchJobExecutor)
	executor.On("Submit", mock.Anything, mock.MatchedBy(func(req outbound.BatchJobRequest) bool {
		return strings.HasPrefix(req.JobName, "batch-inference-B1-") &&
			req.BatchID == "B1" &&
			req.InputKey == "B1/output_jsonl/batch_prompts.jsonl" &&
			req.OutputPrefix == "inferred-outputs/B1/"
	})).Return("batches/123", nil)

	submissions := new(MockSubmissionRepository)
	submissions.On("Save", mock.Anything, mock.AnythingOfType("*entity.JobSubmission")).Return(nil)

	dispatcher := NewJobDispatcher(executor, submissions, nil)

	// Act
	submission, err := dispatcher.Submit(ctx, "B1/output_jsonl/batch_prompts.jsonl", "B1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "batches/123", submission.JobID())
	assert.Equal(t, "B1", submission.BatchID())
	assert.Equal(t, valueobject.JobStatusSubmitted, submission.Status())
	executor.AssertExpectations(t)
	submissions.AssertExpectations(t)
}

func TestJobDispatcher_UniqueJobNames(t *testing.T) {
	ctx := context.Background()
	var names []string
	executor := new(MockBatchJobExecutor)
	executor.On("Submit", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			names = append(names, args.Get(1).(outbound.BatchJobRequest).JobName)
		}).
		Return("job", nil)
	submissions := new(MockSubmissionRepository)
	submissions.On("Save", mock.Anything, mock.Anything).Return(nil)
	dispatcher := NewJobDispatcher(executor, submissions, nil)

	_, err := dispatcher.Submit(ctx, "k", "B1")
	require.NoError(t, err)
	_, err = dispatcher.Submit(ctx, "k", "B1")
	require.NoError(t, err)

	require.Len(t, names, 2)
	assert.NotEqual(t, names[0], names[1])
}

func TestJobDispatcher_SubmitFailure(t *testing.T) {
	ctx := context.Background()
	executor := new(MockBatchJobExecutor)
	executor.On("Submit", mock.Anything, mock.Anything).Return("", errors.New("permission denied"))
	submissions := new(MockSubmissionRepository)

	_, err := NewJobDispatcher(executor, submissions, nil).Submit(ctx, "k", "B1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	submissions.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestJobDispatcher_SaveFailureStillReturnsSubmission(t *testing.T) {
	ctx := context.Background()
	executor := new(MockBatchJobExecutor)
	executor.On("Submit", mock.Anything, mock.Anything).Return("batches/9", nil)
	submissions := new(MockSubmissionRepository)
	submissions.On("Save", mock.Anything, mock.Anything).Return(errors.New("db down"))

	submission, err := NewJobDispatcher(executor, submissions, nil).Submit(ctx, "k", "B1")

	require.Error(t, err)
	require.NotNil(t, submission)
	assert.Equal(t, "batches/9", submission.JobID())
}

func TestBatchTrigger_CompilesThenDispatches(t *testing.T) {
	// Arrange
	ctx := context.Background()
	blobs := newMemBlobStore()
	putArtifact(t, blobs, "B1", "a")
	compiler := newTestCompiler(t, blobs, 3)

	var inputKey string
	executor := new(MockBatchJobExecutor)
	executor.On("Submit", mock.Anything, mock.MatchedBy(func(req outbound.BatchJobRequest) bool {
		return strings.HasPrefix(req.InputKey, "B1/output_jsonl/batch_prompts-")
	})).Run(func(args mock.Arguments) {
		inputKey = args.Get(1).(outbound.BatchJobRequest).InputKey
	}).Return("batches/1", nil).Once()
	submissions := new(MockSubmissionRepository)
	submissions.On("Save", mock.Anything, mock.Anything).Return(nil)

	trigger := NewBatchTrigger(compiler, NewJobDispatcher(executor, submissions, nil), nil)

	// Act
	err := trigger.Trigger(ctx, "B1")

	// Assert
	require.NoError(t, err)
	records := readCompiled(t, blobs, inputKey)
	assert.Len(t, records, 3)
	executor.AssertExpectations(t)
}

func TestBatchTrigger_CompileFailureSkipsDispatch(t *testing.T) {
	ctx := context.Background()
	blobs := new(MockBlobStore)
	blobs.On("List", mock.Anything, mock.Anything).Return(nil, errors.New("offline"))
	compiler := newTestCompiler(t, blobs, 3)
	executor := new(MockBatchJobExecutor)

	trigger := NewBatchTrigger(compiler, NewJobDispatcher(executor, new(MockSubmissionRepository), nil), nil)
	err := trigger.Trigger(ctx, "B1")

	require.Error(t, err)
	executor.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestBatchTrigger_RecordsSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	blobs := new(MockBlobStore)
	blobs.On("List", mock.Anything, mock.Anything).Return(nil, errors.New("offline"))
	trigger := NewBatchTrigger(newTestCompiler(t, blobs, 3), NewJobDispatcher(new(MockBatchJobExecutor), new(MockSubmissionRepository), nil), nil)

	require.Error(t, trigger.Trigger(context.Background(), "B7"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "BatchTrigger.Trigger", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Contains(t, spans[0].Attributes, attribute.String("batch_id", "B7"))
}
