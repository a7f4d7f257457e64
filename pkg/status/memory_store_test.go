package status_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/statuscast/pkg/status"
)

func intPtr(i int) *int { return &i }

func TestStatus_IsTerminal(t *testing.T) {
	t.Parallel()

	for _, s := range []status.Status{status.Completed, status.Error, status.Cancelled} {
		assert.True(t, s.IsTerminal(), s)
	}
	for _, s := range []status.Status{status.Queued, status.Processing, status.ATSAnalysis, status.ContentReview, status.SkillsAnalysis} {
		assert.False(t, s.IsTerminal(), s)
	}
	assert.False(t, status.Status("bogus").Valid())
}

func TestRecord_Snapshot(t *testing.T) {
	t.Parallel()

	rec := status.Record{Status: status.Processing, Progress: 40, Results: map[string]any{"score": 80}}
	assert.Nil(t, rec.Snapshot().Results, "results only for completed")

	rec.Status = status.Completed
	assert.Equal(t, map[string]any{"score": 80}, rec.Snapshot().Results)
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := status.NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })

	_, err := s.FindByID(ctx, "a1")
	assert.ErrorIs(t, err, status.ErrNotFound)

	rec, err := s.Create(ctx, status.Record{AnalysisID: "a1", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, status.Queued, rec.Status)
	assert.Equal(t, "queued", rec.CurrentStage)
	assert.False(t, rec.CreatedAt.IsZero())

	_, err = s.Create(ctx, status.Record{AnalysisID: "a1"})
	assert.ErrorIs(t, err, status.ErrAlreadyExists)

	rec, err = s.Apply(ctx, "a1", status.Patch{Status: status.ATSAnalysis, Progress: intPtr(30)})
	require.NoError(t, err)
	assert.Equal(t, 30, rec.Progress)
	assert.Equal(t, "ats_analysis", rec.CurrentStage)

	rec, err = s.Apply(ctx, "a1", status.Patch{Status: status.ContentReview, Progress: intPtr(10)})
	require.NoError(t, err)
	assert.Equal(t, 30, rec.Progress, "progress never decreases")

	rec, err = s.Apply(ctx, "a1", status.Patch{Status: status.Completed, Results: map[string]any{"score": 91}})
	require.NoError(t, err)
	assert.Equal(t, 100, rec.Progress)
	require.NotNil(t, rec.CompletedAt)
	assert.Equal(t, map[string]any{"score": 91}, rec.Results)

	_, err = s.Apply(ctx, "a1", status.Patch{Status: status.Processing})
	assert.ErrorIs(t, err, status.ErrTerminal)

	_, err = s.Cancel(ctx, "a1")
	assert.ErrorIs(t, err, status.ErrNotCancellable)
	assert.ErrorContains(t, err, "completed")
}

func TestMemoryStore_Cancel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := status.NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })

	_, err := s.Cancel(ctx, "missing")
	assert.ErrorIs(t, err, status.ErrNotFound)

	_, err = s.Create(ctx, status.Record{AnalysisID: "a1", Status: status.Processing})
	require.NoError(t, err)

	rec, err := s.Cancel(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, status.Cancelled, rec.Status)
	assert.Equal(t, "cancelled", rec.CurrentStage)

	_, err = s.Cancel(ctx, "a1")
	assert.ErrorIs(t, err, status.ErrNotCancellable)
}

func TestMemoryStore_MarkError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := status.NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })

	_, err := s.Create(ctx, status.Record{AnalysisID: "a1"})
	require.NoError(t, err)

	rec, err := status.MarkError(ctx, s, "a1", "scoring service timed out")
	require.NoError(t, err)
	assert.Equal(t, status.Error, rec.Status)
	assert.Equal(t, "error", rec.CurrentStage)
	assert.Equal(t, "scoring service timed out", rec.Error)
}

func TestPatch_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		patch status.Patch
		ok    bool
	}{
		{"valid stage", status.Patch{Status: status.SkillsAnalysis, Progress: intPtr(70)}, true},
		{"unknown status", status.Patch{Status: "paused"}, false},
		{"progress out of range", status.Patch{Status: status.Processing, Progress: intPtr(101)}, false},
		{"completed without results", status.Patch{Status: status.Completed}, false},
		{"results before completion", status.Patch{Status: status.Processing, Results: map[string]any{}}, false},
		{"completed with results", status.Patch{Status: status.Completed, Results: map[string]any{}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.patch.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, status.ErrInvalidPatch)
			}
		})
	}
}

func TestMemoryStore_Changes(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s := status.NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })
	sub := s.Changes(ctx)

	_, err := s.Create(ctx, status.Record{AnalysisID: "a1"})
	require.NoError(t, err)
	_, err = s.Apply(ctx, "a1", status.Patch{Status: status.Processing, Progress: intPtr(5)})
	require.NoError(t, err)
	s.Replace(ctx, status.Record{AnalysisID: "a1", Status: status.Processing, Progress: 6})

	want := []string{"insert", "update", "replace"}
	for _, op := range want {
		select {
		case msg := <-sub.Receive(ctx):
			assert.Equal(t, op, msg.Data.OperationType)
			assert.Equal(t, "a1", msg.Data.Record.AnalysisID)
		case <-time.After(time.Second):
			t.Fatalf("no %s change", op)
		}
	}
}
