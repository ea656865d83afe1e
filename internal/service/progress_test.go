package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sahil/voxpert/internal/domain"
)

func TestProgressCreateRejectsActiveDuplicate(t *testing.T) {
	db := newTestDB(t)
	p := newTestProgress(t, db)
	ctx := context.Background()

	if _, err := p.Create(ctx, "e1", "a1", 3, "", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := p.Create(ctx, "e1", "a1", 5, "", nil); !errors.Is(err, ErrProgressExists) {
		t.Errorf("expected ErrProgressExists, got %v", err)
	}
}

func TestProgressCreateReplacesTerminalRecord(t *testing.T) {
	db := newTestDB(t)
	p := newTestProgress(t, db)
	ctx := context.Background()

	if _, err := p.Create(ctx, "e1", "a1", 2, "", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := p.MarkCompleted(ctx, "e1", nil); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	fresh, err := p.Create(ctx, "e1", "a1", 4, "", nil)
	if err != nil {
		t.Fatalf("Create after completion: %v", err)
	}
	if fresh.TotalFiles != 4 || fresh.Status != domain.ProgressStatusPending {
		t.Errorf("unexpected replacement record: %+v", fresh)
	}
}

func TestProgressUpdateSoftFailure(t *testing.T) {
	db := newTestDB(t)
	p := newTestProgress(t, db)

	updated, err := p.Update(context.Background(), "ghost", map[string]interface{}{
		"stage": domain.StageEmbedding,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated {
		t.Error("update of absent record should report false")
	}
}

func TestProgressPercentageNeverRegresses(t *testing.T) {
	db := newTestDB(t)
	p := newTestProgress(t, db)
	ctx := context.Background()

	if _, err := p.Create(ctx, "e1", "a1", 2, "", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := p.Update(ctx, "e1", map[string]interface{}{"progress_percentage": 60.0}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := p.Update(ctx, "e1", map[string]interface{}{"progress_percentage": 40.0}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	record, err := p.Get(ctx, "e1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.ProgressPercentage != 60.0 {
		t.Errorf("progress regressed to %v, want 60.0", record.ProgressPercentage)
	}
}

func TestProgressMarkCompletedSetsHundred(t *testing.T) {
	db := newTestDB(t)
	p := newTestProgress(t, db)
	ctx := context.Background()

	if _, err := p.Create(ctx, "e1", "a1", 1, "", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := p.MarkCompleted(ctx, "e1", domain.JSONMap{"processed_count": 1}); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	record, _ := p.Get(ctx, "e1")
	if record.Status != domain.ProgressStatusCompleted || record.Stage != domain.StageComplete {
		t.Errorf("unexpected terminal state: %s/%s", record.Status, record.Stage)
	}
	if record.ProgressPercentage != 100.0 {
		t.Errorf("progress = %v, want 100.0", record.ProgressPercentage)
	}
	if record.CompletedAt == nil {
		t.Error("completed_at not set")
	}
}

func TestProgressDeleteIdempotent(t *testing.T) {
	db := newTestDB(t)
	p := newTestProgress(t, db)
	ctx := context.Background()

	if _, err := p.Create(ctx, "e1", "a1", 1, "", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	deleted, err := p.Delete(ctx, "e1")
	if err != nil || !deleted {
		t.Fatalf("Delete = %v, %v; want true, nil", deleted, err)
	}
	deleted, err = p.Delete(ctx, "e1")
	if err != nil || deleted {
		t.Errorf("second Delete = %v, %v; want false, nil", deleted, err)
	}
}

func TestProgressGetRefreshesQueuePosition(t *testing.T) {
	db := newTestDB(t)
	p := newTestProgress(t, db)
	q := newTestQueue(t, db)
	ctx := context.Background()

	// Two tasks: the second expert's record starts at position 2.
	q.Enqueue(ctx, "e1", "a1", domain.TaskTypeFileProcessing, 0, nil)
	task2, _ := q.Enqueue(ctx, "e2", "a2", domain.TaskTypeFileProcessing, 0, nil)

	if _, err := p.Create(ctx, "e2", "a2", 1, task2.ID, task2.QueuePosition); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// First task leaves the queue; the live position moves up.
	head, _ := q.NextTask(ctx)
	if err := q.MarkProcessing(ctx, head); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}

	record, err := p.Get(ctx, "e2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.QueuePosition == nil || *record.QueuePosition != 1 {
		t.Errorf("queue position = %v, want 1", record.QueuePosition)
	}
}

func TestProgressGetAbsent(t *testing.T) {
	db := newTestDB(t)
	p := newTestProgress(t, db)

	record, err := p.Get(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record != nil {
		t.Errorf("expected nil record, got %+v", record)
	}
}
