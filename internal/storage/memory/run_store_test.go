package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"wow-auction-lab/internal/domain"
	"wow-auction-lab/internal/storage"
)

func TestRunStore_InsertUpdateGet(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	run := &domain.IngestRun{
		ID:        uuid.New(),
		Mode:      domain.PullModeNew,
		Realm:     "wildhammer",
		StartedAt: 1000,
		Status:    domain.RunStatusRunning,
	}
	if err := store.Insert(ctx, run); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	run.Status = domain.RunStatusCompleted
	run.FinishedAt = 2000
	run.AuctionsStored = 42
	if err := store.Update(ctx, run); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := store.GetByID(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != domain.RunStatusCompleted || got.AuctionsStored != 42 {
		t.Errorf("Unexpected run: %+v", got)
	}
}

func TestRunStore_Errors(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	run := &domain.IngestRun{ID: uuid.New(), StartedAt: 1}

	if err := store.Update(ctx, run); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on update of unknown run, got %v", err)
	}
	if err := store.Insert(ctx, run); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, run); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
	if err := store.Insert(ctx, &domain.IngestRun{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil id, got %v", err)
	}
}

func TestRunStore_ListRecent(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	for _, started := range []int64{100, 300, 200} {
		if err := store.Insert(ctx, &domain.IngestRun{ID: uuid.New(), StartedAt: started}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	runs, err := store.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(runs) != 2 || runs[0].StartedAt != 300 || runs[1].StartedAt != 200 {
		t.Errorf("Unexpected order: %d runs", len(runs))
	}
}
