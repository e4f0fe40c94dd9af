package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"hrpay/internal/platform/config"
	"hrpay/internal/platform/db"
)

func TestPGRunStoreLifecycle(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.Connect(ctx, config.Config{DatabaseURL: dbURL})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool, "../../../migrations"); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	svc := New(NewPGRunStore(pool), 1)
	runID, _, err := svc.RunNow(ctx, "payroll_run", func(context.Context) (any, error) {
		return map[string]int{"succeeded": 3}, nil
	})
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	run, err := svc.Get(ctx, runID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Status != StatusCompleted || run.CompletedAt == nil {
		t.Fatalf("expected completed run, got %+v", run)
	}
	var details map[string]int
	if err := json.Unmarshal(run.Details, &details); err != nil || details["succeeded"] != 3 {
		t.Fatalf("unexpected details %s (%v)", run.Details, err)
	}

	if _, err := svc.Get(ctx, "not-a-uuid"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := svc.Get(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound for unknown id, got %v", err)
	}
}
