package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrRunNotFound = errors.New("job run not found")

type Run struct {
	ID          string          `json:"id"`
	JobType     string          `json:"jobType"`
	Status      string          `json:"status"`
	Details     json.RawMessage `json:"details,omitempty"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

type RunStore interface {
	CreateRun(ctx context.Context, jobType, status string) (string, error)
	// UpdateRun sets the status; nil details leave the stored details as is.
	// Terminal statuses stamp completed_at.
	UpdateRun(ctx context.Context, runID, status string, details []byte) error
	GetRun(ctx context.Context, runID string) (Run, error)
}

func terminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

type PGRunStore struct {
	DB *pgxpool.Pool
}

func NewPGRunStore(db *pgxpool.Pool) *PGRunStore {
	return &PGRunStore{DB: db}
}

func (s *PGRunStore) CreateRun(ctx context.Context, jobType, status string) (string, error) {
	var runID string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1,$2)
    RETURNING id::text
  `, jobType, status).Scan(&runID)
	return runID, err
}

func (s *PGRunStore) UpdateRun(ctx context.Context, runID, status string, details []byte) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1,
        details_json = COALESCE($2, details_json),
        completed_at = CASE WHEN $3 THEN now() ELSE completed_at END
    WHERE id = $4
  `, status, details, terminal(status), runID)
	return err
}

func (s *PGRunStore) GetRun(ctx context.Context, runID string) (Run, error) {
	if _, err := uuid.Parse(runID); err != nil {
		return Run{}, ErrRunNotFound
	}
	var run Run
	err := s.DB.QueryRow(ctx, `
    SELECT id::text, job_type, status, details_json, started_at, completed_at
    FROM job_runs
    WHERE id = $1
  `, runID).Scan(&run.ID, &run.JobType, &run.Status, &run.Details, &run.StartedAt, &run.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return run, err
}

// MemoryRunStore keeps runs in process for the sqlite and memory drivers.
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]Run
	now  func() time.Time
}

func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[string]Run), now: time.Now}
}

func (s *MemoryRunStore) CreateRun(_ context.Context, jobType, status string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run := Run{ID: uuid.NewString(), JobType: jobType, Status: status, StartedAt: s.now().UTC()}
	s.runs[run.ID] = run
	return run.ID, nil
}

func (s *MemoryRunStore) UpdateRun(_ context.Context, runID, status string, details []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return ErrRunNotFound
	}
	run.Status = status
	if details != nil {
		run.Details = append(json.RawMessage(nil), details...)
	}
	if terminal(status) {
		completed := s.now().UTC()
		run.CompletedAt = &completed
	}
	s.runs[runID] = run
	return nil
}

func (s *MemoryRunStore) GetRun(_ context.Context, runID string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return Run{}, ErrRunNotFound
	}
	return run, nil
}
