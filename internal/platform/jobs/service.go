package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
)

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var ErrQueueFull = errors.New("job queue full")

type Func func(context.Context) (any, error)

type Service struct {
	runs  RunStore
	queue chan job
}

type job struct {
	RunID string
	Type  string
	Run   Func
}

func New(runs RunStore, queueSize int) *Service {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Service{
		runs:  runs,
		queue: make(chan job, queueSize),
	}
}

// Start runs the worker until ctx is cancelled. Queued jobs run under ctx,
// not under the request that enqueued them.
func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
}

// Enqueue records a queued run and hands it to the worker.
func (s *Service) Enqueue(ctx context.Context, jobType string, run Func) (string, error) {
	runID, err := s.runs.CreateRun(ctx, jobType, StatusQueued)
	if err != nil {
		return "", err
	}
	select {
	case s.queue <- job{RunID: runID, Type: jobType, Run: run}:
		return runID, nil
	default:
		slog.Warn("job queue full", "jobType", jobType, "runId", runID)
		s.finish(ctx, runID, StatusFailed, map[string]string{"error": ErrQueueFull.Error()})
		return runID, ErrQueueFull
	}
}

// RunNow executes the job inline and records its outcome.
func (s *Service) RunNow(ctx context.Context, jobType string, run Func) (string, any, error) {
	runID, err := s.runs.CreateRun(ctx, jobType, StatusRunning)
	if err != nil {
		slog.Warn("job run insert failed", "jobType", jobType, "err", err)
		runID = ""
	}
	details, err := s.execute(ctx, job{RunID: runID, Type: jobType, Run: run})
	return runID, details, err
}

func (s *Service) Get(ctx context.Context, runID string) (Run, error) {
	return s.runs.GetRun(ctx, runID)
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if err := s.runs.UpdateRun(ctx, j.RunID, StatusRunning, nil); err != nil {
				slog.Warn("job run update failed", "runId", j.RunID, "err", err)
			}
			if _, err := s.execute(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "runId", j.RunID, "err", err)
			}
		}
	}
}

func (s *Service) execute(ctx context.Context, j job) (any, error) {
	details, err := j.Run(ctx)
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
		if details == nil {
			details = map[string]string{"error": err.Error()}
		}
	}
	if j.RunID != "" {
		s.finish(ctx, j.RunID, status, details)
	}
	return details, err
}

func (s *Service) finish(ctx context.Context, runID, status string, details any) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		slog.Warn("job details marshal failed", "runId", runID, "err", err)
		detailsJSON = []byte("{}")
	}
	if err := s.runs.UpdateRun(context.WithoutCancel(ctx), runID, status, detailsJSON); err != nil {
		slog.Warn("job run update failed", "runId", runID, "err", err)
	}
}
