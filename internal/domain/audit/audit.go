package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	ActionSlipGenerate = "payroll.slip.generate"
	ActionSlipStatus   = "payroll.slip.status"
	ActionRun          = "payroll.run"
)

type Entry struct {
	Action     string
	EntityType string
	EntityID   string
	RequestID  string
	IP         string
	Before     any
	After      any
}

type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

type Service struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Service {
	return &Service{DB: db}
}

func (s *Service) Record(ctx context.Context, entry Entry) error {
	beforeJSON, err := marshalOptional(entry.Before)
	if err != nil {
		return err
	}
	afterJSON, err := marshalOptional(entry.After)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
    INSERT INTO audit_events (action, entity_type, entity_id, request_id, ip, before_json, after_json)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
  `, entry.Action, entry.EntityType, entry.EntityID, entry.RequestID, entry.IP, beforeJSON, afterJSON)
	return err
}

// LogRecorder writes audit entries to the structured log when no audit
// table is available.
type LogRecorder struct {
	Logger *slog.Logger
}

func (r LogRecorder) Record(ctx context.Context, entry Entry) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "audit",
		"action", entry.Action,
		"entityType", entry.EntityType,
		"entityId", entry.EntityID,
		"requestId", entry.RequestID,
		"ip", entry.IP,
	)
	return nil
}

func marshalOptional(value any) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	return json.Marshal(value)
}
