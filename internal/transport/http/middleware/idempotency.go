package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const IdempotencyHeader = "Idempotency-Key"

var ErrIdempotencyConflict = errors.New("idempotency key conflicts with existing request")

// StoredResponse is the replayable outcome of a keyed request.
type StoredResponse struct {
	StatusCode int
	Body       json.RawMessage
}

type IdempotencyStore interface {
	// Check returns the stored response for key and endpoint. A key stored
	// with a different request hash yields ErrIdempotencyConflict.
	Check(ctx context.Context, endpoint, key, requestHash string) (StoredResponse, bool, error)
	// Save keeps the first response stored under key and endpoint and
	// returns whichever response is kept.
	Save(ctx context.Context, endpoint, key, requestHash string, response StoredResponse) (StoredResponse, error)
}

func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

type PGIdempotencyStore struct {
	db *pgxpool.Pool
}

func NewPGIdempotencyStore(db *pgxpool.Pool) *PGIdempotencyStore {
	return &PGIdempotencyStore{db: db}
}

func (s *PGIdempotencyStore) Check(ctx context.Context, endpoint, key, requestHash string) (StoredResponse, bool, error) {
	var storedHash string
	var stored StoredResponse
	err := s.db.QueryRow(ctx, `
    SELECT request_hash, status_code, response_json
    FROM idempotency_keys
    WHERE key = $1 AND endpoint = $2
  `, key, endpoint).Scan(&storedHash, &stored.StatusCode, &stored.Body)
	if errors.Is(err, pgx.ErrNoRows) {
		return StoredResponse{}, false, nil
	}
	if err != nil {
		return StoredResponse{}, false, err
	}
	if storedHash != requestHash {
		return StoredResponse{}, false, ErrIdempotencyConflict
	}
	return stored, true, nil
}

func (s *PGIdempotencyStore) Save(ctx context.Context, endpoint, key, requestHash string, response StoredResponse) (StoredResponse, error) {
	tag, err := s.db.Exec(ctx, `
    INSERT INTO idempotency_keys (key, endpoint, request_hash, status_code, response_json)
    VALUES ($1, $2, $3, $4, $5)
    ON CONFLICT (key, endpoint) DO NOTHING
  `, key, endpoint, requestHash, response.StatusCode, []byte(response.Body))
	if err != nil {
		return StoredResponse{}, err
	}
	if tag.RowsAffected() == 1 {
		return response, nil
	}
	stored, found, err := s.Check(ctx, endpoint, key, requestHash)
	if err != nil {
		return StoredResponse{}, err
	}
	if !found {
		return StoredResponse{}, errors.New("idempotency key vanished after conflict")
	}
	return stored, nil
}

type memoryEntry struct {
	hash     string
	response StoredResponse
}

// MemoryIdempotencyStore serves the sqlite and memory drivers.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryIdempotencyStore) Check(_ context.Context, endpoint, key, requestHash string) (StoredResponse, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[endpoint+"\x00"+key]
	if !ok {
		return StoredResponse{}, false, nil
	}
	if entry.hash != requestHash {
		return StoredResponse{}, false, ErrIdempotencyConflict
	}
	return entry.response, true, nil
}

func (s *MemoryIdempotencyStore) Save(_ context.Context, endpoint, key, requestHash string, response StoredResponse) (StoredResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := endpoint + "\x00" + key
	if entry, ok := s.entries[id]; ok {
		if entry.hash != requestHash {
			return StoredResponse{}, ErrIdempotencyConflict
		}
		return entry.response, nil
	}
	kept := StoredResponse{
		StatusCode: response.StatusCode,
		Body:       append(json.RawMessage(nil), response.Body...),
	}
	s.entries[id] = memoryEntry{hash: requestHash, response: kept}
	return kept, nil
}
