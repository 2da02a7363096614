// Package history records which operations were applied to each downloaded
// image.
package history

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shamspias/retouch"
)

// Entry is one recorded download.
type Entry struct {
	ID          string   `json:"id" parquet:"id"`
	SessionID   string   `json:"session_id" parquet:"session_id"`
	ImageName   string   `json:"image_name" parquet:"image_name"`
	Operations  []string `json:"operations" parquet:"operations,list"`
	CreatedAtMs int64    `json:"created_at_ms" parquet:"created_at_ms"`
}

// CreatedAt returns the record time.
func (e Entry) CreatedAt() time.Time {
	return time.UnixMilli(e.CreatedAtMs).UTC()
}

// NewEntry converts a session record into a storable entry with a fresh id.
func NewEntry(rec retouch.HistoryRecord) Entry {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return Entry{
		ID:          uuid.NewString(),
		SessionID:   rec.SessionID,
		ImageName:   rec.ImageName,
		Operations:  slices.Clone(rec.Operations),
		CreatedAtMs: created.UnixMilli(),
	}
}

// Memory keeps entries in process memory.
type Memory struct {
	mu      sync.RWMutex
	entries []Entry
}

// Record implements retouch.HistoryRecorder.
func (m *Memory) Record(ctx context.Context, rec retouch.HistoryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.entries = append(m.entries, NewEntry(rec))
	m.mu.Unlock()
	return nil
}

// List returns entries oldest first.
func (m *Memory) List(context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.entries), nil
}
