// Package jobs contains the background job handlers run by the worker.
package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/arcana/internal/storage"
	"github.com/DukeRupert/arcana/internal/worker"
	"github.com/google/uuid"
)

// MaxArchiveSize bounds a single archived reading.
const MaxArchiveSize = 1 << 20

// ArchiveReadingHandler writes generated readings to object storage as JSON.
type ArchiveReadingHandler struct {
	storage storage.Storage
	logger  *slog.Logger
}

// NewArchiveReadingHandler creates a new handler for reading archive jobs.
func NewArchiveReadingHandler(store storage.Storage, logger *slog.Logger) *ArchiveReadingHandler {
	return &ArchiveReadingHandler{
		storage: store,
		logger:  logger,
	}
}

// Type returns the job type identifier.
func (h *ArchiveReadingHandler) Type() string {
	return worker.JobTypeArchiveReading
}

// Handle stores the reading. Re-running a job after a crash overwrites
// the same key, so retries are idempotent.
func (h *ArchiveReadingHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.ArchiveReadingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}
	r := p.Reading
	if r == nil || r.ID == uuid.Nil || r.UserID == uuid.Nil {
		return worker.NewPermanentError(fmt.Errorf("payload has no reading"))
	}

	body, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return worker.NewPermanentError(fmt.Errorf("marshal reading: %w", err))
	}

	key := storage.ReadingKey(r.UserID, r.ID, r.CreatedAt)
	err = h.storage.Put(ctx, key, bytes.NewReader(body), storage.PutOptions{
		ContentType: "application/json",
		MaxSize:     MaxArchiveSize,
		Overwrite:   true,
	})
	if err != nil {
		if storage.IsTooLarge(err) {
			return worker.NewPermanentError(err)
		}
		return fmt.Errorf("store reading: %w", err)
	}

	h.logger.Info("Reading archived",
		"reading_id", r.ID,
		"user_id", r.UserID,
		"key", key,
		"bytes", len(body),
	)
	return nil
}
