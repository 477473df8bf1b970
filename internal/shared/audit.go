package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arabica-erp/arabica-erp/internal/platform/docstore"
)

const auditJournal = "audit"

// AuditLog represents a record appended to the audit journal.
type AuditLog struct {
	ActorID  int64          `json:"actor_id"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       time.Time      `json:"at"`
}

// AuditLogger appends records to the audit journal.
type AuditLogger struct {
	store docstore.Store
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(store docstore.Store) *AuditLogger {
	return &AuditLogger{store: store}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	if log.At.IsZero() {
		log.At = time.Now().UTC()
	}
	value, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("audit: marshal: %w", err)
	}
	return l.store.Append(ctx, auditJournal, docstore.Record{
		ID:    uuid.NewString(),
		At:    log.At,
		Value: value,
	})
}
