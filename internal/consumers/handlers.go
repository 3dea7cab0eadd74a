package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"parkgate/internal/messaging"
	"parkgate/internal/metrics"
	"parkgate/internal/models"
	"parkgate/internal/search"
)

type AuditWriter interface {
	Insert(ctx context.Context, e *models.AuditEntry) error
}

type TicketIndexer interface {
	IndexTicket(ctx context.Context, doc search.TicketDocument) error
}

// Handlers process bus messages. A returned error leaves the message
// unacknowledged so NATS Streaming redelivers it; undecodable messages are
// acknowledged and dropped.
type Handlers struct {
	audit   AuditWriter
	archive TicketIndexer
	timeout time.Duration
}

// NewHandlers builds the handlers. archive may be nil when Elasticsearch is
// disabled; closed tickets are then acknowledged without indexing.
func NewHandlers(audit AuditWriter, archive TicketIndexer) *Handlers {
	return &Handlers{audit: audit, archive: archive, timeout: 10 * time.Second}
}

// HandleAdminUpdate persists one admin-update into the audit log. The update
// id is the primary key, so redelivery stores it once.
func (h *Handlers) HandleAdminUpdate(data []byte) error {
	var update models.AdminUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		slog.Error("Failed to unmarshal admin update", "error", err)
		metrics.ConsumedMessages.WithLabelValues(messaging.SubjectAdminUpdate, "malformed").Inc()
		return nil
	}
	if update.ID == "" {
		slog.Warn("Dropping admin update without id", "action", update.Action)
		metrics.ConsumedMessages.WithLabelValues(messaging.SubjectAdminUpdate, "malformed").Inc()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	entry := &models.AuditEntry{
		ID:         update.ID,
		Action:     update.Action,
		AdminID:    update.AdminID,
		TargetType: update.TargetType,
		TargetID:   update.TargetID,
		Timestamp:  update.Timestamp,
	}
	if err := h.audit.Insert(ctx, entry); err != nil {
		metrics.ConsumedMessages.WithLabelValues(messaging.SubjectAdminUpdate, "error").Inc()
		return fmt.Errorf("failed to store audit entry %s: %w", update.ID, err)
	}

	metrics.ConsumedMessages.WithLabelValues(messaging.SubjectAdminUpdate, "ok").Inc()
	slog.Info("Audit entry stored", "id", update.ID, "action", update.Action, "admin_id", update.AdminID)
	return nil
}

// HandleTicketClosed indexes a closed ticket into the archive
func (h *Handlers) HandleTicketClosed(data []byte) error {
	var event models.TicketClosedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Error("Failed to unmarshal ticket closed event", "error", err)
		metrics.ConsumedMessages.WithLabelValues(messaging.SubjectTicketClosed, "malformed").Inc()
		return nil
	}
	if h.archive == nil {
		metrics.ConsumedMessages.WithLabelValues(messaging.SubjectTicketClosed, "skipped").Inc()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	doc := search.TicketDocument{Ticket: event.Ticket, DurationHours: event.DurationHours}
	if err := h.archive.IndexTicket(ctx, doc); err != nil {
		metrics.ConsumedMessages.WithLabelValues(messaging.SubjectTicketClosed, "error").Inc()
		return fmt.Errorf("failed to index ticket %s: %w", event.Ticket.ID, err)
	}

	metrics.ConsumedMessages.WithLabelValues(messaging.SubjectTicketClosed, "ok").Inc()
	slog.Debug("Ticket archived", "ticket_id", event.Ticket.ID)
	return nil
}
