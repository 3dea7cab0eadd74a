package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"parkgate/internal/database"
	"parkgate/internal/models"
)

type TicketRepository struct {
	db *database.DB
}

func NewTicketRepository(db *database.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// AdmitFunc receives the locked zone and returns the zone after admission and
// the ticket to insert
type AdmitFunc func(zone models.Zone) (models.Zone, *models.Ticket, error)

// SettleFunc receives the locked ticket and its zone and returns both after
// checkout. zoneChanged false leaves the zone row untouched.
type SettleFunc func(ticket models.Ticket, zone models.Zone) (settled models.Ticket, next models.Zone, zoneChanged bool, err error)

const ticketColumns = `id, gate_id, zone_id, type, subscription_id, checkin_at, checkout_at, total_amount, breakdown`

func scanTicket(s scanner) (*models.Ticket, error) {
	t := &models.Ticket{}
	var (
		subscriptionID sql.NullString
		checkoutAt     sql.NullTime
		totalAmount    sql.NullFloat64
		breakdown      []byte
	)
	err := s.Scan(&t.ID, &t.GateID, &t.ZoneID, &t.Type, &subscriptionID, &t.CheckinAt, &checkoutAt, &totalAmount, &breakdown)
	if err != nil {
		return nil, err
	}

	if subscriptionID.Valid {
		t.SubscriptionID = &subscriptionID.String
	}
	if checkoutAt.Valid {
		t.CheckoutAt = &checkoutAt.Time
	}
	if totalAmount.Valid {
		t.TotalAmount = &totalAmount.Float64
	}
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &t.Breakdown); err != nil {
			return nil, fmt.Errorf("decode breakdown of ticket %s: %w", t.ID, err)
		}
	}
	return t, nil
}

func (r *TicketRepository) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	t, err := scanTicket(r.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (r *TicketRepository) List(ctx context.Context, filter models.TicketFilter) ([]models.Ticket, error) {
	var args []any
	argIndex := 1

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE 1=1`

	switch filter.Status {
	case "open":
		query += " AND checkout_at IS NULL"
	case "closed":
		query += " AND checkout_at IS NOT NULL"
	}
	if filter.GateID != "" {
		query += fmt.Sprintf(" AND gate_id = $%d", argIndex)
		args = append(args, filter.GateID)
		argIndex++
	}
	if filter.ZoneID != "" {
		query += fmt.Sprintf(" AND zone_id = $%d", argIndex)
		args = append(args, filter.ZoneID)
		argIndex++
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY checkin_at DESC LIMIT $%d", argIndex)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := []models.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

// Admit locks the zone, applies fn and inserts the resulting ticket in one
// transaction. Both results are nil when the zone does not exist.
func (r *TicketRepository) Admit(ctx context.Context, zoneID string, fn AdmitFunc) (*models.Ticket, *models.Zone, error) {
	var (
		ticket *models.Ticket
		stored *models.Zone
	)
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		zone, err := lockZone(ctx, tx, zoneID)
		if err != nil || zone == nil {
			return err
		}

		next, t, err := fn(*zone)
		if err != nil {
			return err
		}

		if stored, err = writeZone(ctx, tx, next); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO tickets (id, gate_id, zone_id, type, subscription_id, checkin_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			t.ID, t.GateID, t.ZoneID, t.Type, t.SubscriptionID, t.CheckinAt)
		if err != nil {
			return fmt.Errorf("insert ticket: %w", err)
		}
		ticket = t
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return ticket, stored, nil
}

// ApplySettlement copies onto stored the columns Settle writes back. Anything
// else fn changed on the ticket is not persisted.
func ApplySettlement(stored, next models.Ticket) models.Ticket {
	stored.Type = next.Type
	stored.SubscriptionID = next.SubscriptionID
	stored.CheckoutAt = next.CheckoutAt
	stored.TotalAmount = next.TotalAmount
	stored.Breakdown = next.Breakdown
	return stored
}

// Settle locks the ticket and its zone, applies fn and stores both. Both
// results are nil when the ticket does not exist.
func (r *TicketRepository) Settle(ctx context.Context, ticketID string, fn SettleFunc) (*models.Ticket, *models.Zone, error) {
	var (
		settled *models.Ticket
		stored  *models.Zone
	)
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		ticket, err := scanTicket(tx.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1 FOR UPDATE`, ticketID))
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("lock ticket %s: %w", ticketID, err)
		}

		zone, err := lockZone(ctx, tx, ticket.ZoneID)
		if err != nil {
			return err
		}
		if zone == nil {
			return fmt.Errorf("zone %s of ticket %s is missing", ticket.ZoneID, ticketID)
		}

		out, next, zoneChanged, err := fn(*ticket, *zone)
		if err != nil {
			return err
		}
		t := ApplySettlement(*ticket, out)

		breakdown, err := json.Marshal(t.Breakdown)
		if err != nil {
			return fmt.Errorf("encode breakdown: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE tickets
			SET type = $2, checkout_at = $3, total_amount = $4, breakdown = $5, subscription_id = $6
			WHERE id = $1`,
			t.ID, t.Type, t.CheckoutAt, t.TotalAmount, breakdown, t.SubscriptionID)
		if err != nil {
			return fmt.Errorf("update ticket %s: %w", ticketID, err)
		}

		if zoneChanged {
			if stored, err = writeZone(ctx, tx, next); err != nil {
				return err
			}
		} else {
			stored = zone
		}
		settled = &t
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return settled, stored, nil
}
