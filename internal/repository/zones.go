package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"parkgate/internal/database"
	"parkgate/internal/models"
)

type ZoneRepository struct {
	db *database.DB
}

func NewZoneRepository(db *database.DB) *ZoneRepository {
	return &ZoneRepository{db: db}
}

// OpenCounts is the number of open tickets in a zone by type
type OpenCounts struct {
	Visitors    int
	Subscribers int
}

// ZoneMutator receives the locked zone and its open ticket counts and returns
// the zone to store. Returning false leaves the row untouched.
type ZoneMutator func(zone models.Zone, open OpenCounts) (models.Zone, bool, error)

const zoneSelect = `
	SELECT z.id, z.name, z.category_id, z.gate_ids, z.total_slots, z.reserved_slots,
	       z.occupied, z.free, z.reserved, z.available_for_visitors, z.available_for_subscribers,
	       z.open, z.version, z.updated_at, c.rate_normal, c.rate_special
	FROM zones z
	JOIN categories c ON c.id = z.category_id`

func scanZone(s scanner) (*models.Zone, error) {
	z := &models.Zone{}
	err := s.Scan(
		&z.ID,
		&z.Name,
		&z.CategoryID,
		pq.Array(&z.GateIDs),
		&z.TotalSlots,
		&z.ReservedSlots,
		&z.Occupied,
		&z.Free,
		&z.Reserved,
		&z.AvailableForVisitors,
		&z.AvailableForSubscribers,
		&z.Open,
		&z.Version,
		&z.UpdatedAt,
		&z.RateNormal,
		&z.RateSpecial,
	)
	if err != nil {
		return nil, err
	}
	return z, nil
}

func (r *ZoneRepository) queryZones(ctx context.Context, query string, args ...any) ([]models.Zone, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	zones := []models.Zone{}
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		zones = append(zones, *z)
	}
	return zones, rows.Err()
}

func (r *ZoneRepository) List(ctx context.Context) ([]models.Zone, error) {
	return r.queryZones(ctx, zoneSelect+` ORDER BY z.name, z.id`)
}

func (r *ZoneRepository) ListByGate(ctx context.Context, gateID string) ([]models.Zone, error) {
	return r.queryZones(ctx, zoneSelect+` WHERE $1 = ANY(z.gate_ids) ORDER BY z.name, z.id`, gateID)
}

func (r *ZoneRepository) GetByID(ctx context.Context, id string) (*models.Zone, error) {
	z, err := scanZone(r.db.QueryRowContext(ctx, zoneSelect+` WHERE z.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return z, err
}

func (r *ZoneRepository) Create(ctx context.Context, z *models.Zone) error {
	query := `
		INSERT INTO zones (id, name, category_id, gate_ids, total_slots, reserved_slots,
		                   occupied, free, reserved, available_for_visitors, available_for_subscribers, open, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1)`

	_, err := r.db.ExecContext(ctx, query,
		z.ID, z.Name, z.CategoryID, pq.Array(z.GateIDs), z.TotalSlots, z.ReservedSlots,
		z.Occupied, z.Free, z.Reserved, z.AvailableForVisitors, z.AvailableForSubscribers, z.Open)
	if err != nil {
		return err
	}

	created, err := r.GetByID(ctx, z.ID)
	if err != nil {
		return err
	}
	*z = *created
	return nil
}

// Mutate locks the zone, hands it to fn and stores the result with a bumped
// version. Returns nil when the zone does not exist.
func (r *ZoneRepository) Mutate(ctx context.Context, id string, fn ZoneMutator) (*models.Zone, error) {
	var result *models.Zone
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		zone, err := lockZone(ctx, tx, id)
		if err != nil || zone == nil {
			return err
		}

		open, err := countOpen(ctx, tx, id)
		if err != nil {
			return err
		}

		next, changed, err := fn(*zone, open)
		if err != nil {
			return err
		}
		if !changed {
			result = zone
			return nil
		}

		result, err = writeZone(ctx, tx, next)
		return err
	})
	return result, err
}

// CountOpenByZone returns open ticket counts for every zone that has any
func (r *ZoneRepository) CountOpenByZone(ctx context.Context) (map[string]OpenCounts, error) {
	rows, err := r.db.QueryWithRetry(ctx, `
		SELECT zone_id,
		       COUNT(*) FILTER (WHERE type = 'visitor'),
		       COUNT(*) FILTER (WHERE type = 'subscriber')
		FROM tickets
		WHERE checkout_at IS NULL
		GROUP BY zone_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]OpenCounts)
	for rows.Next() {
		var zoneID string
		var c OpenCounts
		if err := rows.Scan(&zoneID, &c.Visitors, &c.Subscribers); err != nil {
			return nil, err
		}
		counts[zoneID] = c
	}
	return counts, rows.Err()
}

func (r *ZoneRepository) Delete(ctx context.Context, id string) (bool, error) {
	return deleteByID(ctx, r.db, "zones", id)
}

func lockZone(ctx context.Context, tx *sql.Tx, id string) (*models.Zone, error) {
	z, err := scanZone(tx.QueryRowContext(ctx, zoneSelect+` WHERE z.id = $1 FOR UPDATE OF z`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock zone %s: %w", id, err)
	}
	return z, nil
}

func countOpen(ctx context.Context, tx *sql.Tx, zoneID string) (OpenCounts, error) {
	var c OpenCounts
	err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE type = 'visitor'),
		       COUNT(*) FILTER (WHERE type = 'subscriber')
		FROM tickets
		WHERE zone_id = $1 AND checkout_at IS NULL`, zoneID).Scan(&c.Visitors, &c.Subscribers)
	return c, err
}

// writeZone stores every mutable column, bumps the version and re-reads the
// row so category rates reflect a changed category
func writeZone(ctx context.Context, tx *sql.Tx, z models.Zone) (*models.Zone, error) {
	query := `
		UPDATE zones
		SET name = $2, category_id = $3, gate_ids = $4, total_slots = $5, reserved_slots = $6,
		    occupied = $7, free = $8, reserved = $9,
		    available_for_visitors = $10, available_for_subscribers = $11,
		    open = $12, version = version + 1, updated_at = NOW()
		WHERE id = $1`

	_, err := tx.ExecContext(ctx, query,
		z.ID, z.Name, z.CategoryID, pq.Array(z.GateIDs), z.TotalSlots, z.ReservedSlots,
		z.Occupied, z.Free, z.Reserved, z.AvailableForVisitors, z.AvailableForSubscribers, z.Open)
	if err != nil {
		return nil, fmt.Errorf("update zone %s: %w", z.ID, err)
	}

	stored, err := scanZone(tx.QueryRowContext(ctx, zoneSelect+` WHERE z.id = $1`, z.ID))
	if err != nil {
		return nil, fmt.Errorf("reload zone %s: %w", z.ID, err)
	}
	return stored, nil
}
