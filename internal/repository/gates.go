package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"parkgate/internal/database"
	"parkgate/internal/models"
)

type GateRepository struct {
	db *database.DB
}

func NewGateRepository(db *database.DB) *GateRepository {
	return &GateRepository{db: db}
}

// zone ids are derived from zones.gate_ids
const gateSelect = `
	SELECT g.id, g.name, g.location,
	       COALESCE(ARRAY(SELECT z.id FROM zones z WHERE g.id = ANY(z.gate_ids) ORDER BY z.id), '{}')
	FROM gates g`

func scanGate(s scanner) (*models.Gate, error) {
	g := &models.Gate{}
	if err := s.Scan(&g.ID, &g.Name, &g.Location, pq.Array(&g.ZoneIDs)); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *GateRepository) List(ctx context.Context) ([]models.Gate, error) {
	rows, err := r.db.QueryContext(ctx, gateSelect+` ORDER BY g.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gates []models.Gate
	for rows.Next() {
		g, err := scanGate(rows)
		if err != nil {
			return nil, err
		}
		gates = append(gates, *g)
	}
	return gates, rows.Err()
}

func (r *GateRepository) GetByID(ctx context.Context, id string) (*models.Gate, error) {
	g, err := scanGate(r.db.QueryRowContext(ctx, gateSelect+` WHERE g.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return g, err
}

func (r *GateRepository) Create(ctx context.Context, g *models.Gate) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO gates (id, name, location) VALUES ($1, $2, $3)`, g.ID, g.Name, g.Location)
	return err
}

func (r *GateRepository) Update(ctx context.Context, g *models.Gate) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE gates SET name = $2, location = $3 WHERE id = $1`, g.ID, g.Name, g.Location)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *GateRepository) Delete(ctx context.Context, id string) (bool, error) {
	return deleteByID(ctx, r.db, "gates", id)
}
