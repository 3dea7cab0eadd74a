package repository

import (
	"context"

	"parkgate/internal/database"
	"parkgate/internal/models"
)

// WindowRepository stores rush hours and vacations. Both apply to every category.
type WindowRepository struct {
	db *database.DB
}

func NewWindowRepository(db *database.DB) *WindowRepository {
	return &WindowRepository{db: db}
}

func (r *WindowRepository) ListRushHours(ctx context.Context) ([]models.RushHour, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, week_day, from_time, to_time FROM rush_hours ORDER BY week_day, from_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rushHours := []models.RushHour{}
	for rows.Next() {
		var rh models.RushHour
		if err := rows.Scan(&rh.ID, &rh.WeekDay, &rh.From, &rh.To); err != nil {
			return nil, err
		}
		rushHours = append(rushHours, rh)
	}
	return rushHours, rows.Err()
}

func (r *WindowRepository) CreateRushHour(ctx context.Context, rh *models.RushHour) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rush_hours (id, week_day, from_time, to_time) VALUES ($1, $2, $3, $4)`,
		rh.ID, rh.WeekDay, rh.From, rh.To)
	return err
}

func (r *WindowRepository) UpdateRushHour(ctx context.Context, rh *models.RushHour) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE rush_hours SET week_day = $2, from_time = $3, to_time = $4 WHERE id = $1`,
		rh.ID, rh.WeekDay, rh.From, rh.To)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *WindowRepository) DeleteRushHour(ctx context.Context, id string) (bool, error) {
	return deleteByID(ctx, r.db, "rush_hours", id)
}

func (r *WindowRepository) ListVacations(ctx context.Context) ([]models.Vacation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, to_char(from_date, 'YYYY-MM-DD'), to_char(to_date, 'YYYY-MM-DD')
		FROM vacations
		ORDER BY from_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	vacations := []models.Vacation{}
	for rows.Next() {
		var v models.Vacation
		if err := rows.Scan(&v.ID, &v.Name, &v.From, &v.To); err != nil {
			return nil, err
		}
		vacations = append(vacations, v)
	}
	return vacations, rows.Err()
}

func (r *WindowRepository) CreateVacation(ctx context.Context, v *models.Vacation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO vacations (id, name, from_date, to_date) VALUES ($1, $2, $3, $4)`,
		v.ID, v.Name, v.From, v.To)
	return err
}

func (r *WindowRepository) UpdateVacation(ctx context.Context, v *models.Vacation) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE vacations SET name = $2, from_date = $3, to_date = $4 WHERE id = $1`,
		v.ID, v.Name, v.From, v.To)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *WindowRepository) DeleteVacation(ctx context.Context, id string) (bool, error) {
	return deleteByID(ctx, r.db, "vacations", id)
}
