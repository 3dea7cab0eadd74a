package repository

import (
	"context"
	"database/sql"

	"parkgate/internal/database"
	"parkgate/internal/models"
)

type CategoryRepository struct {
	db *database.DB
}

func NewCategoryRepository(db *database.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

const categoryColumns = `id, name, description, rate_normal, rate_special`

func scanCategory(s scanner) (*models.Category, error) {
	c := &models.Category{}
	if err := s.Scan(&c.ID, &c.Name, &c.Description, &c.RateNormal, &c.RateSpecial); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (r *CategoryRepository) Create(ctx context.Context, c *models.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, description, rate_normal, rate_special) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Name, c.Description, c.RateNormal, c.RateSpecial)
	return err
}

func (r *CategoryRepository) Update(ctx context.Context, c *models.Category) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = $2, description = $3, rate_normal = $4, rate_special = $5 WHERE id = $1`,
		c.ID, c.Name, c.Description, c.RateNormal, c.RateSpecial)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *CategoryRepository) Delete(ctx context.Context, id string) (bool, error) {
	return deleteByID(ctx, r.db, "categories", id)
}
