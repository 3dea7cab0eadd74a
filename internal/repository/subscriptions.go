package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"parkgate/internal/database"
	"parkgate/internal/models"
)

type SubscriptionRepository struct {
	db *database.DB
}

func NewSubscriptionRepository(db *database.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `id, user_name, category_id, active, starts_at, expires_at`

func scanSubscription(s scanner) (*models.Subscription, error) {
	sub := &models.Subscription{}
	if err := s.Scan(&sub.ID, &sub.UserName, &sub.Category, &sub.Active, &sub.StartsAt, &sub.ExpiresAt); err != nil {
		return nil, err
	}
	return sub, nil
}

func (r *SubscriptionRepository) GetByID(ctx context.Context, id string) (*models.Subscription, error) {
	sub, err := scanSubscription(r.db.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cars, err := r.carsFor(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	sub.Cars = cars[id]
	return sub, nil
}

func (r *SubscriptionRepository) List(ctx context.Context) ([]models.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions ORDER BY user_name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := []models.Subscription{}
	var ids []string
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
		ids = append(ids, sub.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cars, err := r.carsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		subs[i].Cars = cars[subs[i].ID]
	}
	return subs, nil
}

// carsFor returns cars keyed by subscription id, in insertion order
func (r *SubscriptionRepository) carsFor(ctx context.Context, ids []string) (map[string][]models.Car, error) {
	out := make(map[string][]models.Car, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, selectCars, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var car models.Car
		if err := rows.Scan(&id, &car.Plate, &car.Brand, &car.Model, &car.Color); err != nil {
			return nil, err
		}
		out[id] = append(out[id], car)
	}
	return out, rows.Err()
}

// Save inserts or fully replaces a subscription and its cars
func (r *SubscriptionRepository) Save(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO subscriptions (id, user_name, category_id, active, starts_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE
			SET user_name = EXCLUDED.user_name, category_id = EXCLUDED.category_id,
			    active = EXCLUDED.active, starts_at = EXCLUDED.starts_at, expires_at = EXCLUDED.expires_at`,
			sub.ID, sub.UserName, sub.Category, sub.Active, sub.StartsAt, sub.ExpiresAt)
		if err != nil {
			return fmt.Errorf("save subscription: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM subscription_cars WHERE subscription_id = $1`, sub.ID); err != nil {
			return fmt.Errorf("clear cars: %w", err)
		}
		for _, args := range carRows(sub) {
			if _, err := tx.ExecContext(ctx, insertCar, args...); err != nil {
				return fmt.Errorf("insert car %s: %w", args[1], err)
			}
		}
		return nil
	})
}

const (
	selectCars = `
		SELECT subscription_id, plate, brand, model, color
		FROM subscription_cars
		WHERE subscription_id = ANY($1)
		ORDER BY subscription_id, position`

	insertCar = `
		INSERT INTO subscription_cars (subscription_id, plate, brand, model, color, position)
		VALUES ($1, $2, $3, $4, $5, $6)`
)

// carRows are the insertCar arguments for every car, positioned in list order
func carRows(sub *models.Subscription) [][]any {
	rows := make([][]any, 0, len(sub.Cars))
	for i, car := range sub.Cars {
		rows = append(rows, []any{sub.ID, car.Plate, car.Brand, car.Model, car.Color, i})
	}
	return rows
}

func (r *SubscriptionRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM subscriptions WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *SubscriptionRepository) Delete(ctx context.Context, id string) (bool, error) {
	return deleteByID(ctx, r.db, "subscriptions", id)
}
