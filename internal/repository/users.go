package repository

import (
	"context"
	"database/sql"

	"parkgate/internal/database"
	"parkgate/internal/models"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, password_hash, role, is_active, created_at`

func scanUser(s scanner) (*models.User, error) {
	user := &models.User{}
	err := s.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.IsActive, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return user, err
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return user, err
}

func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	return r.db.QueryRowContext(ctx, query,
		user.ID, user.Username, user.PasswordHash, user.Role, user.IsActive,
	).Scan(&user.CreatedAt)
}

// Update writes every field; an empty PasswordHash keeps the stored one
func (r *UserRepository) Update(ctx context.Context, user *models.User) (bool, error) {
	query := `
		UPDATE users
		SET username = $2, role = $3, is_active = $4,
		    password_hash = COALESCE(NULLIF($5, ''), password_hash)
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, user.ID, user.Username, user.Role, user.IsActive, user.PasswordHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *UserRepository) Delete(ctx context.Context, id string) (bool, error) {
	return deleteByID(ctx, r.db, "users", id)
}

// deleteByID reports whether a row was removed
func deleteByID(ctx context.Context, db *database.DB, table, id string) (bool, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
