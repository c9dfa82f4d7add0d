package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/stockorders/internal/domain"
)

type userRepository struct {
	q querier
}

func (r *userRepository) Get(ctx context.Context, id int64) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var rec userRecord
	err := r.q.QueryRowContext(ctx, `
		SELECT id, username, email
		FROM users
		WHERE id = $1
	`, id).Scan(&rec.ID, &rec.Username, &rec.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.UserNotFound(id)
		}
		return domain.User{}, fmt.Errorf("select user: %w", err)
	}
	return rec.toDomain(), nil
}

func (r *userRepository) List(ctx context.Context) ([]domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.q.QueryContext(ctx, `SELECT id, username, email FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	result := make([]domain.User, 0)
	for rows.Next() {
		var rec userRecord
		if err := rows.Scan(&rec.ID, &rec.Username, &rec.Email); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		result = append(result, rec.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return result, nil
}

func (r *userRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := r.q.QueryRowContext(ctx, `
		INSERT INTO users (username, email)
		VALUES ($1, $2)
		RETURNING id
	`, user.Username, user.Email).Scan(&user.ID); err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

var _ domain.UserRepository = (*userRepository)(nil)
