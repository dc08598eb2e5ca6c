package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"tutor-chat/internal/models"
)

// UserRepository keeps the author snapshots joined into messages.
type UserRepository interface {
	Upsert(ctx context.Context, user models.Author) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Upsert stores the latest profile of a user.
func (r *UserRepo) Upsert(ctx context.Context, user models.Author) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (id, first_name, last_name, avatar) VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO UPDATE SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name, avatar = EXCLUDED.avatar`,
		user.ID, user.FirstName, user.LastName, user.Avatar)
	return err
}
