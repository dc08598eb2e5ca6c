package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"tutor-chat/internal/models"
)

// ReactionRepository toggles emoji reactions.
type ReactionRepository interface {
	Toggle(ctx context.Context, messageID int, userID int, emoji string) (models.ToggleResult, error)
}

// ReactionRepo is a sqlx-backed implementation.
type ReactionRepo struct {
	db *sqlx.DB
}

// NewReactionRepo constructs a ReactionRepo.
func NewReactionRepo(db *sqlx.DB) *ReactionRepo {
	return &ReactionRepo{db: db}
}

// Toggle removes the (message, user, emoji) reaction if present and adds
// it otherwise.
func (r *ReactionRepo) Toggle(ctx context.Context, messageID int, userID int, emoji string) (models.ToggleResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.ToggleResult{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	result := models.ToggleResult{Reaction: models.Reaction{MessageID: messageID, UserID: userID, Emoji: emoji}}
	err = tx.QueryRowxContext(ctx, `DELETE FROM message_reactions WHERE message_id=$1 AND user_id=$2 AND emoji=$3 RETURNING id`, messageID, userID, emoji).
		Scan(&result.Reaction.ID)
	switch {
	case err == nil:
		result.Action = models.ReactionRemoved
	case errors.Is(err, sql.ErrNoRows):
		if err = tx.QueryRowxContext(ctx, `INSERT INTO message_reactions (message_id, user_id, emoji) VALUES ($1, $2, $3) RETURNING id`, messageID, userID, emoji).
			Scan(&result.Reaction.ID); err != nil {
			return models.ToggleResult{}, err
		}
		result.Action = models.ReactionAdded
	default:
		return models.ToggleResult{}, err
	}

	var user models.Author
	lookupErr := tx.GetContext(ctx, &user, `SELECT id, first_name, last_name, avatar FROM users WHERE id=$1`, userID)
	if lookupErr != nil && !errors.Is(lookupErr, sql.ErrNoRows) {
		err = lookupErr
		return models.ToggleResult{}, err
	}
	user.ID = userID
	result.Reaction.User = user

	if err = tx.Commit(); err != nil {
		return models.ToggleResult{}, err
	}
	return result, nil
}
