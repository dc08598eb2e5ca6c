package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"tutor-chat/internal/models"
)

var (
	ErrChatNotFound = errors.New("chat not found")
	ErrSelfChat     = errors.New("cannot create chat with self")
)

// TutorChatRepository abstracts tutor chat persistence.
type TutorChatRepository interface {
	CreateOrGetChat(ctx context.Context, studentID int, tutorID int, creatorID int) (models.TutorChat, error)
	GetChat(ctx context.Context, chatID int) (models.TutorChat, error)
	ListChatsForUser(ctx context.Context, userID int) ([]models.TutorChat, error)
}

// TutorChatRepo is a sqlx implementation of TutorChatRepository.
type TutorChatRepo struct {
	db *sqlx.DB
}

// NewTutorChatRepo constructs a TutorChatRepo.
func NewTutorChatRepo(db *sqlx.DB) *TutorChatRepo {
	return &TutorChatRepo{db: db}
}

// CreateOrGetChat creates the chat between a student and a tutor if it does
// not already exist.
func (r *TutorChatRepo) CreateOrGetChat(ctx context.Context, studentID int, tutorID int, creatorID int) (models.TutorChat, error) {
	if studentID == tutorID {
		return models.TutorChat{}, ErrSelfChat
	}

	var chat models.TutorChat
	query := `SELECT id, student_id, tutor_id, creator_id, created_at FROM tutor_chats WHERE student_id=$1 AND tutor_id=$2`
	err := r.db.GetContext(ctx, &chat, query, studentID, tutorID)
	if err == nil {
		return chat, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.TutorChat{}, err
	}
	err = r.db.QueryRowxContext(ctx, `INSERT INTO tutor_chats (student_id, tutor_id, creator_id) VALUES ($1, $2, $3)
        ON CONFLICT (student_id, tutor_id) DO UPDATE SET student_id = EXCLUDED.student_id
        RETURNING id, student_id, tutor_id, creator_id, created_at`, studentID, tutorID, creatorID).
		Scan(&chat.ID, &chat.StudentID, &chat.TutorID, &chat.CreatorID, &chat.CreatedAt)
	return chat, err
}

// GetChat fetches a chat by id.
func (r *TutorChatRepo) GetChat(ctx context.Context, chatID int) (models.TutorChat, error) {
	var chat models.TutorChat
	err := r.db.GetContext(ctx, &chat, `SELECT id, student_id, tutor_id, creator_id, created_at FROM tutor_chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TutorChat{}, ErrChatNotFound
	}
	return chat, err
}

// ListChatsForUser returns chats the user takes part in.
func (r *TutorChatRepo) ListChatsForUser(ctx context.Context, userID int) ([]models.TutorChat, error) {
	var chats []models.TutorChat
	err := r.db.SelectContext(ctx, &chats, `SELECT id, student_id, tutor_id, creator_id, created_at FROM tutor_chats
        WHERE student_id=$1 OR tutor_id=$1 ORDER BY created_at DESC`, userID)
	return chats, err
}
