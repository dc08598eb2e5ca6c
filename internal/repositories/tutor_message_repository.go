package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"tutor-chat/internal/models"
)

// TutorMessageRepository defines interactions for tutor chat messages.
type TutorMessageRepository interface {
	CreateTutorMessage(ctx context.Context, chatID int, senderID int, receiverID int, p Payload) (models.TutorMessage, error)
	ListTutorMessages(ctx context.Context, chatID int) ([]models.TutorMessage, error)
}

// TutorMessageRepo is a sqlx-backed repository.
type TutorMessageRepo struct {
	db *sqlx.DB
}

// NewTutorMessageRepo constructs TutorMessageRepo.
func NewTutorMessageRepo(db *sqlx.DB) *TutorMessageRepo {
	return &TutorMessageRepo{db: db}
}

const tutorMessageSelect = `SELECT m.id, m.chat_id, m.sender_id, m.receiver_id, m.content, m.type,
        m.audio_url, m.file_url, m.file_name, m.file_type, m.file_size, m.created_at,
        m.sender_id AS "sender.id",
        COALESCE(u.first_name, '') AS "sender.first_name",
        COALESCE(u.last_name, '') AS "sender.last_name",
        u.avatar AS "sender.avatar"
        FROM tutor_messages m LEFT JOIN users u ON u.id = m.sender_id`

// CreateTutorMessage stores a message in a tutor chat.
func (r *TutorMessageRepo) CreateTutorMessage(ctx context.Context, chatID int, senderID int, receiverID int, p Payload) (models.TutorMessage, error) {
	var id int
	err := r.db.QueryRowxContext(ctx, `INSERT INTO tutor_messages (chat_id, sender_id, receiver_id, content, type, audio_url, file_url, file_name, file_type, file_size)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		chatID, senderID, receiverID, p.Content, p.Type, p.AudioURL, p.FileURL, p.FileName, p.FileType, p.FileSize).Scan(&id)
	if err != nil {
		return models.TutorMessage{}, err
	}
	var msg models.TutorMessage
	err = r.db.GetContext(ctx, &msg, tutorMessageSelect+` WHERE m.id=$1`, id)
	return msg, err
}

// ListTutorMessages returns the chat history ordered by id.
func (r *TutorMessageRepo) ListTutorMessages(ctx context.Context, chatID int) ([]models.TutorMessage, error) {
	var msgs []models.TutorMessage
	err := r.db.SelectContext(ctx, &msgs, tutorMessageSelect+` WHERE m.chat_id=$1 ORDER BY m.id ASC`, chatID)
	return msgs, err
}
