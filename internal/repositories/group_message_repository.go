package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"tutor-chat/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// Payload is the typed body of a message being stored.
type Payload struct {
	Content  string
	Type     models.MessageType
	AudioURL *string
	FileURL  *string
	FileName *string
	FileType *string
	FileSize *int64
}

// GroupMessageRepository defines interactions for group messages.
type GroupMessageRepository interface {
	CreateGroupMessage(ctx context.Context, groupID int, authorID int, p Payload) (models.Message, error)
	ListGroupMessages(ctx context.Context, groupID int) ([]models.Message, error)
	ListPinned(ctx context.Context, groupID int) ([]models.Message, error)
	GetGroupMessage(ctx context.Context, groupID int, messageID int) (models.Message, error)
	UpdateContent(ctx context.Context, groupID int, messageID int, content string) (models.Message, error)
	Delete(ctx context.Context, groupID int, messageID int) error
	SetPinned(ctx context.Context, groupID int, messageID int, pinned bool, by int) (models.Message, error)
}

// GroupMessageRepo is a sqlx-backed implementation.
type GroupMessageRepo struct {
	db *sqlx.DB
}

// NewGroupMessageRepo constructs a GroupMessageRepo.
func NewGroupMessageRepo(db *sqlx.DB) *GroupMessageRepo {
	return &GroupMessageRepo{db: db}
}

const groupMessageColumns = `m.id, m.content, m.type, m.audio_url, m.file_url, m.file_name, m.file_type, m.file_size,
        m.is_pinned, m.pinned_at, m.pinned_by, m.author_id, m.created_at,
        m.author_id AS "author.id",
        COALESCE(u.first_name, '') AS "author.first_name",
        COALESCE(u.last_name, '') AS "author.last_name",
        u.avatar AS "author.avatar"`

const groupMessageFrom = ` FROM group_messages m LEFT JOIN users u ON u.id = m.author_id`

// CreateGroupMessage persists a group message.
func (r *GroupMessageRepo) CreateGroupMessage(ctx context.Context, groupID int, authorID int, p Payload) (models.Message, error) {
	var id int
	err := r.db.QueryRowxContext(ctx, `INSERT INTO group_messages (group_id, author_id, content, type, audio_url, file_url, file_name, file_type, file_size)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		groupID, authorID, p.Content, p.Type, p.AudioURL, p.FileURL, p.FileName, p.FileType, p.FileSize).Scan(&id)
	if err != nil {
		return models.Message{}, err
	}
	return r.GetGroupMessage(ctx, groupID, id)
}

// ListGroupMessages returns live messages ordered by id, with reactions.
func (r *GroupMessageRepo) ListGroupMessages(ctx context.Context, groupID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+groupMessageColumns+groupMessageFrom+` WHERE m.group_id=$1 AND m.deleted = FALSE ORDER BY m.id ASC`, groupID)
	if err != nil {
		return nil, err
	}
	return msgs, r.attachReactions(ctx, msgs)
}

// ListPinned returns pinned messages, most recently pinned first.
func (r *GroupMessageRepo) ListPinned(ctx context.Context, groupID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+groupMessageColumns+groupMessageFrom+` WHERE m.group_id=$1 AND m.deleted = FALSE AND m.is_pinned = TRUE ORDER BY m.pinned_at DESC`, groupID)
	return msgs, err
}

// GetGroupMessage fetches a single live message of the group.
func (r *GroupMessageRepo) GetGroupMessage(ctx context.Context, groupID int, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+groupMessageColumns+groupMessageFrom+` WHERE m.id=$1 AND m.group_id=$2 AND m.deleted = FALSE`, messageID, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	msgs := []models.Message{msg}
	if err := r.attachReactions(ctx, msgs); err != nil {
		return models.Message{}, err
	}
	return msgs[0], nil
}

// UpdateContent replaces the content of a message.
func (r *GroupMessageRepo) UpdateContent(ctx context.Context, groupID int, messageID int, content string) (models.Message, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE group_messages SET content=$1, updated_at=NOW() WHERE id=$2 AND group_id=$3 AND deleted = FALSE`, content, messageID, groupID)
	if err := affectedOne(res, err); err != nil {
		return models.Message{}, err
	}
	return r.GetGroupMessage(ctx, groupID, messageID)
}

// Delete marks a message deleted for everyone.
func (r *GroupMessageRepo) Delete(ctx context.Context, groupID int, messageID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE group_messages SET deleted = TRUE, is_pinned = FALSE WHERE id=$1 AND group_id=$2 AND deleted = FALSE`, messageID, groupID)
	return affectedOne(res, err)
}

// SetPinned pins or unpins a message.
func (r *GroupMessageRepo) SetPinned(ctx context.Context, groupID int, messageID int, pinned bool, by int) (models.Message, error) {
	var (
		res sql.Result
		err error
	)
	if pinned {
		res, err = r.db.ExecContext(ctx, `UPDATE group_messages SET is_pinned = TRUE, pinned_at = NOW(), pinned_by = $1 WHERE id=$2 AND group_id=$3 AND deleted = FALSE`, by, messageID, groupID)
	} else {
		res, err = r.db.ExecContext(ctx, `UPDATE group_messages SET is_pinned = FALSE, pinned_at = NULL, pinned_by = NULL WHERE id=$1 AND group_id=$2 AND deleted = FALSE`, messageID, groupID)
	}
	if err := affectedOne(res, err); err != nil {
		return models.Message{}, err
	}
	return r.GetGroupMessage(ctx, groupID, messageID)
}

func (r *GroupMessageRepo) attachReactions(ctx context.Context, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]int, 0, len(msgs))
	pos := make(map[int]int, len(msgs))
	for i, m := range msgs {
		ids = append(ids, m.ID)
		pos[m.ID] = i
	}
	query, args, err := sqlx.In(`SELECT r.id, r.message_id, r.emoji, r.user_id,
        r.user_id AS "user.id",
        COALESCE(u.first_name, '') AS "user.first_name",
        COALESCE(u.last_name, '') AS "user.last_name",
        u.avatar AS "user.avatar"
        FROM message_reactions r LEFT JOIN users u ON u.id = r.user_id
        WHERE r.message_id IN (?) ORDER BY r.id ASC`, ids)
	if err != nil {
		return err
	}
	var reactions []models.Reaction
	if err := r.db.SelectContext(ctx, &reactions, r.db.Rebind(query), args...); err != nil {
		return err
	}
	for _, re := range reactions {
		i := pos[re.MessageID]
		msgs[i].Reactions = append(msgs[i].Reactions, re)
	}
	return nil
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}
