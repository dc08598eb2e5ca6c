package models

import (
	"errors"
	"strings"
	"time"
)

// MessageType tags the primary payload of a message.
type MessageType string

const (
	MessageText  MessageType = "TEXT"
	MessageVoice MessageType = "VOICE"
	MessageImage MessageType = "IMAGE"
	MessageFile  MessageType = "FILE"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageVoice, MessageImage, MessageFile:
		return true
	}
	return false
}

// HasAttachment reports whether the type carries a binary payload.
func (t MessageType) HasAttachment() bool {
	return t == MessageVoice || t == MessageImage || t == MessageFile
}

var (
	ErrMissingContent  = errors.New("text message requires content")
	ErrMissingAudioURL = errors.New("voice message requires audio url")
	ErrMissingFileURL  = errors.New("image and file messages require file url")
	ErrUnknownType     = errors.New("unknown message type")
)

// Author is the sender snapshot embedded in a message.
type Author struct {
	ID        int     `db:"id" json:"id"`
	FirstName string  `db:"first_name" json:"first_name"`
	LastName  string  `db:"last_name" json:"last_name"`
	Avatar    *string `db:"avatar" json:"avatar,omitempty"`
}

// DisplayName joins first and last name.
func (a Author) DisplayName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Reaction is one user's emoji on one message.
type Reaction struct {
	ID        int    `db:"id" json:"id"`
	MessageID int    `db:"message_id" json:"message_id"`
	Emoji     string `db:"emoji" json:"emoji"`
	UserID    int    `db:"user_id" json:"user_id"`
	User      Author `json:"user"`
}

// Message is a chat message as held by the store and returned by the API.
type Message struct {
	ID        int         `db:"id" json:"id"`
	Content   string      `db:"content" json:"content"`
	Type      MessageType `db:"type" json:"type"`
	AudioURL  *string     `db:"audio_url" json:"audio_url,omitempty"`
	FileURL   *string     `db:"file_url" json:"file_url,omitempty"`
	FileName  *string     `db:"file_name" json:"file_name,omitempty"`
	FileType  *string     `db:"file_type" json:"file_type,omitempty"`
	FileSize  *int64      `db:"file_size" json:"file_size,omitempty"`
	IsPinned  bool        `db:"is_pinned" json:"is_pinned"`
	PinnedAt  *time.Time  `db:"pinned_at" json:"pinned_at,omitempty"`
	PinnedBy  *int        `db:"pinned_by" json:"pinned_by,omitempty"`
	AuthorID  int         `db:"author_id" json:"author_id"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	Author    Author      `json:"author"`
	Reactions []Reaction  `json:"reactions,omitempty"`
}

// Validate checks that the primary payload matches the type tag.
func (m Message) Validate() error {
	switch m.Type {
	case MessageText:
		if strings.TrimSpace(m.Content) == "" {
			return ErrMissingContent
		}
	case MessageVoice:
		if m.AudioURL == nil || *m.AudioURL == "" {
			return ErrMissingAudioURL
		}
	case MessageImage, MessageFile:
		if m.FileURL == nil || *m.FileURL == "" {
			return ErrMissingFileURL
		}
	default:
		return ErrUnknownType
	}
	return nil
}

// Body is the type-specific view of a message. Renderers switch on the
// concrete type instead of probing optional fields.
type Body interface {
	Kind() MessageType
}

type TextBody struct {
	Text string
}

type VoiceBody struct {
	Caption  string
	AudioURL string
}

type ImageBody struct {
	Caption string
	URL     string
	Name    string
}

type FileBody struct {
	Caption string
	URL     string
	Name    string
	MIME    string
	Size    int64
}

func (TextBody) Kind() MessageType  { return MessageText }
func (VoiceBody) Kind() MessageType { return MessageVoice }
func (ImageBody) Kind() MessageType { return MessageImage }
func (FileBody) Kind() MessageType  { return MessageFile }

// Body returns the variant selected by the type tag, or an error when the
// payload required by that tag is missing.
func (m Message) Body() (Body, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	switch m.Type {
	case MessageVoice:
		return VoiceBody{Caption: m.Content, AudioURL: *m.AudioURL}, nil
	case MessageImage:
		return ImageBody{Caption: m.Content, URL: *m.FileURL, Name: deref(m.FileName)}, nil
	case MessageFile:
		var size int64
		if m.FileSize != nil {
			size = *m.FileSize
		}
		return FileBody{Caption: m.Content, URL: *m.FileURL, Name: deref(m.FileName), MIME: deref(m.FileType), Size: size}, nil
	default:
		return TextBody{Text: m.Content}, nil
	}
}

// TutorMessage is the raw wire shape of a 1:1 tutor chat message.
type TutorMessage struct {
	ID         int         `db:"id" json:"id"`
	ChatID     int         `db:"chat_id" json:"chat_id"`
	SenderID   int         `db:"sender_id" json:"sender_id"`
	ReceiverID int         `db:"receiver_id" json:"receiver_id"`
	Content    string      `db:"content" json:"content"`
	Type       MessageType `db:"type" json:"type"`
	AudioURL   *string     `db:"audio_url" json:"audio_url,omitempty"`
	FileURL    *string     `db:"file_url" json:"file_url,omitempty"`
	FileName   *string     `db:"file_name" json:"file_name,omitempty"`
	FileType   *string     `db:"file_type" json:"file_type,omitempty"`
	FileSize   *int64      `db:"file_size" json:"file_size,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
	Sender     *Author     `json:"sender,omitempty"`
}

// PlatformSenderID marks messages posted by the platform itself.
const PlatformSenderID = 0

// PlatformAuthor is the synthetic author used for platform messages.
var PlatformAuthor = Author{ID: PlatformSenderID, FirstName: "Platform"}

// ToMessage maps the sender fields into the common author snapshot.
func (t TutorMessage) ToMessage() Message {
	author := PlatformAuthor
	if t.SenderID != PlatformSenderID {
		if t.Sender != nil {
			author = *t.Sender
		} else {
			author = Author{ID: t.SenderID}
		}
		author.ID = t.SenderID
	}
	msgType := t.Type
	if msgType == "" {
		msgType = MessageText
	}
	return Message{
		ID:        t.ID,
		Content:   t.Content,
		Type:      msgType,
		AudioURL:  t.AudioURL,
		FileURL:   t.FileURL,
		FileName:  t.FileName,
		FileType:  t.FileType,
		FileSize:  t.FileSize,
		AuthorID:  t.SenderID,
		CreatedAt: t.CreatedAt,
		Author:    author,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
