package models

import "time"

// Role is a member's standing inside a conversation.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

// Elevated reports whether the role may moderate other members' messages.
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleOwner
}

// Group represents a chat group.
type Group struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	OwnerID   int       `db:"owner_id" json:"owner_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	Members   []Member  `json:"members,omitempty"`
}

// Member is a group membership row.
type Member struct {
	GroupID int  `db:"group_id" json:"group_id,omitempty"`
	UserID  int  `db:"user_id" json:"user_id"`
	Role    Role `db:"role" json:"role"`
}

// TutorChat represents a 1:1 conversation between a student and a tutor.
type TutorChat struct {
	ID        int       `db:"id" json:"id"`
	StudentID int       `db:"student_id" json:"student_id"`
	TutorID   int       `db:"tutor_id" json:"tutor_id"`
	CreatorID int       `db:"creator_id" json:"creator_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ToggleResult is the response of a reaction toggle.
type ToggleResult struct {
	Action   string   `json:"action"`
	Reaction Reaction `json:"reaction"`
}

const (
	ReactionAdded   = "added"
	ReactionRemoved = "removed"
)

// MessageEvent is published on the event bus when messages change.
type MessageEvent struct {
	Type           string `json:"type"`
	ConversationID int    `json:"conversation_id"`
	Kind           string `json:"kind"`
	MessageID      int    `json:"message_id"`
	UserID         int    `json:"user_id"`
}
