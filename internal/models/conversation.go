package models

// ConversationKind selects the endpoint family and the enabled features.
type ConversationKind string

const (
	KindGroup ConversationKind = "group"
	KindTutor ConversationKind = "tutor"
)

// Conversation is the client-side reference to an open chat.
type Conversation struct {
	ID        int              `json:"id"`
	Kind      ConversationKind `json:"kind"`
	Name      string           `json:"name,omitempty"`
	CreatorID int              `json:"creator_id,omitempty"`
	StudentID int              `json:"student_id,omitempty"`
	TutorID   int              `json:"tutor_id,omitempty"`
	Members   []Member         `json:"members,omitempty"`
}

// GroupConversation builds a reference from a group listing.
func GroupConversation(g Group) Conversation {
	return Conversation{ID: g.ID, Kind: KindGroup, Name: g.Name, CreatorID: g.OwnerID, Members: g.Members}
}

// TutorConversation builds a reference from a tutor chat listing.
func TutorConversation(c TutorChat) Conversation {
	return Conversation{
		ID:        c.ID,
		Kind:      KindTutor,
		CreatorID: c.CreatorID,
		StudentID: c.StudentID,
		TutorID:   c.TutorID,
		Members: []Member{
			{UserID: c.StudentID, Role: RoleMember},
			{UserID: c.TutorID, Role: RoleMember},
		},
	}
}

// IsGroup reports whether group-only features are enabled.
func (c Conversation) IsGroup() bool {
	return c.Kind == KindGroup
}

// RoleOf returns the server-reported role of userID, if any.
func (c Conversation) RoleOf(userID int) (Role, bool) {
	for _, m := range c.Members {
		if m.UserID == userID {
			return m.Role, true
		}
	}
	if c.CreatorID != 0 && c.CreatorID == userID && c.Kind == KindGroup {
		return RoleOwner, true
	}
	return "", false
}

// CanPin reports whether userID may pin or unpin messages.
func (c Conversation) CanPin(userID int) bool {
	if !c.IsGroup() {
		return false
	}
	role, ok := c.RoleOf(userID)
	return ok && role.Elevated()
}

// CanModify reports whether userID may edit or delete msg.
func (c Conversation) CanModify(userID int, msg Message) bool {
	if !c.IsGroup() {
		return false
	}
	if msg.AuthorID == userID {
		return true
	}
	role, ok := c.RoleOf(userID)
	return ok && role.Elevated()
}
