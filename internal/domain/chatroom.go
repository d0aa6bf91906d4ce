package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole identifies who authored a message.
type MessageRole string

const (
	MessageRoleUser MessageRole = "USER"
	MessageRoleAI   MessageRole = "AI"
)

// ChatRoom is a named conversation owned by exactly one user.
type ChatRoom struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Messages  []Message `json:"messages,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message belongs to one chat room and is immutable once created. Conversation
// context is reconstructed by reading a room's messages in CreatedAt order.
type Message struct {
	ID         uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ChatRoomID uuid.UUID   `gorm:"type:uuid;not null;index" json:"-"`
	Role       MessageRole `gorm:"size:10;not null" json:"role"`
	Content    string      `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time   `json:"createdAt"`
}
