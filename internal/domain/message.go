package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeSystem MessageType = "system"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeSystem:
		return true
	}
	return false
}

type Message struct {
	ID        uuid.UUID   `json:"id"`
	ChatID    string      `json:"chatId"`
	SenderID  string      `json:"senderId"`
	Text      string      `json:"text"`
	Timestamp time.Time   `json:"timestamp"`
	Read      bool        `json:"read"`
	Type      MessageType `json:"type"`
	ReplyToID *uuid.UUID  `json:"replyToId,omitempty"`
	IsEdited  bool        `json:"isEdited"`
	EditedAt  *time.Time  `json:"editedAt,omitempty"`
}
