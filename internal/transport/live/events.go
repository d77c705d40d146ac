package live

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Event types - Client → Server
const (
	EventTypeSendMessage = "sendMessage"
	EventTypeMarkRead    = "markRead"
	EventTypePing        = "ping"
)

// Error codes sent back on the live channel.
const (
	ErrCodeInvalidPayload = "INVALID_PAYLOAD"
	ErrCodeUnknownEvent   = "UNKNOWN_EVENT"
)

// Event is the envelope of every client message.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// --- Client → Server payloads ---

type SendMessagePayload struct {
	RecipientID string     `json:"recipientId"`
	Text        string     `json:"text"`
	ReplyToID   *uuid.UUID `json:"replyToId,omitempty"`
}

type MarkReadPayload struct {
	ChatID string `json:"chatId"`
}
