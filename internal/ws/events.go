package ws

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"mentorly/internal/models"
)

var validate = validator.New()

// Events consumed from the server.
const (
	EventChatMessage    = "chat.message"
	EventNotification   = "notification.new"
	EventSessionStarted = "session.started"
)

// Events emitted to the server.
const (
	EventChatSend = "chat.send"
	EventChatRead = "chat.read"
)

// Envelope is the wire format for all socket traffic in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// PendingMessage is the echo shape of a chat-message event: the server
// relays the sender's draft before assigning an id, so another tab or
// device of the sender can show it immediately.
type PendingMessage struct {
	SenderID   string `json:"senderId" validate:"required"`
	ReceiverID string `json:"receiverId" validate:"required"`
	Content    string `json:"content"`
}

// ConfirmedMessage is the full server-confirmed shape of a chat-message
// event, carrying the server-assigned id and sender descriptors.
type ConfirmedMessage struct {
	ID          string              `json:"id" validate:"required"`
	SenderID    string              `json:"senderId" validate:"required"`
	SenderName  string              `json:"senderName"`
	Avatar      string              `json:"avatar"`
	ReceiverID  string              `json:"receiverId" validate:"required"`
	Kind        models.MessageKind  `json:"kind"`
	Content     string              `json:"content"`
	CreatedAt   int64               `json:"createdAt" validate:"required"`
	Attachments []models.Attachment `json:"attachments"`
}

func (m PendingMessage) Validate() error {
	return validate.Struct(m)
}

func (m ConfirmedMessage) Validate() error {
	return validate.Struct(m)
}

// SessionStarted announces that a booked mentorship session has begun.
type SessionStarted struct {
	SessionID string `json:"sessionId" validate:"required"`
}

func (s SessionStarted) Validate() error {
	return validate.Struct(s)
}

// ChatSend is the payload emitted when the user sends a message.
type ChatSend struct {
	ReceiverID string             `json:"receiverId"`
	Kind       models.MessageKind `json:"kind"`
	Content    string             `json:"content,omitempty"`
	Attachment *models.Attachment `json:"attachment,omitempty"`
}

// ChatRead is emitted when the user opens a conversation, telling the
// server to mark the peer's messages as read.
type ChatRead struct {
	PeerID string `json:"peerId"`
}
