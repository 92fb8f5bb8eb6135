package models

import (
	"errors"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrNotLoggedIn  = errors.New("not logged in")
	ErrEmptyMessage = errors.New("message has no content and no attachment")
)

// Participant describes the other side of a conversation.
type Participant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	IsMentor  bool   `json:"isMentor,omitempty"`
}

// Conversation is one entry in the user's chat list, identified by the
// other participant's user id.
type Conversation struct {
	Participant Participant `json:"participant"`
	LastMessage string      `json:"lastMessage,omitempty"`
	LastAt      int64       `json:"lastAt,omitempty"` // Unix timestamp (milliseconds)
	Unread      int         `json:"unread"`
	Read        bool        `json:"read"`
}

type MessageKind string

const (
	MessageKindText MessageKind = "TEXT"
	MessageKindFile MessageKind = "FILE"
)

type MessageStatus string

const (
	MessageStatusSent MessageStatus = "sent"
	MessageStatusRead MessageStatus = "read"
)

// TempIDPrefix marks locally generated message ids that are still waiting
// for the server's confirming echo.
const TempIDPrefix = "temp-"

type AttachmentType string

const (
	AttachmentTypeImage AttachmentType = "image"
	AttachmentTypeFile  AttachmentType = "file"
)

type Attachment struct {
	Type AttachmentType `json:"type"`
	URL  string         `json:"url"`
	Name string         `json:"name"`
	Size int64          `json:"size"`
}

// Message belongs to exactly one conversation. A message must have non-empty
// content or at least one attachment.
type Message struct {
	ID          string        `json:"id"`
	Kind        MessageKind   `json:"kind"`
	Content     string        `json:"content,omitempty"`
	CreatedAt   int64         `json:"createdAt"` // Unix timestamp (milliseconds)
	Status      MessageStatus `json:"status"`
	Sender      Participant   `json:"sender"`
	Recipient   Participant   `json:"recipient"`
	Attachments []Attachment  `json:"attachments,omitempty"`
}

// IsTemp reports whether the message carries a locally generated id.
func (m Message) IsTemp() bool {
	return strings.HasPrefix(m.ID, TempIDPrefix)
}

type NotificationType string

const (
	NotificationTypeSession    NotificationType = "session"
	NotificationTypeConnection NotificationType = "connection"
	NotificationTypeChat       NotificationType = "chat"
	NotificationTypeArticle    NotificationType = "article"
	NotificationTypeOther      NotificationType = "other"
)

// Notification is one entry in the user's notification feed.
type Notification struct {
	ID        string           `json:"id" validate:"required"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title" validate:"required"`
	Content   string           `json:"content,omitempty"`
	Read      bool             `json:"read"`
	Link      string           `json:"link,omitempty"`
	CreatedAt int64            `json:"createdAt"`
}

// Mentor is a discoverable mentor profile.
type Mentor struct {
	Participant
	Headline   string   `json:"headline,omitempty"`
	Skills     []string `json:"skills,omitempty"`
	HourlyRate int64    `json:"hourlyRate,omitempty"` // smallest currency unit
	Rating     float64  `json:"rating,omitempty"`
	Sessions   int      `json:"sessions,omitempty"`
}

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking is a mentorship session booked by the current user.
type Booking struct {
	ID       string        `json:"id"`
	MentorID string        `json:"mentorId"`
	StartsAt int64         `json:"startsAt"`
	Minutes  int           `json:"minutes"`
	Amount   int64         `json:"amount"`
	Status   BookingStatus `json:"status"`
}

// Article is a published article as returned by the platform.
type Article struct {
	ID        string `json:"id"`
	AuthorID  string `json:"authorId"`
	Title     string `json:"title"`
	HTML      string `json:"html"`
	CreatedAt int64  `json:"createdAt"`
}

type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
