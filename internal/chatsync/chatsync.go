package chatsync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mentorly/internal/cache"
	"mentorly/internal/media"
	"mentorly/internal/models"
	"mentorly/internal/ws"
)

// ChatsKey addresses the conversation list in the cache. Per-conversation
// message lists live under MessagesKey(peerID).
const ChatsKey = "chats"

func MessagesKey(peerID string) string {
	return cache.Key("chat", peerID)
}

// Alerter surfaces user-visible errors from the send path.
type Alerter interface {
	Error(msg string)
}

// emitter is the slice of the socket connection the sync layer uses.
type emitter interface {
	Emit(event string, payload interface{}) error
}

// attachments is the slice of the media service the send path uses.
type attachments interface {
	Validate(f media.File) (models.AttachmentType, error)
	IssuePreview(f media.File) string
	RevokePreview(url string)
	Upload(ctx context.Context, tempID string, f media.File) (models.Attachment, error)
	Progress(tempID string) float64
}

// Sync owns the optimistic send path and the inbound half of chat
// synchronization. The UI shows a sent message immediately under a
// temporary id; the final state depends on the server eventually echoing a
// confirmed message through HandleEvent. There is no dedup between the
// temporary and the confirmed entry beyond attachment replacement.
type Sync struct {
	user     models.Participant
	chats    *cache.Store[models.Conversation]
	messages *cache.Store[models.Message]
	sock     emitter
	media    attachments
	alerts   Alerter
	logger   *slog.Logger
	now      func() time.Time
}

type Config struct {
	User     models.Participant
	Chats    *cache.Store[models.Conversation]
	Messages *cache.Store[models.Message]
	Socket   emitter
	Media    attachments
	Alerts   Alerter
	Logger   *slog.Logger
}

func New(config Config) *Sync {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sync{
		user:     config.User,
		chats:    config.Chats,
		messages: config.Messages,
		sock:     config.Socket,
		media:    config.Media,
		alerts:   config.Alerts,
		logger:   logger,
		now:      time.Now,
	}
}

// SendMessage runs the optimistic send cycle for one message to peerID.
// Empty content with no attachment is a silent no-op. An oversized
// attachment aborts before any cache mutation or emission. After the
// optimistic insert, an upload or emission failure removes the temporary
// message again, leaving no partial state.
func (s *Sync) SendMessage(ctx context.Context, peerID, content string, att *media.File) error {
	content = strings.TrimSpace(content)
	if content == "" && att == nil {
		return nil
	}

	kind := models.MessageKindText
	var attType models.AttachmentType
	previewURL := ""
	if att != nil {
		var err error
		attType, err = s.media.Validate(*att)
		if err != nil {
			s.alerts.Error(err.Error())
			return err
		}
		kind = models.MessageKindFile
		previewURL = s.media.IssuePreview(*att)
	}

	tempID := fmt.Sprintf("%s%d", models.TempIDPrefix, s.now().UnixMilli())
	temp := models.Message{
		ID:        tempID,
		Kind:      kind,
		Content:   content,
		CreatedAt: s.now().UnixMilli(),
		Status:    models.MessageStatusSent,
		Sender:    s.user,
		Recipient: models.Participant{ID: peerID},
	}
	if att != nil {
		temp.Attachments = []models.Attachment{{
			Type: attType,
			URL:  previewURL,
			Name: att.Name,
			Size: int64(len(att.Data)),
		}}
	}

	s.appendMessage(peerID, temp)
	s.touchConversation(peerID, temp, false)

	var confirmed *models.Attachment
	if att != nil {
		uploaded, err := s.media.Upload(ctx, tempID, *att)
		if err != nil {
			s.logger.Error("attachment upload failed", "peer", peerID, "error", err)
			s.removeMessage(peerID, tempID)
			s.media.RevokePreview(previewURL)
			s.alerts.Error("Failed to upload attachment")
			return err
		}
		confirmed = &uploaded
	}

	err := s.sock.Emit(ws.EventChatSend, ws.ChatSend{
		ReceiverID: peerID,
		Kind:       kind,
		Content:    content,
		Attachment: confirmed,
	})
	if err != nil {
		s.logger.Error("message emission failed", "peer", peerID, "error", err)
		s.removeMessage(peerID, tempID)
		if previewURL != "" {
			s.media.RevokePreview(previewURL)
		}
		s.alerts.Error("Failed to send message")
		return fmt.Errorf("failed to send message to %s: %w", peerID, err)
	}

	// The temporary id stays until the server's confirmed echo arrives;
	// only the attachment metadata is reconciled here.
	if confirmed != nil {
		s.messages.Patch(MessagesKey(peerID), func(pages []cache.Page[models.Message]) []cache.Page[models.Message] {
			out := clonePages(pages)
			for pi := range out {
				for i := range out[pi].Items {
					if out[pi].Items[i].ID == tempID {
						out[pi].Items[i].Attachments = []models.Attachment{*confirmed}
					}
				}
			}
			return out
		})
		s.media.RevokePreview(previewURL)
	}

	return nil
}

// HandleEvent is the intake handler for chat.message. The payload is
// either the server-confirmed shape or the pending echo shape; anything
// else is rejected and dropped by the dispatch layer. The cache key to
// patch belongs to the other participant: the receiver when the current
// user sent the message, the sender otherwise. A conversation that was
// never opened has no cache entry and the patch is a no-op.
func (s *Sync) HandleEvent(payload json.RawMessage) error {
	msg, err := s.decodeInbound(payload)
	if err != nil {
		return err
	}

	other := msg.Sender.ID
	if msg.Sender.ID == s.user.ID {
		other = msg.Recipient.ID
	}

	s.messages.Patch(MessagesKey(other), func(pages []cache.Page[models.Message]) []cache.Page[models.Message] {
		if len(pages) == 0 {
			pages = []cache.Page[models.Message]{{}}
		}
		out := clonePages(pages)
		out[0].Items = append(out[0].Items, msg)
		return out
	})
	s.touchConversation(other, msg, msg.Sender.ID != s.user.ID)

	return nil
}

func (s *Sync) decodeInbound(payload json.RawMessage) (models.Message, error) {
	var confirmed ws.ConfirmedMessage
	if json.Unmarshal(payload, &confirmed) == nil && confirmed.Validate() == nil {
		kind := confirmed.Kind
		if kind == "" {
			kind = models.MessageKindText
		}
		return models.Message{
			ID:        confirmed.ID,
			Kind:      kind,
			Content:   confirmed.Content,
			CreatedAt: confirmed.CreatedAt,
			Status:    models.MessageStatusSent,
			Sender: models.Participant{
				ID:        confirmed.SenderID,
				Name:      confirmed.SenderName,
				AvatarURL: confirmed.Avatar,
			},
			Recipient:   models.Participant{ID: confirmed.ReceiverID},
			Attachments: confirmed.Attachments,
		}, nil
	}

	var pending ws.PendingMessage
	if json.Unmarshal(payload, &pending) == nil && pending.Validate() == nil {
		return models.Message{
			ID:        fmt.Sprintf("%s%d", models.TempIDPrefix, s.now().UnixMilli()),
			Kind:      models.MessageKindText,
			Content:   pending.Content,
			CreatedAt: s.now().UnixMilli(),
			Status:    models.MessageStatusSent,
			Sender:    models.Participant{ID: pending.SenderID},
			Recipient: models.Participant{ID: pending.ReceiverID},
		}, nil
	}

	return models.Message{}, fmt.Errorf("chat message payload matches neither shape")
}

// MaybeMarkRead applies the read-reconciliation trigger rule: the newest
// cached message of the conversation must be unread and not authored by
// the current user.
func (s *Sync) MaybeMarkRead(ctx context.Context, peerID string) error {
	pages, ok := s.messages.Get(MessagesKey(peerID))
	if !ok || len(pages) == 0 || len(pages[0].Items) == 0 {
		return nil
	}
	items := pages[0].Items
	last := items[len(items)-1]
	if last.Status == models.MessageStatusRead || last.Sender.ID == s.user.ID {
		return nil
	}
	return s.MarkConversationRead(ctx, peerID)
}

// MarkConversationRead emits chat.read for the peer, then optimistically
// sets every cached message of the conversation to read and zeroes the
// unread counter on the matching conversation-list entry. The two lists
// live under different cache keys but represent overlapping state, so this
// is a cross-key update.
func (s *Sync) MarkConversationRead(ctx context.Context, peerID string) error {
	if err := s.sock.Emit(ws.EventChatRead, ws.ChatRead{PeerID: peerID}); err != nil {
		s.alerts.Error("Failed to mark conversation as read")
		return fmt.Errorf("failed to mark conversation %s read: %w", peerID, err)
	}

	s.messages.Patch(MessagesKey(peerID), func(pages []cache.Page[models.Message]) []cache.Page[models.Message] {
		out := clonePages(pages)
		for pi := range out {
			for i := range out[pi].Items {
				out[pi].Items[i].Status = models.MessageStatusRead
			}
		}
		return out
	})

	s.chats.Patch(ChatsKey, func(pages []cache.Page[models.Conversation]) []cache.Page[models.Conversation] {
		out := clonePages(pages)
		for pi := range out {
			for i := range out[pi].Items {
				if out[pi].Items[i].Participant.ID == peerID {
					out[pi].Items[i].Unread = 0
					out[pi].Items[i].Read = true
				}
			}
		}
		return out
	})

	return nil
}

// Messages flattens the cached pages of one conversation for display.
// Pages are reversed before flattening so the oldest fetched page renders
// first.
func (s *Sync) Messages(peerID string) []models.Message {
	pages, _ := s.messages.Get(MessagesKey(peerID))
	return cache.FlattenReversed(pages)
}

// Conversations flattens the cached chat list in page order.
func (s *Sync) Conversations() []models.Conversation {
	pages, _ := s.chats.Get(ChatsKey)
	return cache.Flatten(pages)
}

// Progress reports upload progress for a pending message id.
func (s *Sync) Progress(tempID string) float64 {
	return s.media.Progress(tempID)
}

func (s *Sync) appendMessage(peerID string, msg models.Message) {
	s.messages.Update(MessagesKey(peerID), func(pages []cache.Page[models.Message]) []cache.Page[models.Message] {
		if len(pages) == 0 {
			pages = []cache.Page[models.Message]{{}}
		}
		out := clonePages(pages)
		out[0].Items = append(out[0].Items, msg)
		return out
	})
}

func (s *Sync) removeMessage(peerID, id string) {
	s.messages.Patch(MessagesKey(peerID), func(pages []cache.Page[models.Message]) []cache.Page[models.Message] {
		out := make([]cache.Page[models.Message], len(pages))
		for pi, p := range pages {
			out[pi] = p
			kept := make([]models.Message, 0, len(p.Items))
			for _, m := range p.Items {
				if m.ID != id {
					kept = append(kept, m)
				}
			}
			out[pi].Items = kept
		}
		return out
	})
}

// touchConversation refreshes the chat-list entry for peerID after a
// message moved through the conversation.
func (s *Sync) touchConversation(peerID string, msg models.Message, inbound bool) {
	preview := msg.Content
	if preview == "" && len(msg.Attachments) > 0 {
		preview = msg.Attachments[0].Name
	}
	s.chats.Patch(ChatsKey, func(pages []cache.Page[models.Conversation]) []cache.Page[models.Conversation] {
		out := clonePages(pages)
		for pi := range out {
			for i := range out[pi].Items {
				if out[pi].Items[i].Participant.ID != peerID {
					continue
				}
				out[pi].Items[i].LastMessage = preview
				out[pi].Items[i].LastAt = msg.CreatedAt
				if inbound {
					out[pi].Items[i].Unread++
					out[pi].Items[i].Read = false
				}
			}
		}
		return out
	})
}

func clonePages[T any](pages []cache.Page[T]) []cache.Page[T] {
	out := make([]cache.Page[T], len(pages))
	for i, p := range pages {
		out[i] = p.Clone()
	}
	return out
}
