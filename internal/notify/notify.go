package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"mentorly/internal/cache"
	"mentorly/internal/models"
)

// StoreKey addresses the user's notification feed in the cache.
const StoreKey = "notifications"

// Alerter surfaces transient, user-visible alerts.
type Alerter interface {
	Info(msg string)
	Error(msg string)
}

// marker is the slice of the REST client the notification layer uses.
type marker interface {
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
}

// Sync keeps the cached notification feed in step with inbound socket
// events and the user's read actions. The first page carries the aggregate
// unread counter; patches here keep it equal to the count of unread items
// across all cached pages. The server remains the source of truth.
type Sync struct {
	store    *cache.Store[models.Notification]
	api      marker
	alerts   Alerter
	logger   *slog.Logger
	validate *validator.Validate
}

func New(store *cache.Store[models.Notification], api marker, alerts Alerter, logger *slog.Logger) *Sync {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sync{
		store:    store,
		api:      api,
		alerts:   alerts,
		logger:   logger,
		validate: validator.New(),
	}
}

// HandleEvent is the intake handler for notification.new. The payload is a
// full notification object; it is marked unread, prepended to the first
// cached page and both the page total and the unread counter move up. When
// the feed was never fetched the cache patch is a no-op, but the toast
// still shows.
func (s *Sync) HandleEvent(payload json.RawMessage) error {
	var n models.Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return fmt.Errorf("bad notification payload: %w", err)
	}
	if err := s.validate.Struct(&n); err != nil {
		return fmt.Errorf("bad notification payload: %w", err)
	}

	n.Read = false
	s.store.Patch(StoreKey, func(pages []cache.Page[models.Notification]) []cache.Page[models.Notification] {
		if len(pages) == 0 {
			pages = []cache.Page[models.Notification]{{}}
		}
		first := pages[0].Clone()
		first.Items = append([]models.Notification{n}, first.Items...)
		first.Total++
		first.Unread++
		out := append([]cache.Page[models.Notification]{first}, pages[1:]...)
		return out
	})

	s.alerts.Info(n.Title)
	return nil
}

// MarkRead sets one notification to read across all cached pages and
// issues the backing mutation. On request failure the snapshot captured
// before the patch is restored verbatim and the error is surfaced. The
// unread counter only moves when a previously unread entry flipped.
func (s *Sync) MarkRead(ctx context.Context, id string) error {
	snap, hadCache := s.store.Snapshot(StoreKey)

	s.store.Patch(StoreKey, func(pages []cache.Page[models.Notification]) []cache.Page[models.Notification] {
		flipped := false
		out := make([]cache.Page[models.Notification], len(pages))
		for pi, p := range pages {
			out[pi] = p.Clone()
			for i := range out[pi].Items {
				if out[pi].Items[i].ID == id && !out[pi].Items[i].Read {
					out[pi].Items[i].Read = true
					flipped = true
				}
			}
		}
		if flipped && len(out) > 0 && out[0].Unread > 0 {
			out[0].Unread--
		}
		return out
	})

	if err := s.api.MarkNotificationRead(ctx, id); err != nil {
		if hadCache {
			s.store.Restore(StoreKey, snap)
		}
		s.alerts.Error("Failed to mark notification as read")
		return fmt.Errorf("failed to mark notification %s read: %w", id, err)
	}
	return nil
}

// MarkAllRead sets every cached notification to read and forces the unread
// counter to zero. Running it against an already-read feed is a no-op
// patch, so repeated calls are safe.
func (s *Sync) MarkAllRead(ctx context.Context) error {
	snap, hadCache := s.store.Snapshot(StoreKey)

	s.store.Patch(StoreKey, func(pages []cache.Page[models.Notification]) []cache.Page[models.Notification] {
		out := make([]cache.Page[models.Notification], len(pages))
		for pi, p := range pages {
			out[pi] = p.Clone()
			for i := range out[pi].Items {
				out[pi].Items[i].Read = true
			}
		}
		if len(out) > 0 {
			out[0].Unread = 0
		}
		return out
	})

	if err := s.api.MarkAllNotificationsRead(ctx); err != nil {
		if hadCache {
			s.store.Restore(StoreKey, snap)
		}
		s.alerts.Error("Failed to mark notifications as read")
		return fmt.Errorf("failed to mark all notifications read: %w", err)
	}
	return nil
}

// UnreadCount reports the badge counter carried on the first cached page.
func (s *Sync) UnreadCount() int {
	pages, ok := s.store.Get(StoreKey)
	if !ok || len(pages) == 0 {
		return 0
	}
	return pages[0].Unread
}

// List flattens the cached feed in page order for display.
func (s *Sync) List() []models.Notification {
	pages, _ := s.store.Get(StoreKey)
	return cache.Flatten(pages)
}
