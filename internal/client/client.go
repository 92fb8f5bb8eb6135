package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"mentorly/internal/api"
	"mentorly/internal/articles"
	"mentorly/internal/cache"
	"mentorly/internal/chatsync"
	"mentorly/internal/config"
	"mentorly/internal/media"
	"mentorly/internal/models"
	"mentorly/internal/notify"
	"mentorly/internal/session"
	"mentorly/internal/ws"
)

// MentorsKey addresses the mentor discovery list in the cache. A skill
// filter gets its own key so filtered and unfiltered results never mix.
const MentorsKey = "mentors"

// Alerter shows transient, user-visible alerts.
type Alerter interface {
	Info(msg string)
	Error(msg string)
}

// Navigator moves the UI to another view.
type Navigator interface {
	NavigateTo(path string)
}

// Client is the composition root: it owns the stores, the REST client,
// the realtime connection and the per-concern sync layers, and exposes
// the operations a UI calls.
type Client struct {
	cfg    *config.Config
	logger *slog.Logger

	alerts Alerter
	nav    Navigator

	api      *api.Client
	sock     *ws.Conn
	session  *session.Manager
	media    *media.Service
	articles *articles.Service

	chats         *cache.Store[models.Conversation]
	messages      *cache.Store[models.Message]
	notifications *cache.Store[models.Notification]
	articleStore  *cache.Store[models.Article]
	mentors       *cache.Store[models.Mentor]

	chatSync   *chatsync.Sync
	notifySync *notify.Sync
}

func New(cfg *config.Config, alerts Alerter, nav Navigator, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	apiClient := api.New(cfg.APIBaseURL, api.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}))
	store, err := session.NewStore(cfg.SessionDB)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:    cfg,
		logger: logger,
		alerts: alerts,
		nav:    nav,

		api:     apiClient,
		session: session.NewManager(apiClient, store, logger),
		media:   media.NewService(apiClient),

		chats:         cache.NewStore[models.Conversation](),
		messages:      cache.NewStore[models.Message](),
		notifications: cache.NewStore[models.Notification](),
		articleStore:  cache.NewStore[models.Article](),
		mentors:       cache.NewStore[models.Mentor](),
	}
	c.articles = articles.NewService(apiClient, c.articleStore)
	c.notifySync = notify.New(c.notifications, apiClient, alerts, logger)

	return c, nil
}

// Session exposes login state management.
func (c *Client) Session() *session.Manager { return c.session }

// Articles exposes the article composer and feed.
func (c *Client) Articles() *articles.Service { return c.articles }

// Notifications exposes the notification feed sync layer.
func (c *Client) Notifications() *notify.Sync { return c.notifySync }

// Chats exposes the chat sync layer. Nil before Run connects.
func (c *Client) Chats() *chatsync.Sync { return c.chatSync }

// Run connects the realtime channel for the logged-in user, registers the
// event handlers and reads until the context is cancelled.
func (c *Client) Run(ctx context.Context) error {
	if !c.session.LoggedIn() {
		return models.ErrNotLoggedIn
	}

	c.sock = ws.New(ws.Config{
		URL:    c.cfg.SocketURL,
		Token:  c.session.Token(),
		Logger: c.logger,
	})
	if err := c.sock.Connect(ctx); err != nil {
		return err
	}

	c.chatSync = chatsync.New(chatsync.Config{
		User:     c.session.User(),
		Chats:    c.chats,
		Messages: c.messages,
		Socket:   c.sock,
		Media:    c.media,
		Alerts:   c.alerts,
		Logger:   c.logger,
	})

	c.sock.On(ws.EventChatMessage, c.chatSync.HandleEvent)
	c.sock.On(ws.EventNotification, c.notifySync.HandleEvent)
	c.sock.On(ws.EventSessionStarted, c.handleSessionStarted)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.sock.Run(ctx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// handleSessionStarted announces a started mentorship session and moves
// the UI to its room.
func (c *Client) handleSessionStarted(payload json.RawMessage) error {
	var ev ws.SessionStarted
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("bad session payload: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("bad session payload: %w", err)
	}

	c.alerts.Info("Your mentorship session has started")
	c.nav.NavigateTo("/sessions/" + ev.SessionID)
	return nil
}

// LoadConversations fetches the first page of the chat list. A newer call
// for the same key cancels a still-running older one.
func (c *Client) LoadConversations(ctx context.Context) error {
	key := chatsync.ChatsKey
	fetchCtx := c.chats.BeginFetch(ctx, key)
	defer c.chats.EndFetch(key)

	page, err := c.api.ListConversations(fetchCtx, 1)
	if err != nil {
		if fetchCtx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to load conversations: %w", err)
	}
	c.chats.Set(key, []cache.Page[models.Conversation]{page})
	return nil
}

// OpenConversation makes peerID's message history available: a cached
// history is reused as is, otherwise the first page is fetched. Opening
// also reconciles read state when the newest message is an unread inbound
// one.
func (c *Client) OpenConversation(ctx context.Context, peerID string) error {
	key := chatsync.MessagesKey(peerID)
	if _, ok := c.messages.Get(key); !ok {
		fetchCtx := c.messages.BeginFetch(ctx, key)
		defer c.messages.EndFetch(key)

		page, err := c.api.ListMessages(fetchCtx, peerID, 1)
		if err != nil {
			if fetchCtx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to load messages for %s: %w", peerID, err)
		}
		c.messages.Set(key, []cache.Page[models.Message]{page})
	}

	if c.chatSync != nil {
		return c.chatSync.MaybeMarkRead(ctx, peerID)
	}
	return nil
}

// LoadOlderMessages fetches the next page of history for an open
// conversation and appends it after the pages already cached.
func (c *Client) LoadOlderMessages(ctx context.Context, peerID string) error {
	key := chatsync.MessagesKey(peerID)
	pages, ok := c.messages.Get(key)
	if !ok {
		return c.OpenConversation(ctx, peerID)
	}

	next := len(pages) + 1
	page, err := c.api.ListMessages(ctx, peerID, next)
	if err != nil {
		return fmt.Errorf("failed to load older messages for %s: %w", peerID, err)
	}
	if len(page.Items) == 0 {
		return nil
	}

	c.messages.Update(key, func(prev []cache.Page[models.Message]) []cache.Page[models.Message] {
		out := make([]cache.Page[models.Message], len(prev), len(prev)+1)
		copy(out, prev)
		return append(out, page)
	})
	return nil
}

// LoadNotifications fetches the first page of the notification feed.
func (c *Client) LoadNotifications(ctx context.Context) error {
	key := notify.StoreKey
	fetchCtx := c.notifications.BeginFetch(ctx, key)
	defer c.notifications.EndFetch(key)

	page, err := c.api.ListNotifications(fetchCtx, 1)
	if err != nil {
		if fetchCtx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to load notifications: %w", err)
	}
	c.notifications.Set(key, []cache.Page[models.Notification]{page})
	return nil
}

// LoadMentors fetches the first page of mentor discovery results for an
// optional skill filter.
func (c *Client) LoadMentors(ctx context.Context, skill string) error {
	key := MentorsKey
	if skill != "" {
		key = cache.Key(MentorsKey, skill)
	}
	fetchCtx := c.mentors.BeginFetch(ctx, key)
	defer c.mentors.EndFetch(key)

	page, err := c.api.ListMentors(fetchCtx, skill, 1)
	if err != nil {
		if fetchCtx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to load mentors: %w", err)
	}
	c.mentors.Set(key, []cache.Page[models.Mentor]{page})
	return nil
}

// Mentors returns the cached discovery results for a skill filter.
func (c *Client) Mentors(skill string) []models.Mentor {
	key := MentorsKey
	if skill != "" {
		key = cache.Key(MentorsKey, skill)
	}
	pages, _ := c.mentors.Get(key)
	return cache.Flatten(pages)
}

// BookSession books a mentorship session with a mentor.
func (c *Client) BookSession(ctx context.Context, req api.BookingRequest) (models.Booking, error) {
	booking, err := c.api.CreateBooking(ctx, req)
	if err != nil {
		c.alerts.Error("Failed to book session")
		return models.Booking{}, err
	}
	return booking, nil
}

// VerifyPayment confirms a booking after the payment provider redirect.
func (c *Client) VerifyPayment(ctx context.Context, req api.PaymentVerifyRequest) (models.Booking, error) {
	booking, err := c.api.VerifyPayment(ctx, req)
	if err != nil {
		c.alerts.Error("Payment verification failed")
		return models.Booking{}, err
	}
	return booking, nil
}

// SubscribeConversations re-renders the chat list view on every write.
func (c *Client) SubscribeConversations(fn func([]models.Conversation)) func() {
	return c.chats.Subscribe(chatsync.ChatsKey, func(pages []cache.Page[models.Conversation]) {
		fn(cache.Flatten(pages))
	})
}

// SubscribeMessages re-renders one conversation view on every write.
func (c *Client) SubscribeMessages(peerID string, fn func([]models.Message)) func() {
	return c.messages.Subscribe(chatsync.MessagesKey(peerID), func(pages []cache.Page[models.Message]) {
		fn(cache.FlattenReversed(pages))
	})
}

// SubscribeNotifications re-renders the feed and badge on every write.
func (c *Client) SubscribeNotifications(fn func([]models.Notification, int)) func() {
	return c.notifications.Subscribe(notify.StoreKey, func(pages []cache.Page[models.Notification]) {
		unread := 0
		if len(pages) > 0 {
			unread = pages[0].Unread
		}
		fn(cache.Flatten(pages), unread)
	})
}

// Close releases the socket and the session store.
func (c *Client) Close() error {
	if c.sock != nil {
		_ = c.sock.Close()
	}
	return c.session.Close()
}
