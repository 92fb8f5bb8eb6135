package notify

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"mentorly/internal/cache"
	"mentorly/internal/models"
)

type mockAPI struct {
	markErr   error
	markedIDs []string
	markedAll int
}

func (m *mockAPI) MarkNotificationRead(ctx context.Context, id string) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.markedIDs = append(m.markedIDs, id)
	return nil
}

func (m *mockAPI) MarkAllNotificationsRead(ctx context.Context) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.markedAll++
	return nil
}

type mockAlerts struct {
	infos  []string
	errors []string
}

func (m *mockAlerts) Info(msg string)  { m.infos = append(m.infos, msg) }
func (m *mockAlerts) Error(msg string) { m.errors = append(m.errors, msg) }

func seed(store *cache.Store[models.Notification]) {
	store.Set(StoreKey, []cache.Page[models.Notification]{{
		Items: []models.Notification{
			{ID: "n1", Title: "one", Read: false},
			{ID: "n2", Title: "two", Read: true},
			{ID: "n3", Title: "three", Read: false},
		},
		Total:  3,
		Unread: 2,
	}})
}

func payload(t *testing.T, n models.Notification) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(n)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestHandleEventPrepends(t *testing.T) {
	store := cache.NewStore[models.Notification]()
	alerts := &mockAlerts{}
	s := New(store, &mockAPI{}, alerts, nil)
	seed(store)

	err := s.HandleEvent(payload(t, models.Notification{ID: "n4", Title: "fresh"}))
	if err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}

	list := s.List()
	if list[0].ID != "n4" || list[0].Read {
		t.Errorf("new notification not prepended unread: %+v", list[0])
	}

	pages, _ := store.Get(StoreKey)
	if pages[0].Total != 4 || pages[0].Unread != 3 {
		t.Errorf("counters not bumped: total=%d unread=%d", pages[0].Total, pages[0].Unread)
	}

	if len(alerts.infos) != 1 || alerts.infos[0] != "fresh" {
		t.Errorf("toast not shown: %v", alerts.infos)
	}
}

func TestHandleEventToastWithoutCache(t *testing.T) {
	store := cache.NewStore[models.Notification]()
	alerts := &mockAlerts{}
	s := New(store, &mockAPI{}, alerts, nil)

	err := s.HandleEvent(payload(t, models.Notification{ID: "n1", Title: "hello"}))
	if err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}

	if len(alerts.infos) != 1 {
		t.Error("toast suppressed when feed was never fetched")
	}
	if _, ok := store.Get(StoreKey); ok {
		t.Error("cache entry created for unfetched feed")
	}
}

func TestHandleEventRejectsInvalid(t *testing.T) {
	store := cache.NewStore[models.Notification]()
	alerts := &mockAlerts{}
	s := New(store, &mockAPI{}, alerts, nil)

	if err := s.HandleEvent(json.RawMessage(`{"type":"chat"}`)); err == nil {
		t.Error("notification without id and title accepted")
	}
	if len(alerts.infos) != 0 {
		t.Error("toast shown for invalid payload")
	}
}

func TestMarkRead(t *testing.T) {
	store := cache.NewStore[models.Notification]()
	api := &mockAPI{}
	s := New(store, api, &mockAlerts{}, nil)
	seed(store)

	if err := s.MarkRead(context.Background(), "n1"); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	list := s.List()
	if !list[0].Read {
		t.Error("n1 not marked read")
	}
	if s.UnreadCount() != 1 {
		t.Errorf("unread = %d, want 1", s.UnreadCount())
	}
	if len(api.markedIDs) != 1 || api.markedIDs[0] != "n1" {
		t.Errorf("api not called: %v", api.markedIDs)
	}
}

func TestMarkReadAlreadyReadKeepsCounter(t *testing.T) {
	store := cache.NewStore[models.Notification]()
	s := New(store, &mockAPI{}, &mockAlerts{}, nil)
	seed(store)

	if err := s.MarkRead(context.Background(), "n2"); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if s.UnreadCount() != 2 {
		t.Errorf("counter moved for already-read entry: %d", s.UnreadCount())
	}
}

func TestMarkReadCounterNeverNegative(t *testing.T) {
	store := cache.NewStore[models.Notification]()
	s := New(store, &mockAPI{}, &mockAlerts{}, nil)
	store.Set(StoreKey, []cache.Page[models.Notification]{{
		Items:  []models.Notification{{ID: "n1", Title: "one", Read: false}},
		Total:  1,
		Unread: 0,
	}})

	if err := s.MarkRead(context.Background(), "n1"); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if s.UnreadCount() != 0 {
		t.Errorf("counter went negative: %d", s.UnreadCount())
	}
}

func TestMarkReadFailureRestoresSnapshot(t *testing.T) {
	store := cache.NewStore[models.Notification]()
	alerts := &mockAlerts{}
	s := New(store, &mockAPI{markErr: errors.New("server error")}, alerts, nil)
	seed(store)
	before, _ := store.Snapshot(StoreKey)

	if err := s.MarkRead(context.Background(), "n1"); err == nil {
		t.Fatal("expected error")
	}

	after, _ := store.Get(StoreKey)
	if !reflect.DeepEqual(before, after) {
		t.Errorf("cache not restored verbatim:\nbefore %+v\nafter  %+v", before, after)
	}
	if len(alerts.errors) != 1 {
		t.Errorf("alert not shown: %v", alerts.errors)
	}
}

func TestMarkAllRead(t *testing.T) {
	store := cache.NewStore[models.Notification]()
	api := &mockAPI{}
	s := New(store, api, &mockAlerts{}, nil)
	seed(store)

	if err := s.MarkAllRead(context.Background()); err != nil {
		t.Fatalf("MarkAllRead failed: %v", err)
	}
	for _, n := range s.List() {
		if !n.Read {
			t.Errorf("%s left unread", n.ID)
		}
	}
	if s.UnreadCount() != 0 {
		t.Errorf("unread = %d", s.UnreadCount())
	}

	// Idempotent on an already-read feed.
	if err := s.MarkAllRead(context.Background()); err != nil {
		t.Fatalf("second MarkAllRead failed: %v", err)
	}
	if s.UnreadCount() != 0 {
		t.Errorf("unread after repeat = %d", s.UnreadCount())
	}
	if api.markedAll != 2 {
		t.Errorf("api calls = %d", api.markedAll)
	}
}

func TestMarkAllReadFailureRestoresSnapshot(t *testing.T) {
	store := cache.NewStore[models.Notification]()
	s := New(store, &mockAPI{markErr: errors.New("server error")}, &mockAlerts{}, nil)
	seed(store)
	before, _ := store.Snapshot(StoreKey)

	if err := s.MarkAllRead(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	after, _ := store.Get(StoreKey)
	if !reflect.DeepEqual(before, after) {
		t.Error("cache not restored after failed mark-all")
	}
}
