package articles

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mentorly/internal/api"
	"mentorly/internal/cache"
	"mentorly/internal/models"
)

type mockPublisher struct {
	publishErr error
	published  []api.PublishArticleRequest
	feed       cache.Page[models.Article]
}

func (m *mockPublisher) PublishArticle(ctx context.Context, req api.PublishArticleRequest) (models.Article, error) {
	if m.publishErr != nil {
		return models.Article{}, m.publishErr
	}
	m.published = append(m.published, req)
	return models.Article{ID: "a1", Title: req.Title, HTML: req.HTML}, nil
}

func (m *mockPublisher) ListArticles(ctx context.Context, page int) (cache.Page[models.Article], error) {
	return m.feed, nil
}

func TestRender(t *testing.T) {
	html, err := Render("# Title\n\nSome *emphasis* here.")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(html, "<h1") || !strings.Contains(html, "<em>emphasis</em>") {
		t.Errorf("unexpected html: %s", html)
	}
}

func TestRenderStripsScripts(t *testing.T) {
	html, err := Render("hello <script>alert(1)</script> <img src=x onerror=alert(1)>")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if strings.Contains(html, "<script") || strings.Contains(html, "onerror") {
		t.Errorf("unsafe markup survived: %s", html)
	}
}

func TestPublish(t *testing.T) {
	pub := &mockPublisher{}
	store := cache.NewStore[models.Article]()
	s := NewService(pub, store)

	article, err := s.Publish(context.Background(), "  My Post  ", "body text")
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if article.ID != "a1" {
		t.Errorf("article = %+v", article)
	}
	if len(pub.published) != 1 || pub.published[0].Title != "My Post" {
		t.Errorf("published = %+v", pub.published)
	}

	list := s.List()
	if len(list) != 1 || list[0].ID != "a1" {
		t.Errorf("feed not updated: %+v", list)
	}
}

func TestPublishValidation(t *testing.T) {
	pub := &mockPublisher{}
	s := NewService(pub, cache.NewStore[models.Article]())

	if _, err := s.Publish(context.Background(), "   ", "body"); err == nil {
		t.Error("empty title accepted")
	}
	if _, err := s.Publish(context.Background(), "Title", "   "); err == nil {
		t.Error("empty body accepted")
	}
	if _, err := s.Publish(context.Background(), "Title", "<script>x</script>"); err == nil {
		t.Error("body that sanitizes to nothing accepted")
	}
	if len(pub.published) != 0 {
		t.Errorf("invalid drafts were published: %+v", pub.published)
	}
}

func TestPublishFailure(t *testing.T) {
	pub := &mockPublisher{publishErr: errors.New("server error")}
	store := cache.NewStore[models.Article]()
	s := NewService(pub, store)

	if _, err := s.Publish(context.Background(), "Title", "body"); err == nil {
		t.Fatal("expected error")
	}
	if len(s.List()) != 0 {
		t.Error("feed updated despite failed publish")
	}
}

func TestLoad(t *testing.T) {
	pub := &mockPublisher{feed: cache.Page[models.Article]{
		Items: []models.Article{{ID: "a1"}, {ID: "a2"}},
		Total: 2,
	}}
	store := cache.NewStore[models.Article]()
	s := NewService(pub, store)

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(s.List()) != 2 {
		t.Errorf("feed = %+v", s.List())
	}
}
