package articles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"mentorly/internal/api"
	"mentorly/internal/cache"
	"mentorly/internal/models"
)

// StoreKey addresses the published article feed in the cache.
const StoreKey = "articles"

var (
	policy = bluemonday.UGCPolicy()
	md     = goldmark.New(goldmark.WithExtensions(extension.GFM))
)

// Render converts author markdown to HTML and strips anything the UGC
// policy disallows. Scripts, event handlers and unknown tags never reach
// the platform.
func Render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return policy.Sanitize(buf.String()), nil
}

// publisher is the slice of the REST client the article layer uses.
type publisher interface {
	PublishArticle(ctx context.Context, req api.PublishArticleRequest) (models.Article, error)
	ListArticles(ctx context.Context, page int) (cache.Page[models.Article], error)
}

type Service struct {
	api   publisher
	store *cache.Store[models.Article]
}

func NewService(api publisher, store *cache.Store[models.Article]) *Service {
	return &Service{api: api, store: store}
}

// Publish renders and sanitizes the draft, then submits it. The title and
// the rendered body must both be non-empty after trimming; a draft whose
// markdown sanitizes down to nothing is rejected before any request.
func (s *Service) Publish(ctx context.Context, title, markdown string) (models.Article, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Article{}, errors.New("article title cannot be empty")
	}

	html, err := Render(markdown)
	if err != nil {
		return models.Article{}, err
	}
	if strings.TrimSpace(html) == "" {
		return models.Article{}, errors.New("article body cannot be empty")
	}

	article, err := s.api.PublishArticle(ctx, api.PublishArticleRequest{
		Title: title,
		HTML:  html,
	})
	if err != nil {
		return models.Article{}, fmt.Errorf("failed to publish article: %w", err)
	}

	s.store.Update(StoreKey, func(pages []cache.Page[models.Article]) []cache.Page[models.Article] {
		if len(pages) == 0 {
			pages = []cache.Page[models.Article]{{}}
		}
		first := pages[0].Clone()
		first.Items = append([]models.Article{article}, first.Items...)
		first.Total++
		return append([]cache.Page[models.Article]{first}, pages[1:]...)
	})

	return article, nil
}

// Load fetches the first page of the feed and replaces the cache entry.
func (s *Service) Load(ctx context.Context) error {
	page, err := s.api.ListArticles(ctx, 1)
	if err != nil {
		return fmt.Errorf("failed to load articles: %w", err)
	}
	s.store.Set(StoreKey, []cache.Page[models.Article]{page})
	return nil
}

// List flattens the cached feed in page order.
func (s *Service) List() []models.Article {
	pages, _ := s.store.Get(StoreKey)
	return cache.Flatten(pages)
}
