package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mentorly/internal/cache"
	"mentorly/internal/models"
)

const DefaultTimeout = 30 * time.Second

// Client talks to the platform's REST API. All calls take a context and
// return wrapped errors; HTTP failure bodies are decoded into the
// platform's response envelope when possible.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken installs the session token after login.
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("token", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiResp models.APIResponse
		if json.Unmarshal(data, &apiResp) == nil && apiResp.Message != "" {
			return nil, fmt.Errorf("%s %s: %s", method, path, apiResp.Message)
		}
		return nil, fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	return data, nil
}

func decode[T any](data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return v, nil
}

func getPage[T any](ctx context.Context, c *Client, path string, page int, query url.Values) (cache.Page[T], error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("page", strconv.Itoa(page))
	data, err := c.doRequest(ctx, http.MethodGet, path, nil, query)
	if err != nil {
		return cache.Page[T]{}, err
	}
	return decode[cache.Page[T]](data)
}

// --- Onboarding / session ---

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	models.APIResponse
	Token string `json:"token,omitempty"`
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	data, err := c.doRequest(ctx, http.MethodPost, "/api/login", req, nil)
	if err != nil {
		return LoginResponse{}, err
	}
	return decode[LoginResponse](data)
}

type RegisterRequest struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	IsMentor bool     `json:"isMentor,omitempty"`
	Skills   []string `json:"skills,omitempty"`
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (LoginResponse, error) {
	data, err := c.doRequest(ctx, http.MethodPost, "/api/register", req, nil)
	if err != nil {
		return LoginResponse{}, err
	}
	return decode[LoginResponse](data)
}

// --- Chats ---

func (c *Client) ListConversations(ctx context.Context, page int) (cache.Page[models.Conversation], error) {
	return getPage[models.Conversation](ctx, c, "/api/chats", page, nil)
}

func (c *Client) ListMessages(ctx context.Context, peerID string, page int) (cache.Page[models.Message], error) {
	return getPage[models.Message](ctx, c, "/api/chats/"+url.PathEscape(peerID)+"/messages", page, nil)
}

// --- Notifications ---

func (c *Client) ListNotifications(ctx context.Context, page int) (cache.Page[models.Notification], error) {
	return getPage[models.Notification](ctx, c, "/api/notifications", page, nil)
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/api/notifications/"+url.PathEscape(id)+"/read", nil, nil)
	return err
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/api/notifications/read-all", nil, nil)
	return err
}

// --- Media ---

// UploadMedia pushes one file to the platform's media store as a multipart
// form. onProgress, when non-nil, observes bytes written to the wire.
func (c *Client) UploadMedia(ctx context.Context, name string, data []byte, onProgress func(done, total int64)) (models.Attachment, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return models.Attachment{}, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return models.Attachment{}, fmt.Errorf("failed to finalize form: %w", err)
	}

	total := int64(buf.Len())
	var body io.Reader = &buf
	if onProgress != nil {
		body = &progressReader{r: &buf, total: total, onProgress: onProgress}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/media", body)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if c.token != "" {
		req.Header.Set("token", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("upload failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("failed to read upload response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return models.Attachment{}, fmt.Errorf("upload failed: unexpected status %d", resp.StatusCode)
	}

	return decode[models.Attachment](respData)
}

func (c *Client) DeleteMedia(ctx context.Context, mediaURL string) error {
	q := url.Values{"url": {mediaURL}}
	_, err := c.doRequest(ctx, http.MethodDelete, "/api/media", nil, q)
	return err
}

type progressReader struct {
	r          io.Reader
	done       int64
	total      int64
	onProgress func(done, total int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.done += int64(n)
		p.onProgress(p.done, p.total)
	}
	return n, err
}

// --- Mentor discovery ---

func (c *Client) ListMentors(ctx context.Context, skill string, page int) (cache.Page[models.Mentor], error) {
	var q url.Values
	if skill != "" {
		q = url.Values{"skill": {skill}}
	}
	return getPage[models.Mentor](ctx, c, "/api/mentors", page, q)
}

func (c *Client) GetMentor(ctx context.Context, id string) (models.Mentor, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/api/mentors/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return models.Mentor{}, err
	}
	return decode[models.Mentor](data)
}

// --- Booking and payment ---

type BookingRequest struct {
	MentorID string `json:"mentorId"`
	StartsAt int64  `json:"startsAt"`
	Minutes  int    `json:"minutes"`
}

func (c *Client) CreateBooking(ctx context.Context, req BookingRequest) (models.Booking, error) {
	data, err := c.doRequest(ctx, http.MethodPost, "/api/bookings", req, nil)
	if err != nil {
		return models.Booking{}, err
	}
	return decode[models.Booking](data)
}

type PaymentVerifyRequest struct {
	BookingID string `json:"bookingId"`
	Reference string `json:"reference"`
}

// VerifyPayment confirms a booking after the payment provider redirects
// back with a reference.
func (c *Client) VerifyPayment(ctx context.Context, req PaymentVerifyRequest) (models.Booking, error) {
	data, err := c.doRequest(ctx, http.MethodPost, "/api/payments/verify", req, nil)
	if err != nil {
		return models.Booking{}, err
	}
	return decode[models.Booking](data)
}

// --- Articles ---

type PublishArticleRequest struct {
	Title string `json:"title"`
	HTML  string `json:"html"`
}

func (c *Client) PublishArticle(ctx context.Context, req PublishArticleRequest) (models.Article, error) {
	data, err := c.doRequest(ctx, http.MethodPost, "/api/articles", req, nil)
	if err != nil {
		return models.Article{}, err
	}
	return decode[models.Article](data)
}

func (c *Client) ListArticles(ctx context.Context, page int) (cache.Page[models.Article], error) {
	return getPage[models.Article](ctx, c, "/api/articles", page, nil)
}
