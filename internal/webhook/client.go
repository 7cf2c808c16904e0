// ABOUTME: HTTP client for the n8n chat and scrape webhooks
// ABOUTME: Builds JSON or multipart payloads and normalizes every response

package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// isoMillis matches the timestamp format the workflow expects.
const isoMillis = "2006-01-02T15:04:05.000Z"

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 8 << 20

// StatusError is returned when the webhook answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned status %d", e.StatusCode)
}

// Config configures a Client.
type Config struct {
	ChatURL    string
	ScrapeURL  string
	HTTPClient *http.Client

	// InitTimeout bounds session initialization requests. Zero means
	// DefaultInitTimeout.
	InitTimeout time.Duration

	Logger *slog.Logger
}

// Client dispatches requests to the chat and scrape webhooks.
type Client struct {
	chatURL     string
	scrapeURL   string
	http        *http.Client
	initTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// New creates a Client. A nil HTTPClient means http.DefaultClient.
func New(cfg Config) *Client {
	c := &Client{
		chatURL:     cfg.ChatURL,
		scrapeURL:   cfg.ScrapeURL,
		http:        cfg.HTTPClient,
		initTimeout: cfg.InitTimeout,
		logger:      cfg.Logger,
		now:         time.Now,
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.initTimeout <= 0 {
		c.initTimeout = DefaultInitTimeout
	}
	if c.logger == nil {
		c.logger = slog.Default().With("component", "webhook")
	}
	return c
}

// NewSession creates a session that initializes against this client's chat
// webhook.
func (c *Client) NewSession() *Session {
	s := NewSession(c)
	s.initTimeout = c.initTimeout
	return s
}

// StartSession announces a new conversation and returns the id the remote
// supplies, or "" when it supplies none.
func (c *Client) StartSession(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"action":    "initialize",
		"timestamp": c.timestamp(),
	})
	if err != nil {
		return "", fmt.Errorf("encoding init request: %w", err)
	}

	raw, err := c.post(ctx, c.chatURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	sid := gjson.GetBytes(raw, "sessionId")
	if sid.Type != gjson.String {
		return "", nil
	}
	return sid.Str, nil
}

// SendText sends a text message.
func (c *Client) SendText(ctx context.Context, s *Session, text string) (*NormalizedResponse, error) {
	return c.Send(ctx, s, Payload{Kind: TextOnly, Text: text})
}

// SendImage uploads an image without accompanying text.
func (c *Client) SendImage(ctx context.Context, s *Session, img Image) (*NormalizedResponse, error) {
	return c.Send(ctx, s, Payload{Kind: ImageOnly, Image: &img})
}

// SendTextWithImage sends a text message with an image attachment.
func (c *Client) SendTextWithImage(ctx context.Context, s *Session, text string, img Image) (*NormalizedResponse, error) {
	return c.Send(ctx, s, Payload{Kind: TextWithImage, Text: text, Image: &img})
}

// Send dispatches any payload variant. The payload is validated before the
// session is touched or any request is made.
func (c *Client) Send(ctx context.Context, s *Session, p Payload) (*NormalizedResponse, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	sessionID := s.Initialize(ctx)
	c.logger.Debug("sending to chat webhook", "kind", p.Kind.String(), "session_id", sessionID)

	var (
		body        io.Reader
		contentType string
		err         error
	)
	if p.Kind == TextOnly {
		body, contentType, err = c.jsonBody(p.Text, sessionID)
	} else {
		body, contentType, err = c.multipartBody(p, sessionID)
	}
	if err != nil {
		return nil, err
	}

	raw, err := c.post(ctx, c.chatURL, contentType, body)
	if err != nil {
		return nil, fmt.Errorf("sending %s message: %w", p.Kind, err)
	}
	c.logger.Debug("raw chat webhook response", "bytes", len(raw))

	resp := Normalize(raw, p.profile())
	if resp.SessionID != "" {
		s.Adopt(resp.SessionID)
	} else {
		resp.SessionID = sessionID
	}
	return &resp, nil
}

// Scrape asks the scrape webhook to ingest url into the knowledge base.
func (c *Client) Scrape(ctx context.Context, s *Session, url string) (*NormalizedResponse, error) {
	if strings.TrimSpace(url) == "" {
		return nil, ErrEmptyPayload
	}

	sessionID := s.Initialize(ctx)
	c.logger.Debug("sending to scrape webhook", "url", url, "session_id", sessionID)

	body, contentType, err := c.jsonBody(url, sessionID)
	if err != nil {
		return nil, err
	}

	raw, err := c.post(ctx, c.scrapeURL, contentType, body)
	if err != nil {
		return nil, fmt.Errorf("sending scrape request: %w", err)
	}

	resp := Normalize(raw, ScrapeProfile)
	return &resp, nil
}

func (c *Client) jsonBody(chatInput, sessionID string) (io.Reader, string, error) {
	data, err := json.Marshal(map[string]string{
		"chatInput": chatInput,
		"sessionId": sessionID,
		"timestamp": c.timestamp(),
	})
	if err != nil {
		return nil, "", fmt.Errorf("encoding request: %w", err)
	}
	return bytes.NewReader(data), "application/json", nil
}

func (c *Client) multipartBody(p Payload, sessionID string) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	img := p.Image
	mimeType := img.MimeType
	if mimeType == "" {
		mimeType = http.DetectContentType(img.Data)
	}
	filename := img.Filename
	if filename == "" {
		filename = "upload"
	}

	if p.Kind == TextWithImage {
		if err := mw.WriteField("chatInput", p.Text); err != nil {
			return nil, "", fmt.Errorf("writing chatInput field: %w", err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, escapeQuotes(filename)))
	h.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("creating image part: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", fmt.Errorf("writing image part: %w", err)
	}

	fields := [][2]string{
		{"filename", filename},
		{"fileType", mimeType},
		{"fileSize", strconv.FormatInt(img.size(), 10)},
		{"sessionId", sessionID},
		{"timestamp", c.timestamp()},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("writing %s field: %w", f[0], err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func (c *Client) post(ctx context.Context, url, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		snippet := string(raw)
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, &StatusError{StatusCode: res.StatusCode, Body: snippet}
	}
	return raw, nil
}

func (c *Client) timestamp() string {
	return c.now().UTC().Format(isoMillis)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
