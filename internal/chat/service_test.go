// ABOUTME: Tests for the chat service with a fake dispatcher
// ABOUTME: Covers payload selection, dedupe, history, uploads and reset

package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/merti-gateway/internal/history"
	"github.com/2389/merti-gateway/internal/store"
	"github.com/2389/merti-gateway/internal/webhook"
)

type fakeDispatcher struct {
	mu       sync.Mutex
	payloads []webhook.Payload
	reply    string
	err      error
}

func (f *fakeDispatcher) Send(ctx context.Context, s *webhook.Session, p webhook.Payload) (*webhook.NormalizedResponse, error) {
	id := s.Initialize(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, p)
	if f.err != nil {
		return nil, f.err
	}
	return &webhook.NormalizedResponse{Message: f.reply, SessionID: id}, nil
}

func (f *fakeDispatcher) sent() []webhook.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]webhook.Payload(nil), f.payloads...)
}

type fakeUploader struct {
	keys []string
	err  error
}

func (f *fakeUploader) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	return "https://cdn.example.org/test_images/" + key, nil
}

func newTestService(t *testing.T, d Dispatcher, up ImageUploader) *Service {
	t.Helper()
	hub := NewHub(func() *webhook.Session { return webhook.NewSession(nil) }, time.Hour)
	t.Cleanup(hub.Close)
	svc := NewService(hub, d, history.NewStoreHistory(store.NewMockStore(), 100), up)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	t.Cleanup(svc.Close)
	return svc
}

func TestService_SendText(t *testing.T) {
	d := &fakeDispatcher{reply: "Bins go out on **Tuesday**."}
	svc := newTestService(t, d, nil)
	ctx := context.Background()

	reply, err := svc.Send(ctx, SendRequest{Visitor: "v1", Text: "When are bins collected?"})
	require.NoError(t, err)
	assert.Equal(t, "Bins go out on **Tuesday**.", reply.Message)
	assert.Contains(t, reply.HTML, "<strong>Tuesday</strong>")
	assert.NotEmpty(t, reply.SessionID)

	sent := d.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, webhook.TextOnly, sent[0].Kind)

	id, ok := svc.SessionID("v1")
	require.True(t, ok)
	assert.Equal(t, reply.SessionID, id)

	turns, err := svc.History(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, store.RoleUser, turns[0].Role)
	assert.Equal(t, "When are bins collected?", turns[0].Content)
	assert.Equal(t, store.RoleAssistant, turns[1].Role)
}

func TestService_SendImage(t *testing.T) {
	d := &fakeDispatcher{reply: "That is a green bin."}
	up := &fakeUploader{}
	svc := newTestService(t, d, up)

	img := &webhook.Image{Data: []byte("jpeg"), Filename: "bin.jpg", MimeType: "image/jpeg"}
	reply, err := svc.Send(context.Background(), SendRequest{Visitor: "v1", Image: img})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.org/test_images/chat_upload_1700000000000_bin.jpg", reply.ImageURL)
	assert.Equal(t, []string{"chat_upload_1700000000000_bin.jpg"}, up.keys)
	assert.Equal(t, webhook.ImageOnly, d.sent()[0].Kind)

	_, err = svc.Send(context.Background(), SendRequest{Visitor: "v1", Text: "and this?", Image: img})
	require.NoError(t, err)
	assert.Equal(t, webhook.TextWithImage, d.sent()[1].Kind)
}

func TestService_UploadFailureStillSends(t *testing.T) {
	d := &fakeDispatcher{reply: "ok"}
	svc := newTestService(t, d, &fakeUploader{err: errors.New("bucket missing")})

	img := &webhook.Image{Data: []byte("png"), Filename: "a.png"}
	reply, err := svc.Send(context.Background(), SendRequest{Visitor: "v1", Image: img})
	require.NoError(t, err)
	assert.Empty(t, reply.ImageURL)
	assert.Len(t, d.sent(), 1)
}

func TestService_EmptyInput(t *testing.T) {
	d := &fakeDispatcher{}
	svc := newTestService(t, d, nil)

	_, err := svc.Send(context.Background(), SendRequest{Visitor: "v1", Text: "  "})
	assert.ErrorIs(t, err, webhook.ErrEmptyPayload)
	assert.Empty(t, d.sent())

	_, ok := svc.SessionID("v1")
	assert.False(t, ok, "rejected input must not create a session")
}

func TestService_DuplicateClientID(t *testing.T) {
	d := &fakeDispatcher{reply: "ok"}
	svc := newTestService(t, d, nil)
	ctx := context.Background()

	_, err := svc.Send(ctx, SendRequest{Visitor: "v1", Text: "hi", ClientID: "m1"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, SendRequest{Visitor: "v1", Text: "hi", ClientID: "m1"})
	assert.ErrorIs(t, err, ErrDuplicateMessage)

	// Same client id from another visitor is a different message.
	_, err = svc.Send(ctx, SendRequest{Visitor: "v2", Text: "hi", ClientID: "m1"})
	require.NoError(t, err)
	assert.Len(t, d.sent(), 2)
}

func TestService_FailedSendCanBeRetried(t *testing.T) {
	d := &fakeDispatcher{err: &webhook.StatusError{StatusCode: 500}}
	svc := newTestService(t, d, nil)
	ctx := context.Background()

	_, err := svc.Send(ctx, SendRequest{Visitor: "v1", Text: "hi", ClientID: "m1"})
	require.Error(t, err)

	d.mu.Lock()
	d.err = nil
	d.reply = "back"
	d.mu.Unlock()

	reply, err := svc.Send(ctx, SendRequest{Visitor: "v1", Text: "hi", ClientID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, "back", reply.Message)
}

func TestService_Reset(t *testing.T) {
	d := &fakeDispatcher{reply: "ok"}
	svc := newTestService(t, d, nil)
	ctx := context.Background()

	first, err := svc.Send(ctx, SendRequest{Visitor: "v1", Text: "hi"})
	require.NoError(t, err)

	next := svc.Reset(ctx, "v1")
	assert.NotEqual(t, first.SessionID, next)

	id, _ := svc.SessionID("v1")
	assert.Equal(t, next, id)

	turns, err := svc.History(ctx, "v1")
	require.NoError(t, err)
	assert.Empty(t, turns, "new conversation starts with an empty transcript")
}

func TestRender(t *testing.T) {
	html, err := Render("# Title\n\nVisit https://example.org <script>alert(1)</script>")
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Title</h1>")
	assert.Contains(t, html, `<a href="https://example.org">`)
	assert.NotContains(t, html, "<script>")
}
