// ABOUTME: Tests for ImageStore against an in-memory fake S3 endpoint
// ABOUTME: The fake speaks just enough of the path-style REST API

package storage

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string]fakeObject
	clock   time.Time
}

type listResult struct {
	XMLName     xml.Name `xml:"ListBucketResult"`
	Name        string   `xml:"Name"`
	Prefix      string   `xml:"Prefix"`
	KeyCount    int      `xml:"KeyCount"`
	MaxKeys     int      `xml:"MaxKeys"`
	IsTruncated bool     `xml:"IsTruncated"`
	Contents    []listEntry
}

type listEntry struct {
	XMLName      xml.Name `xml:"Contents"`
	Key          string   `xml:"Key"`
	LastModified string   `xml:"LastModified"`
	Size         int      `xml:"Size"`
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := "/" + f.bucket
	if !strings.HasPrefix(r.URL.Path, prefix) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	key := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, prefix), "/")

	switch {
	case r.Method == http.MethodPut && key != "":
		data, _ := io.ReadAll(r.Body)
		f.clock = f.clock.Add(time.Minute)
		f.objects[key] = fakeObject{data: data, contentType: r.Header.Get("Content-Type"), modified: f.clock}
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodDelete && key != "":
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodGet && key == "":
		p := r.URL.Query().Get("prefix")
		res := listResult{Name: f.bucket, Prefix: p, MaxKeys: 1000}
		keys := make([]string, 0, len(f.objects))
		for k := range f.objects {
			if strings.HasPrefix(k, p) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			o := f.objects[k]
			res.Contents = append(res.Contents, listEntry{
				Key:          k,
				LastModified: o.modified.Format("2006-01-02T15:04:05.000Z"),
				Size:         len(o.data),
			})
		}
		res.KeyCount = len(res.Contents)
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, xml.Header)
		_ = xml.NewEncoder(w).Encode(res)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestStore(t *testing.T) (*ImageStore, *fakeS3) {
	t.Helper()
	fake := &fakeS3{
		bucket:  "test_images",
		objects: make(map[string]fakeObject),
		clock:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewImageStore(Config{
		Endpoint:  srv.URL,
		Region:    "us-east-1",
		Bucket:    "test_images",
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "secret",
		PublicURL: "https://cdn.example.org/",
	})
	require.NoError(t, err)
	return s, fake
}

func TestImageStore_UploadListDelete(t *testing.T) {
	s, fake := newTestStore(t)
	ctx := context.Background()

	url, err := s.Upload(ctx, "request_7/a.jpg", "image/jpeg", []byte("first"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.org/test_images/request_7/a.jpg", url)

	_, err = s.Upload(ctx, "request_7/b.png", "", []byte("\x89PNG\r\n\x1a\nrest"))
	require.NoError(t, err)
	_, err = s.Upload(ctx, "request_8/c.jpg", "image/jpeg", []byte("other"))
	require.NoError(t, err)

	fake.mu.Lock()
	assert.Equal(t, []byte("first"), fake.objects["request_7/a.jpg"].data)
	assert.Equal(t, "image/png", fake.objects["request_7/b.png"].contentType)
	fake.mu.Unlock()

	objs, err := s.ImagesForRequest(ctx, 7)
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "request_7/b.png", objs[0].Key, "newest first")
	assert.Equal(t, "request_7/a.jpg", objs[1].Key)
	assert.EqualValues(t, 5, objs[1].Size)
	assert.Equal(t, "https://cdn.example.org/test_images/request_7/a.jpg", objs[1].URL)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, s.Delete(ctx, "request_7/a.jpg"))
	objs, err = s.ImagesForRequest(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, objs, 1)
}

func TestImageStore_EmptyKey(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Upload(context.Background(), "", "image/png", []byte("x"))
	assert.ErrorIs(t, err, ErrEmptyKey)
	assert.ErrorIs(t, s.Delete(context.Background(), ""), ErrEmptyKey)
}

func TestNewImageStore_Validation(t *testing.T) {
	_, err := NewImageStore(Config{Bucket: "b"})
	assert.Error(t, err)
	_, err = NewImageStore(Config{Endpoint: "http://localhost:9000"})
	assert.Error(t, err)

	s, err := NewImageStore(Config{Endpoint: "http://localhost:9000/", Bucket: "b"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/b/k.png", s.PublicURL("k.png"))
}

func TestChatUploadKey(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, "chat_upload_1700000000123_bin.jpg", ChatUploadKey(at, "bin.jpg"))
	assert.Equal(t, "chat_upload_1700000000123_.._etc_passwd", ChatUploadKey(at, "../etc/passwd"))
	assert.Equal(t, "chat_upload_1700000000123_image", ChatUploadKey(at, ""))
	assert.Equal(t, "request_12/", RequestPrefix(12))
}
