// ABOUTME: Tests for response normalization across all profiles
// ABOUTME: Covers single objects, NDJSON streams, precedence and fallbacks

package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_SingleObject(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		profile Profile
		want    string
	}{
		{"output field", `{"output":"Hello"}`, TextProfile, "Hello"},
		{"content field", `{"content":"From content"}`, TextProfile, "From content"},
		{"message field", `{"message":"From message"}`, TextProfile, "From message"},
		{"response field", `{"response":"From response"}`, TextProfile, "From response"},
		{"text field", `{"text":"From text"}`, TextProfile, "From text"},
		{"output beats message", `{"message":"m","output":"o"}`, TextProfile, "o"},
		{"empty output skipped", `{"output":"","text":"t"}`, TextProfile, "t"},
		{"error beats output", `{"type":"error","output":"ignored"}`, TextProfile, TextApology},
		{"image error", `{"type":"error"}`, ImageProfile, ImageApology},
		{"text+image error", `{"type":"error"}`, TextImageProfile, TextImageApology},
		{"no known field", `{"foo":"bar"}`, TextProfile, TextFallback},
		{"image no field", `{"foo":"bar"}`, ImageProfile, ImageFallback},
		{"text+image no field", `{}`, TextImageProfile, TextImageFallback},
		{"numeric output", `{"output":42}`, TextProfile, "42"},
		{"zero output skipped", `{"output":0,"text":"t"}`, TextProfile, "t"},
		{"object output", `{"output":{"a":1}}`, TextProfile, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize([]byte(tt.body), tt.profile)
			assert.Equal(t, tt.want, got.Message)
		})
	}
}

func TestNormalize_SessionAndMetadata(t *testing.T) {
	got := Normalize([]byte(`{"output":"hi","sessionId":"abc","metadata":{"k":"v"}}`), TextProfile)
	assert.Equal(t, "hi", got.Message)
	assert.Equal(t, "abc", got.SessionID)
	assert.JSONEq(t, `{"k":"v"}`, string(got.Metadata))

	got = Normalize([]byte(`{"output":"hi"}`), TextProfile)
	assert.Empty(t, got.SessionID)
	assert.JSONEq(t, `{"output":"hi"}`, string(got.Metadata))
}

func TestNormalize_Stream(t *testing.T) {
	body := "{\"type\":\"begin\"}\n" +
		"{\"type\":\"item\",\"content\":\"Bin collection \"}\n" +
		"{\"type\":\"item\",\"content\":\"is on Tuesdays.\"}\n" +
		"{\"type\":\"end\"}\n"

	got := Normalize([]byte(body), TextProfile)
	assert.Equal(t, "Bin collection is on Tuesdays.", got.Message)
	assert.JSONEq(t, `{"content":"Bin collection is on Tuesdays.","type":"success"}`, string(got.Metadata))
}

func TestNormalize_StreamSkipsMalformedLines(t *testing.T) {
	body := "{\"type\":\"item\",\"content\":\"a\"}\nnot json at all\n\n  \n{\"type\":\"item\",\"content\":\"b\"}"
	got := Normalize([]byte(body), TextProfile)
	assert.Equal(t, "ab", got.Message)
}

func TestNormalize_StreamWithoutItemsUsesLastLine(t *testing.T) {
	body := "{\"type\":\"begin\"}\n{\"output\":\"final answer\",\"sessionId\":\"s1\"}"
	got := Normalize([]byte(body), TextProfile)
	assert.Equal(t, "final answer", got.Message)
	assert.Equal(t, "s1", got.SessionID)
}

func TestNormalize_StreamErrorLine(t *testing.T) {
	body := "{\"type\":\"begin\"}\n{\"type\":\"error\",\"content\":\"boom\"}"
	got := Normalize([]byte(body), ImageProfile)
	assert.Equal(t, ImageApology, got.Message)
}

func TestNormalize_Garbage(t *testing.T) {
	for _, body := range []string{"", "   ", "<html>oops</html>", "not json\nstill not"} {
		got := Normalize([]byte(body), TextProfile)
		assert.Equal(t, TextFallback, got.Message, "body %q", body)
		assert.Empty(t, got.SessionID)
	}
}

func TestNormalize_Scrape(t *testing.T) {
	t.Run("message field", func(t *testing.T) {
		got := Normalize([]byte(`{"message":"Queued","success":true}`), ScrapeProfile)
		assert.Equal(t, "Queued", got.Message)
	})

	t.Run("missing message", func(t *testing.T) {
		got := Normalize([]byte(`{"success":true}`), ScrapeProfile)
		assert.Equal(t, ScrapeFallback, got.Message)
	})

	t.Run("output ignored", func(t *testing.T) {
		got := Normalize([]byte(`{"output":"x"}`), ScrapeProfile)
		assert.Equal(t, ScrapeFallback, got.Message)
	})

	t.Run("unparsable body", func(t *testing.T) {
		got := Normalize([]byte("Workflow was started"), ScrapeProfile)
		assert.Equal(t, ScrapeInitiated, got.Message)
		require.NotEmpty(t, got.Metadata)
		assert.JSONEq(t, `{"message":"Scraping initiated successfully","success":true}`, string(got.Metadata))
	})

	t.Run("json that is not an object", func(t *testing.T) {
		for _, body := range []string{`"ok"`, `[1]`, `true`, `42`} {
			got := Normalize([]byte(body), ScrapeProfile)
			assert.Equal(t, ScrapeFallback, got.Message, "body %s", body)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		got := Normalize(nil, ScrapeProfile)
		assert.Equal(t, ScrapeInitiated, got.Message)
	})

	t.Run("stream is not parsed", func(t *testing.T) {
		got := Normalize([]byte("{\"type\":\"item\",\"content\":\"a\"}\n{\"type\":\"end\"}"), ScrapeProfile)
		assert.Equal(t, ScrapeInitiated, got.Message)
	})
}

func TestNormalize_MessageNeverEmpty(t *testing.T) {
	p := Profile{Name: "bare"}
	got := Normalize([]byte(`{"output":"x"}`), p)
	assert.NotEmpty(t, got.Message)
}
