package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pratik-mahalle/muscleai/internal/config"
)

// 1x1 PNG header bytes are enough for content sniffing
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestGeminiVision_Describe(t *testing.T) {
	var gotPath, gotKey string
	var gotBody GeminiRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Goog-Api-Key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"1. **Biceps**: "},{"text":"Development: 6/10"}]},"finishReason":"STOP"}]}`)
	}))
	defer srv.Close()

	client := NewGeminiVision("test-key", srv.URL, time.Second)
	out, err := client.Describe(context.Background(), VisionRequest{
		Model:  "gemini-1.5-flash",
		Prompt: "rate the muscles",
		Image:  pngBytes,
	})
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}

	if out != "1. **Biceps**: Development: 6/10" {
		t.Errorf("Describe() = %q", out)
	}
	if gotPath != "/gemini-1.5-flash:generateContent" {
		t.Errorf("path = %s", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("api key header = %q", gotKey)
	}
	parts := gotBody.Contents[0].Parts
	if len(parts) != 2 || parts[0].Text != "rate the muscles" || parts[1].InlineData == nil {
		t.Fatalf("parts = %+v", parts)
	}
	if parts[1].InlineData.MimeType != "image/png" {
		t.Errorf("mime type = %s, want sniffed image/png", parts[1].InlineData.MimeType)
	}
}

func TestGeminiVision_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"http error", http.StatusTooManyRequests, `{"error":"quota"}`, "status 429"},
		{"blocked", http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`, "SAFETY"},
		{"empty", http.StatusOK, `{"candidates":[{"content":{"parts":[]},"finishReason":"SAFETY"}]}`, "no content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewGeminiVision("k", srv.URL, time.Second).Describe(context.Background(), VisionRequest{Model: "m", Image: pngBytes})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Describe() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestGeminiVision_NotConfigured(t *testing.T) {
	_, err := NewGeminiVision("", "", 0).Describe(context.Background(), VisionRequest{Model: "m"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("error = %v, want ErrNotConfigured", err)
	}
}

func TestOpenAIVision_Describe(t *testing.T) {
	var raw map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewDecoder(r.Body).Decode(&raw)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Chest: 7/10"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	client := NewOpenAIVision("sk-test", srv.URL+"/v1", time.Second)
	out, err := client.Describe(context.Background(), VisionRequest{
		Model:    "gpt-4o-mini",
		Prompt:   "rate the muscles",
		Image:    []byte("jpeg-bytes"),
		MIMEType: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if out != "Chest: 7/10" {
		t.Errorf("Describe() = %q", out)
	}

	if raw["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v", raw["model"])
	}
	body, _ := json.Marshal(raw["messages"])
	if !strings.Contains(string(body), "data:image/jpeg;base64,") {
		t.Errorf("messages should carry a data URL, got %s", body)
	}
	if !strings.Contains(string(body), `"image_url"`) {
		t.Errorf("messages should carry an image part, got %s", body)
	}
}

func TestOpenAIVision_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	_, err := NewOpenAIVision("k", srv.URL, time.Second).Describe(context.Background(), VisionRequest{Model: "m", Image: pngBytes})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("error = %v, want ErrEmptyResponse", err)
	}
}

func TestNewRegistryFromConfig(t *testing.T) {
	r := NewRegistryFromConfig(config.ModelsConfig{OpenAIAPIKey: "k"})
	if got := r.Names(); len(got) != 1 || got[0] != "openai" {
		t.Errorf("Names() = %v, want [openai]", got)
	}

	r = NewRegistryFromConfig(config.ModelsConfig{OpenAIAPIKey: "k", GeminiAPIKey: "g"})
	if _, ok := r.Get("gemini"); !ok {
		t.Error("gemini should be registered when a key is set")
	}
	if _, ok := r.Get("anthropic"); ok {
		t.Error("unknown provider should not resolve")
	}
}
