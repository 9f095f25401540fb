package integrations

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"

	"github.com/pratik-mahalle/muscleai/internal/config"
)

// ErrNotConfigured is returned by providers without credentials
var ErrNotConfigured = errors.New("vision provider is not configured")

// ErrEmptyResponse is returned when a provider answers without any text
var ErrEmptyResponse = errors.New("vision provider returned no content")

// VisionRequest is one image question sent to a model
type VisionRequest struct {
	Model    string
	Prompt   string
	Image    []byte
	MIMEType string
}

// VisionModel describes an image according to a prompt
type VisionModel interface {
	Describe(ctx context.Context, req VisionRequest) (string, error)
}

// Registry maps provider names to clients
type Registry struct {
	mu        sync.RWMutex
	providers map[string]VisionModel
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]VisionModel)}
}

// NewRegistryFromConfig registers every provider that has credentials
func NewRegistryFromConfig(cfg config.ModelsConfig) *Registry {
	r := NewRegistry()
	if cfg.OpenAIAPIKey != "" || cfg.OpenAIBaseURL != "" {
		r.Register("openai", NewOpenAIVision(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Timeout))
	}
	if cfg.GeminiAPIKey != "" {
		r.Register("gemini", NewGeminiVision(cfg.GeminiAPIKey, cfg.GeminiBaseURL, cfg.Timeout))
	}
	return r
}

// Register adds or replaces a provider
func (r *Registry) Register(name string, m VisionModel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = m
}

// Get looks up a provider
func (r *Registry) Get(name string) (VisionModel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.providers[name]
	return m, ok
}

// Names lists registered providers
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// imageMIMEType returns the declared type, or sniffs it from the bytes
func imageMIMEType(declared string, image []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return http.DetectContentType(image)
}
