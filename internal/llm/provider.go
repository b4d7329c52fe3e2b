package llm

import (
	"context"
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Prompt is the full input to a completion call.
type Prompt struct {
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Messages     []Message `json:"messages"`
}

// RequestOptions tunes a single completion request. Nil fields keep the
// backend's defaults.
type RequestOptions struct {
	MaxTokens   *int
	Temperature *float64
	StopSeqs    []string
}

// Response wraps a completion result.
type Response struct {
	Content      string `json:"content"`
	Model        string `json:"model,omitempty"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	StopReason   string `json:"stop_reason,omitempty"`
}

// Provider is the interface all text-generation backends must implement.
// The chunking pipeline uses Complete for segmentation and the indexer and
// search engine use Embed; both sides must be configured with the same
// embedding model so query and index vectors live in the same space.
type Provider interface {
	// Complete sends a prompt and returns a completion.
	Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error)
	// Embed returns one embedding vector per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Name returns the provider identifier (e.g. "ollama", "openai").
	Name() string
}

// ProviderConfig holds everything needed to create a provider.
type ProviderConfig struct {
	Provider   string // "openai", "ollama", "groq", "custom", ...
	APIKey     string
	Model      string // chat model used for segmentation
	EmbedModel string
	BaseURL    string // override for self-hosted endpoints

	Timeout    time.Duration // per-request timeout (default: 2 minutes)
	MaxRetries int           // max retry attempts (default: 3)
	RetryDelay time.Duration // initial backoff delay (default: 1s)
}

// DefaultProviderConfig returns a config with sensible defaults.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Timeout:    2 * time.Minute,
		MaxRetries: 3,
		RetryDelay: 1 * time.Second,
	}
}

// KnownProviders documents the built-in OpenAI-compatible presets. Ollama is
// the default backend for local segmentation and embedding models.
var KnownProviders = map[string]string{
	"ollama":   "http://localhost:11434/v1",
	"openai":   "https://api.openai.com/v1",
	"groq":     "https://api.groq.com/openai/v1",
	"together": "https://api.together.xyz/v1",
	"deepseek": "https://api.deepseek.com/v1",
}
