// Package llm talks to the text generator. Every provider performs exactly
// one attempt per call; retry policy belongs to the caller.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Provider generates raw text for a prompt.
type Provider interface {
	// Name returns the provider identifier (e.g. "ollama", "process").
	Name() string

	// Generate runs a single completion. Failures are *TransportError.
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Pinger is implemented by providers that can cheaply check that the
// generator is reachable without running a completion.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Request is one generation call.
type Request struct {
	Model       string  `json:"model"`
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	// Temperature is sent only when set, so nil keeps the server default
	// and an explicit 0 stays deterministic.
	Temperature *float64 `json:"temperature,omitempty"`
	// NumCtx is the context window size for providers that expose it.
	NumCtx int `json:"num_ctx,omitempty"`
	// JSONMode asks the generator to constrain output to JSON when supported.
	JSONMode bool `json:"json_mode,omitempty"`
	// Timeout bounds the whole call. Zero leaves only the caller's deadline.
	Timeout time.Duration `json:"-"`
}

// Response is the raw generator output.
type Response struct {
	Content          string        `json:"content"`
	Model            string        `json:"model"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	Elapsed          time.Duration `json:"elapsed"`
}

// Config configures a provider.
type Config struct {
	Provider string `json:"provider" yaml:"provider"` // ollama, process, openai, lmstudio, openrouter, groq, xai, gemini, custom
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`

	// Command and Args configure the process provider.
	Command string   `json:"command" yaml:"command"`
	Args    []string `json:"args" yaml:"args"`
	// PromptArg passes the prompt as the final argument instead of stdin.
	PromptArg bool `json:"prompt_arg" yaml:"prompt_arg"`
}

// NewProvider creates a provider from configuration.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllama(cfg), nil
	case "process":
		if cfg.Command == "" {
			return nil, fmt.Errorf("process provider requires a command")
		}
		return NewProcess(cfg), nil
	case "custom":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("custom provider requires a base_url")
		}
		return NewOpenAICompat(cfg), nil
	case "":
		return nil, fmt.Errorf("llm provider not specified")
	}
	if _, ok := compatDefaults[cfg.Provider]; ok {
		return NewOpenAICompat(cfg), nil
	}
	return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
}

// boundContext applies timeout to ctx when positive.
func boundContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}
