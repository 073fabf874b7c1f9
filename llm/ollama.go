package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultOllamaURL is used when neither the config nor OLLAMA_HOST set one.
const DefaultOllamaURL = "http://localhost:11434"

// ollamaProvider implements Provider for Ollama's native /api/generate,
// which exposes num_ctx where the OpenAI-compatible endpoint does not.
type ollamaProvider struct {
	base httpClient
}

// NewOllama creates a provider for Ollama.
func NewOllama(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = ollamaHost()
	}
	if cfg.Provider == "" {
		cfg.Provider = "ollama"
	}
	return &ollamaProvider{base: newHTTPClient(cfg, "")}
}

// ollamaHost honours OLLAMA_HOST, which may omit the scheme.
func ollamaHost() string {
	host := strings.TrimSpace(os.Getenv("OLLAMA_HOST"))
	if host == "" {
		return DefaultOllamaURL
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	return host
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	NumCtx      int     `json:"num_ctx,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type ollamaGenerateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (p *ollamaProvider) Name() string { return "ollama" }

func (p *ollamaProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := boundContext(ctx, req.Timeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = p.base.cfg.Model
	}

	body := ollamaGenerateRequest{
		Model:  model,
		Prompt: req.Prompt,
		System: req.System,
		Options: ollamaOptions{
			NumCtx:      req.NumCtx,
			Temperature: req.Temperature,
		},
	}
	if req.JSONMode {
		body.Format = "json"
	}

	start := time.Now()
	respBody, err := p.base.do(ctx, http.MethodPost, "/api/generate", body)
	if err != nil {
		return nil, err
	}

	var resp ollamaGenerateResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &TransportError{Kind: KindProcessFailure, Provider: p.Name(), Output: string(respBody),
			Err: fmt.Errorf("decoding ollama response: %w", err)}
	}
	if strings.TrimSpace(resp.Response) == "" {
		return nil, &TransportError{Kind: KindProcessFailure, Provider: p.Name(), Output: string(respBody), Err: errEmptyOutput}
	}

	if resp.Model == "" {
		resp.Model = model
	}
	return &Response{
		Content:          resp.Response,
		Model:            resp.Model,
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		Elapsed:          time.Since(start),
	}, nil
}

// Ping checks that the Ollama server answers /api/tags.
func (p *ollamaProvider) Ping(ctx context.Context) error {
	_, err := p.base.do(ctx, http.MethodGet, "/api/tags", nil)
	return err
}
