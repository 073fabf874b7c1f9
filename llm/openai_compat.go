package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxResponseSize bounds how much of an HTTP response body is read.
const maxResponseSize = 10 << 20

// compatEndpoint holds the defaults for a hosted OpenAI-compatible API.
type compatEndpoint struct {
	baseURL string
	prefix  string
	model   string
}

// compatDefaults maps provider names to their endpoint defaults.
var compatDefaults = map[string]compatEndpoint{
	"openai":     {baseURL: "https://api.openai.com", prefix: "/v1", model: "gpt-4o-mini"},
	"lmstudio":   {baseURL: "http://localhost:1234", prefix: "/v1"},
	"openrouter": {baseURL: "https://openrouter.ai/api", prefix: "/v1"},
	"groq":       {baseURL: "https://api.groq.com/openai", prefix: "/v1", model: "llama-3.3-70b-versatile"},
	"xai":        {baseURL: "https://api.x.ai", prefix: "/v1"},
	// Gemini's compatibility layer already carries its version in the path.
	"gemini": {baseURL: "https://generativelanguage.googleapis.com/v1beta/openai", prefix: "", model: "gemini-2.0-flash"},
	"custom": {prefix: "/v1"},
}

// httpClient is the shared single-attempt HTTP base for every HTTP provider.
type httpClient struct {
	cfg        Config
	client     *http.Client
	pathPrefix string
}

func newHTTPClient(cfg Config, prefix string) httpClient {
	return httpClient{
		cfg:        cfg,
		pathPrefix: prefix,
		// No client-level timeout: every call is bounded by its context.
		client: &http.Client{},
	}
}

// do sends one request and returns the body of a 2xx response. Any other
// outcome is a *TransportError. body may be nil for GET requests.
func (c *httpClient) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	name := c.cfg.Provider
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &TransportError{Kind: KindProcessFailure, Provider: name, Err: fmt.Errorf("encoding request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + c.pathPrefix + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &TransportError{Kind: KindProcessFailure, Provider: name, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, transportError(ctx, name, fmt.Errorf("request to %s failed: %w", url, err), "")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, transportError(ctx, name, fmt.Errorf("reading response body: %w", err), "")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{
			Kind:     KindProcessFailure,
			Provider: name,
			Output:   string(respBody),
			Err:      fmt.Errorf("API error %d", resp.StatusCode),
		}
	}
	return respBody, nil
}

// NewOpenAICompat creates a provider for any OpenAI-compatible chat API.
// Endpoint defaults come from compatDefaults when cfg leaves them empty.
func NewOpenAICompat(cfg Config) Provider {
	def, ok := compatDefaults[cfg.Provider]
	if !ok {
		def = compatDefaults["custom"]
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.baseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.model
	}
	if cfg.Provider == "" {
		cfg.Provider = "custom"
	}
	return &openAICompatProvider{base: newHTTPClient(cfg, def.prefix)}
}

type openAICompatProvider struct {
	base httpClient
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *openAICompatProvider) Name() string { return p.base.cfg.Provider }

func (p *openAICompatProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := boundContext(ctx, req.Timeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = p.base.cfg.Model
	}

	body := chatCompletionRequest{
		Model:       model,
		Temperature: req.Temperature,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})
	if req.JSONMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	start := time.Now()
	respBody, err := p.base.do(ctx, http.MethodPost, "/chat/completions", body)
	if err != nil {
		return nil, err
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &TransportError{Kind: KindProcessFailure, Provider: p.Name(), Output: string(respBody),
			Err: fmt.Errorf("decoding chat response: %w", err)}
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, &TransportError{Kind: KindProcessFailure, Provider: p.Name(), Output: string(respBody), Err: errEmptyOutput}
	}

	return &Response{
		Content:          resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		Elapsed:          time.Since(start),
	}, nil
}

// Ping lists the available models.
func (p *openAICompatProvider) Ping(ctx context.Context) error {
	_, err := p.base.do(ctx, http.MethodGet, "/models", nil)
	return err
}
