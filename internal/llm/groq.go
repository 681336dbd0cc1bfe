package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"
	DefaultGroqModel   = "llama-3.3-70b-versatile"
)

// GroqProvider usa a API compatível com OpenAI (POST /chat/completions).
type GroqProvider struct {
	apiKey     string
	baseURL    string
	model      string
	client     *http.Client
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

type GroqOption func(*GroqProvider)

func WithGroqBaseURL(u string) GroqOption {
	return func(p *GroqProvider) { p.baseURL = strings.TrimRight(u, "/") }
}

func WithGroqModel(m string) GroqOption {
	return func(p *GroqProvider) {
		if m != "" {
			p.model = m
		}
	}
}

func WithHTTPClient(c *http.Client) GroqOption {
	return func(p *GroqProvider) { p.client = c }
}

func WithMaxRetries(n int) GroqOption {
	return func(p *GroqProvider) { p.maxRetries = n }
}

func WithBaseDelay(d time.Duration) GroqOption {
	return func(p *GroqProvider) { p.baseDelay = d }
}

func WithLogger(l *slog.Logger) GroqOption {
	return func(p *GroqProvider) { p.logger = l }
}

func NewGroqProvider(apiKey string, opts ...GroqOption) *GroqProvider {
	p := &GroqProvider{
		apiKey:     apiKey,
		baseURL:    DefaultGroqBaseURL,
		model:      DefaultGroqModel,
		client:     &http.Client{Timeout: 30 * time.Second},
		maxRetries: 2,
		baseDelay:  500 * time.Millisecond,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (p *GroqProvider) Complete(ctx context.Context, req Request) (Completion, error) {
	payload, err := json.Marshal(chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return Completion{}, &ProviderError{Provider: "groq", Err: err}
	}

	resp, err := p.do(ctx, payload)
	if err != nil {
		return Completion{}, err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Completion{}, &ProviderError{Provider: "groq", StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(out.Choices) == 0 {
		return Completion{}, &ProviderError{Provider: "groq", StatusCode: resp.StatusCode, Err: errors.New("empty choices")}
	}

	return Completion{
		Text:       strings.TrimSpace(out.Choices[0].Message.Content),
		TokensUsed: out.Usage.TotalTokens,
	}, nil
}

// do envia com retry em 429/5xx. Retry-After do provedor tem prioridade sobre o
// backoff exponencial.
func (p *GroqProvider) do(ctx context.Context, payload []byte) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return nil, &ProviderError{Provider: "groq", Err: err}
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

		resp, err := p.client.Do(httpReq)
		if err != nil {
			return nil, &ProviderError{Provider: "groq", Err: err}
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		perr := &ProviderError{
			Provider:   "groq",
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(body))),
		}

		if !retryable(resp.StatusCode) || attempt >= p.maxRetries {
			return nil, perr
		}

		delay := p.delay(attempt, resp.Header)
		p.logger.Warn("llm provider retry",
			"provider", "groq",
			"status", resp.StatusCode,
			"delay", delay,
			"attempt", attempt+1,
			"max_retries", p.maxRetries,
		)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, &ProviderError{Provider: "groq", Err: ctx.Err()}
		case <-t.C:
		}
	}
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func (p *GroqProvider) delay(attempt int, h http.Header) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return time.Duration(math.Pow(2, float64(attempt))) * p.baseDelay
}
