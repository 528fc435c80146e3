// Package llm talks to an OpenAI-compatible chat completions endpoint (OpenRouter).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"mindcheck-bot/internal/i18n"
	"mindcheck-bot/internal/models"
	"mindcheck-bot/internal/utils"
)

// ErrUnavailable wraps every failure to obtain a completion: missing
// credential, throttling, transport, HTTP status or an empty answer.
var ErrUnavailable = errors.New("llm unavailable")

const (
	SafetySystemPrompt = "You are a professional, empathetic mental health coach. \n" +
		"Goals: help self-reflection, awareness, and daily check-ins. \n" +
		"Rules: do NOT diagnose; avoid clinical terms; never give harmful or high-risk advice; \n" +
		"encourage seeking professional help if needed; keep responses concise but supportive; \n" +
		"ask clarifying questions only when necessary. \n"

	maxLogSnippetRunes = 512
	maxResponseBytes   = 1 << 20
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type Config struct {
	APIKey  string
	Model   string
	URL     string
	Timeout time.Duration
	RPS     float64
	Burst   int
}

type Client struct {
	apiKey  string
	model   string
	url     string
	http    httpDoer
	limiter *rate.Limiter
	timeout time.Duration
	log     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		model:   strings.TrimSpace(cfg.Model),
		url:     strings.TrimSpace(cfg.URL),
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		timeout: timeout,
		log:     logger,
	}
}

// SetHTTPClient swaps the transport; nil restores a default client.
func (c *Client) SetHTTPClient(d httpDoer) {
	if d == nil {
		d = &http.Client{Timeout: 30 * time.Second}
	}
	c.http = d
}

// Enabled reports whether a credential is configured.
func (c *Client) Enabled() bool { return c.apiKey != "" }

// Complete sends messages and returns the first choice's content. Throttling
// and the HTTP exchange together are bounded by the configured timeout.
func (c *Client) Complete(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("%w: no api key configured", ErrUnavailable)
	}
	// the limiter wait counts toward the same bound as the request
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limiter: %w", ErrUnavailable, err)
	}

	body, err := json.Marshal(completionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %w", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %w", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("HTTP-Referer", "https://github.com/Fyukon/mindCheckBot")
	req.Header.Set("X-Title", "MindCheckBot")

	if len(messages) > 0 {
		last := messages[len(messages)-1].Content
		c.log.Debug("llm request", "model", c.model, "messages", len(messages), "prompt", utils.Snippet(last, maxLogSnippetRunes))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: request: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrUnavailable, err)
	}

	var completion completionResponse
	decodeErr := json.Unmarshal(raw, &completion)

	if resp.StatusCode >= http.StatusBadRequest {
		msg := strings.TrimSpace(completion.Error.Message)
		if msg == "" {
			msg = resp.Status
		}
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrUnavailable, decodeErr)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrUnavailable)
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: empty content", ErrUnavailable)
	}
	c.log.Debug("llm response", "runes", len([]rune(content)), "content", utils.Snippet(content, maxLogSnippetRunes))
	return content, nil
}

// Fallback is the deterministic text used whenever the model is unavailable.
func Fallback(locale string) string {
	return i18n.T("llm_unavailable", locale)
}

// Analyze returns the enrichment for a check-in prompt, or Fallback on any failure.
func (c *Client) Analyze(ctx context.Context, prompt, locale string) string {
	out, err := c.Complete(ctx, []Message{
		{Role: "system", Content: SafetySystemPrompt},
		{Role: "user", Content: prompt},
	}, 400)
	if err != nil {
		c.log.Warn("analysis degraded to fallback", "error", err)
		return Fallback(locale)
	}
	return out
}

// Chat continues a coach conversation, or returns Fallback on any failure.
func (c *Client) Chat(ctx context.Context, history []models.ChatTurn, locale string) string {
	msgs := make([]Message, 0, len(history)+1)
	msgs = append(msgs, Message{Role: "system", Content: SafetySystemPrompt + replyLanguage(locale)})
	for _, turn := range history {
		msgs = append(msgs, Message{Role: turn.Role, Content: turn.Content})
	}
	out, err := c.Complete(ctx, msgs, 500)
	if err != nil {
		c.log.Warn("coach reply degraded to fallback", "error", err)
		return Fallback(locale)
	}
	return out
}

func replyLanguage(locale string) string {
	if i18n.Or(locale) == i18n.LangEN {
		return "Reply in English."
	}
	return "Отвечай по-русски."
}
