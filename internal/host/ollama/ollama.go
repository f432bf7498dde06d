// Package ollama adapts a local Ollama daemon to the host capability contract.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"promptpad/internal/host"
)

const (
	DefaultBaseURL = "http://127.0.0.1:11434"
	DefaultModel   = "llama3.2:3b"

	releaseTimeout = 2 * time.Second
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

type tagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

type unloadRequest struct {
	Model     string `json:"model"`
	KeepAlive int    `json:"keep_alive"`
}

// Capability talks to Ollama over its HTTP API.
type Capability struct {
	Model  string
	client *resty.Client
}

// New builds a capability for model at baseURL. Host calls carry no client
// timeout; callers bound them through the context if they want to.
func New(baseURL, model string) *Capability {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	client := resty.New().
		SetBaseURL(base).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "promptpad/1.0")
	return &Capability{Model: model, client: client}
}

// Availability lists the installed models: the configured model present means
// readily, a running daemon without it means the model must be pulled first, and
// an unreachable daemon means no capability.
func (c *Capability) Availability(ctx context.Context) (host.Tier, error) {
	var tags tagsResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&tags).
		Get("/api/tags")
	if err != nil {
		if isDialError(err) {
			return host.TierNo, nil
		}
		return "", fmt.Errorf("ollama: list models: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("ollama: list models: unexpected status %d", resp.StatusCode())
	}
	for _, m := range tags.Models {
		if modelMatches(c.Model, m.Name) || modelMatches(c.Model, m.Model) {
			return host.TierReadily, nil
		}
	}
	return host.TierAfterDownload, nil
}

func (c *Capability) Create(ctx context.Context, opts host.Options) (host.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ollama: create session: %w", err)
	}
	s := &Session{
		id:     uuid.NewString(),
		model:  c.Model,
		client: c.client,
	}
	if prompt := strings.TrimSpace(opts.SystemPrompt); prompt != "" {
		s.history = append(s.history, chatMessage{Role: "system", Content: prompt})
	}
	return s, nil
}

// Session keeps the chat history sent with every exchange.
type Session struct {
	id     string
	model  string
	client *resty.Client

	mu        sync.Mutex
	history   []chatMessage
	destroyed bool
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

func (s *Session) Prompt(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return "", errors.New("ollama: session destroyed")
	}
	messages := make([]chatMessage, len(s.history), len(s.history)+1)
	copy(messages, s.history)
	s.mu.Unlock()

	user := chatMessage{Role: "user", Content: text}
	messages = append(messages, user)

	var out chatResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(chatRequest{Model: s.model, Messages: messages, Stream: false}).
		SetResult(&out).
		Post("/api/chat")
	if err != nil {
		return "", fmt.Errorf("ollama: chat: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("ollama: chat: unexpected status %d: %s", resp.StatusCode(), compactSingleLine(resp.String(), 240))
	}

	s.mu.Lock()
	s.history = append(s.history, user, chatMessage{Role: "assistant", Content: out.Message.Content})
	s.mu.Unlock()
	return out.Message.Content, nil
}

// Destroy asks the daemon to unload the model. The outcome is not reported.
func (s *Session) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	s.history = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	_, _ = s.client.R().
		SetContext(ctx).
		SetBody(unloadRequest{Model: s.model, KeepAlive: 0}).
		Post("/api/generate")
}

func modelMatches(want, got string) bool {
	want = strings.TrimSpace(want)
	got = strings.TrimSpace(got)
	if want == "" || got == "" {
		return false
	}
	if want == got {
		return true
	}
	return !strings.Contains(want, ":") && got == want+":latest"
}

func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func compactSingleLine(text string, limit int) string {
	line := strings.Join(strings.Fields(text), " ")
	if limit <= 0 || len(line) <= limit {
		return line
	}
	if limit <= 3 {
		return line[:limit]
	}
	return line[:limit-3] + "..."
}
