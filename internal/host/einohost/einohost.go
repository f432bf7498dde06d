// Package einohost exposes any eino chat model as a host capability. The Ark
// (Volcengine) model is the one wired by default.
package einohost

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"promptpad/internal/host"
)

// Capability wraps a chat model. A Capability without a model reports tier no.
type Capability struct {
	Model model.BaseChatModel
}

// ArkConfig holds the credentials and model of an Ark endpoint.
type ArkConfig struct {
	BaseURL   string
	Region    string
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
}

// Enabled reports whether enough credentials are present to build a model.
func (c ArkConfig) Enabled() bool {
	if strings.TrimSpace(c.Model) == "" {
		return false
	}
	if strings.TrimSpace(c.APIKey) != "" {
		return true
	}
	return strings.TrimSpace(c.AccessKey) != "" && strings.TrimSpace(c.SecretKey) != ""
}

// NewArk builds a capability backed by Ark. Missing credentials yield a
// capability that reports tier no rather than an error.
func NewArk(ctx context.Context, cfg ArkConfig) (*Capability, error) {
	if !cfg.Enabled() {
		return &Capability{}, nil
	}
	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:   cfg.BaseURL,
		Region:    cfg.Region,
		APIKey:    cfg.APIKey,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Model:     cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("ark: create chat model: %w", err)
	}
	return &Capability{Model: chatModel}, nil
}

func (c *Capability) Availability(ctx context.Context) (host.Tier, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c.Model == nil {
		return host.TierNo, nil
	}
	return host.TierReadily, nil
}

func (c *Capability) Create(ctx context.Context, opts host.Options) (host.Session, error) {
	if c.Model == nil {
		return nil, errors.New("eino: no chat model configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &Session{id: uuid.NewString(), model: c.Model}
	if prompt := strings.TrimSpace(opts.SystemPrompt); prompt != "" {
		s.history = append(s.history, schema.SystemMessage(prompt))
	}
	return s, nil
}

// Session accumulates the conversation fed to Generate.
type Session struct {
	id    string
	model model.BaseChatModel

	mu        sync.Mutex
	history   []*schema.Message
	destroyed bool
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

func (s *Session) Prompt(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return "", errors.New("eino: session destroyed")
	}
	input := make([]*schema.Message, len(s.history), len(s.history)+1)
	copy(input, s.history)
	s.mu.Unlock()

	user := schema.UserMessage(text)
	input = append(input, user)

	out, err := s.model.Generate(ctx, input)
	if err != nil {
		return "", fmt.Errorf("eino: generate: %w", err)
	}
	if out == nil {
		return "", errors.New("eino: generate returned no message")
	}

	s.mu.Lock()
	s.history = append(s.history, user, schema.AssistantMessage(out.Content, nil))
	s.mu.Unlock()
	return out.Content, nil
}

// Destroy drops the history; eino models hold no server-side session.
func (s *Session) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
	s.history = nil
}
