package host

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Mock is an in-process capability that echoes prompts after a delay.
// Used for demos and for running the popup without a model backend.
type Mock struct {
	Tier  Tier
	Delay time.Duration
	// Fail, when set, is returned by every Prompt call.
	Fail error
}

func (m *Mock) Availability(ctx context.Context) (Tier, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("mock: %w", err)
	}
	if m.Tier == "" {
		return TierReadily, nil
	}
	return m.Tier, nil
}

func (m *Mock) Create(ctx context.Context, opts Options) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("mock: %w", err)
	}
	return &mockSession{owner: m, system: opts.SystemPrompt}, nil
}

type mockSession struct {
	owner  *Mock
	system string

	mu    sync.Mutex
	turns int
}

func (s *mockSession) Prompt(ctx context.Context, text string) (string, error) {
	if s.owner.Delay > 0 {
		select {
		case <-time.After(s.owner.Delay):
		case <-ctx.Done():
			return "", fmt.Errorf("mock: %w", ctx.Err())
		}
	}
	if s.owner.Fail != nil {
		return "", s.owner.Fail
	}
	s.mu.Lock()
	s.turns++
	turn := s.turns
	s.mu.Unlock()
	return fmt.Sprintf("[mock turn %d] %s", turn, strings.TrimSpace(text)), nil
}

func (s *mockSession) Destroy() {}
