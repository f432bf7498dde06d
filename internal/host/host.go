// Package host defines the contract of the conversational model capability that
// promptpad consumes. The capability itself lives outside this repository; the
// subpackages adapt concrete backends to it.
package host

import (
	"context"
	"fmt"
	"strings"
)

// Tier is the readiness level a capability reports for its model.
type Tier string

const (
	TierReadily       Tier = "readily"
	TierAfterDownload Tier = "after-download"
	TierNo            Tier = "no"
)

// ParseTier accepts the canonical tier names, case-insensitively.
func ParseTier(raw string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(raw))) {
	case TierReadily:
		return TierReadily, nil
	case TierAfterDownload:
		return TierAfterDownload, nil
	case TierNo:
		return TierNo, nil
	default:
		return "", fmt.Errorf("unknown tier %q (want readily|after-download|no)", raw)
	}
}

// Options configures a new session.
type Options struct {
	SystemPrompt string
}

// Capability is a registered model capability. A nil Capability means the host
// has none registered at all.
type Capability interface {
	// Availability reports the current tier without side effects.
	Availability(ctx context.Context) (Tier, error)
	// Create opens a conversational session.
	Create(ctx context.Context, opts Options) (Session, error)
}

// Session is a stateful conversational context. Prompts accumulate history.
type Session interface {
	// Prompt runs one exchange and returns the model text verbatim.
	Prompt(ctx context.Context, text string) (string, error)
	// Destroy releases host resources. It must not block for long and never
	// reports failure.
	Destroy()
}
