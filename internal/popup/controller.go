// Package popup holds the popup's state machine: a one-shot availability probe
// and a gateway owning the single model session. It knows nothing about
// rendering; the UI adapter calls Probe, Send, Clear and Teardown and draws
// whatever Report and Reply say.
package popup

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"promptpad/internal/host"
	"promptpad/internal/metrics"
)

// DefaultSystemPrompt is the instruction every session is created with.
const DefaultSystemPrompt = "You are a helpful AI assistant integrated into a terminal application."

// Reply is the outcome of one exchange.
type Reply struct {
	Text string
	// Generation is the Clear generation the exchange started in.
	Generation uint64
	// Stale is set when Clear ran while the exchange was in flight. The caller
	// should discard the reply, including any error returned with it.
	Stale bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSystemPrompt overrides DefaultSystemPrompt.
func WithSystemPrompt(prompt string) Option {
	return func(c *Controller) {
		if p := strings.TrimSpace(prompt); p != "" {
			c.systemPrompt = p
		}
	}
}

// Controller owns the status, the session handle and the in-flight flag.
// It is safe for concurrent use; host calls run without holding the state lock.
type Controller struct {
	capability   host.Capability
	systemPrompt string
	logger       *zap.Logger

	// createMu serializes session creation so two callers never open two sessions.
	createMu sync.Mutex

	mu           sync.Mutex
	probed       bool
	report       Report
	session      host.Session
	sessionState SessionState
	inFlight     bool
	generation   uint64
	closed       bool
}

// New returns a controller for capability. A nil capability means none is
// registered with the host.
func New(capability host.Capability, opts ...Option) *Controller {
	c := &Controller{
		capability:   capability,
		systemPrompt: DefaultSystemPrompt,
		logger:       zap.NewNop(),
		report:       Report{Status: StatusUnknown, Message: msgPending},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Probe queries the capability tier once and maps it to a Status. Later calls
// return the first result without asking the host again.
func (c *Controller) Probe(ctx context.Context) Report {
	c.mu.Lock()
	if c.probed {
		r := c.report
		c.mu.Unlock()
		return r
	}
	c.probed = true
	c.mu.Unlock()

	r := c.query(ctx)

	c.mu.Lock()
	c.report = r
	c.mu.Unlock()

	metrics.ProbesTotal.WithLabelValues(r.Status.String()).Inc()
	c.logger.Info("availability probed",
		zap.String("status", r.Status.String()),
		zap.Bool("send_enabled", r.SendEnabled),
		zap.String("message", r.Message),
	)
	return r
}

func (c *Controller) query(ctx context.Context) Report {
	if c.capability == nil {
		return Report{Status: StatusUnavailable, Message: msgAbsent, Err: ErrCapabilityAbsent}
	}
	tier, err := c.capability.Availability(ctx)
	if err != nil {
		return Report{Status: StatusError, Message: "Error: " + err.Error(), Err: &ProbeError{Err: err}}
	}
	switch tier {
	case host.TierReadily:
		return Report{Status: StatusReady, Message: msgReady, SendEnabled: true}
	case host.TierAfterDownload:
		return Report{Status: StatusDownloading, Message: msgDownload, Err: ErrDownloadRequired}
	default:
		return Report{Status: StatusUnavailable, Message: msgUnavailable, Err: ErrCapabilityUnavailable}
	}
}

// Report returns the current status snapshot.
func (c *Controller) Report() Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.report
}

// Busy reports whether an exchange is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// SessionState reports where the session lifecycle stands.
func (c *Controller) SessionState() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionState
}

// Generation returns the current Clear generation.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// EnsureSession returns the live session, creating it on first use. A failed
// creation sets the status to error and leaves no session behind.
func (c *Controller) EnsureSession(ctx context.Context) (host.Session, error) {
	c.createMu.Lock()
	defer c.createMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.session != nil {
		s := c.session
		c.mu.Unlock()
		return s, nil
	}
	c.sessionState = SessionCreating
	c.mu.Unlock()

	var (
		s   host.Session
		err error
	)
	if c.capability == nil {
		err = ErrCapabilityAbsent
	} else {
		s, err = c.capability.Create(ctx, host.Options{SystemPrompt: c.systemPrompt})
	}

	c.mu.Lock()
	if err != nil {
		c.sessionState = SessionAbsent
		c.report = Report{
			Status:      StatusError,
			Message:     "Session error: " + err.Error(),
			SendEnabled: c.report.SendEnabled,
			Err:         &SessionInitError{Err: err},
		}
		c.mu.Unlock()
		metrics.SessionsTotal.WithLabelValues("error").Inc()
		c.logger.Warn("session creation failed", zap.Error(err))
		return nil, &SessionInitError{Err: err}
	}
	if c.closed {
		c.sessionState = SessionAbsent
		c.mu.Unlock()
		s.Destroy()
		return nil, ErrClosed
	}
	c.session = s
	c.sessionState = SessionActive
	c.mu.Unlock()

	metrics.SessionsTotal.WithLabelValues("ok").Inc()
	c.logger.Info("session created", zap.String("session_id", sessionID(s)))
	return s, nil
}

// Send runs one exchange with the trimmed prompt. Only one exchange may be in
// flight; a concurrent call gets ErrBusy. Host faults come back as
// *SessionInitError or *SendError and never touch the status on send.
func (c *Controller) Send(ctx context.Context, prompt string) (Reply, error) {
	text := strings.TrimSpace(prompt)
	if text == "" {
		return Reply{}, ErrEmptyPrompt
	}

	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return Reply{}, ErrClosed
	case !c.report.SendEnabled:
		c.mu.Unlock()
		return Reply{}, ErrSendDisabled
	case c.inFlight:
		c.mu.Unlock()
		return Reply{}, ErrBusy
	}
	c.inFlight = true
	gen := c.generation
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	session, err := c.EnsureSession(ctx)
	if err != nil {
		return c.landed(gen, ""), err
	}

	metrics.PromptChars.Observe(float64(len(text)))
	start := time.Now()
	out, err := session.Prompt(ctx, text)
	elapsed := time.Since(start)
	metrics.ExchangeDuration.Observe(elapsed.Seconds())

	reply := c.landed(gen, out)
	if err != nil {
		metrics.ExchangesTotal.WithLabelValues("error").Inc()
		c.logger.Warn("exchange failed",
			zap.String("session_id", sessionID(session)),
			zap.Duration("elapsed", elapsed),
			zap.Bool("stale", reply.Stale),
			zap.Error(err),
		)
		reply.Text = ""
		return reply, &SendError{Err: err}
	}
	metrics.ExchangesTotal.WithLabelValues("ok").Inc()
	c.logger.Info("exchange finished",
		zap.String("session_id", sessionID(session)),
		zap.Duration("elapsed", elapsed),
		zap.Int("prompt_chars", len(text)),
		zap.Int("response_chars", len(out)),
		zap.Bool("stale", reply.Stale),
	)
	return reply, nil
}

func (c *Controller) landed(gen uint64, text string) Reply {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Reply{Text: text, Generation: gen, Stale: c.generation != gen}
}

// Clear starts a new generation. Replies from exchanges started before it
// come back marked stale. The in-flight exchange itself keeps running.
func (c *Controller) Clear() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	return c.generation
}

// Teardown releases the session if one exists and closes the controller.
// Release is best effort and an in-flight exchange is not cancelled.
func (c *Controller) Teardown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	s := c.session
	c.session = nil
	if c.sessionState == SessionActive {
		c.sessionState = SessionAbsent
	}
	c.report.SendEnabled = false
	c.mu.Unlock()

	if s == nil {
		return
	}
	s.Destroy()
	c.logger.Info("session released", zap.String("session_id", sessionID(s)))
}

func sessionID(s host.Session) string {
	if withID, ok := s.(interface{ ID() string }); ok {
		return withID.ID()
	}
	return "-"
}
