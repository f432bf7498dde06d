package popup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"promptpad/internal/host"
)

type fakeCapability struct {
	mu          sync.Mutex
	tier        host.Tier
	availErr    error
	createErr   error
	promptErr   error
	reply       string
	availCalls  int
	createCalls int
	lastOptions host.Options
	sessions    []*fakeSession

	// createGate and promptGate, when set, hold the call until closed.
	createGate chan struct{}
	promptGate chan struct{}
	// entered receives a value each time Create or Prompt starts.
	entered chan struct{}
}

func (f *fakeCapability) Availability(ctx context.Context) (host.Tier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.availCalls++
	return f.tier, f.availErr
}

func (f *fakeCapability) Create(ctx context.Context, opts host.Options) (host.Session, error) {
	f.mu.Lock()
	f.createCalls++
	f.lastOptions = opts
	gate := f.createGate
	f.mu.Unlock()
	f.signal()
	if gate != nil {
		<-gate
	}
	if f.createErr != nil {
		return nil, f.createErr
	}
	s := &fakeSession{owner: f}
	f.mu.Lock()
	f.sessions = append(f.sessions, s)
	f.mu.Unlock()
	return s, nil
}

func (f *fakeCapability) signal() {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
}

func (f *fakeCapability) counts() (avail, create, prompts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		prompts += len(s.prompts)
	}
	return f.availCalls, f.createCalls, prompts
}

type fakeSession struct {
	owner     *fakeCapability
	prompts   []string
	destroyed int
}

func (s *fakeSession) Prompt(ctx context.Context, text string) (string, error) {
	s.owner.mu.Lock()
	s.prompts = append(s.prompts, text)
	gate := s.owner.promptGate
	reply, err := s.owner.reply, s.owner.promptErr
	s.owner.mu.Unlock()
	s.owner.signal()
	if gate != nil {
		<-gate
	}
	return reply, err
}

func (s *fakeSession) Destroy() {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	s.destroyed++
}

func readyController(t *testing.T, f *fakeCapability) *Controller {
	t.Helper()
	if f.tier == "" {
		f.tier = host.TierReadily
	}
	c := New(f, WithLogger(zaptest.NewLogger(t)))
	if r := c.Probe(context.Background()); r.Status != StatusReady {
		t.Fatalf("expected ready after probe, got %s", r.Status)
	}
	return c
}

func waitEntered(t *testing.T, f *fakeCapability) {
	t.Helper()
	select {
	case <-f.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("host call never started")
	}
}

func TestProbeTiers(t *testing.T) {
	tests := []struct {
		tier        host.Tier
		status      Status
		sendEnabled bool
		message     string
		err         error
	}{
		{host.TierReadily, StatusReady, true, "Model ready", nil},
		{host.TierAfterDownload, StatusDownloading, false, "Model needs to be downloaded", ErrDownloadRequired},
		{host.TierNo, StatusUnavailable, false, "Model not available", ErrCapabilityUnavailable},
		{host.Tier("maybe-later"), StatusUnavailable, false, "Model not available", ErrCapabilityUnavailable},
	}
	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			f := &fakeCapability{tier: tt.tier}
			c := New(f)
			r := c.Probe(context.Background())
			if r.Status != tt.status {
				t.Fatalf("expected status %s, got %s", tt.status, r.Status)
			}
			if r.SendEnabled != tt.sendEnabled {
				t.Fatalf("expected send enabled=%v, got %v", tt.sendEnabled, r.SendEnabled)
			}
			if r.Message != tt.message {
				t.Fatalf("expected message %q, got %q", tt.message, r.Message)
			}
			if !errors.Is(r.Err, tt.err) {
				t.Fatalf("expected err %v, got %v", tt.err, r.Err)
			}
			c.Probe(context.Background())
			if avail, _, _ := f.counts(); avail != 1 {
				t.Fatalf("expected exactly one availability query, got %d", avail)
			}
		})
	}
}

func TestProbeCapabilityAbsent(t *testing.T) {
	c := New(nil)
	if r := c.Report(); r.Status != StatusUnknown || r.Status.Icon() != "⏳" {
		t.Fatalf("expected pending status before probe, got %s", r.Status)
	}
	r := c.Probe(context.Background())
	if r.Status != StatusUnavailable || r.SendEnabled {
		t.Fatalf("expected unavailable and disabled, got %+v", r)
	}
	if !errors.Is(r.Err, ErrCapabilityAbsent) {
		t.Fatalf("expected ErrCapabilityAbsent, got %v", r.Err)
	}
	if r.Message != "Model capability not available. Check the backend configuration." {
		t.Fatalf("unexpected message %q", r.Message)
	}
}

func TestProbeFault(t *testing.T) {
	f := &fakeCapability{availErr: errors.New("daemon exploded")}
	c := New(f)
	r := c.Probe(context.Background())
	if r.Status != StatusError || r.SendEnabled {
		t.Fatalf("expected error and disabled, got %+v", r)
	}
	if r.Message != "Error: daemon exploded" {
		t.Fatalf("expected fault text in message, got %q", r.Message)
	}
	var probeErr *ProbeError
	if !errors.As(r.Err, &probeErr) {
		t.Fatalf("expected *ProbeError, got %T", r.Err)
	}
}

func TestSendEmptyPromptMakesNoHostCall(t *testing.T) {
	f := &fakeCapability{}
	c := readyController(t, f)
	for _, prompt := range []string{"", "   ", "\n\t "} {
		if _, err := c.Send(context.Background(), prompt); !errors.Is(err, ErrEmptyPrompt) {
			t.Fatalf("prompt %q: expected ErrEmptyPrompt, got %v", prompt, err)
		}
	}
	if _, create, prompts := f.counts(); create != 0 || prompts != 0 {
		t.Fatalf("expected no host calls, got create=%d prompt=%d", create, prompts)
	}
	if DisplayText(ErrEmptyPrompt) != "Please enter a prompt" {
		t.Fatalf("unexpected validation text %q", DisplayText(ErrEmptyPrompt))
	}
}

func TestSendCreatesSessionOnce(t *testing.T) {
	f := &fakeCapability{reply: "ok"}
	c := readyController(t, f)

	if c.SessionState() != SessionAbsent {
		t.Fatalf("expected absent session before first send")
	}
	if _, err := c.Send(context.Background(), "first"); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if _, create, prompts := f.counts(); create != 1 || prompts != 1 {
		t.Fatalf("expected 1 create + 1 prompt, got create=%d prompt=%d", create, prompts)
	}
	if _, err := c.Send(context.Background(), "second"); err != nil {
		t.Fatalf("second send: %v", err)
	}
	if _, create, prompts := f.counts(); create != 1 || prompts != 2 {
		t.Fatalf("expected no extra create, got create=%d prompt=%d", create, prompts)
	}
	if c.SessionState() != SessionActive {
		t.Fatalf("expected active session, got %s", c.SessionState())
	}
	if f.lastOptions.SystemPrompt != DefaultSystemPrompt {
		t.Fatalf("expected default system prompt, got %q", f.lastOptions.SystemPrompt)
	}
}

func TestSendPassesTrimmedPrompt(t *testing.T) {
	f := &fakeCapability{reply: "ok"}
	c := readyController(t, f)
	if _, err := c.Send(context.Background(), "  explain goroutines \n"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := f.sessions[0].prompts[0]; got != "explain goroutines" {
		t.Fatalf("expected trimmed prompt, got %q", got)
	}
}

func TestSendSessionInitFailure(t *testing.T) {
	boom := errors.New("quota exhausted")
	f := &fakeCapability{createErr: boom}
	c := readyController(t, f)

	_, err := c.Send(context.Background(), "hello")
	var initErr *SessionInitError
	if !errors.As(err, &initErr) {
		t.Fatalf("expected *SessionInitError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected the underlying fault, got %v", err)
	}
	if _, create, prompts := f.counts(); create != 1 || prompts != 0 {
		t.Fatalf("expected one create and no exchange, got create=%d prompt=%d", create, prompts)
	}
	r := c.Report()
	if r.Status != StatusError || r.Message != "Session error: quota exhausted" {
		t.Fatalf("expected session error status, got %+v", r)
	}
	if c.SessionState() != SessionAbsent {
		t.Fatalf("expected no retained session, got %s", c.SessionState())
	}
	if DisplayText(err) != "Session error: quota exhausted" {
		t.Fatalf("unexpected display text %q", DisplayText(err))
	}

	f.mu.Lock()
	f.createErr = nil
	f.mu.Unlock()
	if _, err := c.Send(context.Background(), "again"); err != nil {
		t.Fatalf("expected user retry to succeed, got %v", err)
	}
	if _, create, _ := f.counts(); create != 2 {
		t.Fatalf("expected creation to be attempted again, got %d", create)
	}
}

func TestSendReturnsHostTextVerbatim(t *testing.T) {
	raw := "  <b>bold</b>\n\ttabbed & \"quoted\"  \n"
	f := &fakeCapability{reply: raw}
	c := readyController(t, f)
	reply, err := c.Send(context.Background(), "hi")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply.Text != raw {
		t.Fatalf("expected %q, got %q", raw, reply.Text)
	}
	if reply.Stale {
		t.Fatalf("did not expect a stale reply")
	}
}

func TestSendFaultLeavesStatus(t *testing.T) {
	f := &fakeCapability{promptErr: errors.New("rate limited")}
	c := readyController(t, f)
	before := c.Report()

	_, err := c.Send(context.Background(), "hi")
	var sendErr *SendError
	if !errors.As(err, &sendErr) {
		t.Fatalf("expected *SendError, got %v", err)
	}
	if got := DisplayText(err); got != "Error: rate limited" {
		t.Fatalf("expected %q, got %q", "Error: rate limited", got)
	}
	if after := c.Report(); after != before {
		t.Fatalf("expected status unchanged, before=%+v after=%+v", before, after)
	}
	if c.Busy() {
		t.Fatalf("expected in-flight flag cleared after fault")
	}
}

func TestSendDisabledNeverReachesHost(t *testing.T) {
	f := &fakeCapability{tier: host.TierAfterDownload}
	c := New(f)
	if r := c.Probe(context.Background()); r.Status != StatusDownloading || r.SendEnabled {
		t.Fatalf("expected downloading and disabled, got %+v", r)
	}
	if _, err := c.Send(context.Background(), "hello"); !errors.Is(err, ErrSendDisabled) {
		t.Fatalf("expected ErrSendDisabled, got %v", err)
	}
	if _, create, prompts := f.counts(); create != 0 || prompts != 0 {
		t.Fatalf("expected no host calls, got create=%d prompt=%d", create, prompts)
	}
}

func TestSendBeforeProbeIsDisabled(t *testing.T) {
	f := &fakeCapability{tier: host.TierReadily}
	c := New(f)
	if _, err := c.Send(context.Background(), "hello"); !errors.Is(err, ErrSendDisabled) {
		t.Fatalf("expected ErrSendDisabled, got %v", err)
	}
}

func TestSendIsSingleFlight(t *testing.T) {
	f := &fakeCapability{reply: "done", promptGate: make(chan struct{}), entered: make(chan struct{}, 4)}
	c := readyController(t, f)

	done := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), "slow")
		done <- err
	}()
	waitEntered(t, f) // create
	waitEntered(t, f) // prompt

	if !c.Busy() {
		t.Fatalf("expected busy while exchange in flight")
	}
	if _, err := c.Send(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	close(f.promptGate)
	if err := <-done; err != nil {
		t.Fatalf("first send: %v", err)
	}
	if _, _, prompts := f.counts(); prompts != 1 {
		t.Fatalf("expected one exchange, got %d", prompts)
	}
	if c.Busy() {
		t.Fatalf("expected idle after exchange")
	}
}

func TestClearMarksInFlightReplyStale(t *testing.T) {
	f := &fakeCapability{reply: "late", promptGate: make(chan struct{}), entered: make(chan struct{}, 4)}
	c := readyController(t, f)

	type result struct {
		reply Reply
		err   error
	}
	done := make(chan result, 1)
	go func() {
		r, err := c.Send(context.Background(), "question")
		done <- result{r, err}
	}()
	waitEntered(t, f)
	waitEntered(t, f)

	if gen := c.Clear(); gen != 1 {
		t.Fatalf("expected generation 1, got %d", gen)
	}
	close(f.promptGate)
	res := <-done
	if res.err != nil {
		t.Fatalf("send: %v", res.err)
	}
	if !res.reply.Stale || res.reply.Generation != 0 {
		t.Fatalf("expected stale reply from generation 0, got %+v", res.reply)
	}

	f.mu.Lock()
	f.promptGate = nil
	f.entered = nil
	f.mu.Unlock()
	fresh, err := c.Send(context.Background(), "again")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if fresh.Stale || fresh.Generation != 1 {
		t.Fatalf("expected fresh reply in generation 1, got %+v", fresh)
	}
}

func TestTeardownWithoutSessionIsNoop(t *testing.T) {
	f := &fakeCapability{}
	c := readyController(t, f)
	c.Teardown()
	if _, create, _ := f.counts(); create != 0 {
		t.Fatalf("expected no session activity, got %d creates", create)
	}
	if _, err := c.Send(context.Background(), "hi"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after teardown, got %v", err)
	}
}

func TestTeardownReleasesSessionOnce(t *testing.T) {
	f := &fakeCapability{reply: "ok"}
	c := readyController(t, f)
	if _, err := c.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}
	c.Teardown()
	c.Teardown()
	if got := f.sessions[0].destroyed; got != 1 {
		t.Fatalf("expected exactly one release, got %d", got)
	}
	if c.SessionState() != SessionAbsent {
		t.Fatalf("expected absent after teardown, got %s", c.SessionState())
	}
	if c.Report().SendEnabled {
		t.Fatalf("expected send disabled after teardown")
	}
}

func TestTeardownDuringCreationReleasesLateSession(t *testing.T) {
	f := &fakeCapability{tier: host.TierReadily, createGate: make(chan struct{}), entered: make(chan struct{}, 2)}
	c := readyController(t, f)

	done := make(chan error, 1)
	go func() {
		_, err := c.EnsureSession(context.Background())
		done <- err
	}()
	waitEntered(t, f)
	if c.SessionState() != SessionCreating {
		t.Fatalf("expected creating, got %s", c.SessionState())
	}
	c.Teardown()
	close(f.createGate)

	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if got := f.sessions[0].destroyed; got != 1 {
		t.Fatalf("expected late session to be released, got %d", got)
	}
	if c.SessionState() != SessionAbsent {
		t.Fatalf("expected absent, got %s", c.SessionState())
	}
}

func TestEnsureSessionConcurrentCallersShareOne(t *testing.T) {
	f := &fakeCapability{}
	c := readyController(t, f)

	var wg sync.WaitGroup
	got := make([]host.Session, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := c.EnsureSession(context.Background())
			if err != nil {
				t.Errorf("ensure: %v", err)
			}
			got[i] = s
		}(i)
	}
	wg.Wait()
	if _, create, _ := f.counts(); create != 1 {
		t.Fatalf("expected one creation, got %d", create)
	}
	for _, s := range got[1:] {
		if s != got[0] {
			t.Fatalf("expected every caller to get the same session")
		}
	}
}

func TestEnsureSessionWithoutCapability(t *testing.T) {
	c := New(nil)
	c.Probe(context.Background())
	_, err := c.EnsureSession(context.Background())
	if !errors.Is(err, ErrCapabilityAbsent) {
		t.Fatalf("expected ErrCapabilityAbsent, got %v", err)
	}
	if c.Report().Status != StatusError {
		t.Fatalf("expected error status, got %s", c.Report().Status)
	}
}

func TestWithSystemPrompt(t *testing.T) {
	f := &fakeCapability{tier: host.TierReadily}
	c := New(f, WithSystemPrompt("  be terse  "), WithLogger(nil))
	c.Probe(context.Background())
	if _, err := c.EnsureSession(context.Background()); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if f.lastOptions.SystemPrompt != "be terse" {
		t.Fatalf("expected custom system prompt, got %q", f.lastOptions.SystemPrompt)
	}
}
