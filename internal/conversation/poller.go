package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/recruai/interview-sync/internal/models"
)

const (
	DefaultInterval   = 30 * time.Second
	DefaultStaleAfter = 3
)

var (
	ErrSessionClosed = errors.New("conversation: session is closed")
	ErrStopped       = errors.New("conversation: poller stopped")
	ErrNotStarted    = errors.New("conversation: poller not started")
)

// Source is the read side of the backend used by a Poller.
type Source interface {
	Interview(ctx context.Context, id models.ID) (*models.Interview, error)
	Messages(ctx context.Context, interviewID models.ID) ([]models.Message, error)
}

// State of a Poller.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Poller keeps a displayed message list in step with the backend for one interview.
// It is owned by a single view and must be stopped when the view goes away.
type Poller struct {
	source      Source
	interviewID models.ID
	interval    time.Duration
	joinLead    time.Duration
	staleAfter  int
	onStale     func(failures int, err error)
	now         func() time.Time
	logger      *zap.Logger

	visible  atomic.Bool
	inflight atomic.Bool
	state    atomic.Int32

	mu        sync.Mutex
	interview *models.Interview
	snapshot  *Snapshot
	seq       uint64 // last issued fetch
	applied   uint64 // last fetch whose result was applied
	failures  int
	updates   chan *Snapshot

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

type PollerOption func(*Poller)

func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithJoinLead(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d >= 0 {
			p.joinLead = d
		}
	}
}

// WithStaleHandler calls fn once each time the number of consecutive failed polls reaches after.
func WithStaleHandler(after int, fn func(failures int, err error)) PollerOption {
	return func(p *Poller) {
		if after > 0 {
			p.staleAfter = after
		}
		p.onStale = fn
	}
}

func WithPollerClock(now func() time.Time) PollerOption {
	return func(p *Poller) { p.now = now }
}

func WithPollerLogger(logger *zap.Logger) PollerOption {
	return func(p *Poller) { p.logger = logger }
}

func NewPoller(source Source, interviewID models.ID, opts ...PollerOption) *Poller {
	p := &Poller{
		source:      source,
		interviewID: interviewID,
		interval:    DefaultInterval,
		joinLead:    DefaultJoinLead,
		staleAfter:  DefaultStaleAfter,
		now:         time.Now,
		logger:      zap.NewNop(),
		updates:     make(chan *Snapshot, 1),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.visible.Store(true)
	p.logger = p.logger.With(zap.String("interview_id", interviewID.String()))
	return p
}

// Start loads the interview, performs the first reconciliation when the session is
// joinable and begins polling. The loop runs until ctx is done or Stop is called.
func (p *Poller) Start(ctx context.Context) error {
	if !p.state.CompareAndSwap(int32(StateIdle), int32(StatePolling)) {
		return fmt.Errorf("start poller: already %s", p.State())
	}

	interview, err := p.source.Interview(ctx, p.interviewID)
	if err != nil {
		p.state.Store(int32(StateStopped))
		close(p.done)
		return fmt.Errorf("start poller: %w", err)
	}
	if Ended(*interview, p.now()) {
		p.state.Store(int32(StateStopped))
		close(p.done)
		return ErrSessionClosed
	}

	loopCtx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	p.interview = interview
	p.cancel = cancel
	stopped := p.State() == StateStopped
	p.mu.Unlock()

	if stopped {
		cancel()
		close(p.done)
		return ErrStopped
	}

	if p.Joinable() {
		if _, err := p.Refresh(loopCtx); err != nil {
			p.logger.Warn("initial message fetch failed", zap.Error(err))
		}
	}

	go p.loop(loopCtx)

	p.logger.Info("polling started", zap.Duration("interval", p.interval))
	return nil
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.Stop()
			return
		case <-ticker.C:
			if p.tick(ctx) {
				p.logger.Info("session ended, polling stops")
				p.Stop()
				return
			}
		}
	}
}

// tick runs one timer-driven cycle and reports whether the session has ended.
// Hidden views and closed join windows make the tick a no-op without any backend call,
// and a tick that finds the previous fetch still running is skipped.
func (p *Poller) tick(ctx context.Context) bool {
	interview := p.Interview()
	if interview != nil && Ended(*interview, p.now()) {
		return true
	}

	if !p.visible.Load() || !p.Joinable() {
		return false
	}

	if !p.inflight.CompareAndSwap(false, true) {
		p.logger.Debug("previous fetch still running, skipping tick")
		return false
	}
	defer p.inflight.Store(false)

	if _, err := p.Refresh(ctx); err != nil && !errors.Is(err, ErrStopped) {
		p.logger.Warn("poll failed", zap.Error(err))
	}
	return false
}

// Refresh fetches the message list immediately and reconciles it into the current
// snapshot. Results of a fetch that started before a newer one finished are dropped,
// as are results arriving after Stop.
func (p *Poller) Refresh(ctx context.Context) (*Snapshot, error) {
	if p.State() == StateStopped {
		return p.Snapshot(), ErrStopped
	}

	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	wire, err := p.source.Messages(ctx, p.interviewID)

	p.mu.Lock()
	if p.State() == StateStopped {
		snapshot := p.snapshot
		p.mu.Unlock()
		return snapshot, ErrStopped
	}

	if err != nil {
		p.failures++
		failures, snapshot := p.failures, p.snapshot
		stale := failures == p.staleAfter && p.onStale != nil
		p.mu.Unlock()

		if stale {
			p.onStale(failures, err)
		}
		return snapshot, fmt.Errorf("refresh messages: %w", err)
	}

	defer p.mu.Unlock()

	p.failures = 0
	if seq < p.applied {
		return p.snapshot, nil
	}
	p.applied = seq

	next := Reconcile(p.snapshot, FromWireList(wire))
	if next != p.snapshot {
		p.snapshot = next
		p.publishLocked(next)
	}
	return p.snapshot, nil
}

// AppendLocal shows m after the current messages without persisting it. The next
// successful poll replaces it with the backend's list.
func (p *Poller) AppendLocal(m Message) *Snapshot {
	m.Local = true

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.State() == StateStopped {
		return p.snapshot
	}

	p.snapshot = withLocal(p.snapshot, m)
	p.publishLocked(p.snapshot)
	return p.snapshot
}

// publishLocked hands s to the updates channel, replacing an unread older snapshot.
func (p *Poller) publishLocked(s *Snapshot) {
	select {
	case p.updates <- s:
		return
	default:
	}
	select {
	case <-p.updates:
	default:
	}
	select {
	case p.updates <- s:
	default:
	}
}

// Stop ends polling, cancels in-flight requests and closes Updates. It is safe to call
// more than once.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		previous := State(p.state.Swap(int32(StateStopped)))

		p.mu.Lock()
		cancel := p.cancel
		close(p.updates)
		p.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if previous == StateIdle {
			close(p.done)
		}
		p.logger.Info("polling stopped")
	})
}

// Done is closed once the polling loop has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Updates delivers each snapshot that differs from the previous one. Only the latest
// unread snapshot is kept. The channel is closed by Stop.
func (p *Poller) Updates() <-chan *Snapshot {
	return p.updates
}

func (p *Poller) SetVisible(visible bool) {
	p.visible.Store(visible)
}

func (p *Poller) Visible() bool {
	return p.visible.Load()
}

func (p *Poller) State() State {
	return State(p.state.Load())
}

func (p *Poller) Snapshot() *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

func (p *Poller) Interview() *models.Interview {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interview
}

// Joinable evaluates the join window afresh against the current clock.
func (p *Poller) Joinable() bool {
	interview := p.Interview()
	if interview == nil {
		return false
	}
	return Joinable(*interview, p.joinLead, p.now())
}

// Failures is the number of consecutive failed fetches.
func (p *Poller) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}
