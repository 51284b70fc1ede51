package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/recruai/interview-sync/internal/models"
)

var start = time.Date(2024, time.January, 15, 10, 0, 0, 0, time.UTC)

type fakeBackend struct {
	mu        sync.Mutex
	interview models.Interview
	messages  []models.Message
	calls     int
	fetchErr  error
	postErr   error
	replyErr  error
	reply     string
	posted    []models.NewMessage
	requests  []models.ReplyRequest
	hook      func(call int)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		interview: models.Interview{
			ID:              "42",
			ScheduledAt:     start,
			DurationMinutes: 60,
			Status:          models.StatusScheduled,
		},
		reply: "Why do you want this role?",
	}
}

func (f *fakeBackend) Interview(context.Context, models.ID) (*models.Interview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	interview := f.interview
	return &interview, nil
}

func (f *fakeBackend) Messages(ctx context.Context, _ models.ID) ([]models.Message, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	data := append([]models.Message(nil), f.messages...)
	err := f.fetchErr
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (f *fakeBackend) PostMessage(_ context.Context, _ models.ID, msg models.NewMessage) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return nil, f.postErr
	}
	f.posted = append(f.posted, msg)
	created := wire(string(rune('a'+len(f.messages))), msg.Content, "Ada")
	created.MessageType = msg.MessageType
	f.messages = append(f.messages, created)
	return &created, nil
}

func (f *fakeBackend) GenerateReply(_ context.Context, req models.ReplyRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.replyErr != nil {
		return "", f.replyErr
	}
	return f.reply, nil
}

func (f *fakeBackend) fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeBackend) set(fn func(f *fakeBackend)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func wire(id, content, name string) models.Message {
	return models.Message{
		ID:          models.ID(id),
		Content:     content,
		UserID:      "5",
		MessageType: "user",
		CreatedAt:   "2024-01-15T10:05:00Z",
		User:        models.MessageUser{Name: name},
	}
}

func display(id, content, name string) Message {
	return FromWire(wire(id, content, name))
}

func clockAt(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestReconcileIsIdempotent(t *testing.T) {
	fetched := []Message{display("1", "hi", "Ada"), display("2", "hello", "Bob")}

	first := Reconcile(nil, fetched)
	second := Reconcile(first, []Message{display("1", "hi", "Ada"), display("2", "hello", "Bob")})

	if first != second {
		t.Fatalf("expected the same snapshot when nothing changed")
	}
}

func TestReconcileReplacesOnChange(t *testing.T) {
	prev := Reconcile(nil, []Message{display("1", "a", "Ada"), display("2", "b", "Ada"), display("3", "c", "Ada")})

	cases := []struct {
		name    string
		fetched []Message
	}{
		{"content at index 1", []Message{display("1", "a", "Ada"), display("2", "B", "Ada"), display("3", "c", "Ada")}},
		{"id at index 2", []Message{display("1", "a", "Ada"), display("2", "b", "Ada"), display("4", "c", "Ada")}},
		{"sender name", []Message{display("1", "a", "Ada"), display("2", "b", "Grace"), display("3", "c", "Ada")}},
		{"shorter", []Message{display("1", "a", "Ada")}},
		{"longer", []Message{display("1", "a", "Ada"), display("2", "b", "Ada"), display("3", "c", "Ada"), display("4", "d", "Ada")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next := Reconcile(prev, tc.fetched)
			if next == prev {
				t.Fatalf("expected a new snapshot")
			}
			if len(next.Messages) != len(tc.fetched) {
				t.Fatalf("expected %d messages, got %d", len(tc.fetched), len(next.Messages))
			}
			for i := range tc.fetched {
				if next.Messages[i] != tc.fetched[i] {
					t.Fatalf("message %d: expected %+v, got %+v", i, tc.fetched[i], next.Messages[i])
				}
			}
		})
	}
}

func TestReconcileIgnoresFieldsOutsideComparison(t *testing.T) {
	prev := Reconcile(nil, []Message{display("1", "a", "Ada")})

	moved := display("1", "a", "Ada")
	moved.CreatedAt = moved.CreatedAt.Add(time.Minute)

	if next := Reconcile(prev, []Message{moved}); next != prev {
		t.Fatalf("timestamps alone must not replace the snapshot")
	}
}

func TestReconcileEmptyLists(t *testing.T) {
	empty := Reconcile(nil, nil)
	if empty == nil || empty.Len() != 0 {
		t.Fatalf("expected an empty snapshot")
	}
	if again := Reconcile(empty, []Message{}); again != empty {
		t.Fatalf("expected empty snapshot to be kept")
	}
}

func TestFromWire(t *testing.T) {
	ai := models.Message{ID: "9", Content: "Tell me about yourself", MessageType: "assistant", CreatedAt: float64(1705312800000)}

	msg := FromWire(ai)
	if msg.SenderType != SenderAI || msg.SenderName != aiDisplayName {
		t.Fatalf("unexpected ai message %+v", msg)
	}
	if !msg.CreatedAt.Equal(start) {
		t.Fatalf("expected %s, got %s", start, msg.CreatedAt)
	}

	user := FromWire(models.Message{ID: "10", MessageType: "", CreatedAt: "garbage", User: models.MessageUser{Name: " Ada "}})
	if user.SenderType != SenderUser || user.SenderName != "Ada" || !user.CreatedAt.IsZero() {
		t.Fatalf("unexpected user message %+v", user)
	}
}

func TestCanJoinBoundaries(t *testing.T) {
	duration := 45 * time.Minute

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"15:01 before start", start.Add(-15*time.Minute - time.Second), false},
		{"15:00 before start", start.Add(-15 * time.Minute), true},
		{"14:59 before start", start.Add(-14*time.Minute - 59*time.Second), true},
		{"at start", start, true},
		{"in progress", start.Add(30 * time.Minute), true},
		{"at end", start.Add(duration), false},
		{"a minute after end", start.Add(duration + time.Minute), false},
		{"an hour before", start.Add(-time.Hour), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanJoin(start, duration, DefaultJoinLead, tc.now); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}

	closed := models.Interview{ScheduledAt: start, DurationMinutes: 45, Status: models.StatusCompleted}
	if Joinable(closed, DefaultJoinLead, start) {
		t.Fatalf("completed interviews are never joinable")
	}
	if CanJoin(time.Time{}, duration, DefaultJoinLead, start) {
		t.Fatalf("unscheduled interviews are not joinable")
	}
}

func TestTickWhileHiddenMakesNoCalls(t *testing.T) {
	fake := newFakeBackend()
	fake.messages = []models.Message{wire("1", "hi", "Ada")}

	p := NewPoller(fake, "42", WithInterval(time.Hour), WithPollerClock(clockAt(start)))
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop()

	if fake.fetches() != 1 {
		t.Fatalf("expected the initial fetch, got %d", fake.fetches())
	}

	p.SetVisible(false)
	p.tick(context.Background())
	p.tick(context.Background())
	if fake.fetches() != 1 {
		t.Fatalf("hidden ticks must not fetch, got %d calls", fake.fetches())
	}

	p.SetVisible(true)
	p.tick(context.Background())
	if fake.fetches() != 2 {
		t.Fatalf("visible tick should fetch, got %d calls", fake.fetches())
	}
}

func TestTickOutsideJoinWindowMakesNoCalls(t *testing.T) {
	fake := newFakeBackend()

	p := NewPoller(fake, "42", WithInterval(time.Hour), WithPollerClock(clockAt(start.Add(-2*time.Hour))))
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop()

	p.tick(context.Background())
	if fake.fetches() != 0 {
		t.Fatalf("expected no fetches before the join window, got %d", fake.fetches())
	}
	if p.Joinable() {
		t.Fatalf("expected session not to be joinable yet")
	}
}

func TestStartRejectsEndedSession(t *testing.T) {
	fake := newFakeBackend()

	p := NewPoller(fake, "42", WithPollerClock(clockAt(start.Add(2*time.Hour))))
	if err := p.Start(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if p.State() != StateStopped {
		t.Fatalf("expected stopped state, got %s", p.State())
	}
	p.Stop()
}

func TestRefreshFailureKeepsSnapshotAndReportsStale(t *testing.T) {
	fake := newFakeBackend()
	fake.messages = []models.Message{wire("1", "hi", "Ada")}

	var staleCalls []int
	p := NewPoller(fake, "42", WithStaleHandler(2, func(failures int, err error) {
		staleCalls = append(staleCalls, failures)
	}))
	defer p.Stop()

	good, err := p.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	fake.set(func(f *fakeBackend) { f.fetchErr = errors.New("network down") })
	for i := 0; i < 3; i++ {
		snapshot, err := p.Refresh(context.Background())
		if err == nil {
			t.Fatalf("expected refresh error")
		}
		if snapshot != good {
			t.Fatalf("failed refresh must keep the previous snapshot")
		}
	}

	if len(staleCalls) != 1 || staleCalls[0] != 2 {
		t.Fatalf("expected one stale notification at 2 failures, got %v", staleCalls)
	}
	if p.Failures() != 3 {
		t.Fatalf("expected 3 consecutive failures, got %d", p.Failures())
	}

	fake.set(func(f *fakeBackend) { f.fetchErr = nil })
	if _, err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh after recovery: %v", err)
	}
	if p.Failures() != 0 {
		t.Fatalf("expected failures to reset, got %d", p.Failures())
	}
}

func TestOlderFetchDoesNotOverwriteNewer(t *testing.T) {
	fake := newFakeBackend()
	fake.messages = []models.Message{wire("1", "hi", "Ada")}

	entered := make(chan struct{})
	release := make(chan struct{})
	fake.hook = func(call int) {
		if call == 1 {
			close(entered)
			<-release
		}
	}

	p := NewPoller(fake, "42")
	defer p.Stop()

	slow := make(chan *Snapshot)
	go func() {
		snapshot, _ := p.Refresh(context.Background())
		slow <- snapshot
	}()
	<-entered

	fake.set(func(f *fakeBackend) { f.messages = append(f.messages, wire("2", "there", "Ada")) })
	fresh, err := p.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if fresh.Len() != 2 {
		t.Fatalf("expected 2 messages, got %d", fresh.Len())
	}

	close(release)
	if got := <-slow; got != fresh {
		t.Fatalf("stale result must not replace the newer snapshot")
	}
	if p.Snapshot().Len() != 2 {
		t.Fatalf("expected snapshot to keep 2 messages, got %d", p.Snapshot().Len())
	}
}

func TestStopDiscardsInFlightResults(t *testing.T) {
	fake := newFakeBackend()
	fake.messages = []models.Message{wire("1", "hi", "Ada")}

	entered := make(chan struct{})
	release := make(chan struct{})
	fake.hook = func(call int) {
		close(entered)
		<-release
	}

	p := NewPoller(fake, "42")

	result := make(chan error)
	go func() {
		_, err := p.Refresh(context.Background())
		result <- err
	}()
	<-entered

	p.Stop()
	p.Stop()
	close(release)

	if err := <-result; !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if p.Snapshot() != nil {
		t.Fatalf("expected no snapshot after discarded fetch")
	}
	if _, open := <-p.Updates(); open {
		t.Fatalf("expected updates channel to be closed")
	}
	select {
	case <-p.Done():
	default:
		t.Fatalf("expected done to be closed")
	}
}

func TestPollerLoopPublishesChanges(t *testing.T) {
	fake := newFakeBackend()
	fake.messages = []models.Message{wire("1", "hi", "Ada")}

	p := NewPoller(fake, "42", WithInterval(10*time.Millisecond), WithPollerClock(clockAt(start)))
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	first := waitForUpdate(t, p)
	if first.Len() != 1 {
		t.Fatalf("expected 1 message, got %d", first.Len())
	}

	fake.set(func(f *fakeBackend) { f.messages = append(f.messages, wire("2", "new", "Bob")) })

	second := waitForUpdate(t, p)
	if second.Len() != 2 || second.Messages[1].Content != "new" {
		t.Fatalf("unexpected second snapshot %+v", second)
	}

	p.Stop()
	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatalf("poller loop did not exit")
	}
}

func TestPollerStopsWhenContextEnds(t *testing.T) {
	fake := newFakeBackend()

	ctx, cancel := context.WithCancel(context.Background())
	p := NewPoller(fake, "42", WithInterval(time.Hour), WithPollerClock(clockAt(start)))
	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	cancel()
	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatalf("poller loop did not exit")
	}
	if p.State() != StateStopped {
		t.Fatalf("expected stopped state, got %s", p.State())
	}
}

func waitForUpdate(t *testing.T, p *Poller) *Snapshot {
	t.Helper()
	select {
	case s, ok := <-p.Updates():
		if !ok {
			t.Fatalf("updates closed")
		}
		return s
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for snapshot")
	}
	return nil
}

func startedPoller(t *testing.T, fake *fakeBackend) *Poller {
	t.Helper()
	p := NewPoller(fake, "42", WithInterval(time.Hour), WithPollerClock(clockAt(start)))
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(p.Stop)
	return p
}

func TestSendRefreshesImmediately(t *testing.T) {
	fake := newFakeBackend()
	p := startedPoller(t, fake)
	sender := NewSender(fake, p, "5")

	if err := sender.Send(context.Background(), "  I have five years of Go.  "); err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(fake.posted) != 1 || fake.posted[0].Content != "I have five years of Go." || fake.posted[0].MessageType != "user" {
		t.Fatalf("unexpected posts %+v", fake.posted)
	}
	snapshot := p.Snapshot()
	if snapshot.Len() != 1 || snapshot.Messages[0].Content != "I have five years of Go." {
		t.Fatalf("expected the sent message to be visible, got %+v", snapshot)
	}
	if len(fake.requests) != 0 {
		t.Fatalf("no auto reply expected without an agent")
	}
}

func TestSendWithAgentPostsReply(t *testing.T) {
	fake := newFakeBackend()
	fake.interview.AgentID = "7"
	fake.messages = []models.Message{{ID: "q", Content: "Welcome", MessageType: "ai"}}
	p := startedPoller(t, fake)
	sender := NewSender(fake, p, "5")

	if err := sender.Send(context.Background(), "Thanks"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(fake.posted) != 2 || fake.posted[1].MessageType != "ai" || fake.posted[1].Content != fake.reply {
		t.Fatalf("unexpected posts %+v", fake.posted)
	}
	if len(fake.requests) != 1 {
		t.Fatalf("expected one reply request, got %d", len(fake.requests))
	}
	req := fake.requests[0]
	if req.AgentID != "7" || req.InterviewID != "42" || req.Message != "Thanks" {
		t.Fatalf("unexpected reply request %+v", req)
	}
	if len(req.ConversationHistory) != 1 || req.ConversationHistory[0].Role != "assistant" || req.ConversationHistory[0].Content != "Welcome" {
		t.Fatalf("history must hold only the turns before the new message, got %+v", req.ConversationHistory)
	}
	if p.Snapshot().Len() != 3 {
		t.Fatalf("expected 3 messages after reply, got %d", p.Snapshot().Len())
	}
}

func TestSendFailureAppendsLocalNoticeThatHeals(t *testing.T) {
	fake := newFakeBackend()
	fake.messages = []models.Message{wire("1", "hi", "Ada")}
	fake.postErr = errors.New("503")
	p := startedPoller(t, fake)
	sender := NewSender(fake, p, "5")

	if err := sender.Send(context.Background(), "hello?"); err == nil {
		t.Fatalf("expected send error")
	}

	snapshot := p.Snapshot()
	if snapshot.Len() != 2 {
		t.Fatalf("expected the notice to be appended, got %d messages", snapshot.Len())
	}
	notice := snapshot.Messages[1]
	if notice.SenderType != SenderError || !notice.Local || notice.Content != sendFailedNotice {
		t.Fatalf("unexpected notice %+v", notice)
	}

	healed, err := p.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if healed.Len() != 1 || healed.Messages[0].Local {
		t.Fatalf("expected the next poll to drop the local notice, got %+v", healed)
	}
}

func TestSendReplyFailureKeepsUserMessage(t *testing.T) {
	fake := newFakeBackend()
	fake.interview.AgentID = "7"
	fake.replyErr = errors.New("model overloaded")
	p := startedPoller(t, fake)
	sender := NewSender(fake, p, "5")

	if err := sender.Send(context.Background(), "Hi"); err == nil {
		t.Fatalf("expected reply error")
	}

	snapshot := p.Snapshot()
	if snapshot.Len() != 2 || snapshot.Messages[0].Content != "Hi" || snapshot.Messages[1].Content != replyFailedNotice {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
}

func TestSendRejectsEmptyAndUnstarted(t *testing.T) {
	fake := newFakeBackend()
	p := NewPoller(fake, "42")
	defer p.Stop()
	sender := NewSender(fake, p, "5")

	if err := sender.Send(context.Background(), "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if err := sender.Send(context.Background(), "hi"); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
}
