package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/recruai/interview-sync/internal/models"
)

var ErrEmptyMessage = errors.New("conversation: message is empty")

// Poster is the write side of the backend used by a Sender.
type Poster interface {
	PostMessage(ctx context.Context, interviewID models.ID, msg models.NewMessage) (*models.Message, error)
	GenerateReply(ctx context.Context, req models.ReplyRequest) (string, error)
}

const (
	sendFailedNotice  = "Failed to send message. Please try again."
	replyFailedNotice = "The interviewer could not respond. Please try again."
	systemSenderName  = "System"
)

// Sender posts messages for one user into a polled conversation. After each
// successful post it refreshes the poller so the author sees the message without
// waiting for the next tick.
type Sender struct {
	poster Poster
	poller *Poller
	userID models.ID
	now    func() time.Time
	newID  func() string
	logger *zap.Logger
}

type SenderOption func(*Sender)

func WithSenderLogger(logger *zap.Logger) SenderOption {
	return func(s *Sender) { s.logger = logger }
}

func WithSenderClock(now func() time.Time) SenderOption {
	return func(s *Sender) { s.now = now }
}

func NewSender(poster Poster, poller *Poller, userID models.ID, opts ...SenderOption) *Sender {
	s := &Sender{
		poster: poster,
		poller: poller,
		userID: userID,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send posts content and, when the interview has an auto-responder, asks it for a
// reply and posts that too. A failure at any step appends a local error notice to the
// displayed conversation and is returned; persisted data is never touched on failure.
func (s *Sender) Send(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}

	interview := s.poller.Interview()
	if interview == nil {
		return ErrNotStarted
	}

	log := s.logger.With(zap.String("interview_id", interview.ID.String()))

	// Taken before posting: the reply request carries content separately.
	history := s.history()

	_, err := s.poster.PostMessage(ctx, interview.ID, models.NewMessage{
		UserID:      s.userID,
		Content:     content,
		MessageType: string(SenderUser),
	})
	if err != nil {
		log.Warn("post message failed", zap.Error(err))
		s.notify(sendFailedNotice)
		return fmt.Errorf("send message: %w", err)
	}

	s.refresh(ctx, log)

	if !interview.HasAgent() {
		return nil
	}

	reply, err := s.poster.GenerateReply(ctx, models.ReplyRequest{
		InterviewID:         interview.ID,
		Message:             content,
		ConversationHistory: history,
		AgentID:             interview.AgentID,
	})
	if err != nil {
		log.Warn("auto reply failed", zap.Error(err))
		s.notify(replyFailedNotice)
		return fmt.Errorf("generate reply: %w", err)
	}

	_, err = s.poster.PostMessage(ctx, interview.ID, models.NewMessage{
		UserID:      s.userID,
		Content:     reply,
		MessageType: string(SenderAI),
	})
	if err != nil {
		log.Warn("post auto reply failed", zap.Error(err))
		s.notify(replyFailedNotice)
		return fmt.Errorf("post reply: %w", err)
	}

	s.refresh(ctx, log)
	return nil
}

func (s *Sender) refresh(ctx context.Context, log *zap.Logger) {
	if _, err := s.poller.Refresh(ctx); err != nil && !errors.Is(err, ErrStopped) {
		log.Warn("refresh after send failed", zap.Error(err))
	}
}

// history lists the persisted messages of the current snapshot, oldest first.
func (s *Sender) history() []models.HistoryEntry {
	snapshot := s.poller.Snapshot()
	entries := make([]models.HistoryEntry, 0, snapshot.Len())
	if snapshot == nil {
		return entries
	}
	for _, m := range snapshot.Messages {
		if m.Local {
			continue
		}
		entries = append(entries, models.HistoryEntry{Role: historyRole(m), Content: m.Content})
	}
	return entries
}

func (s *Sender) notify(text string) {
	s.poller.AppendLocal(Message{
		ID:         "local-" + s.newID(),
		Content:    text,
		SenderType: SenderError,
		SenderName: systemSenderName,
		CreatedAt:  s.now().UTC(),
	})
}
