package conversation

import (
	"strings"
	"time"

	"github.com/recruai/interview-sync/internal/models"
	"github.com/recruai/interview-sync/internal/timefmt"
)

// SenderType classifies who produced a displayed message.
type SenderType string

const (
	SenderUser SenderType = "user"
	SenderAI   SenderType = "ai"
	// SenderError marks locally generated failure notices that were never persisted.
	SenderError SenderType = "error"
)

const aiDisplayName = "AI Interviewer"

// Message is the display form of a conversation record.
type Message struct {
	ID         string     `json:"id"`
	Content    string     `json:"content"`
	SenderType SenderType `json:"sender_type"`
	SenderID   string     `json:"sender_id"`
	SenderName string     `json:"sender_name"`
	CreatedAt  time.Time  `json:"created_at"`
	Local      bool       `json:"local,omitempty"`
}

// FromWire converts a backend record. An unparseable created_at leaves CreatedAt zero,
// which the formatter later renders as "".
func FromWire(w models.Message) Message {
	created, _ := timefmt.Parse(w.CreatedAt)

	sender := senderTypeOf(w.MessageType)
	name := strings.TrimSpace(w.User.Name)
	if name == "" && sender == SenderAI {
		name = aiDisplayName
	}

	return Message{
		ID:         w.ID.String(),
		Content:    w.Content,
		SenderType: sender,
		SenderID:   w.UserID.String(),
		SenderName: name,
		CreatedAt:  created,
	}
}

// FromWireList converts records preserving backend order; no re-sorting happens here.
func FromWireList(list []models.Message) []Message {
	out := make([]Message, 0, len(list))
	for _, w := range list {
		out = append(out, FromWire(w))
	}
	return out
}

func senderTypeOf(messageType string) SenderType {
	switch strings.ToLower(strings.TrimSpace(messageType)) {
	case "ai", "assistant", "bot", "agent":
		return SenderAI
	default:
		return SenderUser
	}
}

// historyRole maps a display message onto the role names the auto-responder expects.
func historyRole(m Message) string {
	if m.SenderType == SenderAI {
		return "assistant"
	}
	return "user"
}
