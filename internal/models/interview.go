package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/recruai/interview-sync/internal/timefmt"
)

// InterviewStatus values reported by the backend.
const (
	StatusScheduled  = "scheduled"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Interview is a scheduled interview session.
type Interview struct {
	ID              ID        `json:"id"`
	Title           string    `json:"title"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	CandidateID     ID        `json:"candidate_id"`
	OrganizationID  ID        `json:"organization_id"`
	AgentID         ID        `json:"agent_id"`
}

// UnmarshalJSON accepts scheduled_at as ISO-8601 with or without a zone, or as epoch milliseconds.
func (i *Interview) UnmarshalJSON(data []byte) error {
	type plain Interview
	var raw struct {
		plain
		ScheduledAt any `json:"scheduled_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*i = Interview(raw.plain)
	if raw.ScheduledAt == nil {
		return nil
	}

	scheduled, err := timefmt.Parse(raw.ScheduledAt)
	if err != nil {
		return fmt.Errorf("decode interview scheduled_at: %w", err)
	}
	i.ScheduledAt = scheduled
	return nil
}

func (i Interview) Duration() time.Duration {
	return time.Duration(i.DurationMinutes) * time.Minute
}

func (i Interview) EndsAt() time.Time {
	return i.ScheduledAt.Add(i.Duration())
}

// Closed reports whether the backend has finished or cancelled the session.
func (i Interview) Closed() bool {
	switch strings.ToLower(strings.TrimSpace(i.Status)) {
	case StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// HasAgent reports whether an auto-responder is attached to the session.
func (i Interview) HasAgent() bool {
	return !i.AgentID.IsZero()
}

// Message is a conversation record as sent by the backend.
type Message struct {
	ID          ID          `json:"id"`
	Content     string      `json:"content"`
	UserID      ID          `json:"user_id"`
	MessageType string      `json:"message_type"`
	CreatedAt   any         `json:"created_at"`
	User        MessageUser `json:"user"`
}

type MessageUser struct {
	Name string `json:"name"`
}

// NewMessage is the payload for posting a message.
type NewMessage struct {
	UserID      ID     `json:"user_id"`
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
}

// ReplyRequest asks the backend's auto-responder for the next turn.
type ReplyRequest struct {
	InterviewID         ID             `json:"interview_id"`
	Message             string         `json:"message"`
	ConversationHistory []HistoryEntry `json:"conversation_history"`
	AgentID             ID             `json:"agent_id"`
}

type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
