package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/recruai/interview-sync/internal/backend"
	"github.com/recruai/interview-sync/internal/models"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc) *backend.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return backend.NewClient(server.URL + "/api/").WithToken("token-1")
}

func TestMessagesDecodesBareArray(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/interviews/12/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer token-1" {
			t.Errorf("missing bearer token")
		}
		_, _ = w.Write([]byte(`[
			{"id": 1, "content": "hi", "user_id": 5, "message_type": "user", "created_at": "2024-01-15T10:30:00Z", "user": {"name": "Ada"}},
			{"id": "2", "content": "hello", "user_id": null, "message_type": "ai", "created_at": 1705314660000, "user": {"name": "Interviewer"}}
		]`))
	})

	messages, err := client.Messages(context.Background(), "12")
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].ID != "1" || messages[0].User.Name != "Ada" {
		t.Fatalf("unexpected first message %+v", messages[0])
	}
	if messages[1].MessageType != "ai" || messages[1].CreatedAt.(float64) != 1705314660000 {
		t.Fatalf("unexpected second message %+v", messages[1])
	}
}

func TestMessagesDecodesWrappedList(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"messages": [{"id": 9, "content": "x"}]}`))
	})

	messages, err := client.Messages(context.Background(), "1")
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(messages) != 1 || messages[0].ID != "9" {
		t.Fatalf("unexpected messages %+v", messages)
	}
}

func TestPostMessageAndGenerateReply(t *testing.T) {
	var posted models.NewMessage
	var replyReq models.ReplyRequest

	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/interviews/3/messages":
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			_ = json.NewDecoder(r.Body).Decode(&posted)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id": 44, "content": "answer", "message_type": "user"}`))
		case "/api/ai/interview-response":
			_ = json.NewDecoder(r.Body).Decode(&replyReq)
			_, _ = w.Write([]byte(`{"response": "  Tell me more.  "}`))
		default:
			http.NotFound(w, r)
		}
	})

	created, err := client.PostMessage(context.Background(), "3", models.NewMessage{UserID: "5", Content: "answer", MessageType: "user"})
	if err != nil {
		t.Fatalf("post message: %v", err)
	}
	if created.ID != "44" || posted.Content != "answer" || posted.UserID != "5" {
		t.Fatalf("unexpected post round trip: created=%+v posted=%+v", created, posted)
	}

	reply, err := client.GenerateReply(context.Background(), models.ReplyRequest{
		InterviewID: "3",
		Message:     "answer",
		AgentID:     "8",
		ConversationHistory: []models.HistoryEntry{
			{Role: "user", Content: "answer"},
		},
	})
	if err != nil {
		t.Fatalf("generate reply: %v", err)
	}
	if reply != "Tell me more." {
		t.Fatalf("unexpected reply %q", reply)
	}
	if replyReq.AgentID != "8" || len(replyReq.ConversationHistory) != 1 {
		t.Fatalf("unexpected reply request %+v", replyReq)
	}
}

func TestErrorsAreClassified(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/me":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail": "Token expired"}`))
		case "/api/interviews/404":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error": {"code": "not_found", "message": "no such interview"}}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	})

	_, err := client.CurrentUser(context.Background())
	if !errors.Is(err, backend.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	var apiErr *backend.APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Token expired" {
		t.Fatalf("expected detail message, got %v", err)
	}

	_, err = client.Interview(context.Background(), "404")
	if !errors.Is(err, backend.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if !errors.As(err, &apiErr) || apiErr.Code != "not_found" {
		t.Fatalf("expected coded error, got %v", err)
	}

	_, err = client.Messages(context.Background(), "1")
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway || apiErr.Message != "Bad Gateway" {
		t.Fatalf("expected status text fallback, got %v", err)
	}
}

func TestInterviewDecodesSchedule(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": 3, "scheduled_at": "2024-01-15T10:30:00Z", "duration_minutes": 30, "status": "scheduled"}`))
	})

	interview, err := client.Interview(context.Background(), "3")
	if err != nil {
		t.Fatalf("interview: %v", err)
	}
	if interview.DurationMinutes != 30 || interview.ScheduledAt.IsZero() {
		t.Fatalf("unexpected interview %+v", interview)
	}
}
