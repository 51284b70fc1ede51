package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/recruai/interview-sync/internal/conversation"
	"github.com/recruai/interview-sync/internal/models"
	"github.com/recruai/interview-sync/internal/timefmt"
)

const (
	liveWriteWait  = 10 * time.Second
	livePingPeriod = 30 * time.Second
	liveSendQueue  = 8
)

var liveUpgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var errSendQueueFull = errors.New("too many messages waiting to be sent")

type liveClientFrame struct {
	Type    string `json:"type"`
	Visible *bool  `json:"visible,omitempty"`
	Content string `json:"content,omitempty"`
}

type liveMessage struct {
	conversation.Message
	DisplayTime  string `json:"display_time"`
	RelativeTime string `json:"relative_time"`
}

type liveFrame struct {
	Type     string `json:"type"`
	Joinable *bool  `json:"joinable,omitempty"`
	State    string `json:"state,omitempty"`
	Error    string `json:"error,omitempty"`
	Failures int    `json:"failures,omitempty"`
}

type snapshotFrame struct {
	Type     string        `json:"type"`
	Messages []liveMessage `json:"messages"`
}

// liveConn serialises writes; gorilla connections allow one concurrent writer.
type liveConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (l *liveConn) writeJSON(frame any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	return l.conn.WriteJSON(frame)
}

func (l *liveConn) ping() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait))
}

// handleLive streams the conversation of one interview over a websocket. The poller
// lives exactly as long as the socket.
func (h *Handler) handleLive(c *gin.Context) {
	principal := mustPrincipal(c)
	id := models.ID(c.Param("id"))
	client := h.backend.WithToken(principal.Token)
	log := h.logger.With(zap.String("interview_id", id.String()), zap.String("user_id", principal.UserID.String()))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	var conn *liveConn
	var connMu sync.Mutex
	onStale := func(failures int, err error) {
		connMu.Lock()
		target := conn
		connMu.Unlock()
		if target == nil {
			return
		}
		if werr := target.writeJSON(liveFrame{Type: "stale", Failures: failures, Error: err.Error()}); werr != nil {
			log.Debug("write stale frame failed", zap.Error(werr))
		}
	}

	poller := conversation.NewPoller(client, id,
		conversation.WithInterval(h.polling.Interval),
		conversation.WithJoinLead(h.joinLead()),
		conversation.WithStaleHandler(h.polling.StaleThreshold, onStale),
		conversation.WithPollerClock(h.formatter.Now),
		conversation.WithPollerLogger(log),
	)
	defer poller.Stop()

	if err := poller.Start(ctx); err != nil {
		if errors.Is(err, conversation.ErrSessionClosed) {
			writeError(c, http.StatusGone, "interview has ended", err)
			return
		}
		writeBackendError(c, "failed to start live session", err)
		return
	}

	ws, err := liveUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("live websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	connMu.Lock()
	conn = &liveConn{conn: ws}
	connMu.Unlock()

	formatter := h.formatterFor(principal)
	sender := conversation.NewSender(client, poller, principal.UserID,
		conversation.WithSenderLogger(log),
		conversation.WithSenderClock(h.formatter.Now),
	)

	joinable := poller.Joinable()
	if err := conn.writeJSON(liveFrame{Type: "status", State: poller.State().String(), Joinable: &joinable}); err != nil {
		log.Debug("write status frame failed", zap.Error(err))
		return
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.pumpSnapshots(ctx, conn, poller, formatter, log)
	}()

	sends := make(chan string, liveSendQueue)
	senderDone := make(chan struct{})
	go func() {
		defer close(senderDone)
		h.runSends(ctx, conn, sender, sends)
	}()

	h.readFrames(conn, poller, sends, log)

	cancel()
	close(sends)
	poller.Stop()
	<-senderDone
	<-writerDone
}

// pumpSnapshots forwards poller updates until the poller stops. When the session ends
// on its own the client gets an "ended" frame and the socket is closed.
func (h *Handler) pumpSnapshots(ctx context.Context, conn *liveConn, poller *conversation.Poller, formatter *timefmt.Formatter, log *zap.Logger) {
	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()

	for {
		select {
		case snapshot, ok := <-poller.Updates():
			if !ok {
				if ctx.Err() == nil {
					_ = conn.writeJSON(liveFrame{Type: "ended", State: poller.State().String()})
				}
				_ = conn.conn.Close()
				return
			}
			frame := snapshotFrame{Type: "snapshot", Messages: renderMessages(ctx, formatter, snapshot)}
			if err := conn.writeJSON(frame); err != nil {
				log.Debug("write snapshot failed", zap.Error(err))
				poller.Stop()
			}
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				log.Debug("live ping failed", zap.Error(err))
				poller.Stop()
			}
		}
	}
}

// runSends posts queued messages one at a time, in arrival order.
func (h *Handler) runSends(ctx context.Context, conn *liveConn, sender *conversation.Sender, sends <-chan string) {
	for content := range sends {
		if ctx.Err() != nil {
			continue
		}
		if err := sender.Send(ctx, content); errors.Is(err, conversation.ErrEmptyMessage) {
			_ = conn.writeJSON(liveFrame{Type: "error", Error: err.Error()})
		}
	}
}

// readFrames handles client frames until the socket closes. Sends are queued for
// runSends so visibility changes and closes are seen while a send is in flight.
func (h *Handler) readFrames(conn *liveConn, poller *conversation.Poller, sends chan<- string, log *zap.Logger) {
	for {
		var frame liveClientFrame
		if err := conn.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("live websocket closed unexpectedly", zap.Error(err))
			}
			return
		}

		switch frame.Type {
		case "visibility":
			if frame.Visible != nil {
				poller.SetVisible(*frame.Visible)
			}
		case "send":
			select {
			case sends <- frame.Content:
			default:
				_ = conn.writeJSON(liveFrame{Type: "error", Error: errSendQueueFull.Error()})
			}
		default:
			_ = conn.writeJSON(liveFrame{Type: "error", Error: "unknown frame type " + frame.Type})
		}
	}
}

// renderMessages resolves the user's zone once so every message of a frame is shown
// in the same zone.
func renderMessages(ctx context.Context, f *timefmt.Formatter, snapshot *conversation.Snapshot) []liveMessage {
	out := make([]liveMessage, 0, snapshot.Len())
	if snapshot == nil {
		return out
	}
	tz := f.UserTimezone(ctx)
	for _, m := range snapshot.Messages {
		lm := liveMessage{Message: m}
		if !m.CreatedAt.IsZero() {
			lm.DisplayTime = f.FormatDateTimeCompact(ctx, m.CreatedAt, tz)
			lm.RelativeTime = f.RelativeTimeIn(ctx, m.CreatedAt, tz)
		}
		out = append(out, lm)
	}
	return out
}
