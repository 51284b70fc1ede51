package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/recruai/interview-sync/internal/conversation"
	"github.com/recruai/interview-sync/internal/models"
)

func (h *Handler) handleJoin(c *gin.Context) {
	principal := mustPrincipal(c)
	id := models.ID(c.Param("id"))

	interview, err := h.backend.WithToken(principal.Token).Interview(c.Request.Context(), id)
	if err != nil {
		writeBackendError(c, "failed to load interview", err)
		return
	}

	now := h.formatter.Now()
	scheduledAt, _ := h.formatter.ToUTC(interview.ScheduledAt)
	endsAt, _ := h.formatter.ToUTC(interview.EndsAt())

	c.JSON(http.StatusOK, gin.H{
		"id":           interview.ID,
		"status":       interview.Status,
		"joinable":     conversation.Joinable(*interview, h.joinLead(), now),
		"ended":        conversation.Ended(*interview, now),
		"scheduled_at": scheduledAt,
		"ends_at":      endsAt,
	})
}

func (h *Handler) joinLead() time.Duration {
	if h.polling.JoinLead > 0 {
		return h.polling.JoinLead
	}
	return conversation.DefaultJoinLead
}
