package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/recruai/interview-sync/internal/preferences"
	"github.com/recruai/interview-sync/internal/timefmt"
)

type timezoneRequest struct {
	Timezone string `json:"timezone"`
}

type formatRequest struct {
	Value    any    `json:"value"`
	Style    string `json:"style"`
	Timezone string `json:"timezone"`
}

var errUnknownStyle = errors.New("style must be one of datetime, date, time, compact, relative")

func (h *Handler) handleGetTimezone(c *gin.Context) {
	info := h.formatterFor(mustPrincipal(c)).TimezoneInfo(c.Request.Context(), "")
	c.JSON(http.StatusOK, gin.H{
		"timezone": info.Timezone,
		"source":   info.Source,
	})
}

func (h *Handler) handlePutTimezone(c *gin.Context) {
	var req timezoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}

	tz := strings.TrimSpace(req.Timezone)
	if err := timefmt.Validate(tz); err != nil {
		writeError(c, http.StatusBadRequest, "invalid timezone", err)
		return
	}

	if err := h.formatterFor(mustPrincipal(c)).SetUserTimezone(c.Request.Context(), tz); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, preferences.ErrSchemaMissing) {
			status = http.StatusServiceUnavailable
		}
		writeError(c, status, "failed to store timezone", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"timezone": tz,
		"source":   timefmt.SourcePreference,
	})
}

func (h *Handler) handleTimeInfo(c *gin.Context) {
	info := h.formatterFor(mustPrincipal(c)).TimezoneInfo(c.Request.Context(), c.Query("tz"))
	c.JSON(http.StatusOK, info)
}

func (h *Handler) handleFormat(c *gin.Context) {
	var req formatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}

	f := h.formatterFor(mustPrincipal(c))
	ctx := c.Request.Context()

	var text string
	switch strings.ToLower(strings.TrimSpace(req.Style)) {
	case "", "datetime":
		text = f.FormatDateTime(ctx, req.Value, timefmt.Options{}, req.Timezone)
	case "date":
		text = f.FormatDate(ctx, req.Value, req.Timezone)
	case "time":
		text = f.FormatTime(ctx, req.Value, req.Timezone)
	case "compact":
		text = f.FormatDateTimeCompact(ctx, req.Value, req.Timezone)
	case "relative":
		text = f.RelativeTime(ctx, req.Value)
	default:
		writeError(c, http.StatusBadRequest, "invalid style", errUnknownStyle)
		return
	}

	c.JSON(http.StatusOK, gin.H{"text": text})
}
