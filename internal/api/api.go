package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/recruai/interview-sync/internal/auth"
	"github.com/recruai/interview-sync/internal/backend"
	"github.com/recruai/interview-sync/internal/preferences"
	"github.com/recruai/interview-sync/internal/timefmt"
	"github.com/recruai/interview-sync/internal/utils"
)

type Handler struct {
	authService *auth.Service
	prefs       preferences.Store
	backend     *backend.Client
	formatter   *timefmt.Formatter
	polling     utils.PollingConfig
	logger      *zap.Logger
}

func NewHandler(
	authService *auth.Service,
	prefs preferences.Store,
	client *backend.Client,
	formatter *timefmt.Formatter,
	polling utils.PollingConfig,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		authService: authService,
		prefs:       prefs,
		backend:     client,
		formatter:   formatter,
		polling:     polling,
		logger:      logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.handleHealth)

	apiGroup := router.Group("/api")
	apiGroup.Use(h.authService.Middleware())

	apiGroup.GET("/me", h.handleMe)

	prefGroup := apiGroup.Group("/preferences")
	prefGroup.GET("/timezone", h.handleGetTimezone)
	prefGroup.PUT("/timezone", h.handlePutTimezone)

	timeGroup := apiGroup.Group("/time")
	timeGroup.GET("/info", h.handleTimeInfo)
	timeGroup.POST("/format", h.handleFormat)

	interviewGroup := apiGroup.Group("/interviews/:id")
	interviewGroup.GET("/join", h.handleJoin)
	interviewGroup.GET("/live", h.handleLive)
}

func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) handleMe(c *gin.Context) {
	principal := mustPrincipal(c)

	user, err := h.backend.WithToken(principal.Token).CurrentUser(c.Request.Context())
	if err != nil {
		writeBackendError(c, "failed to load current user", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":     user,
		"timezone": h.formatterFor(principal).UserTimezone(c.Request.Context()),
	})
}

// formatterFor binds the shared formatter to the caller's stored preference.
func (h *Handler) formatterFor(principal *auth.Principal) *timefmt.Formatter {
	return h.formatter.With(preferences.ForUser(h.prefs, principal.UserID.String(), h.logger))
}

func mustPrincipal(c *gin.Context) *auth.Principal {
	principal, ok := auth.FromContext(c)
	if !ok {
		// routes under /api always run behind the auth middleware
		panic("api: principal missing from context")
	}
	return principal
}

func writeBackendError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, backend.ErrUnauthorized):
		writeError(c, http.StatusUnauthorized, message, err)
	case errors.Is(err, backend.ErrNotFound):
		writeError(c, http.StatusNotFound, message, err)
	default:
		writeError(c, http.StatusBadGateway, message, err)
	}
}

func writeError(c *gin.Context, status int, message string, err error) {
	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}
