package sessions

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/confera/backend/internal/content"
	"github.com/confera/backend/pkg/response"
)

// Handler exposes the public conference and session read endpoints.
type Handler struct {
	svc     *Service
	content ContentSource
	logger  *zap.Logger
}

// NewHandler creates a sessions handler.
func NewHandler(svc *Service, source ContentSource, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, content: source, logger: logger}
}

// ListConferences handles GET /conferences. Only active conferences are
// visible publicly.
func (h *Handler) ListConferences(c *gin.Context) {
	list, err := h.content.ActiveConferences()
	if err != nil {
		h.logger.Error("list conferences failed", zap.Error(err))
		response.Internal(c, "could not load conferences")
		return
	}
	response.OK(c, list)
}

// GetConference handles GET /conferences/:slug.
func (h *Handler) GetConference(c *gin.Context) {
	conf, err := h.content.Conference(c.Param("slug"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, conf)
}

// ListSessions handles GET /conferences/:slug/sessions.
func (h *Handler) ListSessions(c *gin.Context) {
	list, err := h.svc.ListWithCapacity(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, list)
}

// GetCapacity handles GET /conferences/:slug/sessions/:id/capacity.
func (h *Handler) GetCapacity(c *gin.Context) {
	st, err := h.svc.Capacity(c.Request.Context(), c.Param("slug"), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, st)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, content.ErrConferenceNotFound):
		response.NotFound(c, "conference not found")
	case errors.Is(err, content.ErrSessionNotFound):
		response.NotFound(c, "session not found")
	default:
		h.logger.Error("session read failed", zap.Error(err))
		response.Internal(c, "could not load sessions")
	}
}
