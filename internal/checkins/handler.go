package checkins

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/confera/backend/internal/registrations"
	"github.com/confera/backend/pkg/qr"
	"github.com/confera/backend/pkg/response"
)

// Handler exposes the scan and admin check-in endpoints.
type Handler struct {
	engine *Engine
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a check-in handler.
func NewHandler(engine *Engine, repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{engine: engine, repo: repo, logger: logger}
}

// QRRequest is the scanning station payload.
type QRRequest struct {
	QRData    string `json:"qr_data" binding:"required"`
	SessionID string `json:"session_id" binding:"required"`
}

// ManualRequest is the admin desk payload.
type ManualRequest struct {
	RegistrationID string `json:"registration_id" binding:"required"`
}

// BulkRequest checks a list of registrations into one target session.
type BulkRequest struct {
	RegistrationIDs []string `json:"registration_ids" binding:"required,min=1"`
	SessionID       string   `json:"session_id" binding:"required"`
}

// CheckInQR handles POST /check-ins.
func (h *Handler) CheckInQR(c *gin.Context) {
	var req QRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "qr_data and session_id are required")
		return
	}
	ci, err := h.engine.CheckInQR(c.Request.Context(), req.QRData, req.SessionID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, ci)
}

// CheckInManual handles POST /check-ins/manual.
func (h *Handler) CheckInManual(c *gin.Context) {
	var req ManualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "registration_id is required")
		return
	}
	id, err := uuid.Parse(req.RegistrationID)
	if err != nil {
		response.BadRequest(c, "registration_id must be a valid uuid")
		return
	}
	ci, err := h.engine.CheckInManual(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, ci)
}

// CheckInBulk handles POST /admin/bulk-checkin-registrations.
func (h *Handler) CheckInBulk(c *gin.Context) {
	var req BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "registration_ids and session_id are required")
		return
	}
	ids := make([]uuid.UUID, 0, len(req.RegistrationIDs))
	for _, raw := range req.RegistrationIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "registration_ids must be valid uuids")
			return
		}
		ids = append(ids, id)
	}
	res := h.engine.CheckInBulk(c.Request.Context(), ids, req.SessionID)
	response.OK(c, res)
}

// ListBySession handles GET /admin/sessions/:id/check-ins.
func (h *Handler) ListBySession(c *gin.Context) {
	list, err := h.repo.ListBySession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("list check-ins failed", zap.Error(err))
		response.Internal(c, "could not load check-ins")
		return
	}
	response.OK(c, list)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, qr.ErrInvalidPayload):
		response.BadRequest(c, "invalid qr code")
	case errors.Is(err, ErrSessionMismatch):
		response.BadRequest(c, "qr code does not match the selected session")
	case errors.Is(err, ErrNotConfirmed):
		response.BadRequest(c, "registration is not confirmed")
	case errors.Is(err, ErrAlreadyCheckedIn):
		response.BadRequest(c, "already checked in")
	case errors.Is(err, registrations.ErrNotFound):
		response.NotFound(c, "registration not found")
	default:
		h.logger.Error("check-in failed", zap.Error(err))
		response.Internal(c, "check-in failed")
	}
}
