package registrations

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/confera/backend/pkg/queue"
	"github.com/confera/backend/pkg/response"
)

// AdminHandler handles the back-office registration endpoints.
type AdminHandler struct {
	svc    *Service
	repo   *Repository
	tasks  *queue.Queue
	logger *zap.Logger
}

// NewAdminHandler creates the admin registrations handler.
func NewAdminHandler(svc *Service, repo *Repository, tasks *queue.Queue, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{svc: svc, repo: repo, tasks: tasks, logger: logger}
}

// DirectAddRequest is the body for POST /admin/conferences/:slug/registrations.
type DirectAddRequest struct {
	SessionID               string `json:"session_id" binding:"required"`
	FullName                string `json:"full_name" binding:"required"`
	Email                   string `json:"email" binding:"required,email"`
	Phone                   string `json:"phone" binding:"required"`
	Organization            string `json:"organization"`
	Position                string `json:"position"`
	Role                    string `json:"role" binding:"required"`
	CMECertificateRequested bool   `json:"cme_certificate_requested"`
}

// DirectAdd handles POST /admin/conferences/:slug/registrations. The row is
// born confirmed; the confirmation email goes out through the queue.
func (h *AdminHandler) DirectAdd(c *gin.Context) {
	var req DirectAddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	slug := c.Param("slug")

	reg, err := h.svc.DirectAdd(c.Request.Context(), BatchInput{
		ConferenceSlug:          slug,
		SessionIDs:              []string{req.SessionID},
		FullName:                req.FullName,
		Email:                   req.Email,
		Phone:                   req.Phone,
		Organization:            req.Organization,
		Position:                req.Position,
		Role:                    req.Role,
		CMECertificateRequested: req.CMECertificateRequested,
	})
	if err != nil {
		var failure *BatchFailure
		switch {
		case errors.As(err, &failure) && errors.Is(failure.Err, ErrSessionsNotFound):
			response.NotFound(c, "session not found")
		case errors.As(err, &failure):
			response.BadRequest(c, failure.Err.Error())
		default:
			h.logger.Error("direct add failed", zap.Error(err), zap.String("conference", slug))
			response.Internal(c, "failed to add registration")
		}
		return
	}

	email, name := reg.Email, reg.FullName
	h.tasks.Enqueue("confirmation-email", func(ctx context.Context) error {
		return h.svc.SendConfirmationEmail(ctx, slug, email, name)
	})
	response.Created(c, reg)
}

// Search handles GET /admin/conferences/:slug/registrations.
func (h *AdminHandler) Search(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	list, err := h.repo.Search(c.Request.Context(), c.Param("slug"),
		c.Query("query"), c.Query("session_id"), c.Query("status"), limit, offset)
	if err != nil {
		h.logger.Error("registration search failed", zap.Error(err))
		response.Internal(c, "search failed")
		return
	}
	response.OK(c, list)
}

// Get handles GET /admin/registrations/:id.
func (h *AdminHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	reg, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "registration not found")
			return
		}
		h.logger.Error("registration lookup failed", zap.Error(err))
		response.Internal(c, "lookup failed")
		return
	}
	response.OK(c, reg)
}

// Delete handles DELETE /admin/registrations/:id.
func (h *AdminHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	if err := h.svc.DeleteRegistration(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "registration not found")
			return
		}
		h.logger.Error("registration delete failed", zap.Error(err))
		response.Internal(c, "delete failed")
		return
	}
	response.OK(c, gin.H{"deleted": id})
}

// Stats handles GET /admin/conferences/:slug/stats: per-session totals with
// confirmed and checked-in breakdowns.
func (h *AdminHandler) Stats(c *gin.Context) {
	slug := c.Param("slug")
	counts, err := h.repo.CountsByConference(c.Request.Context(), slug)
	if err != nil {
		h.logger.Error("stats query failed", zap.Error(err), zap.String("conference", slug))
		response.Internal(c, "stats failed")
		return
	}
	var total, confirmed, checkedIn int
	for _, s := range counts {
		total += s.Total
		confirmed += s.Confirmed
		checkedIn += s.CheckedIn
	}
	response.OK(c, gin.H{
		"sessions":   counts,
		"total":      total,
		"confirmed":  confirmed,
		"checked_in": checkedIn,
	})
}
