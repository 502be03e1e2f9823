package registrations

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/confera/backend/internal/content"
	"github.com/confera/backend/internal/models"
	"github.com/confera/backend/pkg/queue"
)

// BatchRequest is the body for POST /registrations/batch.
type BatchRequest struct {
	ConferenceSlug          string   `json:"conference_slug" binding:"required"`
	SessionIDs              []string `json:"session_ids" binding:"required,min=1"`
	FullName                string   `json:"full_name" binding:"required"`
	Email                   string   `json:"email" binding:"required,email"`
	Phone                   string   `json:"phone" binding:"required"`
	Organization            string   `json:"organization"`
	Position                string   `json:"position"`
	Role                    string   `json:"role" binding:"required"`
	CMECertificateRequested bool     `json:"cme_certificate_requested"`
}

// batchResponse matches the public batch contract, including the
// failed_sessions detail on conflict.
type batchResponse struct {
	Success           bool                  `json:"success"`
	Registrations     []models.Registration `json:"registrations,omitempty"`
	ConfirmationToken string                `json:"confirmation_token,omitempty"`
	Error             string                `json:"error,omitempty"`
	FailedSessions    []string              `json:"failed_sessions,omitempty"`
}

// Handler handles public registration endpoints.
type Handler struct {
	svc    *Service
	tasks  *queue.Queue
	logger *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(svc *Service, tasks *queue.Queue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, tasks: tasks, logger: logger}
}

// RegisterBatch handles POST /registrations/batch. All rows are created in
// one transaction sharing one confirmation token; the verification email is
// dispatched through the background queue after the response is written.
func (h *Handler) RegisterBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, batchResponse{Error: "invalid request: " + err.Error()})
		return
	}

	result, err := h.svc.RegisterBatch(c.Request.Context(), BatchInput{
		ConferenceSlug:          req.ConferenceSlug,
		SessionIDs:              req.SessionIDs,
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
		if errors.As(err, &failure) {
			status := http.StatusBadRequest
			if errors.Is(failure.Err, ErrSessionsNotFound) || errors.Is(failure.Err, content.ErrConferenceNotFound) {
				status = http.StatusNotFound
			}
			c.JSON(status, batchResponse{Error: failure.Err.Error(), FailedSessions: failure.FailedSessions})
			return
		}
		h.logger.Error("batch registration failed", zap.Error(err), zap.String("conference", req.ConferenceSlug))
		c.JSON(http.StatusInternalServerError, batchResponse{Error: "failed to register"})
		return
	}

	first := result.Registrations[0]
	token := result.ConfirmationToken
	expires := *first.ConfirmationTokenExpires
	h.tasks.Enqueue("verification-email", func(ctx context.Context) error {
		return h.svc.SendVerificationEmail(ctx, first.ConferenceSlug, first.Email, first.FullName, token, expires)
	})

	c.JSON(http.StatusCreated, batchResponse{
		Success:           true,
		Registrations:     result.Registrations,
		ConfirmationToken: token,
	})
}

// Confirm handles GET /registrations/confirm/:token. The link is opened from
// an email, so both outcomes render styled HTML rather than JSON.
func (h *Handler) Confirm(c *gin.Context) {
	token := c.Param("token")

	confirmed, err := h.svc.Confirm(c.Request.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenExpired):
			h.renderError(c, http.StatusBadRequest, "Link expired",
				"This confirmation link has expired. Please register again to receive a new one.")
		case errors.Is(err, ErrTokenInvalid):
			h.renderError(c, http.StatusNotFound, "Link invalid",
				"This confirmation link is invalid or has already been used.")
		default:
			h.logger.Error("confirmation failed", zap.Error(err))
			h.renderError(c, http.StatusInternalServerError, "Something went wrong",
				"We could not confirm your registration. Please try again later.")
		}
		return
	}

	data := confirmSuccessData{
		FullName: confirmed[0].FullName,
		Email:    confirmed[0].Email,
	}
	if conf, err := h.svc.sessions.Conference(confirmed[0].ConferenceSlug); err == nil {
		data.ConferenceName = conf.Name
		for _, reg := range confirmed {
			for _, sess := range conf.Sessions {
				if sess.ID == reg.SessionID {
					data.Sessions = append(data.Sessions, confirmSessionData{Title: sess.Title, Room: sess.Room})
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := confirmSuccessPage.Execute(&buf, data); err != nil {
		h.logger.Error("render confirmation page", zap.Error(err))
		c.String(http.StatusOK, "Registration confirmed.")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (h *Handler) renderError(c *gin.Context, status int, title, message string) {
	var buf bytes.Buffer
	if err := confirmErrorPage.Execute(&buf, confirmErrorData{Title: title, Message: message}); err != nil {
		c.String(status, message)
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}
