package mailer

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/confera/backend/pkg/response"
)

// AdminHandler exposes the email log to the admin console.
type AdminHandler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewAdminHandler creates the email log handler.
func NewAdminHandler(repo *Repository, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{repo: repo, logger: logger}
}

// List handles GET /admin/conferences/:slug/email-logs.
func (h *AdminHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	list, err := h.repo.ListByConference(c.Request.Context(), c.Param("slug"), limit, offset)
	if err != nil {
		h.logger.Error("list email logs failed", zap.Error(err))
		response.Internal(c, "could not load email logs")
		return
	}
	response.OK(c, list)
}
