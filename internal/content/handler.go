package content

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/confera/backend/internal/models"
	"github.com/confera/backend/pkg/response"
)

// AdminHandler manages conference content documents.
type AdminHandler struct {
	store  *Store
	logger *zap.Logger
}

// NewAdminHandler creates the content admin handler.
func NewAdminHandler(store *Store, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{store: store, logger: logger}
}

// List handles GET /admin/conferences. Inactive conferences are included.
func (h *AdminHandler) List(c *gin.Context) {
	list, err := h.store.Conferences()
	if err != nil {
		h.logger.Error("list conferences failed", zap.Error(err))
		response.Internal(c, "could not load conferences")
		return
	}
	response.OK(c, list)
}

// Upsert handles PUT /admin/conferences/:slug. The whole document is
// replaced; the slug in the path wins over the one in the body.
func (h *AdminHandler) Upsert(c *gin.Context) {
	var conf models.Conference
	if err := c.ShouldBindJSON(&conf); err != nil {
		response.BadRequest(c, "invalid conference document: "+err.Error())
		return
	}
	conf.Slug = c.Param("slug")

	for _, sess := range conf.Sessions {
		if sess.ID == "" || sess.Title == "" {
			response.BadRequest(c, "every session needs an id and a title")
			return
		}
		if !sess.EndTime.After(sess.StartTime) {
			response.BadRequest(c, "session "+sess.ID+" must end after it starts")
			return
		}
	}

	existed := true
	if _, err := h.store.Conference(conf.Slug); errors.Is(err, ErrConferenceNotFound) {
		existed = false
	}
	if err := h.store.SaveConference(&conf); err != nil {
		h.logger.Error("save conference failed", zap.String("slug", conf.Slug), zap.Error(err))
		response.Internal(c, "could not save conference")
		return
	}
	if existed {
		response.OK(c, conf)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": conf})
}
