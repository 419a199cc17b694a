package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appRouting "github.com/docstack/backend/internal/application/routing"
	"github.com/docstack/backend/internal/interfaces/http/response"
)

// SessionsHandler 会话处理器
type SessionsHandler struct {
	router *appRouting.Router
}

// NewSessionsHandler 创建会话处理器
func NewSessionsHandler(router *appRouting.Router) *SessionsHandler {
	return &SessionsHandler{router: router}
}

// Get 查看会话的切换历史和当前源
// GET /api/v1/sessions/:conversation_id
func (h *SessionsHandler) Get(c *gin.Context) {
	session := h.router.GetSessionContext(c.Param("conversation_id"))
	if session == nil {
		response.Error(c, http.StatusNotFound, 404, "session not found")
		return
	}

	response.Success(c, session)
}
