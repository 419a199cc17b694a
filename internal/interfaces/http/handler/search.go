package handler

import (
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/docstack/backend/internal/application/retrieval"
	"github.com/docstack/backend/internal/infrastructure/log"
	"github.com/docstack/backend/internal/interfaces/http/response"
)

// SearchHandler 检索处理器
type SearchHandler struct {
	service *retrieval.Service
	logger  *slog.Logger
}

// NewSearchHandler 创建检索处理器
func NewSearchHandler(service *retrieval.Service) *SearchHandler {
	return &SearchHandler{
		service: service,
		logger:  log.NewModuleLogger("http", "search_handler"),
	}
}

// SearchRequest 检索请求
type SearchRequest struct {
	Query  string `json:"query" binding:"required"`
	Source string `json:"source,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// Search 处理检索请求
// POST /api/v1/search
func (h *SearchHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, 400, err.Error())
		return
	}

	results, err := h.service.Search(c.Request.Context(), req.Query, req.Source, req.Limit)
	if err != nil {
		h.logger.Error("Search failed", "error", err)
		response.Error(c, http.StatusInternalServerError, 500, "search failed")
		return
	}

	response.Success(c, gin.H{
		"results": results,
		"count":   len(results),
	})
}
