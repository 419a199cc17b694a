package handler

import (
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"

	appRouting "github.com/docstack/backend/internal/application/routing"
	domainDocs "github.com/docstack/backend/internal/domain/docs"
	"github.com/docstack/backend/internal/infrastructure/log"
	"github.com/docstack/backend/internal/interfaces/http/response"
)

// SourcesHandler 文档源处理器
type SourcesHandler struct {
	sourceRepo  domainDocs.DocSourceRepository
	chunkRepo   domainDocs.ChunkRecordRepository
	routerState *appRouting.RouterState
	logger      *slog.Logger
}

// NewSourcesHandler 创建文档源处理器
func NewSourcesHandler(
	sourceRepo domainDocs.DocSourceRepository,
	chunkRepo domainDocs.ChunkRecordRepository,
	routerState *appRouting.RouterState,
) *SourcesHandler {
	return &SourcesHandler{
		sourceRepo:  sourceRepo,
		chunkRepo:   chunkRepo,
		routerState: routerState,
		logger:      log.NewModuleLogger("http", "sources_handler"),
	}
}

// List 列出全部文档源
// GET /api/v1/sources
func (h *SourcesHandler) List(c *gin.Context) {
	sources, err := h.sourceRepo.ListSources()
	if err != nil {
		h.logger.Error("Failed to list sources", "error", err)
		response.Error(c, http.StatusInternalServerError, 500, "failed to list sources")
		return
	}

	response.Success(c, sources)
}

// Get 获取单个文档源
// GET /api/v1/sources/:id
func (h *SourcesHandler) Get(c *gin.Context) {
	source, err := h.sourceRepo.GetSource(c.Param("id"))
	if err != nil {
		h.logger.Error("Failed to get source", "error", err)
		response.Error(c, http.StatusInternalServerError, 500, "failed to get source")
		return
	}
	if source == nil {
		response.Error(c, http.StatusNotFound, 404, "source not found")
		return
	}

	response.Success(c, source)
}

// Save 创建或更新文档源
// POST /api/v1/sources
func (h *SourcesHandler) Save(c *gin.Context) {
	var source domainDocs.DocSource
	if err := c.ShouldBindJSON(&source); err != nil {
		response.Error(c, http.StatusBadRequest, 400, err.Error())
		return
	}
	if source.ID == "" {
		response.Error(c, http.StatusBadRequest, 400, "source id is required")
		return
	}

	if err := h.sourceRepo.SaveSource(&source); err != nil {
		h.logger.Error("Failed to save source", "error", err)
		response.Error(c, http.StatusInternalServerError, 500, "failed to save source")
		return
	}

	// 路由器的源缓存立即失效，新源马上参与分类
	h.routerState.InvalidateSources()

	response.Success(c, source)
}

// Stats 文档源的索引统计
// GET /api/v1/sources/:id/stats
func (h *SourcesHandler) Stats(c *gin.Context) {
	id := c.Param("id")

	count, err := h.chunkRepo.CountBySource(id)
	if err != nil {
		h.logger.Error("Failed to count chunks", "source", id, "error", err)
		response.Error(c, http.StatusInternalServerError, 500, "failed to count chunks")
		return
	}

	response.Success(c, gin.H{
		"source_id": id,
		"chunks":    count,
	})
}
