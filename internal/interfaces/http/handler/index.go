package handler

import (
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/docstack/backend/internal/application/indexing"
	domainDocs "github.com/docstack/backend/internal/domain/docs"
	"github.com/docstack/backend/internal/infrastructure/log"
	"github.com/docstack/backend/internal/interfaces/http/response"
)

// IndexHandler 索引处理器
type IndexHandler struct {
	pipeline *indexing.Pipeline
	queue    *indexing.AutoIndexQueue
	logger   *slog.Logger
}

// NewIndexHandler 创建索引处理器
func NewIndexHandler(pipeline *indexing.Pipeline, queue *indexing.AutoIndexQueue) *IndexHandler {
	return &IndexHandler{
		pipeline: pipeline,
		queue:    queue,
		logger:   log.NewModuleLogger("http", "index_handler"),
	}
}

// IndexRequest 全量索引请求：抓取器产出的一个文档源的全部页面
type IndexRequest struct {
	SourceID string                    `json:"source_id" binding:"required"`
	Pages    []*domainDocs.ScrapedPage `json:"pages" binding:"required"`
}

// IndexSource 对一个文档源执行完整重建索引
// POST /api/v1/index
func (h *IndexHandler) IndexSource(c *gin.Context) {
	var req IndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetail(c, http.StatusBadRequest, 400, "invalid index request", err.Error())
		return
	}

	chunks := indexing.ChunksFromPages(req.SourceID, req.Pages)

	result, err := h.pipeline.IndexSource(c.Request.Context(), req.SourceID, chunks)
	if err != nil {
		h.logger.Error("Full index failed", "source", req.SourceID, "error", err)
		response.Error(c, http.StatusInternalServerError, 500, "indexing failed")
		return
	}

	response.Success(c, result)
}

// QueueRequest 增量入队请求
type QueueRequest struct {
	Pages []*domainDocs.ScrapedPage `json:"pages" binding:"required"`
}

// QueuePages 把动态发现的页面投入增量索引队列
// POST /api/v1/index/queue
func (h *IndexHandler) QueuePages(c *gin.Context) {
	var req QueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetail(c, http.StatusBadRequest, 400, "invalid queue request", err.Error())
		return
	}

	h.queue.Queue(req.Pages)

	response.Success(c, gin.H{"queued": len(req.Pages)})
}

// QueueStats 队列状态
// GET /api/v1/index/queue/stats
func (h *IndexHandler) QueueStats(c *gin.Context) {
	response.Success(c, h.queue.Stats())
}
