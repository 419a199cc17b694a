package handler

import (
	"io"
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"

	appAnswer "github.com/docstack/backend/internal/application/answer"
	appRouting "github.com/docstack/backend/internal/application/routing"
	domainRouting "github.com/docstack/backend/internal/domain/routing"
	"github.com/docstack/backend/internal/infrastructure/llm"
	"github.com/docstack/backend/internal/infrastructure/log"
	"github.com/docstack/backend/internal/interfaces/http/response"
)

// AskHandler 问答处理器
type AskHandler struct {
	router      *appRouting.Router
	synthesizer *appAnswer.Synthesizer
	logger      *slog.Logger
}

// NewAskHandler 创建问答处理器
func NewAskHandler(router *appRouting.Router, synthesizer *appAnswer.Synthesizer) *AskHandler {
	return &AskHandler{
		router:      router,
		synthesizer: synthesizer,
		logger:      log.NewModuleLogger("http", "ask_handler"),
	}
}

// AskRequest 问答请求
type AskRequest struct {
	Query          string        `json:"query" binding:"required"`
	ConversationID string        `json:"conversation_id,omitempty"`
	Source         string        `json:"source,omitempty"` // 非空表示用户手动指定文档源
	History        []llm.Message `json:"history,omitempty"`
}

// AskResponse 问答响应
type AskResponse struct {
	Answer     string      `json:"answer"`
	References []string    `json:"references,omitempty"`
	Sources    []string    `json:"sources,omitempty"`
	Decision   interface{} `json:"decision"`
}

// Ask 处理问答请求
// POST /api/v1/ask
func (h *AskHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, 400, err.Error())
		return
	}

	decision := h.route(c, &req)

	answer, err := h.synthesizer.Answer(c.Request.Context(), req.Query, decision, req.History)
	if err != nil {
		h.logger.Error("Answer synthesis failed", "error", err)
		// 对用户只暴露通用失败信息，细节进日志
		response.Error(c, http.StatusInternalServerError, 500, "failed to generate answer")
		return
	}

	response.Success(c, AskResponse{
		Answer:     answer.Text,
		References: answer.References,
		Sources:    answer.Sources,
		Decision:   decision,
	})
}

// AskStream 流式问答，SSE 输出增量文本
// POST /api/v1/ask/stream
func (h *AskHandler) AskStream(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, 400, err.Error())
		return
	}

	decision := h.route(c, &req)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	out := make(chan string, 16)
	done := make(chan struct{})

	var streamAnswer *appAnswer.Answer
	var streamErr error
	go func() {
		defer close(done)
		streamAnswer, streamErr = h.synthesizer.AnswerStream(c.Request.Context(), req.Query, decision, req.History, out)
	}()

	c.Stream(func(w io.Writer) bool {
		chunk, ok := <-out
		if !ok {
			<-done
			if streamErr != nil {
				h.logger.Error("Answer streaming failed", "error", streamErr)
				c.SSEvent("error", gin.H{"message": "failed to generate answer"})
				return false
			}
			c.SSEvent("done", gin.H{
				"references": streamAnswer.References,
				"sources":    streamAnswer.Sources,
			})
			return false
		}
		c.SSEvent("message", chunk)
		return true
	})
}

// route 根据请求决定路由：手动指定源走显式切换，否则走检测
func (h *AskHandler) route(c *gin.Context, req *AskRequest) *domainRouting.RoutingDecision {
	if req.Source != "" {
		return h.router.ForceSource(req.ConversationID, req.Source, req.Query)
	}
	return h.router.DetectContext(c.Request.Context(), req.Query, req.History, req.ConversationID)
}
