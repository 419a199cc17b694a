package http

import (
	"context"
	"net/http"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/docstack/backend/internal/infrastructure/config"
	"github.com/docstack/backend/internal/infrastructure/log"
	"github.com/docstack/backend/internal/interfaces/http/handler"
)

// HTTPServer HTTP 服务器
type HTTPServer struct {
	router   *gin.Engine
	httpPort string
	server   *http.Server
	logger   *slog.Logger
}

// NewServer 创建 HTTP 服务器
func NewServer(
	cfg *config.Config,
	askHandler *handler.AskHandler,
	searchHandler *handler.SearchHandler,
	indexHandler *handler.IndexHandler,
	sourcesHandler *handler.SourcesHandler,
	sessionsHandler *handler.SessionsHandler,
) *HTTPServer {
	router := gin.Default()

	logger := log.NewModuleLogger("http", "server")

	// 注册路由
	api := router.Group("/api/v1")
	{
		// 问答相关路由
		api.POST("/ask", askHandler.Ask)
		api.POST("/ask/stream", askHandler.AskStream)

		// 检索相关路由
		api.POST("/search", searchHandler.Search)

		// 索引相关路由
		api.POST("/index", indexHandler.IndexSource)
		api.POST("/index/queue", indexHandler.QueuePages)
		api.GET("/index/queue/stats", indexHandler.QueueStats)

		// 文档源相关路由
		sources := api.Group("/sources")
		{
			sources.GET("", sourcesHandler.List)
			sources.POST("", sourcesHandler.Save)
			sources.GET("/:id", sourcesHandler.Get)
			sources.GET("/:id/stats", sourcesHandler.Stats)
		}

		// 会话相关路由
		api.GET("/sessions/:conversation_id", sessionsHandler.Get)
	}

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return &HTTPServer{
		router:   router,
		httpPort: cfg.Server.HTTPPort,
		logger:   logger,
	}
}

// Start 启动服务器
func (s *HTTPServer) Start() error {
	s.server = &http.Server{
		Addr:    s.httpPort,
		Handler: s.router,
	}

	s.logger.Info("HTTP server starting",
		"port", s.httpPort,
	)

	return s.server.ListenAndServe()
}

// Shutdown 优雅关闭
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Stop 停止服务器
func (s *HTTPServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}
