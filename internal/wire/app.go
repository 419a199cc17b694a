package wire

import (
	"database/sql"

	"log/slog"

	appIndexing "github.com/docstack/backend/internal/application/indexing"
	applog "github.com/docstack/backend/internal/infrastructure/log"
	"github.com/docstack/backend/internal/infrastructure/watcher"
	"github.com/docstack/backend/internal/interfaces"
)

// App 应用主结构，组合所有服务
type App struct {
	HTTPServer  *interfaces.HTTPServer
	indexQueue  *appIndexing.AutoIndexQueue
	dropWatcher *watcher.DropWatcher
	db          *sql.DB
	logger      *slog.Logger
}

// NewApp 创建应用实例
func NewApp(
	httpServer *interfaces.HTTPServer,
	indexQueue *appIndexing.AutoIndexQueue,
	dropWatcher *watcher.DropWatcher,
	db *sql.DB,
) *App {
	return &App{
		HTTPServer:  httpServer,
		indexQueue:  indexQueue,
		dropWatcher: dropWatcher,
		db:          db,
		logger:      applog.NewModuleLogger("app", "main"),
	}
}

// Start 启动所有服务
func (a *App) Start() error {
	a.logger.Info("Starting docstack backend application")

	// 启动增量索引队列的后台消费协程
	a.indexQueue.Start()

	// 启动抓取制品目录监听（未配置时为空操作）
	if err := a.dropWatcher.Start(); err != nil {
		a.logger.Error("Failed to start drop watcher",
			"error", err,
		)
	}

	// 启动 HTTP 服务器（goroutine）
	go func() {
		if err := a.HTTPServer.Start(); err != nil {
			a.logger.Error("Failed to start HTTP server",
				"error", err,
			)
		}
	}()

	a.logger.Info("docstack backend application started successfully")

	return nil
}

// Stop 停止所有服务
func (a *App) Stop() error {
	a.logger.Info("Stopping docstack backend application")

	// 停止目录监听，避免关闭期间继续入队
	a.dropWatcher.Stop()

	// 排空协程停止后才关闭下游依赖
	a.indexQueue.Stop()

	if err := a.HTTPServer.Stop(); err != nil {
		a.logger.Error("Failed to stop HTTP server",
			"error", err,
		)
		return err
	}

	// 关闭数据库连接
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Failed to close database connection",
				"error", err,
			)
			return err
		}
	}

	a.logger.Info("docstack backend application stopped successfully")

	return nil
}
