// Code generated by Wire. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package wire

import (
	"github.com/docstack/backend/internal/application/answer"
	"github.com/docstack/backend/internal/application/indexing"
	"github.com/docstack/backend/internal/application/retrieval"
	"github.com/docstack/backend/internal/application/routing"
	"github.com/docstack/backend/internal/infrastructure/classifier"
	"github.com/docstack/backend/internal/infrastructure/config"
	"github.com/docstack/backend/internal/infrastructure/embedding"
	"github.com/docstack/backend/internal/infrastructure/llm"
	"github.com/docstack/backend/internal/infrastructure/storage"
	"github.com/docstack/backend/internal/infrastructure/vector"
	"github.com/docstack/backend/internal/infrastructure/watcher"
	"github.com/docstack/backend/internal/interfaces/http"
	"github.com/docstack/backend/internal/interfaces/http/handler"
)

// Injectors from wire.go:

// InitializeAll 初始化所有服务
func InitializeAll() (*App, error) {
	configConfig, err := config.ProvideConfig()
	if err != nil {
		return nil, err
	}
	client := llm.NewClient(configConfig)
	embeddingClient := embedding.NewClient(configConfig)
	db, err := storage.OpenDB(configConfig)
	if err != nil {
		return nil, err
	}
	docSourceRepository := storage.NewDocSourceRepository(db)
	detector := classifier.NewDetector(configConfig, embeddingClient, docSourceRepository)
	routerState := routing.NewRouterState(configConfig, docSourceRepository)
	router := routing.NewRouter(configConfig, client, detector, routerState)
	store, err := vector.NewStore(configConfig)
	if err != nil {
		return nil, err
	}
	service := retrieval.NewService(configConfig, embeddingClient, store)
	synthesizer := answer.NewSynthesizer(configConfig, client, service)
	askHandler := handler.NewAskHandler(router, synthesizer)
	searchHandler := handler.NewSearchHandler(service)
	chunkRecordRepository := storage.NewChunkRecordRepository(db)
	pipeline := indexing.NewPipeline(configConfig, embeddingClient, store, chunkRecordRepository)
	dynamicPageRepository := storage.NewDynamicPageRepository(db)
	autoIndexQueue := indexing.NewAutoIndexQueue(configConfig, embeddingClient, store, dynamicPageRepository)
	indexHandler := handler.NewIndexHandler(pipeline, autoIndexQueue)
	sourcesHandler := handler.NewSourcesHandler(docSourceRepository, chunkRecordRepository, routerState)
	sessionsHandler := handler.NewSessionsHandler(router)
	v := http.NewServer(configConfig, askHandler, searchHandler, indexHandler, sourcesHandler, sessionsHandler)
	dropWatcher := watcher.NewDropWatcher(configConfig, autoIndexQueue)
	app := NewApp(v, autoIndexQueue, dropWatcher, db)
	return app, nil
}
