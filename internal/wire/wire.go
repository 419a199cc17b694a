//go:build wireinject
// +build wireinject

package wire

import (
	"github.com/docstack/backend/internal/application"
	"github.com/docstack/backend/internal/application/answer"
	appIndexing "github.com/docstack/backend/internal/application/indexing"
	"github.com/docstack/backend/internal/application/retrieval"
	"github.com/docstack/backend/internal/application/routing"
	"github.com/docstack/backend/internal/infrastructure"
	"github.com/docstack/backend/internal/infrastructure/classifier"
	"github.com/docstack/backend/internal/infrastructure/embedding"
	"github.com/docstack/backend/internal/infrastructure/llm"
	"github.com/docstack/backend/internal/infrastructure/vector"
	"github.com/docstack/backend/internal/infrastructure/watcher"
	"github.com/docstack/backend/internal/interfaces"
	"github.com/google/wire"
)

// InitializeAll 初始化所有服务
func InitializeAll() (*App, error) {
	wire.Build(
		// 按层组合 ProviderSet
		infrastructure.ProviderSet, // 基础设施层
		application.ProviderSet,    // 应用层
		interfaces.ProviderSet,     // 接口层
		// 接口绑定：watcher.PageQueuer -> 增量索引队列
		wire.Bind(
			new(watcher.PageQueuer),
			new(*appIndexing.AutoIndexQueue),
		),
		wire.Bind(new(classifier.Embedder), new(*embedding.Client)),
		wire.Bind(new(appIndexing.Embedder), new(*embedding.Client)),
		wire.Bind(new(appIndexing.VectorStore), new(*vector.Store)),
		wire.Bind(new(retrieval.Embedder), new(*embedding.Client)),
		wire.Bind(new(retrieval.VectorSearcher), new(*vector.Store)),
		wire.Bind(new(routing.Generator), new(*llm.Client)),
		wire.Bind(new(routing.EcosystemDetector), new(*classifier.Detector)),
		wire.Bind(new(answer.Generator), new(*llm.Client)),
		wire.Bind(new(answer.Retriever), new(*retrieval.Service)),
		NewApp, // 组合所有服务的应用结构
	)
	return nil, nil
}
