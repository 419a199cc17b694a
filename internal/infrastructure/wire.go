package infrastructure

import (
	"github.com/google/wire"

	"github.com/docstack/backend/internal/infrastructure/classifier"
	"github.com/docstack/backend/internal/infrastructure/config"
	"github.com/docstack/backend/internal/infrastructure/embedding"
	"github.com/docstack/backend/internal/infrastructure/llm"
	"github.com/docstack/backend/internal/infrastructure/storage"
	"github.com/docstack/backend/internal/infrastructure/vector"
	"github.com/docstack/backend/internal/infrastructure/watcher"
)

// ProviderSet Infrastructure 层总 ProviderSet
var ProviderSet = wire.NewSet(
	config.ProviderSet,
	storage.ProviderSet,
	embedding.ProviderSet,
	llm.ProviderSet,
	vector.ProviderSet,
	classifier.ProviderSet,
	watcher.ProviderSet,
)
