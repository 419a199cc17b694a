package application

import (
	"github.com/google/wire"

	"github.com/docstack/backend/internal/application/answer"
	"github.com/docstack/backend/internal/application/indexing"
	"github.com/docstack/backend/internal/application/retrieval"
	"github.com/docstack/backend/internal/application/routing"
)

// ProviderSet Application 层总 ProviderSet
var ProviderSet = wire.NewSet(
	indexing.ProviderSet,
	retrieval.ProviderSet,
	routing.ProviderSet,
	answer.ProviderSet,
)
