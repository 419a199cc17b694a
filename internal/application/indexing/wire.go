package indexing

import (
	"github.com/google/wire"
)

// ProviderSet 索引应用服务 ProviderSet
var ProviderSet = wire.NewSet(
	NewPipeline,
	NewAutoIndexQueue,
)
