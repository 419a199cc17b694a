package retrieval

import (
	"github.com/google/wire"
)

// ProviderSet 检索应用服务 ProviderSet
var ProviderSet = wire.NewSet(
	NewService,
)
