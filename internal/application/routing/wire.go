package routing

import (
	"github.com/google/wire"
)

// ProviderSet 查询路由 ProviderSet
var ProviderSet = wire.NewSet(
	NewRouterState,
	NewRouter,
)
