package watcher

import "github.com/google/wire"

// ProviderSet 抓取制品监听 ProviderSet
// PageQueuer 的绑定在顶层注入器完成，避免基础设施层反向依赖应用层
var ProviderSet = wire.NewSet(
	NewDropWatcher,
)
