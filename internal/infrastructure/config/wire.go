package config

import "github.com/google/wire"

// ProviderSet 配置 ProviderSet
var ProviderSet = wire.NewSet(
	ProvideConfig,
)

// ProvideConfig 默认配置叠加 DOCSTACK_CONFIG 指向的 yaml 文件
func ProvideConfig() (*Config, error) {
	return Load("")
}
