package answer

import (
	"github.com/google/wire"
)

// ProviderSet 回答合成 ProviderSet
var ProviderSet = wire.NewSet(
	NewSynthesizer,
)
