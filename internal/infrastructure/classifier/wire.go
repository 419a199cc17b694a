package classifier

import (
	"github.com/google/wire"
)

// ProviderSet 生态分类器 ProviderSet
var ProviderSet = wire.NewSet(
	NewDetector,
)
