package answer

import (
	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// tokenCounter 上下文预算用的 token 计数器
// 编码器加载失败时退回到字节数估算（约 4 字节一个 token）
type tokenCounter struct {
	encoder *tiktoken.Tiktoken
}

// newTokenCounter 创建 cl100k_base 计数器，使用离线词表避免启动时联网
func newTokenCounter() *tokenCounter {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())

	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return &tokenCounter{}
	}
	return &tokenCounter{encoder: encoder}
}

// Count 统计文本的 token 数
func (t *tokenCounter) Count(text string) int {
	if t.encoder == nil {
		return (len(text) + 3) / 4
	}
	return len(t.encoder.Encode(text, nil, nil))
}
