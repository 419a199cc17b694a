package indexing

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// OrderStride 切分子片段的排序步长
// 必须大于单个片段可能的最大切分数，保证 effective order 单调且不冲突
const OrderStride = 1000

// boundaryBackoffRatio 边界回退搜索窗口占窗口长度的比例
const boundaryBackoffRatio = 0.3

// SplitOversized 将超长文本切分为不超过 maxBytes 的若干段
// 文本未超长时原样返回；切分边界优先落在段落分隔（\n\n），
// 其次句子分隔（". "），附近没有自然边界时按字符硬切。
// 边界回退的余量顺延进后续窗口，余量超限时继续开新窗口，
// 所以段数可能多于 ceil(bytes/maxBytes)，但每段都不超过上限
func SplitOversized(text string, maxBytes int) []string {
	if len(text) <= maxBytes {
		return []string{text}
	}

	numParts := (len(text) + maxBytes - 1) / maxBytes
	runes := []rune(text)
	window := (len(runes) + numParts - 1) / numParts

	parts := make([]string, 0, numParts)
	start := 0

	for start < len(runes) {
		rest := string(runes[start:])
		if len(rest) <= maxBytes {
			if part := strings.TrimSpace(rest); part != "" {
				parts = append(parts, part)
			}
			break
		}

		end := start + window
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = adjustBoundary(runes, start, end, window)
		}

		if part := strings.TrimSpace(string(runes[start:end])); part != "" {
			parts = append(parts, part)
		}
		start = end
	}

	return parts
}

// adjustBoundary 在窗口右边缘附近回退寻找自然切分点
// 搜索范围是窗口长度的 30%；段落分隔优先于句子分隔
func adjustBoundary(runes []rune, start, naiveEnd, window int) int {
	backoff := int(float64(window) * boundaryBackoffRatio)
	searchStart := naiveEnd - backoff
	if searchStart < start {
		searchStart = start
	}

	segment := string(runes[searchStart:naiveEnd])

	// 优先段落分隔
	if idx := strings.LastIndex(segment, "\n\n"); idx >= 0 {
		return searchStart + len([]rune(segment[:idx+2]))
	}

	// 其次句子分隔
	if idx := strings.LastIndex(segment, ". "); idx >= 0 {
		return searchStart + len([]rune(segment[:idx+2]))
	}

	// 附近没有可接受的边界，按字符硬切（可接受的退化，不是错误）
	return naiveEnd
}

// ChunkIdentity 计算片段的确定性标识
// 对 "sourceID:url:baseIndex:subIndex" 做 SHA-1，取前 128 位
// 按 v5 UUID 的结构布局（版本半字节 5，变体位 10）
// 纯函数：相同输入在任何进程中都得到相同输出，保证重建索引幂等
func ChunkIdentity(sourceID, url string, baseIndex, subIndex int) string {
	key := fmt.Sprintf("%s:%s:%d:%d", sourceID, url, baseIndex, subIndex)
	sum := sha1.Sum([]byte(key))

	var id uuid.UUID
	copy(id[:], sum[:16])
	id[6] = (id[6] & 0x0f) | 0x50 // version 5
	id[8] = (id[8] & 0x3f) | 0x80 // variant 10

	return id.String()
}

// EffectiveOrder 计算切分子片段的有效排序值
// 仅用于排序和邻居查询，不参与身份派生
func EffectiveOrder(baseIndex, subIndex int) int {
	return baseIndex*OrderStride + subIndex
}

// HashContent 计算页面全文的 SHA-256 哈希
// 增量索引队列用它在不比较全文的情况下判断页面是否变化
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// SplitPage 段落感知的固定大小切分
// 增量队列对已是页面粒度的内容使用这种简单切分，不走超长切分算法
func SplitPage(content string, chunkSize int) []string {
	if chunkSize <= 0 {
		chunkSize = 1500
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if len(content) <= chunkSize {
		return []string{content}
	}

	paragraphs := strings.Split(content, "\n\n")
	var chunks []string
	var current strings.Builder

	flush := func() {
		chunk := strings.TrimSpace(current.String())
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		current.Reset()
	}

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		// 单个段落就超长时硬切
		if len(para) > chunkSize {
			flush()
			for _, piece := range SplitOversized(para, chunkSize) {
				chunks = append(chunks, piece)
			}
			continue
		}

		if current.Len() > 0 && current.Len()+len(para)+2 > chunkSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	return chunks
}
