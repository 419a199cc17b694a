package indexing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSplitOversized_ShortTextUnchanged 测试未超长文本原样返回
func TestSplitOversized_ShortTextUnchanged(t *testing.T) {
	text := "A short paragraph about routing."

	parts := SplitOversized(text, 4000)

	require.Len(t, parts, 1)
	assert.Equal(t, text, parts[0])
}

// TestSplitOversized_SizeBound 测试 9000 字节文本按 4000 上限切为三段
func TestSplitOversized_SizeBound(t *testing.T) {
	text := strings.Repeat("a", 9000)

	parts := SplitOversized(text, 4000)

	require.Len(t, parts, 3)
	total := 0
	for _, part := range parts {
		assert.LessOrEqual(t, len(part), 4000)
		total += len(part)
	}
	assert.Equal(t, 9000, total)
}

// TestSplitOversized_BackoffRemainderStaysBounded 测试边界回退的累积余量不会产生超限段
func TestSplitOversized_BackoffRemainderStaysBounded(t *testing.T) {
	// 前两个窗口各自回退到段落分隔，余量全部压到尾部
	text := strings.Repeat("a", 2200) + "\n\n" +
		strings.Repeat("b", 2198) + "\n\n" +
		strings.Repeat("c", 4598)
	require.Len(t, text, 9000)

	parts := SplitOversized(text, 4000)

	require.Len(t, parts, 4)
	for _, part := range parts {
		assert.LessOrEqual(t, len(part), 4000)
	}
	assert.Equal(t, strings.Repeat("a", 2200), parts[0])
	assert.Equal(t, strings.Repeat("b", 2198), parts[1])
	assert.Equal(t, strings.Repeat("c", 3000), parts[2])
	assert.Equal(t, strings.Repeat("c", 1598), parts[3])
}

// TestSplitOversized_PrefersParagraphBreak 测试边界优先落在段落分隔
func TestSplitOversized_PrefersParagraphBreak(t *testing.T) {
	// 段落分隔位于天然切点 3000 的 30% 回退窗口内
	text := strings.Repeat("a", 2600) + "\n\n" + strings.Repeat("b", 3398)

	parts := SplitOversized(text, 4000)

	require.Len(t, parts, 2)
	assert.Equal(t, strings.Repeat("a", 2600), parts[0])
	assert.NotContains(t, parts[0], "b")
	assert.Equal(t, strings.Repeat("b", 3398), parts[1])
}

// TestSplitOversized_PrefersSentenceBreak 测试没有段落分隔时退而使用句子分隔
func TestSplitOversized_PrefersSentenceBreak(t *testing.T) {
	text := strings.Repeat("a", 2598) + ". " + strings.Repeat("b", 3400)

	parts := SplitOversized(text, 4000)

	require.Len(t, parts, 2)
	assert.True(t, strings.HasSuffix(parts[0], "."))
	assert.NotContains(t, parts[0], "b")
}

// TestSplitOversized_Reconstruction 测试切分后内容不丢失
func TestSplitOversized_Reconstruction(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("Paragraph about incremental static regeneration and caching. ")
		b.WriteString(strings.Repeat("x", 100))
		b.WriteString("\n\n")
	}
	text := b.String()

	parts := SplitOversized(text, 4000)

	require.Greater(t, len(parts), 1)
	joined := strings.Join(parts, "")
	stripped := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' {
			return -1
		}
		return r
	}, text)
	joinedStripped := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' {
			return -1
		}
		return r
	}, joined)
	assert.Equal(t, stripped, joinedStripped)
}

// TestChunkIdentity_Deterministic 测试相同输入得到相同标识
func TestChunkIdentity_Deterministic(t *testing.T) {
	a := ChunkIdentity("nextjs", "https://nextjs.org/docs/routing", 3, 1)
	b := ChunkIdentity("nextjs", "https://nextjs.org/docs/routing", 3, 1)

	assert.Equal(t, a, b)
}

// TestChunkIdentity_DistinctInputs 测试不同输入得到不同标识
func TestChunkIdentity_DistinctInputs(t *testing.T) {
	seen := map[string]bool{}
	inputs := []struct {
		source string
		url    string
		base   int
		sub    int
	}{
		{"nextjs", "https://nextjs.org/docs/routing", 3, 1},
		{"nextjs", "https://nextjs.org/docs/routing", 3, 2},
		{"nextjs", "https://nextjs.org/docs/routing", 4, 1},
		{"nextjs", "https://nextjs.org/docs/caching", 3, 1},
		{"react", "https://nextjs.org/docs/routing", 3, 1},
	}

	for _, in := range inputs {
		id := ChunkIdentity(in.source, in.url, in.base, in.sub)
		assert.False(t, seen[id], "duplicate identity for %+v", in)
		seen[id] = true
	}
}

// TestChunkIdentity_UUIDLayout 测试标识符合 v5 UUID 的结构布局
func TestChunkIdentity_UUIDLayout(t *testing.T) {
	id := ChunkIdentity("nextjs", "https://nextjs.org/docs", 0, 0)

	require.Len(t, id, 36)
	assert.Equal(t, byte('5'), id[14], "version nibble must be 5")
	variant := id[19]
	assert.Contains(t, "89ab", string(variant), "variant bits must be 10")
}

// TestEffectiveOrder 测试切分子片段排序值的单调性
func TestEffectiveOrder(t *testing.T) {
	assert.Equal(t, 0, EffectiveOrder(0, 0))
	assert.Equal(t, 3001, EffectiveOrder(3, 1))
	assert.Less(t, EffectiveOrder(3, 999), EffectiveOrder(4, 0))
}

// TestHashContent 测试内容哈希的确定性和区分度
func TestHashContent(t *testing.T) {
	a := HashContent("page content")
	b := HashContent("page content")
	c := HashContent("page content changed")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

// TestSplitPage 测试段落感知的页面切分
func TestSplitPage(t *testing.T) {
	content := strings.Repeat("First paragraph about server components.\n\n", 60)

	chunks := SplitPage(content, 1500)

	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 1500)
		assert.NotEmpty(t, strings.TrimSpace(chunk))
	}
}

// TestSplitPage_Empty 测试空内容返回空
func TestSplitPage_Empty(t *testing.T) {
	assert.Nil(t, SplitPage("   \n\n  ", 1500))
}
