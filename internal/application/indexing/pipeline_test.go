package indexing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainDocs "github.com/docstack/backend/internal/domain/docs"
)

func newTestPipeline(embedder *fakeEmbedder, store *fakeVectorStore, chunkRepo *fakeChunkRepo) *Pipeline {
	return NewPipeline(testConfig(), embedder, store, chunkRepo)
}

func pageChunks(sourceID string, contents ...string) []*domainDocs.DocumentChunk {
	chunks := make([]*domainDocs.DocumentChunk, 0, len(contents))
	for i, content := range contents {
		chunks = append(chunks, &domainDocs.DocumentChunk{
			Content:   content,
			URL:       fmt.Sprintf("https://example.com/docs/%d", i),
			Title:     fmt.Sprintf("Page %d", i),
			SourceID:  sourceID,
			BaseIndex: i,
		})
	}
	return chunks
}

// TestPipeline_IndexSource_Success 测试正常索引的计数和落库
func TestPipeline_IndexSource_Success(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeVectorStore()
	chunkRepo := newFakeChunkRepo()
	pipeline := newTestPipeline(embedder, store, chunkRepo)

	chunks := pageChunks("nextjs", "Routing basics.", "Caching behavior.", "Server actions.")

	result, err := pipeline.IndexSource(context.Background(), "nextjs", chunks)
	require.NoError(t, err)

	assert.Equal(t, 3, result.SuccessCount)
	assert.Equal(t, 0, result.ErrorCount)
	assert.Equal(t, 0, result.SplitCount)
	assert.Equal(t, 3, store.count())

	// 元数据行镜像到了 SQLite 仓库
	count, err := chunkRepo.CountBySource("nextjs")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// 旧记录清理先于写入
	assert.Equal(t, []string{"nextjs"}, store.deletedSources)
}

// TestPipeline_IndexSource_SplitsOversized 测试超长片段切分后的身份与排序
func TestPipeline_IndexSource_SplitsOversized(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeVectorStore()
	chunkRepo := newFakeChunkRepo()
	pipeline := newTestPipeline(embedder, store, chunkRepo)

	chunks := []*domainDocs.DocumentChunk{{
		Content:   strings.Repeat("a", 9000),
		URL:       "https://example.com/docs/big",
		Title:     "Big page",
		SourceID:  "nextjs",
		BaseIndex: 3,
	}}

	result, err := pipeline.IndexSource(context.Background(), "nextjs", chunks)
	require.NoError(t, err)

	assert.Equal(t, 3, result.SuccessCount)
	assert.Equal(t, 1, result.SplitCount)
	require.Equal(t, 3, store.count())

	var orders []int
	for _, r := range store.records {
		assert.LessOrEqual(t, len(r.Content), 4000)
		assert.Contains(t, r.Title, "Big page (Part ")
		orders = append(orders, r.ChunkIndex)
	}
	sort.Ints(orders)
	assert.Equal(t, []int{3000, 3001, 3002}, orders)
}

// TestPipeline_IndexSource_Idempotent 测试重复索引按身份覆盖而非追加
func TestPipeline_IndexSource_Idempotent(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeVectorStore()
	chunkRepo := newFakeChunkRepo()
	pipeline := newTestPipeline(embedder, store, chunkRepo)

	chunks := pageChunks("react", "Hooks overview.", "Effects and cleanup.")

	_, err := pipeline.IndexSource(context.Background(), "react", chunks)
	require.NoError(t, err)
	firstIDs := make([]string, 0, store.count())
	for id := range store.records {
		firstIDs = append(firstIDs, id)
	}

	_, err = pipeline.IndexSource(context.Background(), "react", chunks)
	require.NoError(t, err)

	assert.Equal(t, 2, store.count())
	for _, id := range firstIDs {
		assert.NotNil(t, store.get(id))
	}
}

// TestPipeline_IndexSource_EmbedFailureCounted 测试单片段失败不中断整批
func TestPipeline_IndexSource_EmbedFailureCounted(t *testing.T) {
	embedder := &fakeEmbedder{failContains: "poison"}
	store := newFakeVectorStore()
	pipeline := newTestPipeline(embedder, store, newFakeChunkRepo())

	chunks := pageChunks("nextjs", "Good content one.", "poison pill content.", "Good content two.")

	result, err := pipeline.IndexSource(context.Background(), "nextjs", chunks)
	require.NoError(t, err)

	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.ErrorCount)
	assert.Equal(t, 2, store.count())
}

// TestPipeline_IndexSource_CollectionFailureFatal 测试集合创建失败中止整次调用
func TestPipeline_IndexSource_CollectionFailureFatal(t *testing.T) {
	store := newFakeVectorStore()
	store.ensureErr = fmt.Errorf("qdrant unavailable")
	pipeline := newTestPipeline(&fakeEmbedder{}, store, newFakeChunkRepo())

	result, err := pipeline.IndexSource(context.Background(), "nextjs", pageChunks("nextjs", "content"))

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "ensure collection")
}

// TestPipeline_MetadataRetrySucceeds 测试元数据行写入的瞬态失败重试
func TestPipeline_MetadataRetrySucceeds(t *testing.T) {
	chunkRepo := newFakeChunkRepo()
	chunkRepo.failSaves = 2 // 前两次失败，第三次成功
	store := newFakeVectorStore()
	pipeline := newTestPipeline(&fakeEmbedder{}, store, chunkRepo)

	result, err := pipeline.IndexSource(context.Background(), "nextjs", pageChunks("nextjs", "Some content."))
	require.NoError(t, err)

	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 0, result.ErrorCount)

	count, _ := chunkRepo.CountBySource("nextjs")
	assert.Equal(t, 1, count)
}

// TestPipeline_MetadataExhaustionCountsError 测试重试耗尽计入错误但不回滚向量写入
func TestPipeline_MetadataExhaustionCountsError(t *testing.T) {
	chunkRepo := newFakeChunkRepo()
	chunkRepo.failSaves = 100
	store := newFakeVectorStore()
	pipeline := newTestPipeline(&fakeEmbedder{}, store, chunkRepo)

	result, err := pipeline.IndexSource(context.Background(), "nextjs", pageChunks("nextjs", "Some content."))
	require.NoError(t, err)

	assert.Equal(t, 1, result.ErrorCount)
	// 向量库才是事实来源，记录保留
	assert.Equal(t, 1, store.count())
}

// TestPipeline_MetadataOutageKeepsAllVectors 测试元数据库故障时切分片段的向量全部写入
func TestPipeline_MetadataOutageKeepsAllVectors(t *testing.T) {
	chunkRepo := newFakeChunkRepo()
	chunkRepo.failSaves = 100
	store := newFakeVectorStore()
	pipeline := newTestPipeline(&fakeEmbedder{}, store, chunkRepo)

	chunks := []*domainDocs.DocumentChunk{{
		Content:   strings.Repeat("a", 9000),
		URL:       "https://example.com/docs/big",
		Title:     "Big page",
		SourceID:  "nextjs",
		BaseIndex: 0,
	}}

	result, err := pipeline.IndexSource(context.Background(), "nextjs", chunks)
	require.NoError(t, err)

	// 三个子片段的向量全部落库，元数据失败逐个计数
	assert.Equal(t, 3, store.count())
	assert.Equal(t, 3, result.SuccessCount)
	assert.Equal(t, 3, result.ErrorCount)
}

// TestChunksFromPages 测试抓取制品到片段的转换保持位置索引
func TestChunksFromPages(t *testing.T) {
	pages := []*domainDocs.ScrapedPage{
		{URL: "https://a.com/1", Title: "One", Content: "first"},
		{URL: "https://a.com/2", Title: "Two", Content: "second"},
	}

	chunks := ChunksFromPages("mysource", pages)

	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].BaseIndex)
	assert.Equal(t, 1, chunks[1].BaseIndex)
	assert.Equal(t, "mysource", chunks[1].SourceID)
	assert.Equal(t, "second", chunks[1].Content)
}
