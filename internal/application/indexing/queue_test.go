package indexing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainDocs "github.com/docstack/backend/internal/domain/docs"
)

func newTestQueue(embedder *fakeEmbedder, store *fakeVectorStore, pageRepo *fakePageRepo) *AutoIndexQueue {
	return NewAutoIndexQueue(testConfig(), embedder, store, pageRepo)
}

// waitFor 轮询等待条件成立，避免测试依赖固定 sleep
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

// TestQueue_ShouldIndex_NewSkipUpdate 测试哈希决策的三种状态迁移
func TestQueue_ShouldIndex_NewSkipUpdate(t *testing.T) {
	pageRepo := newFakePageRepo()
	queue := newTestQueue(&fakeEmbedder{}, newFakeVectorStore(), pageRepo)

	url := "https://nextjs.org/docs/caching"

	// 未见过的 URL
	decision, err := queue.ShouldIndex(url, "hash-a")
	require.NoError(t, err)
	assert.Equal(t, domainDocs.DecisionNew, decision)

	require.NoError(t, pageRepo.SavePage(&domainDocs.DynamicPage{
		URL: url, SourceID: "nextjs", ContentHash: "hash-a",
	}))

	// 哈希一致：跳过并更新访问计数
	decision, err = queue.ShouldIndex(url, "hash-a")
	require.NoError(t, err)
	assert.Equal(t, domainDocs.DecisionSkip, decision)

	page, err := pageRepo.GetPage(url)
	require.NoError(t, err)
	assert.Equal(t, 1, page.AccessCount)

	// 哈希变化：重建索引
	decision, err = queue.ShouldIndex(url, "hash-b")
	require.NoError(t, err)
	assert.Equal(t, domainDocs.DecisionUpdate, decision)
}

// TestQueue_DrainIndexesPages 测试排空循环处理新页面并记录状态
func TestQueue_DrainIndexesPages(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeVectorStore()
	pageRepo := newFakePageRepo()
	queue := newTestQueue(embedder, store, pageRepo)

	queue.Start()
	defer queue.Stop()

	queue.Queue([]*domainDocs.ScrapedPage{
		{URL: "https://a.com/1", SourceID: "a", Title: "One", Content: "First page content about routing and caching behavior."},
		{URL: "https://a.com/2", SourceID: "a", Title: "Two", Content: "Second page content about server side rendering."},
	})

	waitFor(t, 2*time.Second, func() bool { return queue.Stats().Processed == 2 })

	stats := queue.Stats()
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 0, stats.Failed)
	assert.GreaterOrEqual(t, store.count(), 2)

	page, err := pageRepo.GetPage("https://a.com/1")
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.True(t, page.IsIndexed)
	assert.NotEmpty(t, page.ContentHash)
	assert.Greater(t, page.ExpiresAt, time.Now().Unix())
	assert.Greater(t, page.ChunksCount, 0)
}

// TestQueue_UnchangedPageSkipped 测试重复入队的未变化页面只更新访问计数
func TestQueue_UnchangedPageSkipped(t *testing.T) {
	embedder := &fakeEmbedder{}
	queue := newTestQueue(embedder, newFakeVectorStore(), newFakePageRepo())

	queue.Start()
	defer queue.Stop()

	page := &domainDocs.ScrapedPage{
		URL: "https://a.com/1", SourceID: "a", Title: "One",
		Content: "Stable page content that does not change between crawls.",
	}

	queue.Queue([]*domainDocs.ScrapedPage{page})
	waitFor(t, 2*time.Second, func() bool { return queue.Stats().Processed == 1 })

	callsAfterFirst := embedder.calls

	queue.Queue([]*domainDocs.ScrapedPage{page})
	waitFor(t, 2*time.Second, func() bool { return queue.Stats().Skipped == 1 })

	// 未变化的页面不再向量化
	assert.Equal(t, callsAfterFirst, embedder.calls)
}

// TestQueue_ChangedPageReindexed 测试内容变化的页面先清旧记录再重建
func TestQueue_ChangedPageReindexed(t *testing.T) {
	store := newFakeVectorStore()
	queue := newTestQueue(&fakeEmbedder{}, store, newFakePageRepo())

	queue.Start()
	defer queue.Stop()

	queue.Queue([]*domainDocs.ScrapedPage{{
		URL: "https://a.com/1", SourceID: "a", Title: "One",
		Content: "Original content describing the old behavior of the API.",
	}})
	waitFor(t, 2*time.Second, func() bool { return queue.Stats().Processed == 1 })

	queue.Queue([]*domainDocs.ScrapedPage{{
		URL: "https://a.com/1", SourceID: "a", Title: "One",
		Content: "Revised content describing the new behavior of the API.",
	}})
	waitFor(t, 2*time.Second, func() bool { return queue.Stats().Updated == 1 })

	assert.Contains(t, store.deletedURLs, "https://a.com/1")
	assert.Equal(t, 2, queue.Stats().Processed)
}

// TestQueue_SingleFlight 测试排空期间入队只追加，不产生并发处理
func TestQueue_SingleFlight(t *testing.T) {
	embedder := &fakeEmbedder{delay: 10 * time.Millisecond}
	queue := newTestQueue(embedder, newFakeVectorStore(), newFakePageRepo())

	queue.Start()
	defer queue.Stop()

	pages := make([]*domainDocs.ScrapedPage, 0, 4)
	for _, url := range []string{"https://a.com/1", "https://a.com/2", "https://a.com/3", "https://a.com/4"} {
		pages = append(pages, &domainDocs.ScrapedPage{
			URL: url, SourceID: "a", Title: "T",
			Content: "Page content long enough to be worth indexing: " + url,
		})
	}

	// 两次入队交叠，第二次发生在排空进行中
	queue.Queue(pages[:2])
	queue.Queue(pages[2:])

	waitFor(t, 5*time.Second, func() bool { return queue.Stats().Processed == 4 })

	embedder.mu.Lock()
	maxConcurrent := embedder.maxConcurrent
	embedder.mu.Unlock()
	assert.Equal(t, 1, maxConcurrent, "drain loop must be single-flight")
}

// TestQueue_EmptyQueueIgnored 测试空入队不唤醒处理
func TestQueue_EmptyQueueIgnored(t *testing.T) {
	queue := newTestQueue(&fakeEmbedder{}, newFakeVectorStore(), newFakePageRepo())

	queue.Queue(nil)

	stats := queue.Stats()
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 0, stats.Processed)
}

// TestQueue_CapacityBound 测试积压达到容量上限后多出的页面被丢弃
func TestQueue_CapacityBound(t *testing.T) {
	cfg := testConfig()
	cfg.Queue.BufferSize = 2
	queue := NewAutoIndexQueue(cfg, &fakeEmbedder{}, newFakeVectorStore(), newFakePageRepo())

	// 不启动消费协程，保证积压不被排空
	queue.Queue([]*domainDocs.ScrapedPage{
		{URL: "https://react.dev/a", SourceID: "react", Content: "a"},
		{URL: "https://react.dev/b", SourceID: "react", Content: "b"},
		{URL: "https://react.dev/c", SourceID: "react", Content: "c"},
	})

	stats := queue.Stats()
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 1, stats.Dropped)
}

// TestQueue_SweepExpired 测试过期页面清理连带删除向量
func TestQueue_SweepExpired(t *testing.T) {
	pageRepo := newFakePageRepo()
	store := newFakeVectorStore()
	queue := newTestQueue(&fakeEmbedder{}, store, pageRepo)

	now := time.Now().Unix()
	require.NoError(t, pageRepo.SavePage(&domainDocs.DynamicPage{
		URL: "https://react.dev/old", SourceID: "react",
		ContentHash: "hash-old", ExpiresAt: now - 10,
	}))
	require.NoError(t, pageRepo.SavePage(&domainDocs.DynamicPage{
		URL: "https://react.dev/fresh", SourceID: "react",
		ContentHash: "hash-fresh", ExpiresAt: now + 3600,
	}))

	queue.sweepExpired(now)

	assert.Equal(t, []string{"https://react.dev/old"}, store.deletedURLs)

	page, err := pageRepo.GetPage("https://react.dev/old")
	require.NoError(t, err)
	assert.Nil(t, page)

	page, err = pageRepo.GetPage("https://react.dev/fresh")
	require.NoError(t, err)
	assert.NotNil(t, page)
}
