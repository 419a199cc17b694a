package indexing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	domainDocs "github.com/docstack/backend/internal/domain/docs"
	"github.com/docstack/backend/internal/infrastructure/config"
	"github.com/docstack/backend/internal/infrastructure/log"
	"github.com/docstack/backend/internal/infrastructure/vector"
)

// QueueStats 队列运行状态快照
type QueueStats struct {
	Pending   int  `json:"pending"`
	Processed int  `json:"processed"`
	Skipped   int  `json:"skipped"`
	Updated   int  `json:"updated"`
	Failed    int  `json:"failed"`
	Dropped   int  `json:"dropped"` // 队列满时被丢弃的页面数
	Draining  bool `json:"draining"`
}

// AutoIndexQueue 增量索引队列
// 在线检索时发现的未索引页面进入这里，由唯一的后台消费协程逐页处理
// 单消费协程从结构上保证同一时刻至多一个排空循环，避免两个循环竞争同一页面的哈希状态
type AutoIndexQueue struct {
	embedder Embedder
	store    VectorStore
	pageRepo domainDocs.DynamicPageRepository

	bufferSize    int
	pageChunkSize int
	drainDelay    time.Duration
	pageTTL       time.Duration
	sweepInterval time.Duration
	vectorDim     int

	mu       sync.Mutex
	pending  []*domainDocs.ScrapedPage
	draining bool
	stats    QueueStats

	notify   chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup

	collectionOnce sync.Once
	collectionErr  error

	logger *slog.Logger
}

// NewAutoIndexQueue 创建增量索引队列
func NewAutoIndexQueue(
	cfg *config.Config,
	embedder Embedder,
	store VectorStore,
	pageRepo domainDocs.DynamicPageRepository,
) *AutoIndexQueue {
	return &AutoIndexQueue{
		embedder:      embedder,
		store:         store,
		pageRepo:      pageRepo,
		bufferSize:    cfg.Queue.BufferSize,
		pageChunkSize: cfg.Queue.PageChunkSize,
		drainDelay:    cfg.Queue.DrainDelay,
		pageTTL:       cfg.Queue.PageTTL,
		sweepInterval: cfg.Queue.SweepInterval,
		vectorDim:     cfg.Embedding.Dimension,
		notify:        make(chan struct{}, 1),
		stopChan:      make(chan struct{}),
		logger:        log.NewModuleLogger("indexing", "queue"),
	}
}

// Start 启动后台消费协程和过期清理协程
func (q *AutoIndexQueue) Start() {
	q.wg.Add(1)
	go q.drainLoop()

	if q.sweepInterval > 0 {
		q.wg.Add(1)
		go q.sweepLoop()
	}

	q.logger.Info("Auto index queue started",
		"drain_delay", q.drainDelay,
		"page_ttl", q.pageTTL,
	)
}

// Stop 停止队列并等待消费协程退出
func (q *AutoIndexQueue) Stop() {
	close(q.stopChan)
	q.wg.Wait()
	q.logger.Info("Auto index queue stopped")
}

// Queue 追加页面到队列并唤醒消费协程
// 排空进行中时只追加，不会启动第二个排空循环；
// 积压达到容量上限时丢弃多出的页面（下次抓取会重新投递）
func (q *AutoIndexQueue) Queue(pages []*domainDocs.ScrapedPage) {
	if len(pages) == 0 {
		return
	}

	q.mu.Lock()
	added, dropped := 0, 0
	for _, page := range pages {
		if q.bufferSize > 0 && len(q.pending) >= q.bufferSize {
			dropped++
			continue
		}
		q.pending = append(q.pending, page)
		added++
	}
	q.stats.Dropped += dropped
	queued := len(q.pending)
	q.mu.Unlock()

	if dropped > 0 {
		q.logger.Warn("Queue at capacity, pages dropped",
			"dropped", dropped,
			"capacity", q.bufferSize,
		)
	}
	q.logger.Debug("Pages queued", "added", added, "pending", queued)

	if added == 0 {
		return
	}
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// ShouldIndex 根据存量哈希判定页面的索引决策
// 未见过 ⇒ new；哈希一致 ⇒ skip（顺带更新访问计数）；哈希变化 ⇒ update
func (q *AutoIndexQueue) ShouldIndex(url, newHash string) (domainDocs.IndexDecision, error) {
	page, err := q.pageRepo.GetPage(url)
	if err != nil {
		return "", fmt.Errorf("failed to look up page state: %w", err)
	}

	if page == nil {
		return domainDocs.DecisionNew, nil
	}

	if page.ContentHash == newHash {
		if err := q.pageRepo.TouchPage(url, time.Now().Unix()); err != nil {
			q.logger.Warn("Failed to touch page", "url", url, "error", err)
		}
		return domainDocs.DecisionSkip, nil
	}

	return domainDocs.DecisionUpdate, nil
}

// Stats 返回队列状态快照
func (q *AutoIndexQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := q.stats
	stats.Pending = len(q.pending)
	stats.Draining = q.draining
	return stats
}

// drainLoop 唯一的排空循环：逐页处理，队列空后回到等待
func (q *AutoIndexQueue) drainLoop() {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopChan:
			return
		case <-q.notify:
		}

		q.setDraining(true)
		for {
			page := q.pop()
			if page == nil {
				break
			}

			q.processPage(page)

			select {
			case <-q.stopChan:
				q.setDraining(false)
				return
			case <-time.After(q.drainDelay):
			}
		}
		q.setDraining(false)
	}
}

// sweepLoop 周期清理过期的动态页面状态行
func (q *AutoIndexQueue) sweepLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopChan:
			return
		case <-ticker.C:
			q.sweepExpired(time.Now().Unix())
		}
	}
}

// sweepExpired 清理过期页面：先删向量再删状态行
func (q *AutoIndexQueue) sweepExpired(now int64) {
	urls, err := q.pageRepo.ListExpiredURLs(now)
	if err != nil {
		q.logger.Error("Failed to list expired pages", "error", err)
		return
	}
	for _, url := range urls {
		if err := q.store.DeleteByURL(context.Background(), url); err != nil {
			q.logger.Warn("Failed to delete vectors for expired page", "url", url, "error", err)
		}
	}

	deleted, err := q.pageRepo.DeleteExpired(now)
	if err != nil {
		q.logger.Error("Failed to sweep expired pages", "error", err)
		return
	}
	if deleted > 0 {
		q.logger.Info("Expired pages swept", "deleted", deleted)
	}
}

// pop 取出队首页面，队列空时返回 nil
func (q *AutoIndexQueue) pop() *domainDocs.ScrapedPage {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil
	}
	page := q.pending[0]
	q.pending = q.pending[1:]
	return page
}

func (q *AutoIndexQueue) setDraining(draining bool) {
	q.mu.Lock()
	q.draining = draining
	q.mu.Unlock()
}

// processPage 处理单个页面，失败只计数不中断排空
func (q *AutoIndexQueue) processPage(page *domainDocs.ScrapedPage) {
	hash := HashContent(page.Content)

	decision, err := q.ShouldIndex(page.URL, hash)
	if err != nil {
		q.logger.Error("Failed to decide page action", "url", page.URL, "error", err)
		q.bump(func(s *QueueStats) { s.Failed++ })
		return
	}

	switch decision {
	case domainDocs.DecisionSkip:
		q.bump(func(s *QueueStats) { s.Skipped++ })
		return
	case domainDocs.DecisionUpdate:
		// 新旧片段数可能不同，先清掉旧记录
		if err := q.store.DeleteByURL(context.Background(), page.URL); err != nil {
			q.logger.Warn("Failed to delete stale vectors for page", "url", page.URL, "error", err)
		}
	}

	chunksCount, err := q.indexPage(context.Background(), page, hash)
	if err != nil {
		q.logger.Error("Failed to index page", "url", page.URL, "error", err)
		q.bump(func(s *QueueStats) { s.Failed++ })
		return
	}

	q.logger.Info("Page indexed",
		"url", page.URL,
		"decision", decision,
		"chunks", chunksCount,
	)

	q.bump(func(s *QueueStats) {
		s.Processed++
		if decision == domainDocs.DecisionUpdate {
			s.Updated++
		}
	})
}

// indexPage 切分、向量化并写入一个页面，更新页面状态行
func (q *AutoIndexQueue) indexPage(ctx context.Context, page *domainDocs.ScrapedPage, hash string) (int, error) {
	if err := q.ensureCollection(ctx); err != nil {
		return 0, err
	}

	chunks := SplitPage(page.Content, q.pageChunkSize)
	for i, content := range chunks {
		vec, err := q.embedder.EmbedText(content)
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunk %d: %w", i, err)
		}

		record := &vector.Record{
			ID:         ChunkIdentity(page.SourceID, page.URL, i, 0),
			Vector:     vec,
			SourceID:   page.SourceID,
			URL:        page.URL,
			Title:      page.Title,
			Content:    content,
			ChunkIndex: EffectiveOrder(i, 0),
			Metadata:   page.Metadata,
		}

		if err := q.store.Upsert(ctx, []*vector.Record{record}); err != nil {
			return 0, fmt.Errorf("failed to upsert chunk %d: %w", i, err)
		}
	}

	now := time.Now()
	err := q.pageRepo.SavePage(&domainDocs.DynamicPage{
		URL:            page.URL,
		SourceID:       page.SourceID,
		Title:          page.Title,
		ContentHash:    hash,
		IsIndexed:      true,
		IndexedAt:      now.Unix(),
		LastAccessedAt: now.Unix(),
		ExpiresAt:      now.Add(q.pageTTL).Unix(),
		ChunksCount:    len(chunks),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save page state: %w", err)
	}

	return len(chunks), nil
}

// ensureCollection 首次写入前确保集合存在
func (q *AutoIndexQueue) ensureCollection(ctx context.Context) error {
	q.collectionOnce.Do(func() {
		dim := q.vectorDim
		if dim <= 0 {
			probed, err := q.embedder.GetVectorDimension()
			if err != nil {
				q.collectionErr = fmt.Errorf("failed to probe vector dimension: %w", err)
				return
			}
			dim = probed
		}
		q.collectionErr = q.store.EnsureCollection(ctx, uint64(dim))
	})
	return q.collectionErr
}

func (q *AutoIndexQueue) bump(fn func(*QueueStats)) {
	q.mu.Lock()
	fn(&q.stats)
	q.mu.Unlock()
}
