package indexing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	domainDocs "github.com/docstack/backend/internal/domain/docs"
	"github.com/docstack/backend/internal/infrastructure/config"
	"github.com/docstack/backend/internal/infrastructure/vector"
)

// testConfig 测试配置：去掉所有人为延迟
func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Embedding.Dimension = 4
	cfg.Indexing.BatchDelay = 0
	cfg.Indexing.MetadataBackoff = time.Millisecond
	cfg.Queue.DrainDelay = time.Millisecond
	cfg.Queue.SweepInterval = 0
	return cfg
}

// fakeEmbedder 内存版向量化服务，记录并发度用于验证单飞约束
type fakeEmbedder struct {
	mu            sync.Mutex
	calls         int
	concurrent    int
	maxConcurrent int
	delay         time.Duration
	failContains  string
}

func (f *fakeEmbedder) EmbedText(text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.concurrent++
	if f.concurrent > f.maxConcurrent {
		f.maxConcurrent = f.concurrent
	}
	fail := f.failContains != "" && strings.Contains(text, f.failContains)
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	f.concurrent--
	f.mu.Unlock()

	if fail {
		return nil, fmt.Errorf("embedding provider rejected text")
	}
	return []float32{0.1, 0.2, 0.3, 0.4}, nil
}

func (f *fakeEmbedder) GetVectorDimension() (int, error) {
	return 4, nil
}

// fakeVectorStore 内存版向量库
type fakeVectorStore struct {
	mu             sync.Mutex
	records        map[string]*vector.Record
	ensureErr      error
	upsertErr      error
	deletedSources []string
	deletedURLs    []string
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{records: make(map[string]*vector.Record)}
}

func (f *fakeVectorStore) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	return f.ensureErr
}

func (f *fakeVectorStore) Upsert(ctx context.Context, records []*vector.Record) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range records {
		f.records[r.ID] = r
	}
	return nil
}

func (f *fakeVectorStore) DeleteBySource(ctx context.Context, sourceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedSources = append(f.deletedSources, sourceID)
	for id, r := range f.records {
		if r.SourceID == sourceID {
			delete(f.records, id)
		}
	}
	return nil
}

func (f *fakeVectorStore) DeleteByURL(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedURLs = append(f.deletedURLs, url)
	for id, r := range f.records {
		if r.URL == url {
			delete(f.records, id)
		}
	}
	return nil
}

func (f *fakeVectorStore) get(id string) *vector.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[id]
}

func (f *fakeVectorStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// fakeChunkRepo 内存版片段元数据仓库，可注入前 N 次写入失败
type fakeChunkRepo struct {
	mu        sync.Mutex
	rows      map[string]*domainDocs.ChunkRecord
	failSaves int
}

func newFakeChunkRepo() *fakeChunkRepo {
	return &fakeChunkRepo{rows: make(map[string]*domainDocs.ChunkRecord)}
}

func (f *fakeChunkRepo) SaveRecord(record *domainDocs.ChunkRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSaves > 0 {
		f.failSaves--
		return fmt.Errorf("database is locked")
	}
	f.rows[record.ID] = record
	return nil
}

func (f *fakeChunkRepo) GetRecord(id string) (*domainDocs.ChunkRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id], nil
}

func (f *fakeChunkRepo) GetRecordsBySource(sourceID string) ([]*domainDocs.ChunkRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domainDocs.ChunkRecord
	for _, r := range f.rows {
		if r.Source == sourceID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeChunkRepo) DeleteRecordsBySource(sourceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.rows {
		if r.Source == sourceID {
			delete(f.rows, id)
		}
	}
	return nil
}

func (f *fakeChunkRepo) CountBySource(sourceID string) (int, error) {
	rows, _ := f.GetRecordsBySource(sourceID)
	return len(rows), nil
}

// fakePageRepo 内存版动态页面仓库
type fakePageRepo struct {
	mu    sync.Mutex
	pages map[string]*domainDocs.DynamicPage
}

func newFakePageRepo() *fakePageRepo {
	return &fakePageRepo{pages: make(map[string]*domainDocs.DynamicPage)}
}

func (f *fakePageRepo) GetPage(url string) (*domainDocs.DynamicPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page, ok := f.pages[url]
	if !ok {
		return nil, nil
	}
	copied := *page
	return &copied, nil
}

func (f *fakePageRepo) SavePage(page *domainDocs.DynamicPage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *page
	f.pages[page.URL] = &copied
	return nil
}

func (f *fakePageRepo) TouchPage(url string, accessedAt int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if page, ok := f.pages[url]; ok {
		page.AccessCount++
		page.LastAccessedAt = accessedAt
	}
	return nil
}

func (f *fakePageRepo) ListExpiredURLs(now int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var urls []string
	for url, page := range f.pages {
		if page.ExpiresAt > 0 && page.ExpiresAt <= now {
			urls = append(urls, url)
		}
	}
	return urls, nil
}

func (f *fakePageRepo) DeleteExpired(now int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	deleted := 0
	for url, page := range f.pages {
		if page.ExpiresAt > 0 && page.ExpiresAt <= now {
			delete(f.pages, url)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakePageRepo) DeletePagesBySource(sourceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for url, page := range f.pages {
		if page.SourceID == sourceID {
			delete(f.pages, url)
		}
	}
	return nil
}
