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

// Embedder 索引管线需要的向量化能力
type Embedder interface {
	EmbedText(text string) ([]float32, error)
	GetVectorDimension() (int, error)
}

// VectorStore 索引管线需要的向量库能力
type VectorStore interface {
	EnsureCollection(ctx context.Context, vectorSize uint64) error
	Upsert(ctx context.Context, records []*vector.Record) error
	DeleteBySource(ctx context.Context, sourceID string) error
	DeleteByURL(ctx context.Context, url string) error
}

// IndexResult 索引结果计数
type IndexResult struct {
	SuccessCount int `json:"success_count"` // 成功写入的向量记录数
	ErrorCount   int `json:"error_count"`   // 失败的片段数（含元数据行重试耗尽）
	SplitCount   int `json:"split_count"`   // 因超长被切分的片段数
}

// Pipeline 索引管线
// 对一个文档源执行完整重建：删除旧记录，分批并发向量化并按身份覆盖写入
type Pipeline struct {
	embedder  Embedder
	store     VectorStore
	chunkRepo domainDocs.ChunkRecordRepository

	maxChunkBytes   int
	batchSize       int
	batchDelay      time.Duration
	metadataRetries int
	metadataBackoff time.Duration
	vectorDim       int

	logger *slog.Logger
}

// NewPipeline 创建索引管线
func NewPipeline(
	cfg *config.Config,
	embedder Embedder,
	store VectorStore,
	chunkRepo domainDocs.ChunkRecordRepository,
) *Pipeline {
	return &Pipeline{
		embedder:        embedder,
		store:           store,
		chunkRepo:       chunkRepo,
		maxChunkBytes:   cfg.Indexing.MaxChunkBytes,
		batchSize:       cfg.Indexing.BatchSize,
		batchDelay:      cfg.Indexing.BatchDelay,
		metadataRetries: cfg.Indexing.MetadataRetries,
		metadataBackoff: cfg.Indexing.MetadataBackoff,
		vectorDim:       cfg.Embedding.Dimension,
		logger:          log.NewModuleLogger("indexing", "pipeline"),
	}
}

// ChunksFromPages 将抓取器制品转换为带位置索引的文档片段
func ChunksFromPages(sourceID string, pages []*domainDocs.ScrapedPage) []*domainDocs.DocumentChunk {
	chunks := make([]*domainDocs.DocumentChunk, 0, len(pages))
	for i, page := range pages {
		chunks = append(chunks, &domainDocs.DocumentChunk{
			Content:   page.Content,
			URL:       page.URL,
			Title:     page.Title,
			SourceID:  sourceID,
			BaseIndex: i,
			Metadata:  page.Metadata,
		})
	}
	return chunks
}

// IndexSource 对一个文档源执行完整重建索引
// 集合创建失败是致命错误；旧记录清理失败只记日志（覆盖写入本身就是幂等的）；
// 单个片段的失败只计入 ErrorCount，不中断整批
func (p *Pipeline) IndexSource(ctx context.Context, sourceID string, chunks []*domainDocs.DocumentChunk) (*IndexResult, error) {
	dim := p.vectorDim
	if dim <= 0 {
		probed, err := p.embedder.GetVectorDimension()
		if err != nil {
			return nil, fmt.Errorf("failed to probe vector dimension: %w", err)
		}
		dim = probed
	}

	if err := p.store.EnsureCollection(ctx, uint64(dim)); err != nil {
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	// 完整重建语义：先清空该源的旧记录
	if err := p.store.DeleteBySource(ctx, sourceID); err != nil {
		p.logger.Warn("Failed to delete existing vectors, continuing",
			"source", sourceID,
			"error", err,
		)
	}
	if err := p.chunkRepo.DeleteRecordsBySource(sourceID); err != nil {
		p.logger.Warn("Failed to delete existing metadata rows, continuing",
			"source", sourceID,
			"error", err,
		)
	}

	p.logger.Info("Indexing source",
		"source", sourceID,
		"chunks", len(chunks),
		"batch_size", p.batchSize,
	)

	result := &IndexResult{}
	var mu sync.Mutex

	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		var wg sync.WaitGroup
		for _, chunk := range chunks[start:end] {
			wg.Add(1)
			go func(chunk *domainDocs.DocumentChunk) {
				defer wg.Done()

				success, errs, split := p.indexChunk(ctx, chunk)

				mu.Lock()
				result.SuccessCount += success
				result.ErrorCount += errs
				if split {
					result.SplitCount++
				}
				mu.Unlock()
			}(chunk)
		}
		wg.Wait()

		// embedding 服务限流：批间固定延迟
		if end < len(chunks) {
			time.Sleep(p.batchDelay)
		}
	}

	p.logger.Info("Indexing finished",
		"source", sourceID,
		"success", result.SuccessCount,
		"errors", result.ErrorCount,
		"split", result.SplitCount,
	)

	return result, nil
}

// indexChunk 处理单个片段：超长切分、逐段向量化并写入
// 返回成功写入的记录数、失败数、以及该片段是否被切分
func (p *Pipeline) indexChunk(ctx context.Context, chunk *domainDocs.DocumentChunk) (int, int, bool) {
	parts := SplitOversized(chunk.Content, p.maxChunkBytes)
	wasSplit := len(parts) > 1

	success, errs := 0, 0
	for subIndex, part := range parts {
		title := chunk.Title
		if wasSplit {
			title = fmt.Sprintf("%s (Part %d/%d)", chunk.Title, subIndex+1, len(parts))
		}

		vec, err := p.embedder.EmbedText(part)
		if err != nil {
			p.logger.Error("Failed to embed chunk, aborting remaining parts",
				"url", chunk.URL,
				"base_index", chunk.BaseIndex,
				"sub_index", subIndex,
				"error", err,
			)
			return success, errs + 1, wasSplit
		}

		id := ChunkIdentity(chunk.SourceID, chunk.URL, chunk.BaseIndex, subIndex)
		order := EffectiveOrder(chunk.BaseIndex, subIndex)

		record := &vector.Record{
			ID:         id,
			Vector:     vec,
			SourceID:   chunk.SourceID,
			URL:        chunk.URL,
			Title:      title,
			Content:    part,
			ChunkIndex: order,
			Metadata:   chunk.Metadata,
		}

		if err := p.store.Upsert(ctx, []*vector.Record{record}); err != nil {
			p.logger.Error("Failed to upsert vector record",
				"url", chunk.URL,
				"chunk_id", id,
				"error", err,
			)
			return success, errs + 1, wasSplit
		}
		success++

		// 元数据行是旁路存储，失败只计数，不回滚向量写入，也不中断后续子片段
		if err := p.saveMetadataWithRetry(id, chunk, title, order); err != nil {
			p.logger.Error("Failed to save metadata row after retries",
				"chunk_id", id,
				"error", err,
			)
			errs++
		}
	}

	return success, errs, wasSplit
}

// saveMetadataWithRetry 带固定间隔重试的元数据行写入
func (p *Pipeline) saveMetadataWithRetry(id string, chunk *domainDocs.DocumentChunk, title string, order int) error {
	record := &domainDocs.ChunkRecord{
		ID:         id,
		QdrantID:   id,
		URL:        chunk.URL,
		Title:      title,
		Source:     chunk.SourceID,
		ChunkIndex: order,
	}

	var lastErr error
	for attempt := 0; attempt < p.metadataRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(p.metadataBackoff)
		}
		if lastErr = p.chunkRepo.SaveRecord(record); lastErr == nil {
			return nil
		}
		p.logger.Warn("Metadata row insert failed, retrying",
			"attempt", attempt+1,
			"max_retries", p.metadataRetries,
			"error", lastErr,
		)
	}

	return fmt.Errorf("metadata insert failed after %d attempts: %w", p.metadataRetries, lastErr)
}
