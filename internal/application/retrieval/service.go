package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/docstack/backend/internal/infrastructure/config"
	"github.com/docstack/backend/internal/infrastructure/log"
	"github.com/docstack/backend/internal/infrastructure/vector"
)

// Embedder 检索服务需要的向量化能力
type Embedder interface {
	EmbedText(text string) ([]float32, error)
}

// VectorSearcher 检索服务需要的向量库能力
type VectorSearcher interface {
	Search(ctx context.Context, vector []float32, limit int, sourceID string) ([]*vector.Hit, error)
	FetchNeighbors(ctx context.Context, url string, centerIndex int) ([]*vector.Hit, error)
}

// SearchResult 检索命中
type SearchResult struct {
	Content    string  `json:"content"`
	URL        string  `json:"url"`
	Title      string  `json:"title"`
	SourceID   string  `json:"source_id"`
	Score      float32 `json:"score"`
	ChunkIndex int     `json:"chunk_index"`
}

// Service 检索服务
// 向量化查询、相似度搜索、质量过滤，可选地用相邻片段扩展上下文
type Service struct {
	embedder Embedder
	searcher VectorSearcher

	defaultLimit  int
	minContentLen int

	logger *slog.Logger
}

// NewService 创建检索服务
func NewService(cfg *config.Config, embedder Embedder, searcher VectorSearcher) *Service {
	return &Service{
		embedder:      embedder,
		searcher:      searcher,
		defaultLimit:  cfg.Retrieval.DefaultLimit,
		minContentLen: cfg.Retrieval.MinContentLen,
		logger:        log.NewModuleLogger("retrieval", "service"),
	}
}

// Search 检索与查询最相关的片段
// 超额请求 2×limit 个候选，质量过滤后仍能凑满 limit 个结果；
// sourceID 非空时限定在单个文档源内搜索
func (s *Service) Search(ctx context.Context, query, sourceID string, limit int) ([]*SearchResult, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}

	queryVector, err := s.embedder.EmbedText(query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := s.searcher.Search(ctx, queryVector, limit*2, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to search vector index: %w", err)
	}

	results := make([]*SearchResult, 0, limit)
	filtered := 0
	for _, hit := range hits {
		if isLowQuality(hit.Content, s.minContentLen) {
			filtered++
			continue
		}

		results = append(results, &SearchResult{
			Content:    hit.Content,
			URL:        hit.URL,
			Title:      hit.Title,
			SourceID:   hit.SourceID,
			Score:      hit.Score,
			ChunkIndex: hit.ChunkIndex,
		})
		if len(results) == limit {
			break
		}
	}

	s.logger.Debug("Search finished",
		"source", sourceID,
		"candidates", len(hits),
		"filtered", filtered,
		"returned", len(results),
	)

	return results, nil
}

// ExpandContext 用同一页面上相邻的片段扩展单条结果的上下文
// 单个片段可能把代码示例或解释截断在中间，相邻片段能补齐
func (s *Service) ExpandContext(ctx context.Context, result *SearchResult) (string, error) {
	neighbors, err := s.searcher.FetchNeighbors(ctx, result.URL, result.ChunkIndex)
	if err != nil {
		return "", fmt.Errorf("failed to fetch neighbor chunks: %w", err)
	}

	if len(neighbors) == 0 {
		return result.Content, nil
	}

	sort.Slice(neighbors, func(i, j int) bool {
		return neighbors[i].ChunkIndex < neighbors[j].ChunkIndex
	})

	parts := make([]string, 0, len(neighbors))
	seen := false
	for _, n := range neighbors {
		if n.ChunkIndex == result.ChunkIndex {
			seen = true
		}
		parts = append(parts, n.Content)
	}
	// 命中片段本身不在邻居结果里时补上，保持顺序近似
	if !seen {
		parts = append(parts, result.Content)
	}

	return strings.Join(parts, "\n\n"), nil
}
