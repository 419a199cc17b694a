package vector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/qdrant/go-client/qdrant"

	"github.com/docstack/backend/internal/infrastructure/config"
	"github.com/docstack/backend/internal/infrastructure/log"
)

// Record 向量库中持久化的单条记录
// id 是片段的确定性 UUID，重建索引时按身份覆盖而非追加
type Record struct {
	ID         string
	Vector     []float32
	SourceID   string
	URL        string
	Title      string
	Content    string
	ChunkIndex int
	Metadata   map[string]string
}

// Hit 相似度搜索命中
type Hit struct {
	ID         string
	Score      float32
	SourceID   string
	URL        string
	Title      string
	Content    string
	ChunkIndex int
}

// Store Qdrant 向量库封装
type Store struct {
	client     *qdrant.Client
	collection string
	logger     *slog.Logger
}

// NewStore 连接 Qdrant 并创建向量库封装
func NewStore(cfg *config.Config) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Qdrant.Host,
		Port: cfg.Qdrant.GRPCPort,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &Store{
		client:     client,
		collection: cfg.Qdrant.Collection,
		logger:     log.NewModuleLogger("vector", "store"),
	}, nil
}

// Close 关闭连接
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// EnsureCollection 确保集合存在（余弦距离，固定维度）
func (s *Store) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	existing, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, name := range existing {
		if name == s.collection {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", s.collection, err)
	}

	s.logger.Info("Collection created",
		"collection", s.collection,
		"vector_size", vectorSize,
	)

	return nil
}

// Upsert 写入或按身份覆盖一批记录
func (s *Store) Upsert(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(records))
	for i, record := range records {
		payload := map[string]interface{}{
			"source_id":   sanitizeUTF8(record.SourceID),
			"url":         sanitizeUTF8(record.URL),
			"title":       sanitizeUTF8(record.Title),
			"content":     sanitizeUTF8(record.Content),
			"chunk_index": record.ChunkIndex,
		}
		for k, v := range record.Metadata {
			payload["meta_"+k] = sanitizeUTF8(v)
		}

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(record.ID),
			Vectors: qdrant.NewVectors(record.Vector...),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	return nil
}

// Search 相似度搜索，sourceID 非空时按文档源过滤
func (s *Store) Search(ctx context.Context, vector []float32, limit int, sourceID string) ([]*Hit, error) {
	var filter *qdrant.Filter
	if sourceID != "" {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("source_id", sourceID),
			},
		}
	}

	limitU := uint64(limit)
	resp, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limitU,
		Filter:         filter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query qdrant: %w", err)
	}

	hits := make([]*Hit, 0, len(resp))
	for _, point := range resp {
		hit := scoredPointToHit(point)
		if hit != nil {
			hits = append(hits, hit)
		}
	}

	return hits, nil
}

// FetchNeighbors 获取同一 URL 上 chunk_index 在 [center-1, center+1] 内的记录
// 用于上下文窗口扩展，补齐被截断的代码示例或解释
func (s *Store) FetchNeighbors(ctx context.Context, url string, centerIndex int) ([]*Hit, error) {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("url", url),
			qdrant.NewRange("chunk_index", &qdrant.Range{
				Gte: qdrant.PtrOf(float64(centerIndex - 1)),
				Lte: qdrant.PtrOf(float64(centerIndex + 1)),
			}),
		},
	}

	limit := uint32(3)
	resp, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Filter:         filter,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scroll neighbors: %w", err)
	}

	hits := make([]*Hit, 0, len(resp))
	for _, point := range resp {
		hit := retrievedPointToHit(point)
		if hit != nil {
			hits = append(hits, hit)
		}
	}

	return hits, nil
}

// DeleteBySource 删除一个文档源的全部向量记录
func (s *Store) DeleteBySource(ctx context.Context, sourceID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("source_id", sourceID),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points for source %s: %w", sourceID, err)
	}

	return nil
}

// DeleteByURL 删除一个页面的全部向量记录
func (s *Store) DeleteByURL(ctx context.Context, url string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("url", url),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points for url %s: %w", url, err)
	}

	return nil
}

// sanitizeUTF8 清理字符串中的无效 UTF-8 字符
// Qdrant 客户端要求所有字符串必须是有效的 UTF-8
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}

// scoredPointToHit 将搜索命中转换为 Hit
func scoredPointToHit(point *qdrant.ScoredPoint) *Hit {
	payload := point.GetPayload()
	if payload == nil {
		return nil
	}

	hit := &Hit{Score: point.GetScore()}
	if id := point.GetId(); id != nil {
		hit.ID = id.GetUuid()
	}
	fillHitFromPayload(hit, payload)
	return hit
}

// retrievedPointToHit 将 scroll 结果转换为 Hit
func retrievedPointToHit(point *qdrant.RetrievedPoint) *Hit {
	payload := point.GetPayload()
	if payload == nil {
		return nil
	}

	hit := &Hit{}
	if id := point.GetId(); id != nil {
		hit.ID = id.GetUuid()
	}
	fillHitFromPayload(hit, payload)
	return hit
}

// fillHitFromPayload 从 payload 提取公共字段
func fillHitFromPayload(hit *Hit, payload map[string]*qdrant.Value) {
	if val, ok := payload["source_id"]; ok {
		hit.SourceID = val.GetStringValue()
	}
	if val, ok := payload["url"]; ok {
		hit.URL = val.GetStringValue()
	}
	if val, ok := payload["title"]; ok {
		hit.Title = val.GetStringValue()
	}
	if val, ok := payload["content"]; ok {
		hit.Content = val.GetStringValue()
	}
	if val, ok := payload["chunk_index"]; ok {
		hit.ChunkIndex = int(val.GetIntegerValue())
	}
}
