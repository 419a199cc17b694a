package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	domainDocs "github.com/docstack/backend/internal/domain/docs"
	domainRouting "github.com/docstack/backend/internal/domain/routing"
	"github.com/docstack/backend/internal/infrastructure/config"
	"github.com/docstack/backend/internal/infrastructure/log"
)

// Embedder 分类器需要的向量化能力
type Embedder interface {
	EmbedText(text string) ([]float32, error)
}

// Detector 生态分类器
// 两级检测：先做廉价的关键词匹配，命中不足时退到查询与源描述的向量相似度
type Detector struct {
	embedder   Embedder
	sourceRepo domainDocs.DocSourceRepository

	mu            sync.Mutex
	sourceVectors map[string][]float32
	vectorsAt     time.Time
	vectorTTL     time.Duration

	logger *slog.Logger
}

// NewDetector 创建生态分类器
func NewDetector(cfg *config.Config, embedder Embedder, sourceRepo domainDocs.DocSourceRepository) *Detector {
	return &Detector{
		embedder:      embedder,
		sourceRepo:    sourceRepo,
		sourceVectors: make(map[string][]float32),
		vectorTTL:     cfg.Router.SourceCacheTTL,
		logger:        log.NewModuleLogger("classifier", "detector"),
	}
}

// sourceScore 单个文档源的打分
type sourceScore struct {
	id    string
	score float64
}

// Detect 对查询做生态检测
func (d *Detector) Detect(ctx context.Context, query string) (*domainRouting.EcosystemDetection, error) {
	sources, err := d.sourceRepo.ListSources()
	if err != nil {
		return nil, fmt.Errorf("failed to list doc sources: %w", err)
	}
	if len(sources) == 0 {
		return &domainRouting.EcosystemDetection{}, nil
	}

	// 第一级：关键词命中
	if detection := d.detectByKeywords(query, sources); detection != nil {
		return detection, nil
	}

	// 第二级：向量相似度
	return d.detectByEmbedding(query, sources)
}

// detectByKeywords 统计源 ID、名称和关键词在查询中的出现
// 没有任何命中时返回 nil，交给向量检测
func (d *Detector) detectByKeywords(query string, sources []*domainDocs.DocSource) *domainRouting.EcosystemDetection {
	lowered := strings.ToLower(query)

	var scores []sourceScore
	for _, src := range sources {
		score := 0.0
		// 源 ID 或名称直接出现是强信号
		if strings.Contains(lowered, strings.ToLower(src.ID)) ||
			strings.Contains(lowered, strings.ToLower(src.Name)) {
			score += 2
		}
		for _, keyword := range src.Keywords {
			if keyword != "" && strings.Contains(lowered, strings.ToLower(keyword)) {
				score++
			}
		}
		if score > 0 {
			scores = append(scores, sourceScore{id: src.ID, score: score})
		}
	}

	if len(scores) == 0 {
		return nil
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	suggested := make([]string, 0, len(scores))
	for _, s := range scores {
		suggested = append(suggested, s.id)
	}

	confidence := int(60 + 15*scores[0].score)
	if confidence > 95 {
		confidence = 95
	}

	return &domainRouting.EcosystemDetection{
		Ecosystem:        scores[0].id,
		Confidence:       confidence,
		SuggestedSources: suggested,
	}
}

// detectByEmbedding 查询向量与源描述向量的余弦相似度
func (d *Detector) detectByEmbedding(query string, sources []*domainDocs.DocSource) (*domainRouting.EcosystemDetection, error) {
	queryVec, err := d.embedder.EmbedText(query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	vectors, err := d.sourceVectorsFor(sources)
	if err != nil {
		return nil, err
	}

	var scores []sourceScore
	for _, src := range sources {
		vec, ok := vectors[src.ID]
		if !ok {
			continue
		}
		scores = append(scores, sourceScore{id: src.ID, score: cosineSimilarity(queryVec, vec)})
	}

	if len(scores) == 0 {
		return &domainRouting.EcosystemDetection{}, nil
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	best := scores[0]
	// 与最优相近的源一并作为候选
	suggested := []string{best.id}
	for _, s := range scores[1:] {
		if best.score-s.score <= 0.05 {
			suggested = append(suggested, s.id)
		}
	}

	confidence := int(best.score * 100)
	if confidence < 0 {
		confidence = 0
	}

	return &domainRouting.EcosystemDetection{
		Ecosystem:        best.id,
		Confidence:       confidence,
		SuggestedSources: suggested,
	}, nil
}

// sourceVectorsFor 源签名向量的 TTL 缓存
func (d *Detector) sourceVectorsFor(sources []*domainDocs.DocSource) (map[string][]float32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.sourceVectors) > 0 && time.Since(d.vectorsAt) < d.vectorTTL {
		return d.sourceVectors, nil
	}

	vectors := make(map[string][]float32, len(sources))
	for _, src := range sources {
		signature := fmt.Sprintf("%s: %s %s", src.Name, src.Description, strings.Join(src.Keywords, " "))
		vec, err := d.embedder.EmbedText(signature)
		if err != nil {
			return nil, fmt.Errorf("failed to embed source signature %s: %w", src.ID, err)
		}
		vectors[src.ID] = vec
	}

	d.sourceVectors = vectors
	d.vectorsAt = time.Now()
	return vectors, nil
}

// cosineSimilarity 余弦相似度
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
