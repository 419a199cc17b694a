package classifier

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainDocs "github.com/docstack/backend/internal/domain/docs"
	"github.com/docstack/backend/internal/infrastructure/config"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (f *fakeEmbedder) EmbedText(text string) ([]float32, error) {
	f.calls++
	if vec, ok := f.vectors[text]; ok {
		return vec, nil
	}
	return []float32{1, 0, 0}, nil
}

type fakeSourceRepo struct {
	sources []*domainDocs.DocSource
	err     error
}

func (f *fakeSourceRepo) ListSources() ([]*domainDocs.DocSource, error) { return f.sources, f.err }
func (f *fakeSourceRepo) GetSource(id string) (*domainDocs.DocSource, error) {
	return nil, nil
}
func (f *fakeSourceRepo) SaveSource(source *domainDocs.DocSource) error { return nil }

func testSources() []*domainDocs.DocSource {
	return []*domainDocs.DocSource{
		{ID: "nextjs", Name: "Next.js", Description: "React framework docs", Keywords: []string{"app router", "server components"}},
		{ID: "tailwind", Name: "Tailwind CSS", Description: "Utility-first CSS docs", Keywords: []string{"utility class", "tailwind"}},
	}
}

func newTestDetector(embedder *fakeEmbedder, repo *fakeSourceRepo) *Detector {
	return NewDetector(config.NewConfig(), embedder, repo)
}

// TestDetect_KeywordMatch 测试关键词命中不消耗向量化调用
func TestDetect_KeywordMatch(t *testing.T) {
	embedder := &fakeEmbedder{}
	detector := newTestDetector(embedder, &fakeSourceRepo{sources: testSources()})

	detection, err := detector.Detect(context.Background(), "how do server components work in the app router?")
	require.NoError(t, err)

	assert.Equal(t, "nextjs", detection.Ecosystem)
	assert.Greater(t, detection.Confidence, 80)
	assert.Equal(t, []string{"nextjs"}, detection.SuggestedSources)
	assert.Equal(t, 0, embedder.calls)
}

// TestDetect_SourceNameIsStrongSignal 测试源名称直接出现时优先
func TestDetect_SourceNameIsStrongSignal(t *testing.T) {
	detector := newTestDetector(&fakeEmbedder{}, &fakeSourceRepo{sources: testSources()})

	detection, err := detector.Detect(context.Background(), "in Next.js, how do I read cookies?")
	require.NoError(t, err)

	assert.Equal(t, "nextjs", detection.Ecosystem)
}

// TestDetect_EmbeddingFallback 测试无关键词命中时退到向量相似度
func TestDetect_EmbeddingFallback(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"how do I make text bold": {0, 1, 0},
		"Tailwind CSS: Utility-first CSS docs utility class tailwind": {0, 0.95, 0.1},
		"Next.js: React framework docs app router server components":  {0.9, 0.1, 0},
	}}
	detector := newTestDetector(embedder, &fakeSourceRepo{sources: testSources()})

	detection, err := detector.Detect(context.Background(), "how do I make text bold")
	require.NoError(t, err)

	assert.Equal(t, "tailwind", detection.Ecosystem)
	assert.Greater(t, detection.Confidence, 80)
	assert.Contains(t, detection.SuggestedSources, "tailwind")
}

// TestDetect_SourceVectorCache 测试源签名向量只计算一次
func TestDetect_SourceVectorCache(t *testing.T) {
	embedder := &fakeEmbedder{}
	detector := newTestDetector(embedder, &fakeSourceRepo{sources: testSources()})

	_, err := detector.Detect(context.Background(), "completely unrelated query one")
	require.NoError(t, err)
	callsAfterFirst := embedder.calls

	_, err = detector.Detect(context.Background(), "completely unrelated query two")
	require.NoError(t, err)

	// 第二次只多一次查询向量化，源签名向量走缓存
	assert.Equal(t, callsAfterFirst+1, embedder.calls)
}

// TestDetect_NoSources 测试没有文档源时返回空检测
func TestDetect_NoSources(t *testing.T) {
	detector := newTestDetector(&fakeEmbedder{}, &fakeSourceRepo{})

	detection, err := detector.Detect(context.Background(), "anything")
	require.NoError(t, err)

	assert.Equal(t, 0, detection.Confidence)
	assert.Empty(t, detection.SuggestedSources)
}

// TestDetect_RepoError 测试仓库错误向上传播
func TestDetect_RepoError(t *testing.T) {
	detector := newTestDetector(&fakeEmbedder{}, &fakeSourceRepo{err: fmt.Errorf("db closed")})

	_, err := detector.Detect(context.Background(), "anything")

	require.Error(t, err)
}

// TestCosineSimilarity 测试余弦相似度的边界
func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{1, 0}), 0.001)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 0.001)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, cosineSimilarity(nil, nil))
}
