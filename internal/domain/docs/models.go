package docs

// ChunkRecord 片段元数据行
// 镜像向量 payload 到 SQLite，供二次查询使用；向量库才是检索的事实来源
type ChunkRecord struct {
	ID         string // 与 Qdrant point_id 相同的确定性 UUID
	QdrantID   string // 冗余存储的 point id（与 ID 一致）
	URL        string
	Title      string
	Source     string
	ChunkIndex int // BaseIndex*orderStride + SubIndex
}

// DocSource 文档源元数据
type DocSource struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// DynamicPage 动态发现页面的状态行
// 增量索引队列用内容哈希判断页面是否需要重建索引
type DynamicPage struct {
	URL            string
	SourceID       string
	Title          string
	ContentHash    string // 页面全文的 SHA-256
	IsIndexed      bool
	IndexedAt      int64
	AccessCount    int
	LastAccessedAt int64
	ExpiresAt      int64
	ChunksCount    int
}

// IndexDecision 增量索引决策
type IndexDecision string

const (
	// DecisionNew 未见过该 URL，需要索引
	DecisionNew IndexDecision = "new"
	// DecisionUpdate 内容哈希变化，需要重建索引
	DecisionUpdate IndexDecision = "update"
	// DecisionSkip 内容未变化，仅更新访问计数
	DecisionSkip IndexDecision = "skip"
)
