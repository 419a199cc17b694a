package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Indexing  IndexingConfig  `yaml:"indexing"`
	Queue     QueueConfig     `yaml:"queue"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Router    RouterConfig    `yaml:"router"`
	Answer    AnswerConfig    `yaml:"answer"`
	Watcher   WatcherConfig   `yaml:"watcher"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTPPort string `yaml:"http_port"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// Path SQLite 数据库文件路径，留空使用 ~/.docstack/docstack.db
	Path string `yaml:"path"`
}

// QdrantConfig Qdrant 连接配置
type QdrantConfig struct {
	Host       string `yaml:"host"`
	GRPCPort   int    `yaml:"grpc_port"`
	Collection string `yaml:"collection"`
}

// EmbeddingConfig Embedding API 配置
type EmbeddingConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key" json:"-"` // 建议通过 EMBEDDING_API_KEY 注入
	Model  string `yaml:"model"`
	// Dimension 向量维度，0 表示启动时探测
	Dimension int `yaml:"dimension"`
}

// LLMConfig Chat API 配置
type LLMConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key" json:"-"`
	Model  string `yaml:"model"`
}

// IndexingConfig 索引管线配置
type IndexingConfig struct {
	MaxChunkBytes   int           `yaml:"max_chunk_bytes"`  // 单片段最大字节数
	BatchSize       int           `yaml:"batch_size"`       // 批内并发片段数
	BatchDelay      time.Duration `yaml:"batch_delay"`      // 批间延迟（embedding 限流）
	MetadataRetries int           `yaml:"metadata_retries"` // 元数据行写入重试次数
	MetadataBackoff time.Duration `yaml:"metadata_backoff"` // 重试固定间隔
}

// QueueConfig 增量索引队列配置
type QueueConfig struct {
	BufferSize    int           `yaml:"buffer_size"`     // 待处理页面积压上限，0 表示不限
	PageChunkSize int           `yaml:"page_chunk_size"` // 页面切分目标大小
	DrainDelay    time.Duration `yaml:"drain_delay"`     // 页面间处理延迟
	PageTTL       time.Duration `yaml:"page_ttl"`        // 动态页面保留时长
	SweepInterval time.Duration `yaml:"sweep_interval"`  // 过期清理周期
}

// RetrievalConfig 检索配置
type RetrievalConfig struct {
	DefaultLimit  int `yaml:"default_limit"`
	MinContentLen int `yaml:"min_content_len"` // 质量过滤的最小内容长度
}

// RouterConfig 查询路由配置
type RouterConfig struct {
	ConfidenceThreshold        int           `yaml:"confidence_threshold"`         // 低于此值需要澄清
	AmbiguityPromoteConfidence int           `yaml:"ambiguity_promote_confidence"` // 歧义提升后的固定置信度
	EcosystemThreshold         int           `yaml:"ecosystem_threshold"`          // 生态检测采信阈值
	SourceCacheTTL             time.Duration `yaml:"source_cache_ttl"`             // 文档源元数据缓存时长
	HistoryTurns               int           `yaml:"history_turns"`                // 分类提示包含的历史轮数
}

// AnswerConfig 回答合成配置
type AnswerConfig struct {
	ContextTokenBudget int `yaml:"context_token_budget"` // 检索上下文的 token 预算
}

// WatcherConfig 抓取制品目录监听配置
type WatcherConfig struct {
	Enabled bool   `yaml:"enabled"`
	DropDir string `yaml:"drop_dir"` // 抓取器落盘目录
}

// NewConfig 创建配置（默认值）
func NewConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: ":18080",
		},
		Database: DatabaseConfig{
			Path: "",
		},
		Qdrant: QdrantConfig{
			Host:       "localhost",
			GRPCPort:   6334,
			Collection: "doc_chunks",
		},
		Embedding: EmbeddingConfig{
			URL:       "https://api.openai.com/v1",
			APIKey:    os.Getenv("EMBEDDING_API_KEY"),
			Model:     "text-embedding-3-small",
			Dimension: 0,
		},
		LLM: LLMConfig{
			URL:    "https://api.openai.com/v1",
			APIKey: os.Getenv("LLM_API_KEY"),
			Model:  "gpt-4o-mini",
		},
		Indexing: IndexingConfig{
			MaxChunkBytes:   4000,
			BatchSize:       5,
			BatchDelay:      2 * time.Second,
			MetadataRetries: 3,
			MetadataBackoff: 2 * time.Second,
		},
		Queue: QueueConfig{
			BufferSize:    256,
			PageChunkSize: 1500,
			DrainDelay:    500 * time.Millisecond,
			PageTTL:       60 * 24 * time.Hour,
			SweepInterval: 6 * time.Hour,
		},
		Retrieval: RetrievalConfig{
			DefaultLimit:  5,
			MinContentLen: 50,
		},
		Router: RouterConfig{
			ConfidenceThreshold:        70,
			AmbiguityPromoteConfidence: 85,
			EcosystemThreshold:         80,
			SourceCacheTTL:             5 * time.Minute,
			HistoryTurns:               3,
		},
		Answer: AnswerConfig{
			ContextTokenBudget: 6000,
		},
		Watcher: WatcherConfig{
			Enabled: false,
			DropDir: "",
		},
	}
}

// Load 加载配置：默认值 + 可选 yaml 文件覆盖
// path 为空时尝试 DOCSTACK_CONFIG 环境变量，都没有则返回默认配置
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = os.Getenv("DOCSTACK_CONFIG")
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// API Key 永远允许环境变量覆盖文件
	if key := os.Getenv("EMBEDDING_API_KEY"); key != "" {
		cfg.Embedding.APIKey = key
	}
	if key := os.Getenv("LLM_API_KEY"); key != "" {
		cfg.LLM.APIKey = key
	}

	return cfg, nil
}
