package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewConfig_Defaults 测试默认配置
func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, ":18080", cfg.Server.HTTPPort)
	assert.Equal(t, "doc_chunks", cfg.Qdrant.Collection)
	assert.Equal(t, 4000, cfg.Indexing.MaxChunkBytes)
	assert.Equal(t, 5, cfg.Indexing.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Indexing.BatchDelay)
	assert.Equal(t, 70, cfg.Router.ConfidenceThreshold)
	assert.Equal(t, 85, cfg.Router.AmbiguityPromoteConfidence)
	assert.Equal(t, 5*time.Minute, cfg.Router.SourceCacheTTL)
	assert.Equal(t, 60*24*time.Hour, cfg.Queue.PageTTL)
}

// TestLoad_MissingPath 测试无配置文件时返回默认配置
func TestLoad_MissingPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Indexing.MaxChunkBytes)
}

// TestLoad_YAMLOverlay 测试 yaml 覆盖默认值
func TestLoad_YAMLOverlay(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
server:
  http_port: ":9999"
indexing:
  max_chunk_bytes: 2000
router:
  confidence_threshold: 60
`
	err := os.WriteFile(configPath, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.HTTPPort)
	assert.Equal(t, 2000, cfg.Indexing.MaxChunkBytes)
	assert.Equal(t, 60, cfg.Router.ConfidenceThreshold)
	// 未覆盖的字段保持默认值
	assert.Equal(t, 5, cfg.Indexing.BatchSize)
}

// TestLoad_InvalidYAML 测试非法 yaml 返回错误
func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")

	err := os.WriteFile(configPath, []byte("server: [not a map"), 0644)
	require.NoError(t, err)

	_, err = Load(configPath)
	assert.Error(t, err)
}
