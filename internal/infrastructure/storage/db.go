package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/docstack/backend/internal/infrastructure/config"
)

// GetDBPath 获取数据库路径
// Windows: %USERPROFILE%\.docstack\docstack.db
// macOS/Linux: ~/.docstack/docstack.db
func GetDBPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".docstack", "docstack.db"), nil
}

// OpenDB 打开数据库连接并初始化表结构
func OpenDB(cfg *config.Config) (*sql.DB, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = GetDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get database path: %w", err)
		}
	}

	db, err := OpenDBAt(dbPath)
	if err != nil {
		return nil, err
	}

	if err := InitSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// OpenDBAt 打开指定路径的数据库连接
func OpenDBAt(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// InitSchema 初始化表结构
func InitSchema(db *sql.DB) error {
	// 片段元数据表：镜像向量 payload，便于二次查询
	createChunksSQL := `
	CREATE TABLE IF NOT EXISTS doc_chunks (
		id TEXT PRIMARY KEY,
		qdrant_id TEXT NOT NULL,
		url TEXT NOT NULL,
		title TEXT NOT NULL,
		source TEXT NOT NULL,
		chunk_index INTEGER NOT NULL
	);`

	if _, err := db.Exec(createChunksSQL); err != nil {
		return fmt.Errorf("failed to create doc_chunks table: %w", err)
	}

	createChunksIndexSQL := `
	CREATE INDEX IF NOT EXISTS idx_doc_chunks_source ON doc_chunks(source);
	CREATE INDEX IF NOT EXISTS idx_doc_chunks_url ON doc_chunks(url, chunk_index);`

	if _, err := db.Exec(createChunksIndexSQL); err != nil {
		return fmt.Errorf("failed to create doc_chunks indexes: %w", err)
	}

	// 动态页面表：增量索引队列的去重与 TTL 状态
	createPagesSQL := `
	CREATE TABLE IF NOT EXISTS dynamic_pages (
		url TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		title TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		is_indexed INTEGER NOT NULL DEFAULT 0,
		indexed_at INTEGER NOT NULL DEFAULT 0,
		access_count INTEGER NOT NULL DEFAULT 0,
		last_accessed_at INTEGER NOT NULL DEFAULT 0,
		expires_at INTEGER NOT NULL DEFAULT 0,
		chunks_count INTEGER NOT NULL DEFAULT 0
	);`

	if _, err := db.Exec(createPagesSQL); err != nil {
		return fmt.Errorf("failed to create dynamic_pages table: %w", err)
	}

	createPagesIndexSQL := `
	CREATE INDEX IF NOT EXISTS idx_dynamic_pages_source ON dynamic_pages(source_id);
	CREATE INDEX IF NOT EXISTS idx_dynamic_pages_expires ON dynamic_pages(expires_at);`

	if _, err := db.Exec(createPagesIndexSQL); err != nil {
		return fmt.Errorf("failed to create dynamic_pages indexes: %w", err)
	}

	// 文档源表
	createSourcesSQL := `
	CREATE TABLE IF NOT EXISTS doc_sources (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		keywords TEXT NOT NULL
	);`

	if _, err := db.Exec(createSourcesSQL); err != nil {
		return fmt.Errorf("failed to create doc_sources table: %w", err)
	}

	return nil
}
