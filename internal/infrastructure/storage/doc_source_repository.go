package storage

import (
	"database/sql"
	"encoding/json"

	domainDocs "github.com/docstack/backend/internal/domain/docs"
)

// 确保 DocSourceRepositoryImpl 实现了 domainDocs.DocSourceRepository 接口
var _ domainDocs.DocSourceRepository = (*DocSourceRepositoryImpl)(nil)

// DocSourceRepositoryImpl 文档源仓库实现
type DocSourceRepositoryImpl struct {
	db *sql.DB
}

// NewDocSourceRepository 创建文档源仓库实例
func NewDocSourceRepository(db *sql.DB) domainDocs.DocSourceRepository {
	return &DocSourceRepositoryImpl{db: db}
}

// ListSources 列出全部文档源
func (r *DocSourceRepositoryImpl) ListSources() ([]*domainDocs.DocSource, error) {
	rows, err := r.db.Query(`SELECT id, name, description, keywords FROM doc_sources ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domainDocs.DocSource
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, source)
	}

	return results, rows.Err()
}

// GetSource 获取单个文档源
func (r *DocSourceRepositoryImpl) GetSource(id string) (*domainDocs.DocSource, error) {
	row := r.db.QueryRow(`SELECT id, name, description, keywords FROM doc_sources WHERE id = ?`, id)

	var source domainDocs.DocSource
	var keywordsJSON string
	err := row.Scan(&source.ID, &source.Name, &source.Description, &keywordsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(keywordsJSON), &source.Keywords)
	return &source, nil
}

// SaveSource 保存文档源
func (r *DocSourceRepositoryImpl) SaveSource(source *domainDocs.DocSource) error {
	keywordsJSON, _ := json.Marshal(source.Keywords)

	query := `
		INSERT OR REPLACE INTO doc_sources (id, name, description, keywords)
		VALUES (?, ?, ?, ?)`

	_, err := r.db.Exec(query, source.ID, source.Name, source.Description, string(keywordsJSON))
	return err
}

// scanSource 扫描单行数据到 DocSource
func scanSource(rows *sql.Rows) (*domainDocs.DocSource, error) {
	var source domainDocs.DocSource
	var keywordsJSON string
	if err := rows.Scan(&source.ID, &source.Name, &source.Description, &keywordsJSON); err != nil {
		return nil, err
	}
	json.Unmarshal([]byte(keywordsJSON), &source.Keywords)
	return &source, nil
}
