package storage

import (
	"database/sql"

	domainDocs "github.com/docstack/backend/internal/domain/docs"
)

// 确保 ChunkRecordRepositoryImpl 实现了 domainDocs.ChunkRecordRepository 接口
var _ domainDocs.ChunkRecordRepository = (*ChunkRecordRepositoryImpl)(nil)

// ChunkRecordRepositoryImpl 片段元数据仓库实现
type ChunkRecordRepositoryImpl struct {
	db *sql.DB
}

// NewChunkRecordRepository 创建片段元数据仓库实例
func NewChunkRecordRepository(db *sql.DB) domainDocs.ChunkRecordRepository {
	return &ChunkRecordRepositoryImpl{db: db}
}

// SaveRecord 保存片段元数据行
func (r *ChunkRecordRepositoryImpl) SaveRecord(record *domainDocs.ChunkRecord) error {
	query := `
		INSERT OR REPLACE INTO doc_chunks (
			id, qdrant_id, url, title, source, chunk_index
		) VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.Exec(
		query,
		record.ID,
		record.QdrantID,
		record.URL,
		record.Title,
		record.Source,
		record.ChunkIndex,
	)

	return err
}

// GetRecord 获取片段元数据行
func (r *ChunkRecordRepositoryImpl) GetRecord(id string) (*domainDocs.ChunkRecord, error) {
	query := `
		SELECT id, qdrant_id, url, title, source, chunk_index
		FROM doc_chunks
		WHERE id = ?`

	var record domainDocs.ChunkRecord
	err := r.db.QueryRow(query, id).Scan(
		&record.ID,
		&record.QdrantID,
		&record.URL,
		&record.Title,
		&record.Source,
		&record.ChunkIndex,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &record, nil
}

// GetRecordsBySource 按文档源获取全部片段元数据行
func (r *ChunkRecordRepositoryImpl) GetRecordsBySource(sourceID string) ([]*domainDocs.ChunkRecord, error) {
	query := `
		SELECT id, qdrant_id, url, title, source, chunk_index
		FROM doc_chunks
		WHERE source = ?
		ORDER BY url, chunk_index`

	rows, err := r.db.Query(query, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domainDocs.ChunkRecord
	for rows.Next() {
		var record domainDocs.ChunkRecord
		if err := rows.Scan(
			&record.ID,
			&record.QdrantID,
			&record.URL,
			&record.Title,
			&record.Source,
			&record.ChunkIndex,
		); err != nil {
			return nil, err
		}
		results = append(results, &record)
	}

	return results, rows.Err()
}

// DeleteRecordsBySource 删除文档源的全部片段元数据行
func (r *ChunkRecordRepositoryImpl) DeleteRecordsBySource(sourceID string) error {
	_, err := r.db.Exec(`DELETE FROM doc_chunks WHERE source = ?`, sourceID)
	return err
}

// CountBySource 统计文档源的片段数
func (r *ChunkRecordRepositoryImpl) CountBySource(sourceID string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM doc_chunks WHERE source = ?`, sourceID).Scan(&count)
	return count, err
}
