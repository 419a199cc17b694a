package storage

import (
	"database/sql"

	domainDocs "github.com/docstack/backend/internal/domain/docs"
)

// 确保 DynamicPageRepositoryImpl 实现了 domainDocs.DynamicPageRepository 接口
var _ domainDocs.DynamicPageRepository = (*DynamicPageRepositoryImpl)(nil)

// DynamicPageRepositoryImpl 动态页面仓库实现
type DynamicPageRepositoryImpl struct {
	db *sql.DB
}

// NewDynamicPageRepository 创建动态页面仓库实例
func NewDynamicPageRepository(db *sql.DB) domainDocs.DynamicPageRepository {
	return &DynamicPageRepositoryImpl{db: db}
}

// GetPage 按 URL 获取页面状态
func (r *DynamicPageRepositoryImpl) GetPage(url string) (*domainDocs.DynamicPage, error) {
	query := `
		SELECT url, source_id, title, content_hash, is_indexed, indexed_at,
		       access_count, last_accessed_at, expires_at, chunks_count
		FROM dynamic_pages
		WHERE url = ?`

	var page domainDocs.DynamicPage
	var isIndexed int
	err := r.db.QueryRow(query, url).Scan(
		&page.URL,
		&page.SourceID,
		&page.Title,
		&page.ContentHash,
		&isIndexed,
		&page.IndexedAt,
		&page.AccessCount,
		&page.LastAccessedAt,
		&page.ExpiresAt,
		&page.ChunksCount,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	page.IsIndexed = isIndexed == 1
	return &page, nil
}

// SavePage 保存页面状态
func (r *DynamicPageRepositoryImpl) SavePage(page *domainDocs.DynamicPage) error {
	isIndexed := 0
	if page.IsIndexed {
		isIndexed = 1
	}

	query := `
		INSERT OR REPLACE INTO dynamic_pages (
			url, source_id, title, content_hash, is_indexed, indexed_at,
			access_count, last_accessed_at, expires_at, chunks_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Exec(
		query,
		page.URL,
		page.SourceID,
		page.Title,
		page.ContentHash,
		isIndexed,
		page.IndexedAt,
		page.AccessCount,
		page.LastAccessedAt,
		page.ExpiresAt,
		page.ChunksCount,
	)

	return err
}

// TouchPage 内容未变化时只更新访问计数和时间戳
func (r *DynamicPageRepositoryImpl) TouchPage(url string, accessedAt int64) error {
	query := `
		UPDATE dynamic_pages
		SET access_count = access_count + 1, last_accessed_at = ?
		WHERE url = ?`

	_, err := r.db.Exec(query, accessedAt, url)
	return err
}

// ListExpiredURLs 列出已过期页面的 URL，供清理向量使用
func (r *DynamicPageRepositoryImpl) ListExpiredURLs(now int64) ([]string, error) {
	rows, err := r.db.Query(
		`SELECT url FROM dynamic_pages WHERE expires_at > 0 AND expires_at <= ?`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, rows.Err()
}

// DeleteExpired 删除已过期的页面记录，返回删除数量
func (r *DynamicPageRepositoryImpl) DeleteExpired(now int64) (int, error) {
	result, err := r.db.Exec(
		`DELETE FROM dynamic_pages WHERE expires_at > 0 AND expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(affected), nil
}

// DeletePagesBySource 删除文档源的全部页面记录
func (r *DynamicPageRepositoryImpl) DeletePagesBySource(sourceID string) error {
	_, err := r.db.Exec(`DELETE FROM dynamic_pages WHERE source_id = ?`, sourceID)
	return err
}
