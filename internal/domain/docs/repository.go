package docs

// ChunkRecordRepository 片段元数据仓库接口
type ChunkRecordRepository interface {
	SaveRecord(record *ChunkRecord) error
	GetRecord(id string) (*ChunkRecord, error)
	GetRecordsBySource(sourceID string) ([]*ChunkRecord, error)
	DeleteRecordsBySource(sourceID string) error
	CountBySource(sourceID string) (int, error)
}

// DynamicPageRepository 动态页面仓库接口
type DynamicPageRepository interface {
	GetPage(url string) (*DynamicPage, error)
	SavePage(page *DynamicPage) error
	TouchPage(url string, accessedAt int64) error
	ListExpiredURLs(now int64) ([]string, error)
	DeleteExpired(now int64) (int, error)
	DeletePagesBySource(sourceID string) error
}

// DocSourceRepository 文档源仓库接口
type DocSourceRepository interface {
	ListSources() ([]*DocSource, error)
	GetSource(id string) (*DocSource, error)
	SaveSource(source *DocSource) error
}
