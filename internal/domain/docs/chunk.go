package docs

// DocumentChunk 文档片段模型
// 表示一个页面经过切分后的有界段落，是向量化和检索的最小单位
type DocumentChunk struct {
	// 核心内容
	Content string // 片段正文（UTF-8 字节长度不超过配置的上限）
	URL     string // 来源页面 URL
	Title   string // 页面标题（被切分时带 "(Part i/N)" 后缀）

	// 标识信息
	SourceID  string // 文档源标识，如 "nextjs"
	BaseIndex int    // 切分前父片段在页面中的位置
	SubIndex  int    // 超长切分后在父片段内的位置

	// 扩展元数据（provider 相关字段）
	Metadata map[string]string
}

// ScrapedPage 抓取到的文档页面
// 外部抓取器产出的制品，索引管线和增量队列的输入
type ScrapedPage struct {
	URL      string            `json:"url"`
	SourceID string            `json:"source"`
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ContentPreview 获取页面内容预览（前 200 字符）
func (p *ScrapedPage) ContentPreview() string {
	if len(p.Content) <= 200 {
		return p.Content
	}
	return p.Content[:200] + "..."
}
