package routing

// EcosystemDetection 生态分类器的检测结果
// 分类器结合关键词命中和向量相似度给出候选文档源
type EcosystemDetection struct {
	Ecosystem        string   `json:"ecosystem"`
	Confidence       int      `json:"confidence"` // 0-100
	SuggestedSources []string `json:"suggested_sources"`
}
