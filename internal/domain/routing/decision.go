package routing

// QueryType 查询分类结果
type QueryType string

const (
	// QueryTypeMeta 关于应用自身的元问题（"你是谁"）
	QueryTypeMeta QueryType = "meta"
	// QueryTypeSpecific 明确指向某个文档源的问题
	QueryTypeSpecific QueryType = "specific"
	// QueryTypeAmbiguous 无法确定文档源的问题
	QueryTypeAmbiguous QueryType = "ambiguous"
	// QueryTypeGeneral 与任何文档源无关的通用问题
	QueryTypeGeneral QueryType = "general"
)

// RoutingDecision 路由决策
// 每次查询计算一次，不做持久化，仅记入会话历史
type RoutingDecision struct {
	QueryType          QueryType `json:"query_type"`
	PrimarySource      string    `json:"primary_source,omitempty"`
	AdditionalSources  []string  `json:"additional_sources,omitempty"`
	Confidence         int       `json:"confidence"` // 0-100
	Reasoning          string    `json:"reasoning,omitempty"`
	NeedsClarification bool      `json:"needs_clarification"`
	SuggestedSources   []string  `json:"suggested_sources,omitempty"`
}

// AllSources 返回决策涉及的全部文档源（主源在前）
func (d *RoutingDecision) AllSources() []string {
	if d.PrimarySource == "" {
		return nil
	}
	sources := make([]string, 0, 1+len(d.AdditionalSources))
	sources = append(sources, d.PrimarySource)
	sources = append(sources, d.AdditionalSources...)
	return sources
}

// IsMultiSource 检查是否需要多源综合回答
func (d *RoutingDecision) IsMultiSource() bool {
	return len(d.AdditionalSources) > 0
}
