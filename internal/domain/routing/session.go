package routing

import "time"

// ContextSwitch 一次文档源切换记录
type ContextSwitch struct {
	FromSource string    `json:"from_source"`
	ToSource   string    `json:"to_source"`
	Query      string    `json:"query"`
	Timestamp  time.Time `json:"timestamp"`
	IsExplicit bool      `json:"is_explicit"` // 用户手动指定源时为 true
}

// SessionContext 会话上下文
// 首次查询时创建，之后每次路由都会更新；会话存续期间只增不删
type SessionContext struct {
	ConversationID string          `json:"conversation_id"`
	Switches       []ContextSwitch `json:"switches"`
	CurrentSource  string          `json:"current_source"`
	PreviousSource string          `json:"previous_source"`
	SwitchCount    int             `json:"switch_count"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewSessionContext 创建会话上下文
func NewSessionContext(conversationID string) *SessionContext {
	return &SessionContext{
		ConversationID: conversationID,
		CreatedAt:      time.Now(),
	}
}

// RecordSwitch 记录一次已解析的查询
// 澄清提示不调用此方法；toSource 为空表示通用/元回答，不算源切换
func (s *SessionContext) RecordSwitch(toSource, query string, isExplicit bool) {
	sw := ContextSwitch{
		FromSource: s.CurrentSource,
		ToSource:   toSource,
		Query:      query,
		Timestamp:  time.Now(),
		IsExplicit: isExplicit,
	}
	s.Switches = append(s.Switches, sw)

	if toSource != "" && toSource != s.CurrentSource {
		s.PreviousSource = s.CurrentSource
		s.CurrentSource = toSource
		s.SwitchCount++
	}
}

// RecentSwitches 返回最近 n 条切换记录
func (s *SessionContext) RecentSwitches(n int) []ContextSwitch {
	if len(s.Switches) <= n {
		return s.Switches
	}
	return s.Switches[len(s.Switches)-n:]
}
