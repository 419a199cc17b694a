package routing

import (
	"fmt"
	"sync"
	"time"

	domainDocs "github.com/docstack/backend/internal/domain/docs"
	domainRouting "github.com/docstack/backend/internal/domain/routing"
	"github.com/docstack/backend/internal/infrastructure/config"
)

// RouterState 路由器持有的全部可变状态
// 会话表和文档源缓存都收在这里，构造一次、显式 TTL 失效，
// 测试时每个用例拿到全新状态
type RouterState struct {
	sourceRepo domainDocs.DocSourceRepository
	cacheTTL   time.Duration

	mu            sync.Mutex
	sessions      map[string]*domainRouting.SessionContext
	cachedSources []*domainDocs.DocSource
	cachedAt      time.Time
}

// NewRouterState 创建路由器状态
func NewRouterState(cfg *config.Config, sourceRepo domainDocs.DocSourceRepository) *RouterState {
	return &RouterState{
		sourceRepo: sourceRepo,
		cacheTTL:   cfg.Router.SourceCacheTTL,
		sessions:   make(map[string]*domainRouting.SessionContext),
	}
}

// Session 获取会话上下文，首次访问时创建
func (s *RouterState) Session(conversationID string) *domainRouting.SessionContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[conversationID]
	if !ok {
		session = domainRouting.NewSessionContext(conversationID)
		s.sessions[conversationID] = session
	}
	return session
}

// PeekSession 获取会话上下文，不存在时返回 nil（不创建）
func (s *RouterState) PeekSession(conversationID string) *domainRouting.SessionContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[conversationID]
}

// Sources 返回文档源元数据，带 TTL 缓存避免每次查询都落库
func (s *RouterState) Sources() ([]*domainDocs.DocSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cachedSources != nil && time.Since(s.cachedAt) < s.cacheTTL {
		return s.cachedSources, nil
	}

	sources, err := s.sourceRepo.ListSources()
	if err != nil {
		return nil, fmt.Errorf("failed to list doc sources: %w", err)
	}

	s.cachedSources = sources
	s.cachedAt = time.Now()
	return sources, nil
}

// InvalidateSources 文档源增删后主动失效缓存
func (s *RouterState) InvalidateSources() {
	s.mu.Lock()
	s.cachedSources = nil
	s.mu.Unlock()
}
