package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	domainDocs "github.com/docstack/backend/internal/domain/docs"
	domainRouting "github.com/docstack/backend/internal/domain/routing"
	"github.com/docstack/backend/internal/infrastructure/config"
	"github.com/docstack/backend/internal/infrastructure/llm"
	"github.com/docstack/backend/internal/infrastructure/log"
)

// Generator 路由器需要的文本生成能力
type Generator interface {
	Generate(ctx context.Context, messages []llm.Message) (string, error)
}

// EcosystemDetector 关键词加向量的生态分类器
type EcosystemDetector interface {
	Detect(ctx context.Context, query string) (*domainRouting.EcosystemDetection, error)
}

// metaQueryPattern 元问题的多语言快速通道
// 命中即短路分类，省掉一次确定性场景下的模型调用
var metaQueryPattern = regexp.MustCompile(`(?i)(` +
	`who are you|what are you|what is this (app|tool|assistant|service)|` +
	`what can you do|how do you work|introduce yourself|` +
	`你是谁|你是什么|你能做什么|你会什么|这是什么(应用|工具|服务)|介绍一下(你自己|自己)|` +
	`あなたは誰|これは何のアプリ` +
	`)`)

// Router 查询路由器
// 按优先级分类查询：元问题快速通道、生态检测、模型分类、歧义自动消解
// 任何分类失败都降级为请求澄清，绝不静默猜测
type Router struct {
	generator Generator
	detector  EcosystemDetector
	state     *RouterState

	confidenceThreshold int
	ambiguityConfidence int
	ecosystemThreshold  int
	historyTurns        int

	logger *slog.Logger
}

// NewRouter 创建查询路由器
func NewRouter(
	cfg *config.Config,
	generator Generator,
	detector EcosystemDetector,
	state *RouterState,
) *Router {
	return &Router{
		generator:           generator,
		detector:            detector,
		state:               state,
		confidenceThreshold: cfg.Router.ConfidenceThreshold,
		ambiguityConfidence: cfg.Router.AmbiguityPromoteConfidence,
		ecosystemThreshold:  cfg.Router.EcosystemThreshold,
		historyTurns:        cfg.Router.HistoryTurns,
		logger:              log.NewModuleLogger("routing", "router"),
	}
}

// DetectContext 对查询做路由决策
// 分类失败不返回错误，而是降级为带完整源列表的澄清请求
func (r *Router) DetectContext(ctx context.Context, query string, history []llm.Message, conversationID string) *domainRouting.RoutingDecision {
	// 1. 元问题快速通道
	if metaQueryPattern.MatchString(query) {
		decision := &domainRouting.RoutingDecision{
			QueryType:  domainRouting.QueryTypeMeta,
			Confidence: 100,
			Reasoning:  "meta question fast path",
		}
		r.recordDecision(conversationID, query, decision, false)
		return decision
	}

	sources, err := r.state.Sources()
	if err != nil {
		r.logger.Error("Failed to load doc sources", "error", err)
		return r.failOpen(query, nil)
	}

	// 2. 生态检测
	if r.detector != nil {
		if det, err := r.detector.Detect(ctx, query); err == nil &&
			det != nil && det.Confidence > r.ecosystemThreshold && len(det.SuggestedSources) > 0 {
			decision := &domainRouting.RoutingDecision{
				QueryType:         domainRouting.QueryTypeSpecific,
				PrimarySource:     det.SuggestedSources[0],
				AdditionalSources: det.SuggestedSources[1:],
				Confidence:        det.Confidence,
				Reasoning:         fmt.Sprintf("ecosystem detector matched %s", det.Ecosystem),
			}
			r.recordDecision(conversationID, query, decision, false)
			return decision
		}
	}

	// 3. 模型分类
	decision, err := r.classify(ctx, query, history, conversationID, sources)
	if err != nil {
		r.logger.Error("Classification failed, falling back to clarification",
			"query_preview", preview(query),
			"error", err,
		)
		return r.failOpen(query, sources)
	}

	// 4. 歧义自动消解：1-3 个候选时直接多源回答，不打断用户
	if decision.QueryType == domainRouting.QueryTypeAmbiguous &&
		len(decision.SuggestedSources) >= 1 && len(decision.SuggestedSources) <= 3 {
		decision = &domainRouting.RoutingDecision{
			QueryType:          domainRouting.QueryTypeSpecific,
			PrimarySource:      decision.SuggestedSources[0],
			AdditionalSources:  decision.SuggestedSources[1:],
			Confidence:         r.ambiguityConfidence,
			Reasoning:          "ambiguity auto-resolved to multi-source answer",
			NeedsClarification: false,
		}
	}

	decision.NeedsClarification = decision.QueryType == domainRouting.QueryTypeAmbiguous ||
		decision.Confidence < r.confidenceThreshold

	if !decision.NeedsClarification {
		r.recordDecision(conversationID, query, decision, false)
	}

	return decision
}

// ForceSource 用户手动指定文档源，绕过检测
func (r *Router) ForceSource(conversationID, sourceID, query string) *domainRouting.RoutingDecision {
	decision := &domainRouting.RoutingDecision{
		QueryType:     domainRouting.QueryTypeSpecific,
		PrimarySource: sourceID,
		Confidence:    100,
		Reasoning:     "source explicitly selected by user",
	}
	r.recordDecision(conversationID, query, decision, true)
	return decision
}

// GetSessionContext 获取会话上下文，不存在时返回 nil
func (r *Router) GetSessionContext(conversationID string) *domainRouting.SessionContext {
	if conversationID == "" {
		return nil
	}
	return r.state.PeekSession(conversationID)
}

// classifierOutput 模型分类的期望输出
type classifierOutput struct {
	QueryType         string   `json:"query_type"`
	PrimarySource     string   `json:"primary_source"`
	AdditionalSources []string `json:"additional_sources"`
	Confidence        int      `json:"confidence"`
	Reasoning         string   `json:"reasoning"`
	SuggestedSources  []string `json:"suggested_sources"`
}

// classify 调用模型完成分类
func (r *Router) classify(
	ctx context.Context,
	query string,
	history []llm.Message,
	conversationID string,
	sources []*domainDocs.DocSource,
) (*domainRouting.RoutingDecision, error) {
	prompt := r.buildClassifierPrompt(query, history, conversationID, sources)

	raw, err := r.generator.Generate(ctx, []llm.Message{
		{Role: "system", Content: classifierSystemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return nil, fmt.Errorf("classifier model call failed: %w", err)
	}

	var out classifierOutput
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &out); err != nil {
		return nil, fmt.Errorf("failed to parse classifier output: %w", err)
	}

	queryType := domainRouting.QueryType(out.QueryType)
	switch queryType {
	case domainRouting.QueryTypeMeta, domainRouting.QueryTypeSpecific,
		domainRouting.QueryTypeAmbiguous, domainRouting.QueryTypeGeneral:
	default:
		return nil, fmt.Errorf("classifier returned unknown query type %q", out.QueryType)
	}

	confidence := out.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	return &domainRouting.RoutingDecision{
		QueryType:         queryType,
		PrimarySource:     out.PrimarySource,
		AdditionalSources: out.AdditionalSources,
		Confidence:        confidence,
		Reasoning:         out.Reasoning,
		SuggestedSources:  out.SuggestedSources,
	}, nil
}

const classifierSystemPrompt = `You are a query router for a documentation assistant. ` +
	`Classify the user query and reply with a single JSON object, no prose, with fields: ` +
	`query_type ("meta" | "specific" | "ambiguous" | "general"), ` +
	`primary_source (a source id or ""), additional_sources (array of source ids), ` +
	`confidence (0-100), reasoning (one sentence), suggested_sources (array of source ids, only for ambiguous).`

// buildClassifierPrompt 组装分类提示：源列表、近期对话、会话切换摘要
func (r *Router) buildClassifierPrompt(
	query string,
	history []llm.Message,
	conversationID string,
	sources []*domainDocs.DocSource,
) string {
	var b strings.Builder

	b.WriteString("Available documentation sources:\n")
	for _, src := range sources {
		b.WriteString(fmt.Sprintf("- %s: %s", src.ID, src.Description))
		if len(src.Keywords) > 0 {
			b.WriteString(fmt.Sprintf(" (keywords: %s)", strings.Join(src.Keywords, ", ")))
		}
		b.WriteString("\n")
	}

	if len(history) > 0 {
		turns := history
		if len(turns) > r.historyTurns {
			turns = turns[len(turns)-r.historyTurns:]
		}
		b.WriteString("\nRecent conversation:\n")
		for _, msg := range turns {
			b.WriteString(fmt.Sprintf("%s: %s\n", msg.Role, preview(msg.Content)))
		}
	}

	if conversationID != "" {
		if session := r.state.PeekSession(conversationID); session != nil && session.CurrentSource != "" {
			b.WriteString(fmt.Sprintf("\nSession: current source is %q, %d source switches so far.\n",
				session.CurrentSource, session.SwitchCount))
			for _, sw := range session.RecentSwitches(r.historyTurns) {
				if sw.ToSource == "" {
					continue
				}
				b.WriteString(fmt.Sprintf("- answered from %s for: %s\n",
					sw.ToSource, preview(sw.Query)))
			}
		}
	}

	b.WriteString("\nUser query: ")
	b.WriteString(query)
	return b.String()
}

// failOpen 分类链路故障时的降级决策：请求用户澄清并给出全部候选源
func (r *Router) failOpen(query string, sources []*domainDocs.DocSource) *domainRouting.RoutingDecision {
	suggested := make([]string, 0, len(sources))
	for _, src := range sources {
		suggested = append(suggested, src.ID)
	}

	return &domainRouting.RoutingDecision{
		QueryType:          domainRouting.QueryTypeAmbiguous,
		Confidence:         0,
		Reasoning:          "classification unavailable",
		NeedsClarification: true,
		SuggestedSources:   suggested,
	}
}

// recordDecision 将已解析的查询记入会话历史
func (r *Router) recordDecision(conversationID, query string, decision *domainRouting.RoutingDecision, isExplicit bool) {
	if conversationID == "" {
		return
	}
	session := r.state.Session(conversationID)
	session.RecordSwitch(decision.PrimarySource, query, isExplicit)
}

// stripCodeFence 去掉模型偶尔包裹的 markdown 代码块
func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// preview 日志和提示里用的内容截断
func preview(s string) string {
	const max = 120
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
