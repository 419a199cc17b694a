package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docstack/backend/internal/application/retrieval"
	domainRouting "github.com/docstack/backend/internal/domain/routing"
	"github.com/docstack/backend/internal/infrastructure/config"
	"github.com/docstack/backend/internal/infrastructure/llm"
	"github.com/docstack/backend/internal/infrastructure/log"
)

// Generator 合成器需要的文本生成能力
type Generator interface {
	Generate(ctx context.Context, messages []llm.Message) (string, error)
	GenerateStream(ctx context.Context, messages []llm.Message, out chan<- string) error
}

// Retriever 合成器需要的检索能力
type Retriever interface {
	Search(ctx context.Context, query, sourceID string, limit int) ([]*retrieval.SearchResult, error)
}

// Answer 合成结果
type Answer struct {
	Text       string   `json:"text"`
	References []string `json:"references"` // 引用的文档 URL，去重保序
	Sources    []string `json:"sources"`    // 参与回答的文档源
}

// Synthesizer 回答合成器
// 严格 RAG 优先，检索为空或不相关时显式降级到通用知识：
// 空检索绝不导致拒答，只导致带声明的降级
type Synthesizer struct {
	generator Generator
	retriever Retriever
	tokens    *tokenCounter

	contextTokenBudget int
	retrievalLimit     int

	logger *slog.Logger
}

// NewSynthesizer 创建回答合成器
func NewSynthesizer(cfg *config.Config, generator Generator, retriever Retriever) *Synthesizer {
	return &Synthesizer{
		generator:          generator,
		retriever:          retriever,
		tokens:             newTokenCounter(),
		contextTokenBudget: cfg.Answer.ContextTokenBudget,
		retrievalLimit:     cfg.Retrieval.DefaultLimit,
		logger:             log.NewModuleLogger("answer", "synthesizer"),
	}
}

// Answer 根据路由决策合成最终回答
func (s *Synthesizer) Answer(
	ctx context.Context,
	query string,
	decision *domainRouting.RoutingDecision,
	history []llm.Message,
) (*Answer, error) {
	if decision.NeedsClarification {
		return s.clarificationAnswer(decision), nil
	}

	messages, references, sources, err := s.buildMessages(ctx, query, decision, history)
	if err != nil {
		return nil, err
	}

	text, err := s.generator.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	return &Answer{Text: text, References: references, Sources: sources}, nil
}

// AnswerStream 流式合成回答，增量文本写入 out
// 函数返回前保证 out 已关闭；返回值携带引用信息
func (s *Synthesizer) AnswerStream(
	ctx context.Context,
	query string,
	decision *domainRouting.RoutingDecision,
	history []llm.Message,
	out chan<- string,
) (*Answer, error) {
	if decision.NeedsClarification {
		answer := s.clarificationAnswer(decision)
		select {
		case out <- answer.Text:
		case <-ctx.Done():
		}
		close(out)
		return answer, nil
	}

	messages, references, sources, err := s.buildMessages(ctx, query, decision, history)
	if err != nil {
		close(out)
		return nil, err
	}

	if err := s.generator.GenerateStream(ctx, messages, out); err != nil {
		return nil, fmt.Errorf("failed to stream answer: %w", err)
	}

	return &Answer{References: references, Sources: sources}, nil
}

// clarificationAnswer 不调用模型，直接让用户在候选源之间选择
func (s *Synthesizer) clarificationAnswer(decision *domainRouting.RoutingDecision) *Answer {
	var b strings.Builder
	b.WriteString("I'm not sure which documentation you're asking about. Could you pick one?\n")
	for _, src := range decision.SuggestedSources {
		b.WriteString(fmt.Sprintf("- %s\n", src))
	}
	return &Answer{Text: b.String(), Sources: decision.SuggestedSources}
}

// buildMessages 组装发给模型的消息，返回消息、引用 URL 和参与的源
func (s *Synthesizer) buildMessages(
	ctx context.Context,
	query string,
	decision *domainRouting.RoutingDecision,
	history []llm.Message,
) ([]llm.Message, []string, []string, error) {
	var results []*retrieval.SearchResult
	sources := decision.AllSources()

	for _, sourceID := range sources {
		found, err := s.retriever.Search(ctx, query, sourceID, s.retrievalLimit)
		if err != nil {
			// 单个源的检索失败不阻断回答，降级路径会兜底
			s.logger.Warn("Retrieval failed for source", "source", sourceID, "error", err)
			continue
		}
		results = append(results, found...)
	}

	contextBlock, references := s.buildContext(results)

	systemPrompt := s.systemPrompt(decision, contextBlock)

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: query})

	return messages, references, sources, nil
}

// buildContext 在 token 预算内拼接检索上下文
// 预算不足时按相似度从高到低保留；至少保留一条，避免预算配置过小时上下文整体丢失
func (s *Synthesizer) buildContext(results []*retrieval.SearchResult) (string, []string) {
	if len(results) == 0 {
		return "", nil
	}

	var b strings.Builder
	var references []string
	seen := make(map[string]bool)
	usedTokens := 0

	for i, result := range results {
		entry := fmt.Sprintf("[Source: %s | %s]\n%s\n\n", result.SourceID, result.URL, result.Content)
		entryTokens := s.tokens.Count(entry)

		if i > 0 && usedTokens+entryTokens > s.contextTokenBudget {
			s.logger.Debug("Context token budget reached",
				"included", i,
				"dropped", len(results)-i,
				"used_tokens", usedTokens,
			)
			break
		}

		b.WriteString(entry)
		usedTokens += entryTokens

		if !seen[result.URL] {
			seen[result.URL] = true
			references = append(references, result.URL)
		}
	}

	return b.String(), references
}

// systemPrompt 组装严格 RAG 加显式降级的系统提示
func (s *Synthesizer) systemPrompt(decision *domainRouting.RoutingDecision, contextBlock string) string {
	var b strings.Builder

	if decision.QueryType == domainRouting.QueryTypeMeta {
		b.WriteString("You are a documentation assistant. The user is asking about you or this application. ")
		b.WriteString("Explain that you answer developer questions using indexed documentation sources, ")
		b.WriteString("and that you can search, cite and synthesize across them. ")
		b.WriteString("Answer in the same language the user used.")
		return b.String()
	}

	b.WriteString("You are a documentation assistant.\n")
	b.WriteString("Rules:\n")
	b.WriteString("1. Always answer in the same language the user asked in, regardless of the language of the documentation.\n")

	if contextBlock == "" {
		b.WriteString("2. No documentation context was retrieved for this question. ")
		b.WriteString("Answer from your general knowledge, and explicitly tell the user the answer is not based on the indexed documentation.\n")
		return b.String()
	}

	b.WriteString("2. Prefer the documentation context below and cite the source URLs you used.\n")
	b.WriteString("3. If the context is not actually relevant to the question, answer from general knowledge and explicitly say you are doing so.\n")

	if decision.IsMultiSource() {
		b.WriteString("4. The context mixes multiple documentation sources. For each piece of information, state which source it came from.\n")
	}

	b.WriteString("\nDocumentation context:\n\n")
	b.WriteString(contextBlock)

	return b.String()
}
