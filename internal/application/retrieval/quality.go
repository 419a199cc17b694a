package retrieval

import (
	"regexp"
	"strings"
)

// boilerplatePatterns 抓取结果中常见的导航或模板片段
// 这类内容与任何查询的向量相似度都可能偶然偏高，但对回答毫无价值
var boilerplatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^menu$`),
	regexp.MustCompile(`(?i)^version\s+\d+(\.\d+)*$`),
	regexp.MustCompile(`(?i)^using (app|pages) router`),
	regexp.MustCompile(`(?i)^on this page`),
	regexp.MustCompile(`(?i)^table of contents`),
	regexp.MustCompile(`(?i)^was this (page )?helpful`),
	regexp.MustCompile(`(?i)^(previous|next)\s*$`),
}

// bareLinkLine 只包含一个 markdown 链接的行（可带列表符号）
var bareLinkLine = regexp.MustCompile(`^\s*[-*+]?\s*\[[^\]]*\]\([^)]*\)\s*$`)

// markdownLink 提取链接文字
var markdownLink = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)

// markdownNoise 去掉标记符号后估算真实文本量
var markdownNoise = regexp.MustCompile("[#*`>_~\\-\\[\\]()|]")

// isLowQuality 质量过滤：拒绝疑似导航、目录或模板内容
// 这是启发式兜底，不是正确性保证；过滤器本身是确定性的
func isLowQuality(content string, minContentLen int) bool {
	trimmed := strings.TrimSpace(content)

	if len(trimmed) < minContentLen {
		return true
	}

	for _, pattern := range boilerplatePatterns {
		if pattern.MatchString(trimmed) {
			return true
		}
	}

	if linkLineRatio(trimmed) > 0.5 {
		return true
	}

	if len(strings.TrimSpace(stripMarkdown(trimmed))) < 30 {
		return true
	}

	return false
}

// linkLineRatio 非空行中纯链接行的占比
func linkLineRatio(content string) float64 {
	lines := strings.Split(content, "\n")

	nonBlank := 0
	linkLines := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		nonBlank++
		if bareLinkLine.MatchString(line) {
			linkLines++
		}
	}

	if nonBlank == 0 {
		return 0
	}
	return float64(linkLines) / float64(nonBlank)
}

// stripMarkdown 去掉 markdown 语法，保留链接文字
func stripMarkdown(content string) string {
	out := markdownLink.ReplaceAllString(content, "$1")
	out = markdownNoise.ReplaceAllString(out, "")
	return out
}
