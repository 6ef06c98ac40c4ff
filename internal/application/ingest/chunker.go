package ingest

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/docschat/backend/internal/domain/corpus"
	"github.com/docschat/backend/internal/infrastructure/config"
	"github.com/docschat/backend/internal/infrastructure/log"
)

// section 文档的一个结构化小节
type section struct {
	header string
	body   string
}

// Chunker 文档切分器
// 按标题边界切分文档，超长小节递归细分（段落 → 句子 → 硬切），
// 相同输入保证产出逐字节一致的片段序列
type Chunker struct {
	minTokens     int
	maxTokens     int
	overlapTokens int
	boilerplate   []*regexp.Regexp
	logger        *slog.Logger
}

// NewChunker 创建切分器并编译样板文案模式
func NewChunker(cfg *config.Config) (*Chunker, error) {
	patterns := make([]*regexp.Regexp, 0, len(cfg.Ingestion.BoilerplatePatterns))
	for _, pattern := range cfg.Ingestion.BoilerplatePatterns {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid boilerplate pattern %q: %w", pattern, err)
		}
		patterns = append(patterns, compiled)
	}

	return &Chunker{
		minTokens:     cfg.Ingestion.MinChunkTokens,
		maxTokens:     cfg.Ingestion.MaxChunkTokens,
		overlapTokens: cfg.Ingestion.ChunkOverlapTokens,
		boilerplate:   patterns,
		logger:        log.NewModuleLogger("ingest", "chunker"),
	}, nil
}

// Chunk 切分单个文档
func (c *Chunker) Chunk(doc *corpus.Document) ([]*corpus.Chunk, error) {
	if doc.IsEmpty() {
		return nil, nil
	}

	sections := splitSections(doc.RawText, doc.Title)

	var chunks []*corpus.Chunk
	for _, sec := range sections {
		body := strings.TrimSpace(sec.body)
		if body == "" {
			continue
		}

		isBoilerplate := c.isBoilerplateHeader(sec.header)

		texts, err := c.splitSection(body)
		if err != nil {
			return nil, err
		}

		for _, text := range texts {
			tokenCount, err := CountTokens(text)
			if err != nil {
				return nil, err
			}

			hash := corpus.HashText(text)
			chunks = append(chunks, &corpus.Chunk{
				ID:            corpus.NewChunkID(doc.Path, hash),
				ContentHash:   hash,
				Text:          text,
				TokenCount:    tokenCount,
				SectionHeader: sec.header,
				SourcePath:    doc.Path,
				IsBoilerplate: isBoilerplate,
			})
		}
	}

	chunks, err := c.mergeUndersized(chunks)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Chunked document",
		"path", doc.Path,
		"sections", len(sections),
		"chunks", len(chunks),
	)

	return chunks, nil
}

// splitSections 按 Markdown 标题切分文档
// 首个标题之前的内容归入以文档标题命名的小节
func splitSections(rawText, docTitle string) []section {
	headerPattern := regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

	var sections []section
	current := section{header: docTitle}
	var body strings.Builder

	flush := func() {
		current.body = body.String()
		if strings.TrimSpace(current.body) != "" {
			sections = append(sections, current)
		}
		body.Reset()
	}

	inCodeBlock := false
	for _, line := range strings.Split(rawText, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inCodeBlock = !inCodeBlock
		}

		if !inCodeBlock {
			if match := headerPattern.FindStringSubmatch(line); match != nil {
				flush()
				current = section{header: strings.TrimSpace(match[2])}
				continue
			}
		}

		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()

	return sections
}

// isBoilerplateHeader 判断小节标题是否命中样板文案模式
func (c *Chunker) isBoilerplateHeader(header string) bool {
	for _, pattern := range c.boilerplate {
		if pattern.MatchString(header) {
			return true
		}
	}
	return false
}

// splitSection 递归细分小节正文，保证每段不超过 maxTokens
func (c *Chunker) splitSection(body string) ([]string, error) {
	total, err := CountTokens(body)
	if err != nil {
		return nil, err
	}
	if total <= c.maxTokens {
		return []string{body}, nil
	}

	// 多段切分时留出重叠预算，叠加重叠后仍不超上限
	budget := c.maxTokens - c.overlapTokens
	if budget < 1 {
		budget = c.maxTokens
	}

	segments, err := c.packUnits(splitParagraphs(body), budget)
	if err != nil {
		return nil, err
	}

	return c.applyOverlap(segments)
}

// splitParagraphs 按空行切分段落
func splitParagraphs(text string) []string {
	var paragraphs []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// splitSentences 按句子边界切分
var sentencePattern = regexp.MustCompile(`[^.!?。！？]+[.!?。！？]*\s*`)

func splitSentences(text string) []string {
	matches := sentencePattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return []string{text}
	}
	sentences := make([]string, 0, len(matches))
	for _, m := range matches {
		if strings.TrimSpace(m) != "" {
			sentences = append(sentences, strings.TrimSpace(m))
		}
	}
	return sentences
}

// packUnits 将文本单元贪心合并为不超过 budget 的片段
// 超长段落降级为句子切分，超长句子做硬 token 切分
func (c *Chunker) packUnits(paragraphs []string, budget int) ([]string, error) {
	var segments []string
	var buf strings.Builder
	bufTokens := 0

	flush := func() {
		if buf.Len() > 0 {
			segments = append(segments, strings.TrimSpace(buf.String()))
			buf.Reset()
			bufTokens = 0
		}
	}

	appendUnit := func(unit string, unitTokens int, sep string) {
		if bufTokens > 0 && bufTokens+unitTokens > budget {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString(sep)
		}
		buf.WriteString(unit)
		bufTokens += unitTokens
	}

	for _, paragraph := range paragraphs {
		pTokens, err := CountTokens(paragraph)
		if err != nil {
			return nil, err
		}

		if pTokens <= budget {
			appendUnit(paragraph, pTokens, "\n\n")
			continue
		}

		// 段落超长，降级为句子
		for _, sentence := range splitSentences(paragraph) {
			sTokens, err := CountTokens(sentence)
			if err != nil {
				return nil, err
			}

			if sTokens <= budget {
				appendUnit(sentence, sTokens, " ")
				continue
			}

			// 句子超长，硬 token 切分
			flush()
			pieces, err := hardSplit(sentence, budget)
			if err != nil {
				return nil, err
			}
			for _, piece := range pieces {
				pieceTokens, err := CountTokens(piece)
				if err != nil {
					return nil, err
				}
				appendUnit(piece, pieceTokens, " ")
				flush()
			}
		}
	}
	flush()

	return segments, nil
}

// hardSplit 按 token 窗口硬切超长文本
func hardSplit(text string, budget int) ([]string, error) {
	tokens, err := EncodeTokens(text)
	if err != nil {
		return nil, err
	}

	var pieces []string
	for start := 0; start < len(tokens); start += budget {
		end := start + budget
		if end > len(tokens) {
			end = len(tokens)
		}
		piece, err := DecodeTokens(tokens[start:end])
		if err != nil {
			return nil, err
		}
		pieces = append(pieces, strings.TrimSpace(piece))
	}
	return pieces, nil
}

// applyOverlap 为相邻片段添加重叠：每段前缀上一段的末尾 token
func (c *Chunker) applyOverlap(segments []string) ([]string, error) {
	if c.overlapTokens <= 0 || len(segments) <= 1 {
		return segments, nil
	}

	result := make([]string, len(segments))
	result[0] = segments[0]

	for i := 1; i < len(segments); i++ {
		prevTokens, err := EncodeTokens(segments[i-1])
		if err != nil {
			return nil, err
		}

		start := len(prevTokens) - c.overlapTokens
		if start < 0 {
			start = 0
		}

		overlap, err := DecodeTokens(prevTokens[start:])
		if err != nil {
			return nil, err
		}

		result[i] = strings.TrimSpace(overlap) + "\n" + segments[i]
	}

	return result, nil
}

// mergeUndersized 将低于下限的片段向后合并，避免缺乏上下文的碎片
// 合并后超过上限或跨越样板边界时保持原样
func (c *Chunker) mergeUndersized(chunks []*corpus.Chunk) ([]*corpus.Chunk, error) {
	if len(chunks) <= 1 {
		return chunks, nil
	}

	var merged []*corpus.Chunk
	i := 0
	for i < len(chunks) {
		current := chunks[i]

		for i+1 < len(chunks) &&
			current.TokenCount < c.minTokens &&
			current.IsBoilerplate == chunks[i+1].IsBoilerplate &&
			current.TokenCount+chunks[i+1].TokenCount <= c.maxTokens {

			next := chunks[i+1]
			text := current.Text + "\n\n" + next.Text
			tokenCount, err := CountTokens(text)
			if err != nil {
				return nil, err
			}
			if tokenCount > c.maxTokens {
				break
			}
			hash := corpus.HashText(text)

			current = &corpus.Chunk{
				ID:            corpus.NewChunkID(current.SourcePath, hash),
				ContentHash:   hash,
				Text:          text,
				TokenCount:    tokenCount,
				SectionHeader: current.SectionHeader,
				SourcePath:    current.SourcePath,
				IsBoilerplate: current.IsBoilerplate,
			}
			i++
		}

		merged = append(merged, current)
		i++
	}

	return merged, nil
}
