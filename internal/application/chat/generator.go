package chat

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/docschat/backend/internal/domain/corpus"
	"github.com/docschat/backend/internal/infrastructure/llm"
	"github.com/docschat/backend/internal/infrastructure/log"
)

// StreamingLLM 流式补全接口
type StreamingLLM interface {
	StreamChat(ctx context.Context, messages []llm.Message, onFragment func(fragment string) error) error
}

// FallbackAnswer 语料库中无相关内容时的固定回答
// 不调用补全 API，不携带任何引用
const FallbackAnswer = "I couldn't find anything in the documentation that answers this question. " +
	"Try rephrasing it, or ask about a topic the documentation covers."

const systemPrompt = `You are a documentation assistant. Answer the question using ONLY the provided excerpts.
Each excerpt is labeled [S1], [S2], and so on. When a statement comes from an excerpt, append its label, for example: "Indexes speed up lookups [S1]."
If the excerpts do not contain the answer, say so plainly. Never invent information or cite a label that was not provided.`

// citationPattern 生成文本中的引用标记，如 [S1]
var citationPattern = regexp.MustCompile(`\[S(\d+)\]`)

// maxMarkerLen 引用标记的最大长度（"[S99]"）
const maxMarkerLen = 5

// Generator 回答生成器
// 将检索片段组装为带引用标签的提示词，流式调用补全 API，
// 并把回答中的标签改写为内联 Markdown 引用
type Generator struct {
	llm    StreamingLLM
	logger *slog.Logger
}

// NewGenerator 创建回答生成器
func NewGenerator(streamingLLM StreamingLLM) *Generator {
	return &Generator{
		llm:    streamingLLM,
		logger: log.NewModuleLogger("chat", "generator"),
	}
}

// Generate 流式生成回答
// results 为空时发送固定兜底回答；返回完整回答文本供会话记录
func (g *Generator) Generate(
	ctx context.Context,
	query string,
	results []*corpus.RetrievalResult,
	conversation *corpus.ConversationContext,
	emit func(event StreamEvent) error,
) (string, error) {
	if len(results) == 0 {
		if err := emit(ContentEvent(FallbackAnswer)); err != nil {
			return "", err
		}
		return FallbackAnswer, nil
	}

	messages := g.buildMessages(query, results, conversation)

	rewriter := newCitationRewriter(results)
	var answer strings.Builder

	err := g.llm.StreamChat(ctx, messages, func(fragment string) error {
		ready := rewriter.feed(fragment)
		if ready == "" {
			return nil
		}
		answer.WriteString(ready)
		return emit(ContentEvent(ready))
	})
	if err != nil {
		return answer.String(), err
	}

	if tail := rewriter.flush(); tail != "" {
		answer.WriteString(tail)
		if err := emit(ContentEvent(tail)); err != nil {
			return answer.String(), err
		}
	}

	// 只为回答中实际引用的片段发送来源事件
	for _, citation := range rewriter.citations() {
		if err := emit(SourceEvent(citation)); err != nil {
			return answer.String(), err
		}
	}

	g.logger.Debug("Answer generated",
		"chars", answer.Len(),
		"citations", len(rewriter.citations()),
	)

	return answer.String(), nil
}

// buildMessages 组装提示词：系统指令 + 会话窗口 + 标签化片段与问题
func (g *Generator) buildMessages(query string, results []*corpus.RetrievalResult, conversation *corpus.ConversationContext) []llm.Message {
	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
	}

	if conversation != nil {
		for _, turn := range conversation.Turns {
			messages = append(messages, llm.Message{
				Role:    turn.Role,
				Content: turn.Text,
			})
		}
	}

	var sb strings.Builder
	sb.WriteString("Documentation excerpts:\n\n")
	for i, result := range results {
		fmt.Fprintf(&sb, "[S%d] %s - %s\n%s\n\n", i+1, result.SourcePath, result.SectionHeader, result.Text)
	}
	sb.WriteString("Question: ")
	sb.WriteString(query)

	messages = append(messages, llm.Message{
		Role:    "user",
		Content: sb.String(),
	})

	return messages
}

// citationRewriter 流式引用改写器
// 片段边界可能切断 "[S1]" 这类标记，因此对疑似标记前缀做少量滞留，
// 待标记完整后改写为内联 Markdown 引用
type citationRewriter struct {
	results []*corpus.RetrievalResult
	buffer  string
	used    []int
	usedSet map[int]bool
}

func newCitationRewriter(results []*corpus.RetrievalResult) *citationRewriter {
	return &citationRewriter{
		results: results,
		usedSet: make(map[int]bool),
	}
}

// feed 送入一个片段，返回可以安全下发的改写后文本
func (r *citationRewriter) feed(fragment string) string {
	r.buffer += fragment

	var out strings.Builder
	for {
		idx := strings.IndexByte(r.buffer, '[')
		if idx < 0 {
			out.WriteString(r.buffer)
			r.buffer = ""
			break
		}

		out.WriteString(r.buffer[:idx])
		r.buffer = r.buffer[idx:]

		if match := citationPattern.FindStringIndex(r.buffer); match != nil && match[0] == 0 {
			out.WriteString(r.rewrite(r.buffer[:match[1]]))
			r.buffer = r.buffer[match[1]:]
			continue
		}

		if len(r.buffer) < maxMarkerLen && couldBeMarkerPrefix(r.buffer) {
			// 可能是被切断的标记，滞留等待后续片段
			break
		}

		out.WriteString("[")
		r.buffer = r.buffer[1:]
	}

	return out.String()
}

// flush 流结束时下发滞留的残余文本
func (r *citationRewriter) flush() string {
	tail := r.buffer
	r.buffer = ""
	return tail
}

// rewrite 将 [Sn] 改写为 [Section Title](source-ref)
// 标签超出检索结果范围时原样保留，杜绝凭空捏造的引用目标
func (r *citationRewriter) rewrite(marker string) string {
	n, err := strconv.Atoi(marker[2 : len(marker)-1])
	if err != nil || n < 1 || n > len(r.results) {
		return marker
	}

	if !r.usedSet[n] {
		r.usedSet[n] = true
		r.used = append(r.used, n)
	}

	result := r.results[n-1]
	return fmt.Sprintf("[%s](%s#%s)", result.SectionHeader, result.SourcePath, anchorSlug(result.SectionHeader))
}

// citations 返回回答中实际引用的来源，按首次出现顺序
func (r *citationRewriter) citations() []*corpus.Citation {
	citations := make([]*corpus.Citation, 0, len(r.used))
	for _, n := range r.used {
		result := r.results[n-1]
		citations = append(citations, &corpus.Citation{
			Label:         fmt.Sprintf("S%d", n),
			SourcePath:    result.SourcePath,
			SectionHeader: result.SectionHeader,
		})
	}
	return citations
}

// couldBeMarkerPrefix 判断文本是否可能是被切断的引用标记前缀
func couldBeMarkerPrefix(s string) bool {
	for i, c := range s {
		switch {
		case i == 0:
			if c != '[' {
				return false
			}
		case i == 1:
			if c != 'S' {
				return false
			}
		default:
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	return true
}

var (
	slugStripPattern = regexp.MustCompile(`[^a-z0-9\x{4e00}-\x{9fff}\s-]`)
	slugSpacePattern = regexp.MustCompile(`\s+`)
)

// anchorSlug 将小节标题转换为锚点
func anchorSlug(header string) string {
	slug := strings.ToLower(header)
	slug = slugStripPattern.ReplaceAllString(slug, "")
	slug = slugSpacePattern.ReplaceAllString(strings.TrimSpace(slug), "-")
	return slug
}
