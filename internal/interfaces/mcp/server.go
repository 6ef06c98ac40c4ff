package mcp

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	appChat "github.com/docschat/backend/internal/application/chat"
	"github.com/docschat/backend/internal/domain/corpus"
)

// MCPServer MCP 服务器
// 通过 SSE 端点向 MCP 客户端暴露语料库检索工具
type MCPServer struct {
	server    *mcp.Server
	handler   http.Handler
	retriever *appChat.Retriever
}

// SearchCorpusInput 语料库检索工具输入
type SearchCorpusInput struct {
	Query string `json:"query" jsonschema:"Search query - describe what you're looking for in natural language (required)"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of results to return, defaults to the configured top_k"`
}

// SearchCorpusOutput 语料库检索工具输出
type SearchCorpusOutput struct {
	Results    []*CorpusSearchResult `json:"results" jsonschema:"List of relevant documentation excerpts"`
	TotalCount int                   `json:"total_count" jsonschema:"Number of results returned"`
}

// CorpusSearchResult 单条检索结果
type CorpusSearchResult struct {
	Text          string  `json:"text" jsonschema:"Excerpt text"`
	SectionHeader string  `json:"section_header" jsonschema:"Section the excerpt belongs to"`
	SourcePath    string  `json:"source_path" jsonschema:"Source document path"`
	Score         float32 `json:"score" jsonschema:"Similarity score in [0, 1]"`
}

// NewServer 创建 MCP 服务器并注册工具
func NewServer(retriever *appChat.Retriever) *MCPServer {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "docschat-backend",
			Version: "0.1.0",
		},
		nil, // 使用默认能力
	)

	mcpServer := &MCPServer{
		server:    server,
		retriever: retriever,
	}

	// 注册工具：search_corpus
	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_corpus",
		Description: "Search the ingested documentation corpus by semantic similarity. Parameters: query (string, required) - natural language search query; limit (int, optional) - maximum results. Returns deduplicated, diversity-ranked excerpts with section and source path.",
	}, mcpServer.searchCorpusTool)

	// 创建 SSE Handler
	mcpServer.handler = mcp.NewSSEHandler(
		func(r *http.Request) *mcp.Server {
			// 每个请求返回同一个服务器实例
			return server
		},
		nil, // SSEOptions，使用默认值
	)

	return mcpServer
}

// searchCorpusTool 语料库检索工具实现
func (s *MCPServer) searchCorpusTool(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SearchCorpusInput,
) (*mcp.CallToolResult, SearchCorpusOutput, error) {
	output := SearchCorpusOutput{
		Results: []*CorpusSearchResult{},
	}

	if input.Query == "" {
		return nil, output, errors.New("query is required")
	}

	results, err := s.retriever.Retrieve(ctx, input.Query, nil, input.Limit)
	if err != nil {
		// 无相关内容不是故障，返回空结果集
		if errors.Is(err, corpus.ErrNoRelevantContent) {
			return nil, output, nil
		}
		return nil, output, err
	}

	for _, result := range results {
		output.Results = append(output.Results, &CorpusSearchResult{
			Text:          result.Text,
			SectionHeader: result.SectionHeader,
			SourcePath:    result.SourcePath,
			Score:         result.Score,
		})
	}
	output.TotalCount = len(output.Results)

	return nil, output, nil
}

// GetHandler 获取 HTTP Handler（用于集成到 HTTP 服务器）
func (s *MCPServer) GetHandler() http.Handler {
	return s.handler
}
