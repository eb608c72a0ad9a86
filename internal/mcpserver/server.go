// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the vault index tools for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/pathcodec"
	"github.com/starford/ansuz/internal/vaultservice"
)

// Server wraps the MCP server with vault tools.
type Server struct {
	mcp *server.MCPServer
	svc *vaultservice.Service
}

// New creates a new MCP server with all vault tools registered.
func New(svc *vaultservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_pages",
		mcp.WithDescription("Search pages by path, title, or substring. "+
			"Exact path matches rank first, then direct sub-pages, then title matches."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchPages)

	s.mcp.AddTool(mcp.NewTool("read_page",
		mcp.WithDescription("Read the full content of a page by its colon identifier (e.g. Projects:Roadmap)."),
		mcp.WithString("page", mcp.Required(), mcp.Description("Colon identifier of the page; a leading ':' is optional")),
	), s.readPage)

	s.mcp.AddTool(mcp.NewTool("write_page",
		mcp.WithDescription("Create or replace a page. Content MUST follow the page format "+
			"(read it first via the get_page_contract tool or the ansuz://page-format resource). "+
			"The page is indexed immediately and linked from its parent page."),
		mcp.WithString("page", mcp.Required(), mcp.Description("Colon identifier for the page")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Page content following the format contract")),
	), s.writePage)

	s.mcp.AddTool(mcp.NewTool("fetch_tasks",
		mcp.WithDescription("Query tasks across the vault. Tags use AND semantics; "+
			"actionable_only hides tasks that still have open sub-tasks or carry a parked tag."),
		mcp.WithString("query", mcp.Description("Substring match on task text")),
		mcp.WithString("tags", mcp.Description("Space-separated tags that must all be present (e.g. '@home @urgent')")),
		mcp.WithBoolean("include_done", mcp.Description("Include completed tasks")),
		mcp.WithBoolean("actionable_only", mcp.Description("Only tasks with no open sub-tasks")),
		mcp.WithBoolean("include_ancestors", mcp.Description("Pull in parent tasks of each hit for context")),
	), s.fetchTasks)

	s.mcp.AddTool(mcp.NewTool("tag_summary",
		mcp.WithDescription("List page tags with usage counts."),
	), s.tagSummary)

	s.mcp.AddTool(mcp.NewTool("task_tags",
		mcp.WithDescription("List tags carried by tasks, with counts."),
	), s.taskTags)

	s.mcp.AddTool(mcp.NewTool("link_relations",
		mcp.WithDescription("Show incoming and outgoing links of a page."),
		mcp.WithString("page", mcp.Required(), mcp.Description("Colon identifier of the page")),
	), s.linkRelations)

	s.mcp.AddTool(mcp.NewTool("journal_today",
		mcp.WithDescription("Ensure today's journal page exists and return its identifier."),
	), s.journalToday)

	s.mcp.AddTool(mcp.NewTool("get_page_contract",
		mcp.WithDescription("Returns the canonical page format contract. "+
			"Call this before creating or updating pages to ensure correct structure."),
	), s.getPageContract)

	// Resource: page format contract.
	s.mcp.AddResource(
		mcp.NewResource("ansuz://page-format", "Page Format Contract",
			mcp.WithResourceDescription("Canonical page format that all pages must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPageFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// pagePath resolves the "page" argument, accepting anchored and
// unanchored identifiers.
func (s *Server) pagePath(req mcp.CallToolRequest) (string, error) {
	id, err := req.RequireString("page")
	if err != nil {
		return "", err
	}
	return s.svc.ResolveID(pathcodec.EnsureRootAnchor(id)), nil
}

func (s *Server) searchPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.SearchPages(query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	type hit struct {
		Page  string `json:"page"`
		Title string `json:"title"`
	}
	hits := make([]hit, len(results))
	for i, r := range results {
		hits[i] = hit{Page: pathcodec.EnsureRootAnchor(pathcodec.PathToID(r.Path)), Title: r.Title}
	}
	out, _ := json.MarshalIndent(hits, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := s.pagePath(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.svc.ReadPage(path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) writePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := s.pagePath(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.WritePage(path, []byte(content)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("written: %s", path)), nil
}

func (s *Server) fetchTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := index.TasksQuery{
		Query:            req.GetString("query", ""),
		IncludeDone:      req.GetBool("include_done", false),
		ActionableOnly:   req.GetBool("actionable_only", false),
		IncludeAncestors: req.GetBool("include_ancestors", false),
	}
	if tags := strings.Fields(req.GetString("tags", "")); len(tags) > 0 {
		q.Tags = tags
	}
	tasks, err := s.svc.Tasks(q)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(tasks, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) tagSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	counts, err := s.svc.TagSummary()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(counts, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) taskTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	counts, err := s.svc.TaskTagSummary()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(counts, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) linkRelations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := s.pagePath(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rel, err := s.svc.LinkRelations(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	type relations struct {
		Incoming []string `json:"incoming"`
		Outgoing []string `json:"outgoing"`
	}
	r := relations{Incoming: toIDs(rel.Incoming), Outgoing: toIDs(rel.Outgoing)}
	out, _ := json.MarshalIndent(r, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) journalToday(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := s.svc.JournalToday(time.Now())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(pathcodec.EnsureRootAnchor(pathcodec.PathToID(path))), nil
}

func (s *Server) getPageContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PageFormatContract), nil
}

func (s *Server) readPageFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "ansuz://page-format",
			MIMEType: "text/markdown",
			Text:     PageFormatContract,
		},
	}, nil
}

// toIDs renders page paths as anchored colon identifiers.
func toIDs(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = pathcodec.EnsureRootAnchor(pathcodec.PathToID(p))
	}
	return out
}
