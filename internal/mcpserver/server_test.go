package mcpserver

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/ansuz/internal/vaultservice"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := vaultservice.New(logger, "Vault", []string{"@wait", "@wt"})
	if err := svc.SetActiveVault(t.TempDir(), filepath.Join(t.TempDir(), "idx.db")); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { svc.Close() })

	return New(svc)
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_pages":
		result, err = srv.searchPages(ctx, req)
	case "read_page":
		result, err = srv.readPage(ctx, req)
	case "write_page":
		result, err = srv.writePage(ctx, req)
	case "fetch_tasks":
		result, err = srv.fetchTasks(ctx, req)
	case "tag_summary":
		result, err = srv.tagSummary(ctx, req)
	case "task_tags":
		result, err = srv.taskTags(ctx, req)
	case "link_relations":
		result, err = srv.linkRelations(ctx, req)
	case "journal_today":
		result, err = srv.journalToday(ctx, req)
	case "get_page_contract":
		result, err = srv.getPageContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestWriteAndReadPage(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "write_page", map[string]interface{}{
		"page":    "Projects:Roadmap",
		"content": "# Roadmap\nHello",
	})
	if text := resultText(r); text != "written: /Projects/Roadmap/Roadmap.md" {
		t.Errorf("write result = %q", text)
	}

	r = callTool(t, srv, "read_page", map[string]interface{}{
		"page": ":Projects:Roadmap",
	})
	if text := resultText(r); text != "# Roadmap\nHello" {
		t.Errorf("read result = %q", text)
	}
}

func TestReadPageMissing(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "read_page", map[string]interface{}{"page": "Nope"})
	if !r.IsError {
		t.Error("expected error for missing page")
	}
}

func TestSearchPagesReturnsIdentifiers(t *testing.T) {
	srv := testServer(t)
	_ = callTool(t, srv, "write_page", map[string]interface{}{
		"page":    "Finance:Tax",
		"content": "# Taxes\n",
	})

	r := callTool(t, srv, "search_pages", map[string]interface{}{"query": "Taxes"})
	text := resultText(r)
	if !strings.Contains(text, `":Finance:Tax"`) {
		t.Errorf("search result missing anchored identifier: %q", text)
	}
}

func TestFetchTasks(t *testing.T) {
	srv := testServer(t)
	_ = callTool(t, srv, "write_page", map[string]interface{}{
		"page":    "Todo",
		"content": "- [ ] call plumber @home\n- [x] done thing\n",
	})

	r := callTool(t, srv, "fetch_tasks", map[string]interface{}{"tags": "@home"})
	text := resultText(r)
	if !strings.Contains(text, "call plumber") {
		t.Errorf("tasks result = %q", text)
	}
	if strings.Contains(text, "done thing") {
		t.Errorf("done task leaked into default result: %q", text)
	}
}

func TestLinkRelations(t *testing.T) {
	srv := testServer(t)
	_ = callTool(t, srv, "write_page", map[string]interface{}{
		"page":    "A",
		"content": "# A\nsee :B\n",
	})

	r := callTool(t, srv, "link_relations", map[string]interface{}{"page": "B"})
	text := resultText(r)
	if !strings.Contains(text, `":A"`) {
		t.Errorf("incoming identifier missing: %q", text)
	}
}

func TestTagAndTaskSummaries(t *testing.T) {
	srv := testServer(t)
	_ = callTool(t, srv, "write_page", map[string]interface{}{
		"page":    "P",
		"content": "@pagetag\n- [ ] work @tasktag\n",
	})

	r := callTool(t, srv, "tag_summary", map[string]interface{}{})
	if !strings.Contains(resultText(r), "pagetag") {
		t.Errorf("tag_summary = %q", resultText(r))
	}
	r = callTool(t, srv, "task_tags", map[string]interface{}{})
	if !strings.Contains(resultText(r), "tasktag") {
		t.Errorf("task_tags = %q", resultText(r))
	}
}

func TestJournalToday(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "journal_today", map[string]interface{}{})
	text := resultText(r)
	if !strings.HasPrefix(text, ":Journal:") {
		t.Errorf("journal identifier = %q", text)
	}
}

func TestGetPageContract(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_page_contract", map[string]interface{}{})
	if !strings.Contains(resultText(r), "colon identifier") {
		t.Error("contract text missing")
	}
}
