package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/othala/internal/familyservice"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/storage"
)

func testServer(t *testing.T) (*Server, storage.Provider) {
	t.Helper()

	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}

	dbFile, err := os.CreateTemp("", "othala-mcp-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	svc := familyservice.NewService(store, db, logger, familyservice.Options{})

	srv := New(svc, store)
	return srv, store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go doesn't expose a direct "call tool" test helper, so we call
	// the handler functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_persons":
		result, err = srv.searchPersons(ctx, req)
	case "read_person":
		result, err = srv.readPerson(ctx, req)
	case "create_person":
		result, err = srv.createPerson(ctx, req)
	case "get_ancestors":
		result, err = srv.getAncestors(ctx, req)
	case "get_descendants":
		result, err = srv.getDescendants(ctx, req)
	case "set_relationship":
		result, err = srv.setRelationship(ctx, req)
	case "validate_vault":
		result, err = srv.validateVault(ctx, req)
	case "get_person_contract":
		result, err = srv.getPersonContract(ctx, req)
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

func personMarkdown(lines ...string) string {
	s := "---\ntype: person\n"
	for _, l := range lines {
		s += l + "\n"
	}
	return s + "---\n\nNotes.\n"
}

func TestCreateAndReadPerson(t *testing.T) {
	srv, _ := testServer(t)

	content := personMarkdown("id: p-arne", "name: Arne Berg")
	r := callTool(t, srv, "create_person", map[string]interface{}{
		"path":    "people/arne.md",
		"content": content,
	})
	text := resultText(r)
	if text != "created: people/arne.md (id: p-arne)" {
		t.Errorf("create result = %q", text)
	}

	r = callTool(t, srv, "read_person", map[string]interface{}{
		"path": "people/arne.md",
	})
	if got := resultText(r); got != content {
		t.Errorf("read result = %q", got)
	}
}

func TestCreatePlaceholder(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_person", map[string]interface{}{
		"path": "people/unknown-spouse.md",
		"name": "Unknown Spouse",
		"sex":  "F",
	})
	text := resultText(r)
	if r.IsError {
		t.Fatalf("placeholder create failed: %s", text)
	}
	if !strings.Contains(text, "created: people/unknown-spouse.md (id: ") {
		t.Errorf("placeholder result = %q", text)
	}

	r = callTool(t, srv, "read_person", map[string]interface{}{"path": "people/unknown-spouse.md"})
	if got := resultText(r); !strings.Contains(got, "name: Unknown Spouse") {
		t.Errorf("placeholder content = %q", got)
	}
}

func TestCreatePerson_NeedsContentOrName(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_person", map[string]interface{}{"path": "people/x.md"})
	if !r.IsError {
		t.Error("expected error without content or name")
	}
}

func TestReadPersonMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_person", map[string]interface{}{"path": "people/nope.md"})
	if !r.IsError {
		t.Error("expected error for missing record")
	}
}

func TestSearchPersons(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_person", map[string]interface{}{
		"path":    "people/arne.md",
		"content": personMarkdown("id: p-arne", "name: Arne Berg"),
	})

	r := callTool(t, srv, "search_persons", map[string]interface{}{"query": "Arne"})
	if r.IsError {
		t.Fatalf("search failed: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "p-arne") {
		t.Errorf("search result = %q", resultText(r))
	}
}

func TestGetAncestors(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_person", map[string]interface{}{
		"path":    "people/gustav.md",
		"content": personMarkdown("id: p-gustav", "name: Gustav Berg", "sex: M"),
	})
	callTool(t, srv, "create_person", map[string]interface{}{
		"path":    "people/arne.md",
		"content": personMarkdown("id: p-arne", "name: Arne Berg", "father_id: p-gustav"),
	})

	r := callTool(t, srv, "get_ancestors", map[string]interface{}{"id": "p-arne"})
	if r.IsError {
		t.Fatalf("get_ancestors failed: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "p-gustav") {
		t.Errorf("ancestors = %q, want p-gustav present", resultText(r))
	}

	r = callTool(t, srv, "get_ancestors", map[string]interface{}{"id": "p-ghost"})
	if !r.IsError {
		t.Error("expected error for unknown root")
	}
}

func TestGetDescendants(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_person", map[string]interface{}{
		"path":    "people/gustav.md",
		"content": personMarkdown("id: p-gustav", "name: Gustav Berg", "sex: M"),
	})
	callTool(t, srv, "create_person", map[string]interface{}{
		"path":    "people/arne.md",
		"content": personMarkdown("id: p-arne", "name: Arne Berg", "father_id: p-gustav"),
	})

	r := callTool(t, srv, "get_descendants", map[string]interface{}{"id": "p-gustav"})
	if r.IsError {
		t.Fatalf("get_descendants failed: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "p-arne") {
		t.Errorf("descendants = %q, want p-arne present", resultText(r))
	}
}

func TestSetRelationship(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_person", map[string]interface{}{
		"path":    "people/gustav.md",
		"content": personMarkdown("id: p-gustav", "name: Gustav Berg", "sex: M"),
	})
	callTool(t, srv, "create_person", map[string]interface{}{
		"path":    "people/arne.md",
		"content": personMarkdown("id: p-arne", "name: Arne Berg", "sex: M"),
	})

	r := callTool(t, srv, "set_relationship", map[string]interface{}{
		"source_id": "p-arne",
		"type":      "father",
		"targets":   []interface{}{"p-gustav"},
	})
	if r.IsError {
		t.Fatalf("set_relationship failed: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), `"source_written": true`) {
		t.Errorf("result = %q", resultText(r))
	}

	// The reciprocal child entry must land on the father's record.
	r = callTool(t, srv, "read_person", map[string]interface{}{"path": "people/gustav.md"})
	if got := resultText(r); !strings.Contains(got, "children_ids:") || !strings.Contains(got, "p-arne") {
		t.Errorf("father record = %q, want reciprocal child entry", got)
	}
}

func TestSetRelationship_UnknownType(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_person", map[string]interface{}{
		"path":    "people/arne.md",
		"content": personMarkdown("id: p-arne", "name: Arne Berg"),
	})

	r := callTool(t, srv, "set_relationship", map[string]interface{}{
		"source_id": "p-arne",
		"type":      "cousin",
		"targets":   []interface{}{"p-x"},
	})
	if !r.IsError {
		t.Error("expected error for unknown relationship type")
	}
}

func TestValidateVault(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_person", map[string]interface{}{
		"path":    "people/arne.md",
		"content": personMarkdown("id: p-arne", "name: Arne Berg", "sex: M", "born: 1920"),
	})

	r := callTool(t, srv, "validate_vault", map[string]interface{}{})
	if r.IsError {
		t.Fatalf("validate_vault failed: %s", resultText(r))
	}
	text := resultText(r)
	if !strings.Contains(text, `"score"`) || !strings.Contains(text, `"checked_records": 1`) {
		t.Errorf("report = %q", text)
	}
}

func TestGetPersonContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_person_contract", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, "type: person") || !strings.Contains(text, "father_id") {
		t.Errorf("contract missing expected sections")
	}
}
