// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Othala tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/familyservice"
	"github.com/starford/othala/internal/graph"
	"github.com/starford/othala/internal/record"
	"github.com/starford/othala/internal/storage"
)

// Server wraps the MCP server with Othala tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *familyservice.Service
	store storage.Provider
}

// New creates a new MCP server with all Othala tools registered.
// store is used by upload_media; everything else goes through svc.
func New(svc *familyservice.Service, store storage.Provider) *Server {
	s := &Server{svc: svc, store: store}

	s.mcp = server.NewMCPServer(
		"Othala",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_persons",
		mcp.WithDescription("Full-text search through person records: names, dates, research notes."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchPersons)

	s.mcp.AddTool(mcp.NewTool("read_person",
		mcp.WithDescription("Read the full content of a person record."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the record (e.g. people/arne-berg.md)")),
	), s.readPerson)

	s.mcp.AddTool(mcp.NewTool("create_person",
		mcp.WithDescription("Create a new person record at the specified path. "+
			"Pass full Markdown content following the canonical person format "+
			"(read it first via the get_person_contract tool or the othala://person-format "+
			"resource), or pass just a name to create a minimal placeholder record "+
			"for someone referenced but not yet researched. A canonical id is "+
			"assigned automatically when the content does not declare one."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path for the new record (must end with .md)")),
		mcp.WithString("content", mcp.Description("Full Markdown content following the person format contract")),
		mcp.WithString("name", mcp.Description("Display name for a placeholder record (used when content is empty)")),
		mcp.WithString("sex", mcp.Description("Optional placeholder sex: M or F")),
		mcp.WithString("born", mcp.Description("Optional placeholder birth date (e.g. 1920 or ABT 1895)")),
	), s.createPerson)

	s.mcp.AddTool(mcp.NewTool("get_ancestors",
		mcp.WithDescription("Walk the ancestors of a person by canonical id, generation by generation."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Canonical person id")),
		mcp.WithNumber("generations", mcp.Description("Generation limit; negative for unlimited (default from config)")),
		mcp.WithBoolean("include_step", mcp.Description("Include step parents as boundary members")),
		mcp.WithBoolean("include_adoptive", mcp.Description("Include adoptive parents as boundary members")),
	), s.getAncestors)

	s.mcp.AddTool(mcp.NewTool("get_descendants",
		mcp.WithDescription("Walk the descendants of a person by canonical id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Canonical person id")),
		mcp.WithNumber("generations", mcp.Description("Generation limit; negative for unlimited (default from config)")),
	), s.getDescendants)

	s.mcp.AddTool(mcp.NewTool("set_relationship",
		mcp.WithDescription("Set, replace or clear a relationship slot on a person record and "+
			"propagate the reciprocal links to the target records. Targets are canonical ids "+
			"or [[Display Name]] wikilinks; an empty target list clears the slot on both sides. "+
			"Existing contradictory entries on targets are reported as conflicts, never overwritten."),
		mcp.WithString("source_id", mcp.Required(), mcp.Description("Canonical id of the record being edited")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Relationship slot: father, mother, parent, step_father, step_mother, adoptive_father, adoptive_mother, spouse, child")),
		mcp.WithArray("targets", mcp.Description("Target ids or [[wikilinks]]; empty clears the slot"),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithBoolean("dry_run", mcp.Description("Plan the writes without touching any file")),
	), s.setRelationship)

	s.mcp.AddTool(mcp.NewTool("validate_vault",
		mcp.WithDescription("Run the consistency checks over the whole vault and return the "+
			"findings with a 0-100 quality score."),
	), s.validateVault)

	s.mcp.AddTool(mcp.NewTool("get_person_contract",
		mcp.WithDescription("Returns the canonical Othala person record format contract. "+
			"Call this before creating or updating records to ensure correct structure."),
	), s.getPersonContract)

	s.mcp.AddTool(mcp.NewTool("upload_media",
		mcp.WithDescription("Fetch a document scan or photo by URL or base64 data URI into the "+
			"vault's media/ directory. Returns a markdownImage snippet ready to paste into a record body."),
		mcp.WithString("url", mcp.Required(), mcp.Description("HTTP(S) URL or data: URI of the file")),
		mcp.WithString("filename", mcp.Description("Optional filename override (extension decides the type)")),
	), s.uploadMedia)

	// Resource: person format contract.
	s.mcp.AddResource(
		mcp.NewResource("othala://person-format", "Person Record Format Contract",
			mcp.WithResourceDescription("Canonical person record format that all records must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPersonFormatResource,
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

func (s *Server) searchPersons(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readPerson(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.svc.GetPerson(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(detail.Content), nil
}

func (s *Server) createPerson(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content := req.GetString("content", "")
	name := req.GetString("name", "")

	var detail *familyservice.PersonDetail
	switch {
	case content != "":
		detail, err = s.svc.CreatePerson(ctx, path, []byte(content))
	case name != "":
		detail, err = s.svc.CreatePlaceholder(ctx, path, record.Skeleton{
			Name: name,
			Sex:  req.GetString("sex", ""),
			Born: req.GetString("born", ""),
		})
	default:
		return mcp.NewToolResultError("either content or name is required"), nil
	}
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return mcp.NewToolResultError(fmt.Sprintf("record already exists: %s", path)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	id := ""
	if detail.Person != nil {
		id = detail.Person.ID
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (id: %s)", path, id)), nil
}

func (s *Server) getAncestors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	gens := req.GetInt("generations", s.svc.DefaultGenerations())
	opts := graph.TraversalOptions{
		IncludeStep:     req.GetBool("include_step", false),
		IncludeAdoptive: req.GetBool("include_adoptive", false),
	}
	trav, err := s.svc.Ancestors(ctx, id, gens, opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !trav.Found {
		return mcp.NewToolResultError(fmt.Sprintf("person not found: %s", id)), nil
	}
	out, _ := json.MarshalIndent(trav, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getDescendants(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	gens := req.GetInt("generations", s.svc.DefaultGenerations())
	trav, err := s.svc.Descendants(ctx, id, gens)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !trav.Found {
		return mcp.NewToolResultError(fmt.Sprintf("person not found: %s", id)), nil
	}
	out, _ := json.MarshalIndent(trav, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) setRelationship(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceID, err := req.RequireString("source_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	relType, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.svc.SetRelationship(ctx, familyservice.RelationshipRequest{
		SourceID: sourceID,
		Type:     relType,
		Targets:  req.GetStringSlice("targets", nil),
		DryRun:   req.GetBool("dry_run", false),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) validateVault(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.svc.Quality(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(report, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getPersonContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PersonFormatContract), nil
}

func (s *Server) readPersonFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "othala://person-format",
			MIMEType: "text/markdown",
			Text:     PersonFormatContract,
		},
	}, nil
}
