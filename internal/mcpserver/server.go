// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Notegraph tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jakebiddle/notegraph/internal/graph"
	"github.com/jakebiddle/notegraph/internal/noteservice"
	"github.com/jakebiddle/notegraph/internal/proposals"
	"github.com/jakebiddle/notegraph/internal/settings"
)

// Server wraps the MCP server with Notegraph tools.
type Server struct {
	mcp      *server.MCPServer
	svc      *noteservice.Service
	graph    *graph.Manager
	props    *proposals.Store
	settings *settings.Store
}

// New creates a new MCP server with all Notegraph tools registered.
func New(svc *noteservice.Service, gm *graph.Manager, props *proposals.Store, st *settings.Store) *Server {
	s := &Server{svc: svc, graph: gm, props: props, settings: st}

	s.mcp = server.NewMCPServer(
		"Notegraph",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Search notes. Results are augmented with documents reached through the entity graph when the query mentions known entities."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a Markdown note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("resolve_entities",
		mcp.WithDescription("Resolve entity mentions in free text against the vault's entity alias index."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Free text possibly naming vault entities")),
	), s.resolveEntities)

	s.mcp.AddTool(mcp.NewTool("expand_entities",
		mcp.WithDescription("Expand from resolved entities over the relation graph and return reachable documents with explanations."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Free text naming the seed entities")),
		mcp.WithNumber("max_hops", mcp.Description("Traversal depth (1-4)")),
		mcp.WithNumber("max_docs", mcp.Description("Maximum documents returned (1-100)")),
	), s.expandEntities)

	s.mcp.AddTool(mcp.NewTool("submit_relation_proposals",
		mcp.WithDescription("Submit semantic relation proposals extracted from notes. "+
			"Accepts a JSON array of {notePath, predicate, targetPath, confidence} objects, "+
			"or any text containing such an array. Read the relation format contract first "+
			"via the notegraph://relation-format resource."),
		mcp.WithString("proposals", mcp.Required(), mcp.Description("Relation proposals as JSON or JSON-bearing text")),
	), s.submitRelationProposals)

	s.mcp.AddTool(mcp.NewTool("list_relation_proposals",
		mcp.WithDescription("List the relation proposals buffered in this session."),
	), s.listRelationProposals)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the specified note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the note to find backlinks for")),
	), s.getBacklinks)

	// Resource: relation format contract.
	s.mcp.AddResource(
		mcp.NewResource("notegraph://relation-format", "Relation Format Contract",
			mcp.WithResourceDescription("Canonical relation proposal format and the list of valid predicates."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRelationFormatResource,
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

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(note.Content), nil
}

func (s *Server) resolveEntities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resolved, err := s.graph.ResolveEntities(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(resolved) == 0 {
		return mcp.NewToolResultText("no entities resolved"), nil
	}
	out, _ := json.MarshalIndent(resolved, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) expandEntities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resolved, err := s.graph.ResolveEntities(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(resolved) == 0 {
		return mcp.NewToolResultText("no entities resolved"), nil
	}

	cfg := s.settings.Get()
	maxHops := intArg(req, "max_hops", cfg.GraphMaxHops)
	maxDocs := intArg(req, "max_docs", cfg.GraphMaxDocs)

	hits := s.graph.ExpandFromResolvedEntities(resolved, maxHops, maxDocs)
	out, _ := json.MarshalIndent(map[string]any{
		"entities": resolved,
		"hits":     hits,
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) submitRelationProposals(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	payload, err := req.RequireString("proposals")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	accepted := s.props.IngestFromToolOutput("submit_relation_proposals", payload)
	return mcp.NewToolResultText(fmt.Sprintf("accepted %d proposals (%d buffered)", accepted, s.props.Len())), nil
}

func (s *Server) listRelationProposals(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all := s.props.All()
	if len(all) == 0 {
		return mcp.NewToolResultText("no proposals buffered"), nil
	}
	out, _ := json.MarshalIndent(all, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.svc.Backlinks(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}

func (s *Server) readRelationFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "notegraph://relation-format",
			MIMEType: "text/markdown",
			Text:     RelationFormatContract(),
		},
	}, nil
}

func intArg(req mcp.CallToolRequest, name string, def int) int {
	args := req.GetArguments()
	if v, ok := args[name]; ok {
		if f, ok := v.(float64); ok && f > 0 {
			return int(f)
		}
	}
	return def
}
