// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Fehu form tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/fehu/internal/apperr"
	"github.com/starford/fehu/internal/formservice"
	"github.com/starford/fehu/internal/tabular"
)

// Server wraps the MCP server with Fehu tools.
type Server struct {
	mcp *server.MCPServer
	svc *formservice.Service
}

// New creates a new MCP server with all Fehu tools registered.
func New(svc *formservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Fehu",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_forms",
		mcp.WithDescription("List all registered forms with their field schemas."),
	), s.listForms)

	s.mcp.AddTool(mcp.NewTool("get_form",
		mcp.WithDescription("Get one form definition: title, ordered fields, and inferred field types."),
		mcp.WithString("form_id", mcp.Required(), mcp.Description("Form identifier")),
	), s.getForm)

	s.mcp.AddTool(mcp.NewTool("create_form",
		mcp.WithDescription("Register a new form from CSV content. The first row is the header "+
			"and defines the form's fields; field types are inferred from sample rows. "+
			"Read the fehu://record-format resource or call get_record_contract first."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Human-readable form title")),
		mcp.WithString("csv", mcp.Required(), mcp.Description("CSV content with a header row")),
	), s.createForm)

	s.mcp.AddTool(mcp.NewTool("submit_record",
		mcp.WithDescription("Append one record to a form. Values is a JSON object mapping "+
			"field names to string values; missing fields are stored empty, unknown fields are dropped."),
		mcp.WithString("form_id", mcp.Required(), mcp.Description("Form identifier")),
		mcp.WithString("values", mcp.Required(), mcp.Description(`JSON object, e.g. {"Name":"Ann","Email":"a@x.com"}`)),
	), s.submitRecord)

	s.mcp.AddTool(mcp.NewTool("list_responses",
		mcp.WithDescription("List all submitted records for a form in submission order."),
		mcp.WithString("form_id", mcp.Required(), mcp.Description("Form identifier")),
	), s.listResponses)

	s.mcp.AddTool(mcp.NewTool("export_responses",
		mcp.WithDescription("Export a form's records as CSV: record_id, the form's fields in order, submitted_at."),
		mcp.WithString("form_id", mcp.Required(), mcp.Description("Form identifier")),
	), s.exportResponses)

	s.mcp.AddTool(mcp.NewTool("get_record_contract",
		mcp.WithDescription("Returns the canonical Fehu record format contract. "+
			"Call this before creating forms or submitting records."),
	), s.getRecordContract)

	// Resource: record format contract.
	s.mcp.AddResource(
		mcp.NewResource("fehu://record-format", "Record Format Contract",
			mcp.WithResourceDescription("Canonical form and record format that all submissions must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRecordFormatResource,
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

func (s *Server) listForms(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	forms, err := s.svc.ListForms(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(forms, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getForm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("form_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	def, err := s.svc.GetForm(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("form not found: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(def, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createForm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("csv")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	filename := strings.ToLower(strings.ReplaceAll(title, " ", "-")) + ".csv"
	def, err := s.svc.CreateFormFromUpload(ctx, title, filename, []byte(content), tabular.FormatCSV)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(def, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) submitRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("form_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("values")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var values map[string]string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("values must be a JSON object of strings: %v", err)), nil
	}

	rec, err := s.svc.Submit(ctx, id, values)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("form not found: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(rec, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listResponses(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("form_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	recs, err := s.svc.ListResponses(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("form not found: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(recs) == 0 {
		return mcp.NewToolResultText("no responses yet"), nil
	}
	out, _ := json.MarshalIndent(recs, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) exportResponses(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("form_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.svc.Export(ctx, id, tabular.FormatCSV)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("form not found: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) getRecordContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RecordFormatContract), nil
}

func (s *Server) readRecordFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "fehu://record-format",
			MIMEType: "text/markdown",
			Text:     RecordFormatContract,
		},
	}, nil
}
