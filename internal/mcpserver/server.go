// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the interview store for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/jobpilot/internal/apperr"
	"github.com/starford/jobpilot/internal/interviewservice"
	"github.com/starford/jobpilot/internal/store"
)

// Server wraps the MCP server with the interview tools.
type Server struct {
	mcp *server.MCPServer
	svc *interviewservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *interviewservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"JobPilot",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_interviews",
		mcp.WithDescription("List every recorded interview with its metadata."),
		mcp.WithString("company", mcp.Description("Only interviews at this company")),
		mcp.WithString("status", mcp.Description("Only interviews in this status (pending, completed, reviewed)")),
	), s.listInterviews)

	s.mcp.AddTool(mcp.NewTool("get_interview",
		mcp.WithDescription("Get one interview with its transcript and the sizes of its recordings."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Interview id")),
	), s.getInterview)

	s.mcp.AddTool(mcp.NewTool("create_interview",
		mcp.WithDescription("Create an interview record. Read "+SchemaURI+" for the field list."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Interview title")),
		mcp.WithString("company", mcp.Description("Company name")),
		mcp.WithString("position", mcp.Description("Position applied for")),
		mcp.WithString("description", mcp.Description("Free-form notes")),
		mcp.WithString("status", mcp.Description("pending, completed (default) or reviewed")),
	), s.createInterview)

	s.mcp.AddTool(mcp.NewTool("get_transcript",
		mcp.WithDescription("Read the transcript of an interview."),
		mcp.WithString("interview_id", mcp.Required(), mcp.Description("Interview id")),
	), s.getTranscript)

	s.mcp.AddTool(mcp.NewTool("update_transcript",
		mcp.WithDescription("Replace the transcript of an interview, creating it if missing."),
		mcp.WithString("interview_id", mcp.Required(), mcp.Description("Interview id")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Full transcript text")),
	), s.updateTranscript)

	s.mcp.AddTool(mcp.NewTool("delete_interview",
		mcp.WithDescription("Delete an interview together with its recordings and transcripts."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Interview id")),
	), s.deleteInterview)

	s.mcp.AddResource(
		mcp.NewResource(SchemaURI, "Interview record format",
			mcp.WithResourceDescription("Fields of interviews, transcripts and videos."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSchema,
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func storeError(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError("not found")
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) listInterviews(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	company := req.GetString("company", "")
	status := req.GetString("status", "")

	items, err := s.svc.List(ctx)
	if err != nil {
		return storeError(err), nil
	}
	out := make([]store.Interview, 0, len(items))
	for _, it := range items {
		if company != "" && it.Company != company {
			continue
		}
		if status != "" && string(it.Status) != status {
			continue
		}
		out = append(out, it)
	}
	return jsonResult(out)
}

func (s *Server) getInterview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.Detail(ctx, id)
	if err != nil {
		return storeError(err), nil
	}
	return jsonResult(d)
}

func (s *Server) createInterview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.svc.Create(ctx, store.Interview{
		Title:       title,
		Company:     req.GetString("company", ""),
		Position:    req.GetString("position", ""),
		Description: req.GetString("description", ""),
		Status:      store.Status(req.GetString("status", "")),
	})
	if err != nil {
		return storeError(err), nil
	}
	return jsonResult(rec)
}

func (s *Server) getTranscript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("interview_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t, err := s.svc.Transcript(ctx, id)
	if err != nil {
		return storeError(err), nil
	}
	return mcp.NewToolResultText(t.Content), nil
}

func (s *Server) updateTranscript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("interview_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	trID, err := s.svc.SetTranscript(ctx, id, content)
	if err != nil {
		return storeError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s", trID)), nil
}

func (s *Server) deleteInterview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Delete(ctx, id); err != nil {
		return storeError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) readSchema(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      SchemaURI,
			MIMEType: "text/markdown",
			Text:     InterviewSchema,
		},
	}, nil
}
