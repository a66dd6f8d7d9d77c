package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/jobpilot/internal/interviewservice"
	"github.com/starford/jobpilot/internal/store"
)

func testServer(t *testing.T) (*Server, *interviewservice.Service) {
	t.Helper()
	s, err := store.Open(context.Background(), store.Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	svc := interviewservice.New(s)
	return New(svc, "test"), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no call-tool test helper, so dispatch to the handlers directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_interviews":
		result, err = srv.listInterviews(ctx, req)
	case "get_interview":
		result, err = srv.getInterview(ctx, req)
	case "create_interview":
		result, err = srv.createInterview(ctx, req)
	case "get_transcript":
		result, err = srv.getTranscript(ctx, req)
	case "update_transcript":
		result, err = srv.updateTranscript(ctx, req)
	case "delete_interview":
		result, err = srv.deleteInterview(ctx, req)
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

func seed(t *testing.T, svc *interviewservice.Service, title, company string, status store.Status) string {
	t.Helper()
	rec, err := svc.Create(context.Background(), store.Interview{Title: title, Company: company, Status: status})
	if err != nil {
		t.Fatal(err)
	}
	return rec.ID
}

func TestListInterviews(t *testing.T) {
	srv, svc := testServer(t)
	seed(t, svc, "a", "Acme", store.StatusCompleted)
	seed(t, svc, "b", "Globex", store.StatusReviewed)

	var all []store.Interview
	if err := json.Unmarshal([]byte(resultText(callTool(t, srv, "list_interviews", map[string]interface{}{}))), &all); err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("len = %d, want 2", len(all))
	}

	var acme []store.Interview
	_ = json.Unmarshal([]byte(resultText(callTool(t, srv, "list_interviews", map[string]interface{}{"company": "Acme"}))), &acme)
	if len(acme) != 1 || acme[0].Title != "a" {
		t.Errorf("company filter = %+v", acme)
	}

	var reviewed []store.Interview
	_ = json.Unmarshal([]byte(resultText(callTool(t, srv, "list_interviews", map[string]interface{}{"status": "reviewed"}))), &reviewed)
	if len(reviewed) != 1 || reviewed[0].Title != "b" {
		t.Errorf("status filter = %+v", reviewed)
	}
}

func TestListInterviewsEmpty(t *testing.T) {
	srv, _ := testServer(t)
	if got := resultText(callTool(t, srv, "list_interviews", map[string]interface{}{})); got != "[]" {
		t.Errorf("empty list = %q, want []", got)
	}
}

func TestCreateAndGetInterview(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_interview", map[string]interface{}{"title": "System design", "company": "Acme"})
	if r.IsError {
		t.Fatalf("create failed: %s", resultText(r))
	}
	var created store.Interview
	_ = json.Unmarshal([]byte(resultText(r)), &created)

	r = callTool(t, srv, "get_interview", map[string]interface{}{"id": created.ID})
	var d interviewservice.Detail
	_ = json.Unmarshal([]byte(resultText(r)), &d)
	if d.Title != "System design" || d.Company != "Acme" {
		t.Errorf("detail = %+v", d)
	}

	r = callTool(t, srv, "create_interview", map[string]interface{}{"title": "x", "status": "archived"})
	if !r.IsError {
		t.Error("expected error for invalid status")
	}
}

func TestTranscriptTools(t *testing.T) {
	srv, svc := testServer(t)
	id := seed(t, svc, "talk", "Acme", "")

	r := callTool(t, srv, "get_transcript", map[string]interface{}{"interview_id": id})
	if !r.IsError || resultText(r) != "not found" {
		t.Errorf("missing transcript = %q, error = %v", resultText(r), r.IsError)
	}

	r = callTool(t, srv, "update_transcript", map[string]interface{}{"interview_id": id, "content": "Q: hi"})
	if r.IsError {
		t.Fatalf("update failed: %s", resultText(r))
	}
	r = callTool(t, srv, "get_transcript", map[string]interface{}{"interview_id": id})
	if got := resultText(r); got != "Q: hi" {
		t.Errorf("transcript = %q", got)
	}

	r = callTool(t, srv, "update_transcript", map[string]interface{}{"interview_id": "ghost", "content": "x"})
	if !r.IsError {
		t.Error("expected error for missing interview")
	}
}

func TestDeleteInterview(t *testing.T) {
	srv, svc := testServer(t)
	id := seed(t, svc, "bye", "Acme", "")

	r := callTool(t, srv, "delete_interview", map[string]interface{}{"id": id})
	if got := resultText(r); got != "deleted: "+id {
		t.Errorf("delete result = %q", got)
	}
	r = callTool(t, srv, "get_interview", map[string]interface{}{"id": id})
	if !r.IsError {
		t.Error("expected error after delete")
	}
}

func TestMissingArguments(t *testing.T) {
	srv, _ := testServer(t)
	for _, tool := range []string{"get_interview", "get_transcript", "update_transcript", "delete_interview", "create_interview"} {
		if r := callTool(t, srv, tool, map[string]interface{}{}); !r.IsError {
			t.Errorf("%s: expected error without arguments", tool)
		}
	}
}

func TestReadSchema(t *testing.T) {
	srv, _ := testServer(t)
	contents, err := srv.readSchema(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != SchemaURI || tc.Text != InterviewSchema {
		t.Errorf("resource = %+v", contents[0])
	}
}
