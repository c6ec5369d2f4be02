package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/fehu/internal/formservice"
	"github.com/starford/fehu/internal/models"
	"github.com/starford/fehu/internal/testutil"
)

func testServer(t *testing.T) (*Server, *formservice.Service) {
	t.Helper()
	db := testutil.TestDB(t)
	_, uploads := testutil.TestUploads(t)
	svc := formservice.NewService(db, uploads, nil)
	return New(svc), svc
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
	case "list_forms":
		result, err = srv.listForms(ctx, req)
	case "get_form":
		result, err = srv.getForm(ctx, req)
	case "create_form":
		result, err = srv.createForm(ctx, req)
	case "submit_record":
		result, err = srv.submitRecord(ctx, req)
	case "list_responses":
		result, err = srv.listResponses(ctx, req)
	case "export_responses":
		result, err = srv.exportResponses(ctx, req)
	case "get_record_contract":
		result, err = srv.getRecordContract(ctx, req)
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

func TestCreateAndGetForm(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_form", map[string]interface{}{
		"title": "Onboarding",
		"csv":   "Name,Email\nAnn,a@x.com\n",
	})
	if r.IsError {
		t.Fatalf("create_form error: %s", resultText(r))
	}
	var def models.FormDefinition
	if err := json.Unmarshal([]byte(resultText(r)), &def); err != nil {
		t.Fatal(err)
	}
	if def.Title != "Onboarding" || len(def.Fields) != 2 {
		t.Fatalf("def = %+v", def)
	}

	r = callTool(t, srv, "get_form", map[string]interface{}{"form_id": def.ID})
	if r.IsError {
		t.Fatalf("get_form error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), def.ID) {
		t.Errorf("get_form result missing id: %s", resultText(r))
	}
}

func TestCreateForm_BadHeader(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "create_form", map[string]interface{}{
		"title": "Broken",
		"csv":   "Name,name\n",
	})
	if !r.IsError {
		t.Error("expected error for duplicate header")
	}
}

func TestSubmitAndListResponses(t *testing.T) {
	srv, svc := testServer(t)
	def, err := svc.CreateForm(context.Background(), "Signups",
		[]models.FormField{{Name: "Name", Type: models.FieldString}})
	if err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "submit_record", map[string]interface{}{
		"form_id": def.ID,
		"values":  `{"Name":"Ann"}`,
	})
	if r.IsError {
		t.Fatalf("submit_record error: %s", resultText(r))
	}
	var rec models.SubmissionRecord
	if err := json.Unmarshal([]byte(resultText(r)), &rec); err != nil {
		t.Fatal(err)
	}
	if rec.RecordID != 1 || rec.Values["Name"] != "Ann" {
		t.Errorf("rec = %+v", rec)
	}

	r = callTool(t, srv, "list_responses", map[string]interface{}{"form_id": def.ID})
	if r.IsError || !strings.Contains(resultText(r), "Ann") {
		t.Errorf("list_responses = %s", resultText(r))
	}
}

func TestSubmitRecord_InvalidValues(t *testing.T) {
	srv, svc := testServer(t)
	def, _ := svc.CreateForm(context.Background(), "F",
		[]models.FormField{{Name: "A", Type: models.FieldString}})

	r := callTool(t, srv, "submit_record", map[string]interface{}{
		"form_id": def.ID,
		"values":  "not json",
	})
	if !r.IsError {
		t.Error("expected error for malformed values")
	}
}

func TestSubmitRecord_UnknownForm(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "submit_record", map[string]interface{}{
		"form_id": "never-created",
		"values":  `{"A":"1"}`,
	})
	if !r.IsError {
		t.Error("expected error for unknown form")
	}
}

func TestExportResponses(t *testing.T) {
	srv, svc := testServer(t)
	def, _ := svc.CreateForm(context.Background(), "F",
		[]models.FormField{{Name: "A", Type: models.FieldString}})
	if _, err := svc.Submit(context.Background(), def.ID, map[string]string{"A": "x"}); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "export_responses", map[string]interface{}{"form_id": def.ID})
	out := resultText(r)
	if !strings.HasPrefix(out, "record_id,A,submitted_at") {
		t.Errorf("export = %q", out)
	}
}

func TestGetRecordContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_record_contract", map[string]interface{}{})
	if !strings.Contains(resultText(r), "record_id") {
		t.Error("contract should mention record_id")
	}
}
