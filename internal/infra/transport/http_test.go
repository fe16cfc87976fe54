package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"docmcp/internal/domain"
	"docmcp/internal/infra/bridge"
	"docmcp/internal/infra/convert"
	"docmcp/internal/infra/dispatch"
	"docmcp/internal/infra/format"
)

// stubConn backs the bridge with just enough engine behavior for the
// transport tests.
type stubConn struct {
	mu          sync.Mutex
	docs        map[string]string
	unreachable bool
	nextID      int
}

func (c *stubConn) Call(_ context.Context, op string, params any, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unreachable {
		return domain.ErrEngineUnreachable
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	var p struct {
		Handle string `json:"handle"`
		Text   string `json:"text"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}

	switch op {
	case "create_document":
		c.nextID++
		handle := fmt.Sprintf("doc-%d", c.nextID)
		c.docs[handle] = ""
		return reply(result, map[string]string{"handle": handle, "doc_type": "writer"})
	case "insert_text":
		text, ok := c.docs[p.Handle]
		if !ok {
			return domain.ErrStaleHandle
		}
		c.docs[p.Handle] = text + p.Text
		return nil
	case "get_text":
		text, ok := c.docs[p.Handle]
		if !ok {
			return domain.ErrStaleHandle
		}
		return reply(result, map[string]string{"content": text})
	case "list_documents":
		docs := make([]map[string]string, 0, len(c.docs))
		for handle := range c.docs {
			docs = append(docs, map[string]string{"handle": handle, "doc_type": "writer"})
		}
		return reply(result, map[string]any{"documents": docs})
	default:
		return fmt.Errorf("stub conn: unexpected op %q", op)
	}
}

func (c *stubConn) Close() error { return nil }

func reply(result any, value any) error {
	if result == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, result)
}

const stubEngineScript = `#!/bin/sh
outdir=""
fmt=""
src=""
while [ $# -gt 0 ]; do
  case "$1" in
    --convert-to) fmt="$2"; shift 2 ;;
    --outdir) outdir="$2"; shift 2 ;;
    --headless|-env:*) shift ;;
    *) src="$1"; shift ;;
  esac
done
ext="${fmt%%:*}"
stem=$(basename "$src")
stem="${stem%.*}"
cat "$src" > "$outdir/$stem.$ext"
`

func newTestAPI(t *testing.T) (*API, *stubConn) {
	t.Helper()

	script := filepath.Join(t.TempDir(), "soffice")
	require.NoError(t, os.WriteFile(script, []byte(stubEngineScript), 0o755))

	conn := &stubConn{docs: map[string]string{}}
	formats := format.NewRegistry()
	converter := convert.NewManager(formats, convert.ManagerOptions{Executable: script})
	br := bridge.New(conn, bridge.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = br.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	dispatcher, err := dispatch.NewDispatcher(br, converter, formats, dispatch.Options{})
	require.NoError(t, err)
	return NewAPI(dispatcher, nil), conn
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAPI_ListTools(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := doJSON(t, api.Routes(nil), http.MethodGet, "/tools", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Tools []domain.ToolDefinition `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.NotEmpty(t, payload.Tools)

	names := make(map[string]bool)
	for _, def := range payload.Tools {
		names[def.Name] = true
	}
	require.True(t, names["convert_document"])
	require.True(t, names["insert_text_live"])
}

func TestAPI_CallTool(t *testing.T) {
	api, _ := newTestAPI(t)
	routes := api.Routes(nil)

	dir := t.TempDir()
	path := filepath.Join(dir, "memo.txt")
	require.NoError(t, os.WriteFile(path, []byte("short memo"), 0o644))

	rec := doJSON(t, routes, http.MethodPost, "/tools/read_document_text",
		fmt.Sprintf(`{"path": %q}`, path))
	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.ToolCallResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.True(t, result.Success)
	payload := result.Payload.(map[string]any)
	require.Equal(t, "short memo", payload["content"])
	require.Equal(t, float64(2), payload["wordCount"])
}

func TestAPI_CallTool_StatusCodes(t *testing.T) {
	api, conn := newTestAPI(t)
	routes := api.Routes(nil)

	rec := doJSON(t, routes, http.MethodPost, "/tools/no_such_tool", `{}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, routes, http.MethodPost, "/tools/read_document_text", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var result domain.ToolCallResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, domain.CodeValidation, result.Error.Code)

	conn.mu.Lock()
	conn.unreachable = true
	conn.mu.Unlock()
	rec = doJSON(t, routes, http.MethodPost, "/tools/list_open_documents", `{}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAPI_Execute(t *testing.T) {
	api, _ := newTestAPI(t)
	routes := api.Routes(nil)

	rec := doJSON(t, routes, http.MethodPost, "/execute",
		`{"name": "create_document_live", "parameters": {"doc_type": "writer"}, "requestId": "r-42"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.ToolCallResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.True(t, result.Success)
	require.Equal(t, "r-42", result.RequestID)

	rec = doJSON(t, routes, http.MethodPost, "/execute", `{"parameters": {}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, routes, http.MethodPost, "/execute", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Health(t *testing.T) {
	api, conn := newTestAPI(t)
	routes := api.Routes(nil)

	rec := doJSON(t, routes, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status domain.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.True(t, status.EngineReachable)

	conn.mu.Lock()
	conn.unreachable = true
	conn.mu.Unlock()

	rec = doJSON(t, routes, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMCPServer_Construction(t *testing.T) {
	api, _ := newTestAPI(t)

	server, err := NewMCPServer(api.dispatcher, MCPOptions{Version: "test"})
	require.NoError(t, err)
	require.NotNil(t, server.Handler())
}

func TestToCallToolResult(t *testing.T) {
	out, err := toCallToolResult(domain.ToolCallResult{
		Success: true,
		Payload: map[string]string{"handle": "doc-1"},
	})
	require.NoError(t, err)
	require.False(t, out.IsError)
	require.NotNil(t, out.StructuredContent)
	text := out.Content[0].(*mcp.TextContent)
	require.Contains(t, text.Text, "doc-1")

	out, err = toCallToolResult(domain.ToolCallResult{
		Success: false,
		Error:   &domain.ErrorDescriptor{Code: domain.CodeStaleHandle, Message: "handle doc-9 is gone"},
	})
	require.NoError(t, err)
	require.True(t, out.IsError)
	text = out.Content[0].(*mcp.TextContent)
	require.Contains(t, text.Text, "STALE_HANDLE")
	require.Contains(t, text.Text, "doc-9")
}
