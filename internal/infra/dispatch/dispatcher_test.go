package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"docmcp/internal/domain"
	"docmcp/internal/infra/bridge"
	"docmcp/internal/infra/convert"
	"docmcp/internal/infra/format"
)

// fakeConn emulates the automation extension behind the bridge. It
// decodes whatever wire struct the bridge hands it through a JSON
// round trip, so it stays decoupled from the bridge's internals.
type fakeConn struct {
	mu          sync.Mutex
	docs        map[string]string
	kinds       map[string]string
	active      string
	unreachable bool
	nextID      int
}

func newFakeConn() *fakeConn {
	return &fakeConn{docs: map[string]string{}, kinds: map[string]string{}}
}

type fakeParams struct {
	Handle  string `json:"handle"`
	DocType string `json:"doc_type"`
	Text    string `json:"text"`
	Mode    string `json:"mode"`
	Offset  int    `json:"offset"`
}

func (f *fakeConn) Call(_ context.Context, op string, params any, result any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.unreachable {
		return domain.ErrEngineUnreachable
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	var p fakeParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}

	switch op {
	case "create_document":
		f.nextID++
		handle := fmt.Sprintf("doc-%d", f.nextID)
		f.docs[handle] = ""
		f.kinds[handle] = p.DocType
		f.active = handle
		return writeResult(result, map[string]string{"handle": handle, "doc_type": p.DocType})
	case "get_active_document":
		if f.active == "" {
			return domain.ErrNoActiveDocument
		}
		return writeResult(result, map[string]string{"handle": f.active, "doc_type": f.kinds[f.active]})
	case "insert_text":
		text, ok := f.docs[p.Handle]
		if !ok {
			return domain.ErrStaleHandle
		}
		switch p.Mode {
		case "start":
			f.docs[p.Handle] = p.Text + text
		case "replace":
			f.docs[p.Handle] = p.Text
		case "at_offset":
			runes := []rune(text)
			f.docs[p.Handle] = string(runes[:p.Offset]) + p.Text + string(runes[p.Offset:])
		default:
			f.docs[p.Handle] = text + p.Text
		}
		return nil
	case "get_text":
		text, ok := f.docs[p.Handle]
		if !ok {
			return domain.ErrStaleHandle
		}
		return writeResult(result, map[string]string{"content": text})
	case "format_text", "save_document", "export_document":
		if _, ok := f.docs[p.Handle]; !ok {
			return domain.ErrStaleHandle
		}
		return nil
	case "list_documents":
		docs := make([]map[string]string, 0, len(f.docs))
		for handle := range f.docs {
			docs = append(docs, map[string]string{"handle": handle, "doc_type": f.kinds[handle]})
		}
		return writeResult(result, map[string]any{"documents": docs})
	default:
		return fmt.Errorf("fake conn: unknown op %q", op)
	}
}

func (f *fakeConn) Close() error { return nil }

func writeResult(result any, value any) error {
	if result == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, result)
}

const fakeEngineScript = `#!/bin/sh
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

func newTestDispatcher(t *testing.T, conn *fakeConn, opts Options) *Dispatcher {
	t.Helper()

	script := filepath.Join(t.TempDir(), "soffice")
	require.NoError(t, os.WriteFile(script, []byte(fakeEngineScript), 0o755))

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

	d, err := NewDispatcher(br, converter, formats, opts)
	require.NoError(t, err)
	return d
}

func call(t *testing.T, d *Dispatcher, name string, params any) domain.ToolCallResult {
	t.Helper()
	var raw json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		require.NoError(t, err)
		raw = encoded
	}
	return d.Dispatch(context.Background(), domain.ToolCallRequest{Name: name, Parameters: raw, RequestID: "req-1"})
}

func TestListTools_CoversAllOperations(t *testing.T) {
	d := newTestDispatcher(t, newFakeConn(), Options{})

	defs := d.ListTools()
	names := make(map[string]bool, len(defs))
	for _, def := range defs {
		require.NotEmpty(t, def.Description, def.Name)
		require.NotNil(t, def.InputSchema, def.Name)
		names[def.Name] = true
	}

	for _, want := range []string{
		"convert_document", "batch_convert_documents", "read_document_text",
		"get_document_info", "get_document_statistics", "read_spreadsheet_data",
		"search_documents", "merge_text_documents", "create_document", "watch_document",
		"create_document_live", "get_active_document", "insert_text_live", "read_text_live",
		"format_selection_live", "save_document_live", "export_document_live", "list_open_documents",
	} {
		require.True(t, names[want], "missing tool %s", want)
	}
}

func TestDispatch_UnknownTool(t *testing.T) {
	d := newTestDispatcher(t, newFakeConn(), Options{})

	result := call(t, d, "make_coffee", nil)
	require.False(t, result.Success)
	require.NotNil(t, result.Error)
	require.Equal(t, domain.CodeNotFound, result.Error.Code)
	require.Equal(t, "req-1", result.RequestID)
}

func TestDispatch_SchemaValidation(t *testing.T) {
	d := newTestDispatcher(t, newFakeConn(), Options{})

	// required property missing
	result := call(t, d, "convert_document", map[string]any{"source_path": "/tmp/a.odt"})
	require.False(t, result.Success)
	require.Equal(t, domain.CodeValidation, result.Error.Code)

	// wrong type
	result = call(t, d, "read_document_text", map[string]any{"path": 7})
	require.False(t, result.Success)
	require.Equal(t, domain.CodeValidation, result.Error.Code)

	// not JSON at all
	result = d.Dispatch(context.Background(), domain.ToolCallRequest{
		Name:       "read_document_text",
		Parameters: json.RawMessage(`{"path":`),
	})
	require.False(t, result.Success)
	require.Equal(t, domain.CodeValidation, result.Error.Code)
}

func TestDispatch_ConvertDocument(t *testing.T) {
	d := newTestDispatcher(t, newFakeConn(), Options{})
	dir := t.TempDir()
	src := filepath.Join(dir, "report.odt")
	require.NoError(t, os.WriteFile(src, []byte("quarterly numbers"), 0o644))
	target := filepath.Join(dir, "report.pdf")

	result := call(t, d, "convert_document", map[string]any{
		"source_path":   src,
		"target_path":   target,
		"target_format": "pdf",
	})
	require.True(t, result.Success, "error: %+v", result.Error)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "quarterly numbers", string(data))
}

func TestDispatch_ReadDocumentText(t *testing.T) {
	d := newTestDispatcher(t, newFakeConn(), Options{})
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("three short words"), 0o644))

	result := call(t, d, "read_document_text", map[string]any{"path": path})
	require.True(t, result.Success)
	tc, ok := result.Payload.(domain.TextContent)
	require.True(t, ok)
	require.Equal(t, "three short words", tc.Content)
	require.Equal(t, 3, tc.WordCount)
}

func TestDispatch_DocumentInfo(t *testing.T) {
	d := newTestDispatcher(t, newFakeConn(), Options{})
	dir := t.TempDir()
	path := filepath.Join(dir, "letter.odt")
	require.NoError(t, os.WriteFile(path, []byte("body"), 0o644))

	result := call(t, d, "get_document_info", map[string]any{"path": path})
	require.True(t, result.Success)
	info, ok := result.Payload.(domain.DocumentInfo)
	require.True(t, ok)
	require.True(t, info.Exists)
	require.Equal(t, "odt", info.Format)
	require.Equal(t, "letter.odt", info.Filename)
	require.Equal(t, int64(4), info.SizeBytes)

	result = call(t, d, "get_document_info", map[string]any{"path": filepath.Join(dir, "gone.odt")})
	require.True(t, result.Success)
	info = result.Payload.(domain.DocumentInfo)
	require.False(t, info.Exists)
}

func TestDispatch_DocumentStatistics(t *testing.T) {
	d := newTestDispatcher(t, newFakeConn(), Options{})
	dir := t.TempDir()
	path := filepath.Join(dir, "essay.txt")
	require.NoError(t, os.WriteFile(path, []byte("One two three. Four five!\n\nSix seven."), 0o644))

	result := call(t, d, "get_document_statistics", map[string]any{"path": path})
	require.True(t, result.Success)
	stats, ok := result.Payload.(domain.DocumentStatistics)
	require.True(t, ok)
	require.Equal(t, 7, stats.ContentStats.WordCount)
	require.Equal(t, 3, stats.ContentStats.SentenceCount)
	require.Equal(t, 2, stats.ContentStats.ParagraphCount)
	require.True(t, stats.FileInfo.Exists)
}

func TestDispatch_CreateDocument(t *testing.T) {
	d := newTestDispatcher(t, newFakeConn(), Options{})
	dir := t.TempDir()
	path := filepath.Join(dir, "draft.txt")

	result := call(t, d, "create_document", map[string]any{"path": path, "content": "seed text"})
	require.True(t, result.Success, "error: %+v", result.Error)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "seed text", string(data))

	// creating over an existing file must fail
	result = call(t, d, "create_document", map[string]any{"path": path})
	require.False(t, result.Success)
	require.Equal(t, domain.CodeValidation, result.Error.Code)
}

func TestDispatch_CreateDocument_DefaultExtension(t *testing.T) {
	d := newTestDispatcher(t, newFakeConn(), Options{})
	dir := t.TempDir()

	result := call(t, d, "create_document", map[string]any{
		"path":     filepath.Join(dir, "draft"),
		"doc_type": "writer",
		"content":  "hello",
	})
	require.True(t, result.Success, "error: %+v", result.Error)
	info := result.Payload.(domain.DocumentInfo)
	require.Equal(t, "draft.odt", info.Filename)
	require.FileExists(t, filepath.Join(dir, "draft.odt"))
}

func TestDispatch_MergeTextDocuments(t *testing.T) {
	d := newTestDispatcher(t, newFakeConn(), Options{})
	dir := t.TempDir()
	first := filepath.Join(dir, "a.txt")
	second := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(first, []byte("part one\n"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte("part two"), 0o644))
	target := filepath.Join(dir, "merged.txt")

	result := call(t, d, "merge_text_documents", map[string]any{
		"source_paths": []string{first, second},
		"target_path":  target,
	})
	require.True(t, result.Success, "error: %+v", result.Error)
	payload := result.Payload.(mergePayload)
	require.Equal(t, 2, payload.MergedFiles)
	require.Equal(t, 4, payload.WordCount)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "part one\n\npart two", string(data))

	// one source is not enough
	result = call(t, d, "merge_text_documents", map[string]any{
		"source_paths": []string{first},
		"target_path":  target,
	})
	require.False(t, result.Success)
	require.Equal(t, domain.CodeValidation, result.Error.Code)
}

func TestDispatch_SearchDocuments(t *testing.T) {
	d := newTestDispatcher(t, newFakeConn(), Options{})
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hit.txt"),
		[]byte("the migration Plan lives here"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "miss.txt"),
		[]byte("nothing of interest"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skipped.bin"),
		[]byte("plan plan plan"), 0o644))

	result := call(t, d, "search_documents", map[string]any{"query": "plan", "search_path": dir})
	require.True(t, result.Success, "error: %+v", result.Error)
	matches := result.Payload.([]domain.SearchMatch)
	require.Len(t, matches, 1)
	require.Equal(t, "hit.txt", matches[0].Filename)
	require.Contains(t, matches[0].MatchContext, "Plan")

	result = call(t, d, "search_documents", map[string]any{"query": "   ", "search_path": dir})
	require.False(t, result.Success)
	require.Equal(t, domain.CodeValidation, result.Error.Code)
}

func TestDispatch_SearchUsesDiscoveryPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "roadmap.txt"),
		[]byte("ship the gateway"), 0o644))
	d := newTestDispatcher(t, newFakeConn(), Options{Discovery: []string{dir}})

	result := call(t, d, "search_documents", map[string]any{"query": "gateway"})
	require.True(t, result.Success, "error: %+v", result.Error)
	matches := result.Payload.([]domain.SearchMatch)
	require.Len(t, matches, 1)
}

func TestDispatch_LiveRoundTrip(t *testing.T) {
	d := newTestDispatcher(t, newFakeConn(), Options{})

	result := call(t, d, "create_document_live", map[string]any{"doc_type": "writer"})
	require.True(t, result.Success, "error: %+v", result.Error)
	handle := string(result.Payload.(handlePayload).Handle)
	require.NotEmpty(t, handle)

	result = call(t, d, "insert_text_live", map[string]any{"handle": handle, "text": "live body"})
	require.True(t, result.Success, "error: %+v", result.Error)

	result = call(t, d, "read_text_live", map[string]any{"handle": handle})
	require.True(t, result.Success)
	tc := result.Payload.(domain.TextContent)
	require.Equal(t, "live body", tc.Content)

	result = call(t, d, "list_open_documents", nil)
	require.True(t, result.Success)
	entries := result.Payload.([]domain.SessionEntry)
	require.Len(t, entries, 1)
	require.True(t, entries[0].Dirty)
}

func TestDispatch_InsertTextLive_BadMode(t *testing.T) {
	d := newTestDispatcher(t, newFakeConn(), Options{})

	result := call(t, d, "create_document_live", nil)
	require.True(t, result.Success)
	handle := string(result.Payload.(handlePayload).Handle)

	result = call(t, d, "insert_text_live", map[string]any{
		"handle": handle, "text": "x", "mode": "sideways",
	})
	require.False(t, result.Success)
	require.Equal(t, domain.CodeValidation, result.Error.Code)
}

func TestDispatch_LiveErrorTaxonomy(t *testing.T) {
	conn := newFakeConn()
	d := newTestDispatcher(t, conn, Options{})

	result := call(t, d, "get_active_document", nil)
	require.False(t, result.Success)
	require.Equal(t, domain.CodeNoActiveDocument, result.Error.Code)

	result = call(t, d, "insert_text_live", map[string]any{"handle": "doc-404", "text": "x"})
	require.False(t, result.Success)
	require.Equal(t, domain.CodeStaleHandle, result.Error.Code)
}

func TestDispatch_WatchDocument(t *testing.T) {
	d := newTestDispatcher(t, newFakeConn(), Options{})
	dir := t.TempDir()
	path := filepath.Join(dir, "watched.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	go func() {
		time.Sleep(200 * time.Millisecond)
		_ = os.WriteFile(path, []byte("v2"), 0o644)
	}()

	result := call(t, d, "watch_document", map[string]any{"path": path, "duration_seconds": 1})
	require.True(t, result.Success, "error: %+v", result.Error)
	report := result.Payload.(domain.WatchReport)
	require.True(t, report.Changed)
	require.NotEmpty(t, report.Events)

	result = call(t, d, "watch_document", map[string]any{"path": filepath.Join(dir, "gone.txt")})
	require.False(t, result.Success)
	require.Equal(t, domain.CodeValidation, result.Error.Code)
}

func TestHealth(t *testing.T) {
	conn := newFakeConn()
	d := newTestDispatcher(t, conn, Options{})

	status := d.Health(context.Background())
	require.True(t, status.EngineReachable)
	require.Zero(t, status.ActiveDocumentCount)

	call(t, d, "create_document_live", nil)
	status = d.Health(context.Background())
	require.Equal(t, 1, status.ActiveDocumentCount)

	conn.mu.Lock()
	conn.unreachable = true
	conn.mu.Unlock()
	status = d.Health(context.Background())
	require.False(t, status.EngineReachable)
}

func TestDispatch_CallTimeoutApplies(t *testing.T) {
	conn := newFakeConn()
	d := newTestDispatcher(t, conn, Options{CallTimeout: 50 * time.Millisecond})
	dir := t.TempDir()
	path := filepath.Join(dir, "watched.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	// watch_document would run for a second without the dispatcher
	// imposing its own deadline
	result := call(t, d, "watch_document", map[string]any{"path": path, "duration_seconds": 1})
	require.False(t, result.Success)
	require.Equal(t, domain.CodeDeadlineExceeded, result.Error.Code)
}
