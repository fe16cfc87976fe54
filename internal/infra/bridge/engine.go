package bridge

import "context"

// Engine operation names understood by the automation extension.
const (
	opCreateDocument    = "create_document"
	opGetActiveDocument = "get_active_document"
	opInsertText        = "insert_text"
	opGetText           = "get_text"
	opFormatText        = "format_text"
	opSaveDocument      = "save_document"
	opExportDocument    = "export_document"
	opListDocuments     = "list_documents"
)

// EngineConn is the single connection to the persistent engine
// instance. Implementations are not required to be safe for concurrent
// use: the bridge worker is the only caller.
type EngineConn interface {
	// Call invokes one automation operation, decoding the engine's
	// result payload into result when it is non-nil.
	Call(ctx context.Context, op string, params any, result any) error
	Close() error
}

type createDocumentParams struct {
	DocType string `json:"doc_type"`
}

type createDocumentResult struct {
	Handle  string `json:"handle"`
	DocType string `json:"doc_type"`
}

type handleParams struct {
	Handle string `json:"handle"`
}

type insertTextParams struct {
	Handle string `json:"handle"`
	Text   string `json:"text"`
	Mode   string `json:"mode"`
	Offset int    `json:"offset"`
}

type textResult struct {
	Content string `json:"content"`
}

type formatTextParams struct {
	Handle    string   `json:"handle"`
	Bold      *bool    `json:"bold,omitempty"`
	Italic    *bool    `json:"italic,omitempty"`
	Underline *bool    `json:"underline,omitempty"`
	FontName  *string  `json:"font_name,omitempty"`
	FontSize  *float64 `json:"font_size,omitempty"`
}

type saveDocumentParams struct {
	Handle   string `json:"handle"`
	FilePath string `json:"file_path,omitempty"`
}

type exportDocumentParams struct {
	Handle   string `json:"handle"`
	FilePath string `json:"file_path"`
	Format   string `json:"format"`
	FilterID string `json:"filter_id"`
}

type listDocumentsResult struct {
	Documents []listedDocument `json:"documents"`
}

type listedDocument struct {
	Handle  string `json:"handle"`
	DocType string `json:"doc_type"`
}
