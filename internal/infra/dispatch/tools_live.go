package dispatch

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"

	"docmcp/internal/domain"
)

type createLiveParams struct {
	DocType string `json:"doc_type,omitempty"`
}

type handleOnlyParams struct {
	Handle string `json:"handle"`
}

type insertTextLiveParams struct {
	Handle string `json:"handle"`
	Text   string `json:"text"`
	Mode   string `json:"mode,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

type formatSelectionParams struct {
	Handle    string   `json:"handle"`
	Bold      *bool    `json:"bold,omitempty"`
	Italic    *bool    `json:"italic,omitempty"`
	Underline *bool    `json:"underline,omitempty"`
	FontName  *string  `json:"font_name,omitempty"`
	FontSize  *float64 `json:"font_size,omitempty"`
}

type saveLiveParams struct {
	Handle string `json:"handle"`
	Path   string `json:"path"`
}

type exportLiveParams struct {
	Handle string `json:"handle"`
	Path   string `json:"path"`
	Format string `json:"format"`
}

type handlePayload struct {
	Handle domain.DocumentHandle `json:"handle"`
}

func (d *Dispatcher) liveTools() []toolSpec {
	return []toolSpec{
		{
			name:        "create_document_live",
			description: "Open a new empty document in the running engine instance and return its handle.",
			schema: objectSchema(nil, map[string]*jsonschema.Schema{
				"doc_type": stringProp("Document kind: writer, calc, impress or draw. Default writer."),
			}),
			handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
				var p createLiveParams
				if err := decode(raw, &p); err != nil {
					return nil, err
				}
				kind := domain.KindWriter
				if p.DocType != "" {
					parsed, ok := domain.ParseDocKind(p.DocType)
					if !ok {
						return nil, domain.E(domain.CodeValidation, "dispatch.create_document_live",
							"unknown doc_type "+p.DocType, nil)
					}
					kind = parsed
				}
				handle, err := d.bridge.CreateDocument(ctx, kind)
				if err != nil {
					return nil, err
				}
				return handlePayload{Handle: handle}, nil
			},
		},
		{
			name:        "get_active_document",
			description: "Return the handle of the document currently focused in the engine.",
			schema:      objectSchema(nil, map[string]*jsonschema.Schema{}),
			handler: func(ctx context.Context, _ json.RawMessage) (any, error) {
				handle, err := d.bridge.ActiveDocument(ctx)
				if err != nil {
					return nil, err
				}
				return handlePayload{Handle: handle}, nil
			},
		},
		{
			name:        "insert_text_live",
			description: "Insert text into an open document at the start, end, a character offset, or replacing the body.",
			schema: objectSchema(
				[]string{"handle", "text"},
				map[string]*jsonschema.Schema{
					"handle": stringProp("Document handle from a live tool."),
					"text":   stringProp("Text to insert."),
					"mode":   stringProp("Insert position: start, end, replace or at_offset. Default end."),
					"offset": intProp("Character offset for at_offset mode; clamped to document bounds."),
				},
			),
			handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
				var p insertTextLiveParams
				if err := decode(raw, &p); err != nil {
					return nil, err
				}
				mode := domain.InsertEnd
				if p.Mode != "" {
					switch domain.InsertMode(p.Mode) {
					case domain.InsertStart, domain.InsertEnd, domain.InsertReplace, domain.InsertAtOffset:
						mode = domain.InsertMode(p.Mode)
					default:
						return nil, domain.E(domain.CodeValidation, "dispatch.insert_text_live",
							"unknown insert mode "+p.Mode, nil)
					}
				}
				pos := domain.InsertPosition{Mode: mode, Offset: p.Offset}
				if err := d.bridge.InsertText(ctx, domain.DocumentHandle(p.Handle), p.Text, pos); err != nil {
					return nil, err
				}
				return handlePayload{Handle: domain.DocumentHandle(p.Handle)}, nil
			},
		},
		{
			name:        "read_text_live",
			description: "Read the full text of an open document.",
			schema: objectSchema(
				[]string{"handle"},
				map[string]*jsonschema.Schema{
					"handle": stringProp("Document handle from a live tool."),
				},
			),
			handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
				var p handleOnlyParams
				if err := decode(raw, &p); err != nil {
					return nil, err
				}
				return d.bridge.ReadText(ctx, domain.DocumentHandle(p.Handle))
			},
		},
		{
			name:        "format_selection_live",
			description: "Apply character formatting to the current selection of an open document.",
			schema: objectSchema(
				[]string{"handle"},
				map[string]*jsonschema.Schema{
					"handle":    stringProp("Document handle from a live tool."),
					"bold":      boolProp("Set or clear bold."),
					"italic":    boolProp("Set or clear italic."),
					"underline": boolProp("Set or clear underline."),
					"font_name": stringProp("Font family to apply."),
					"font_size": numberProp("Font size in points."),
				},
			),
			handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
				var p formatSelectionParams
				if err := decode(raw, &p); err != nil {
					return nil, err
				}
				formatting := domain.TextFormatting{
					Bold:      p.Bold,
					Italic:    p.Italic,
					Underline: p.Underline,
					FontName:  p.FontName,
					FontSize:  p.FontSize,
				}
				handle := domain.DocumentHandle(p.Handle)
				if err := d.bridge.FormatSelection(ctx, handle, formatting); err != nil {
					return nil, err
				}
				return handlePayload{Handle: handle}, nil
			},
		},
		{
			name:        "save_document_live",
			description: "Save an open document to a path in its native format.",
			schema: objectSchema(
				[]string{"handle", "path"},
				map[string]*jsonschema.Schema{
					"handle": stringProp("Document handle from a live tool."),
					"path":   stringProp("Path the document is saved to."),
				},
			),
			handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
				var p saveLiveParams
				if err := decode(raw, &p); err != nil {
					return nil, err
				}
				handle := domain.DocumentHandle(p.Handle)
				if err := d.bridge.SaveAs(ctx, handle, p.Path); err != nil {
					return nil, err
				}
				return handlePayload{Handle: handle}, nil
			},
		},
		{
			name:        "export_document_live",
			description: "Export an open document to another format, such as pdf.",
			schema: objectSchema(
				[]string{"handle", "path", "format"},
				map[string]*jsonschema.Schema{
					"handle": stringProp("Document handle from a live tool."),
					"path":   stringProp("Path the exported file is written to."),
					"format": stringProp("Logical export format name, e.g. pdf or docx."),
				},
			),
			handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
				var p exportLiveParams
				if err := decode(raw, &p); err != nil {
					return nil, err
				}
				handle := domain.DocumentHandle(p.Handle)
				if err := d.bridge.ExportDocument(ctx, d.formats, handle, p.Path, p.Format); err != nil {
					return nil, err
				}
				return handlePayload{Handle: handle}, nil
			},
		},
		{
			name:        "list_open_documents",
			description: "List the documents currently open in the engine.",
			schema:      objectSchema(nil, map[string]*jsonschema.Schema{}),
			handler: func(ctx context.Context, _ json.RawMessage) (any, error) {
				return d.bridge.ListOpenDocuments(ctx)
			},
		},
	}
}
