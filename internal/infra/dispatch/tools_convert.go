package dispatch

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"docmcp/internal/domain"
)

func objectSchema(required []string, props map[string]*jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

func stringProp(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: desc}
}

func intProp(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Description: desc}
}

func boolProp(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean", Description: desc}
}

func numberProp(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "number", Description: desc}
}

func stringArrayProp(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "array",
		Description: desc,
		Items:       &jsonschema.Schema{Type: "string"},
	}
}

type convertDocumentParams struct {
	SourcePath     string `json:"source_path"`
	TargetPath     string `json:"target_path"`
	TargetFormat   string `json:"target_format"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

type batchConvertParams struct {
	SourceDir    string   `json:"source_dir"`
	TargetDir    string   `json:"target_dir"`
	TargetFormat string   `json:"target_format"`
	Extensions   []string `json:"extensions,omitempty"`
}

type batchConvertPayload struct {
	Results   []domain.ConversionResult `json:"results"`
	Succeeded int                       `json:"succeeded"`
	Failed    int                       `json:"failed"`
}

type pathParams struct {
	Path string `json:"path"`
}

type readSpreadsheetParams struct {
	Path      string `json:"path"`
	SheetName string `json:"sheet_name,omitempty"`
	MaxRows   int    `json:"max_rows,omitempty"`
}

type searchDocumentsParams struct {
	Query      string `json:"query"`
	SearchPath string `json:"search_path,omitempty"`
}

type mergeDocumentsParams struct {
	SourcePaths []string `json:"source_paths"`
	TargetPath  string   `json:"target_path"`
	Separator   string   `json:"separator,omitempty"`
}

type createDocumentParams struct {
	Path    string `json:"path"`
	DocType string `json:"doc_type,omitempty"`
	Content string `json:"content,omitempty"`
}

type watchDocumentParams struct {
	Path            string `json:"path"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

func (d *Dispatcher) converterTools() []toolSpec {
	return []toolSpec{
		{
			name:        "convert_document",
			description: "Convert a document file to another format using the headless engine.",
			schema: objectSchema(
				[]string{"source_path", "target_path", "target_format"},
				map[string]*jsonschema.Schema{
					"source_path":     stringProp("Absolute path of the document to convert."),
					"target_path":     stringProp("Absolute path the converted file is written to."),
					"target_format":   stringProp("Logical target format name, e.g. pdf, docx, odt, txt."),
					"timeout_seconds": intProp("Per-job timeout override in seconds."),
				},
			),
			handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
				var p convertDocumentParams
				if err := decode(raw, &p); err != nil {
					return nil, err
				}
				timeout := time.Duration(p.TimeoutSeconds) * time.Second
				result, err := d.converter.Convert(ctx, p.SourcePath, p.TargetPath, p.TargetFormat, timeout)
				if err != nil {
					return nil, err
				}
				if !result.Success {
					return nil, conversionFailure("dispatch.convert_document", result)
				}
				return result, nil
			},
		},
		{
			name:        "batch_convert_documents",
			description: "Convert every matching document in a directory. Failures are reported per file and do not abort the batch.",
			schema: objectSchema(
				[]string{"source_dir", "target_dir", "target_format"},
				map[string]*jsonschema.Schema{
					"source_dir":    stringProp("Directory scanned for source documents."),
					"target_dir":    stringProp("Directory converted files are written to."),
					"target_format": stringProp("Logical target format name applied to every file."),
					"extensions":    stringArrayProp("Source extensions to match; defaults to the common document set."),
				},
			),
			handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
				var p batchConvertParams
				if err := decode(raw, &p); err != nil {
					return nil, err
				}
				results, err := d.converter.BatchConvert(ctx, p.SourceDir, p.TargetDir, p.TargetFormat, p.Extensions)
				if err != nil {
					return nil, err
				}
				payload := batchConvertPayload{Results: results}
				for _, r := range results {
					if r.Success {
						payload.Succeeded++
					} else {
						payload.Failed++
					}
				}
				return payload, nil
			},
		},
		{
			name:        "read_document_text",
			description: "Extract the plain text of a document file.",
			schema: objectSchema(
				[]string{"path"},
				map[string]*jsonschema.Schema{
					"path": stringProp("Absolute path of the document to read."),
				},
			),
			handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
				var p pathParams
				if err := decode(raw, &p); err != nil {
					return nil, err
				}
				return d.converter.ExtractText(ctx, p.Path, 0)
			},
		},
		{
			name:        "get_document_info",
			description: "Report file-level metadata for a document path.",
			schema: objectSchema(
				[]string{"path"},
				map[string]*jsonschema.Schema{
					"path": stringProp("Path to inspect."),
				},
			),
			handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
				var p pathParams
				if err := decode(raw, &p); err != nil {
					return nil, err
				}
				return documentInfo(p.Path), nil
			},
		},
		{
			name:        "get_document_statistics",
			description: "Compute word, line, paragraph and sentence statistics for a document.",
			schema: objectSchema(
				[]string{"path"},
				map[string]*jsonschema.Schema{
					"path": stringProp("Absolute path of the document to analyze."),
				},
			),
			handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
				var p pathParams
				if err := decode(raw, &p); err != nil {
					return nil, err
				}
				return d.documentStatistics(ctx, p.Path)
			},
		},
		{
			name:        "read_spreadsheet_data",
			description: "Read rows from a spreadsheet document.",
			schema: objectSchema(
				[]string{"path"},
				map[string]*jsonschema.Schema{
					"path":       stringProp("Absolute path of the spreadsheet."),
					"sheet_name": stringProp("Sheet to label the result with; the engine exports the active sheet."),
					"max_rows":   intProp("Maximum number of rows to return, default 100."),
				},
			),
			handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
				var p readSpreadsheetParams
				if err := decode(raw, &p); err != nil {
					return nil, err
				}
				return d.converter.ReadSpreadsheet(ctx, p.Path, p.SheetName, p.MaxRows)
			},
		},
		{
			name:        "search_documents",
			description: "Search document files for a text query and return matches with surrounding context.",
			schema: objectSchema(
				[]string{"query"},
				map[string]*jsonschema.Schema{
					"query":       stringProp("Text to search for, case-insensitive."),
					"search_path": stringProp("Directory to search; defaults to the configured discovery paths."),
				},
			),
			handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
				var p searchDocumentsParams
				if err := decode(raw, &p); err != nil {
					return nil, err
				}
				return d.searchDocuments(ctx, p.Query, p.SearchPath)
			},
		},
		{
			name:        "merge_text_documents",
			description: "Concatenate the text of several documents into one output document.",
			schema: objectSchema(
				[]string{"source_paths", "target_path"},
				map[string]*jsonschema.Schema{
					"source_paths": stringArrayProp("Documents to merge, in order."),
					"target_path":  stringProp("Path of the merged output document."),
					"separator":    stringProp("Text inserted between documents; defaults to a blank line."),
				},
			),
			handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
				var p mergeDocumentsParams
				if err := decode(raw, &p); err != nil {
					return nil, err
				}
				return d.mergeTextDocuments(ctx, p)
			},
		},
		{
			name:        "create_document",
			description: "Create a new document file on disk, optionally seeded with content.",
			schema: objectSchema(
				[]string{"path"},
				map[string]*jsonschema.Schema{
					"path":     stringProp("Path of the document to create; the extension selects the format."),
					"doc_type": stringProp("Document kind: writer, calc, impress or draw. Default writer."),
					"content":  stringProp("Initial text content."),
				},
			),
			handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
				var p createDocumentParams
				if err := decode(raw, &p); err != nil {
					return nil, err
				}
				return d.createDocumentFile(ctx, p)
			},
		},
		{
			name:        "watch_document",
			description: "Watch a document path for filesystem changes for a bounded duration.",
			schema: objectSchema(
				[]string{"path"},
				map[string]*jsonschema.Schema{
					"path":             stringProp("Document path to watch."),
					"duration_seconds": intProp("How long to watch, default 10, capped at 300."),
				},
			),
			handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
				var p watchDocumentParams
				if err := decode(raw, &p); err != nil {
					return nil, err
				}
				return d.watchDocument(ctx, p.Path, p.DurationSeconds)
			},
		},
	}
}

func conversionFailure(op string, result domain.ConversionResult) error {
	code := domain.CodeConversionFailed
	if result.State == domain.JobTimedOut {
		code = domain.CodeConversionTimeout
	}
	msg := result.ErrorMessage
	if msg == "" {
		msg = "conversion did not produce output"
	}
	if !strings.Contains(msg, result.TargetFormat) && result.TargetFormat != "" {
		msg = result.TargetFormat + ": " + msg
	}
	return domain.E(code, op, msg, nil)
}
