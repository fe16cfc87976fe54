package domain

import (
	"encoding/json"
	"time"
)

// DocKind identifies the engine document type backing a session.
type DocKind string

const (
	KindWriter  DocKind = "writer"
	KindCalc    DocKind = "calc"
	KindImpress DocKind = "impress"
	KindDraw    DocKind = "draw"
)

func ParseDocKind(s string) (DocKind, bool) {
	switch DocKind(s) {
	case KindWriter, KindCalc, KindImpress, KindDraw:
		return DocKind(s), true
	default:
		return "", false
	}
}

// DocumentHandle is the engine-issued identifier for an open document.
// The gateway stores and forwards it, never interprets it.
type DocumentHandle string

// SessionEntry is the gateway-side bookkeeping record for one open
// document. Mutated only inside the bridge worker.
type SessionEntry struct {
	Handle         DocumentHandle `json:"handle"`
	Kind           DocKind        `json:"kind"`
	CreatedAt      time.Time      `json:"createdAt"`
	LastModifiedAt time.Time      `json:"lastModifiedAt"`
	Dirty          bool           `json:"dirty"`
}

// InsertMode selects where InsertText places content.
type InsertMode string

const (
	InsertStart    InsertMode = "start"
	InsertEnd      InsertMode = "end"
	InsertReplace  InsertMode = "replace"
	InsertAtOffset InsertMode = "at_offset"
)

// InsertPosition pairs a mode with an offset. Offset is only meaningful
// for InsertAtOffset and is clamped to document bounds by the bridge.
type InsertPosition struct {
	Mode   InsertMode `json:"mode"`
	Offset int        `json:"offset,omitempty"`
}

// TextFormatting carries the optional attributes applied to the current
// selection. Nil fields are left untouched.
type TextFormatting struct {
	Bold      *bool    `json:"bold,omitempty"`
	Italic    *bool    `json:"italic,omitempty"`
	Underline *bool    `json:"underline,omitempty"`
	FontName  *string  `json:"fontName,omitempty"`
	FontSize  *float64 `json:"fontSize,omitempty"`
}

// TextContent is extracted text plus counts computed gateway-side.
type TextContent struct {
	Content   string `json:"content"`
	WordCount int    `json:"wordCount"`
	CharCount int    `json:"charCount"`
}

// DocumentInfo describes a document file on disk.
type DocumentInfo struct {
	Path         string    `json:"path"`
	Filename     string    `json:"filename"`
	Format       string    `json:"format"`
	SizeBytes    int64     `json:"sizeBytes"`
	ModifiedTime time.Time `json:"modifiedTime"`
	Exists       bool      `json:"exists"`
}

// SpreadsheetData holds rows read from a spreadsheet via the csv
// intermediate.
type SpreadsheetData struct {
	SheetName string     `json:"sheetName"`
	Data      [][]string `json:"data"`
	RowCount  int        `json:"rowCount"`
	ColCount  int        `json:"colCount"`
}

// FormatDirection restricts a FormatSpec to import, export, or both.
type FormatDirection string

const (
	DirectionImport FormatDirection = "import"
	DirectionExport FormatDirection = "export"
	DirectionBoth   FormatDirection = "both"
)

// FormatSpec maps a logical format name to the engine filter that
// produces it. Immutable after startup.
type FormatSpec struct {
	LogicalName    string          `json:"logicalName"`
	EngineFilterID string          `json:"engineFilterId"`
	FileExtension  string          `json:"fileExtension"`
	Direction      FormatDirection `json:"direction"`
}

// Allows reports whether the spec covers the requested direction.
func (s FormatSpec) Allows(dir FormatDirection) bool {
	if dir == DirectionBoth {
		return s.Direction == DirectionBoth
	}
	return s.Direction == DirectionBoth || s.Direction == dir
}

// JobState tracks a conversion job through its lifetime.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
	JobTimedOut  JobState = "timed_out"
)

// ConversionJob is one isolated external-process invocation.
type ConversionJob struct {
	ID           string        `json:"id"`
	SourcePath   string        `json:"sourcePath"`
	TargetPath   string        `json:"targetPath"`
	TargetFormat string        `json:"targetFormat"`
	Timeout      time.Duration `json:"timeout"`
	State        JobState      `json:"state"`
}

// ConversionResult reports the outcome of one job.
type ConversionResult struct {
	SourcePath   string   `json:"sourcePath"`
	TargetPath   string   `json:"targetPath"`
	SourceFormat string   `json:"sourceFormat"`
	TargetFormat string   `json:"targetFormat"`
	State        JobState `json:"state"`
	Success      bool     `json:"success"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
}

// ToolCallRequest is one named, parameterized operation requested by a
// client through the protocol surface.
type ToolCallRequest struct {
	Name       string          `json:"name"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
	RequestID  string          `json:"requestId,omitempty"`
}

// ToolCallResult carries either a payload or an error descriptor,
// never both.
type ToolCallResult struct {
	RequestID string           `json:"requestId,omitempty"`
	Success   bool             `json:"success"`
	Payload   any              `json:"payload,omitempty"`
	Error     *ErrorDescriptor `json:"error,omitempty"`
}

// ErrorDescriptor is the wire shape of a typed failure.
type ErrorDescriptor struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// HealthStatus is the dispatcher's cheap liveness report.
type HealthStatus struct {
	EngineReachable     bool `json:"engineReachable"`
	ActiveDocumentCount int  `json:"activeDocumentCount"`
}

// ToolDefinition describes one registered tool for discovery.
type ToolDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"inputSchema,omitempty"`
}

// SearchMatch is one hit from a document search.
type SearchMatch struct {
	Path         string `json:"path"`
	Filename     string `json:"filename"`
	Format       string `json:"format"`
	WordCount    int    `json:"wordCount"`
	MatchContext string `json:"matchContext"`
}

// ContentStats are derived measurements over extracted text.
type ContentStats struct {
	WordCount            int     `json:"wordCount"`
	CharacterCount       int     `json:"characterCount"`
	LineCount            int     `json:"lineCount"`
	ParagraphCount       int     `json:"paragraphCount"`
	SentenceCount        int     `json:"sentenceCount"`
	AvgWordsPerSentence  float64 `json:"averageWordsPerSentence"`
	AvgCharsPerWord      float64 `json:"averageCharsPerWord"`
}

// DocumentStatistics bundles file info with content stats.
type DocumentStatistics struct {
	FileInfo     DocumentInfo `json:"fileInfo"`
	ContentStats ContentStats `json:"contentStats"`
}

// WatchEvent is one filesystem change observed by watch_document.
type WatchEvent struct {
	Op        string    `json:"op"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// WatchReport summarizes a bounded watch over a document path.
type WatchReport struct {
	Path     string        `json:"path"`
	Duration time.Duration `json:"durationNanos"`
	Events   []WatchEvent  `json:"events"`
	Changed  bool          `json:"changed"`
}
