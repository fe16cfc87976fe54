// Package format maps logical format names to engine filter
// identifiers. The table is fixed at startup; there is no runtime
// mutation and therefore no locking.
package format

import (
	"fmt"
	"sort"

	"docmcp/internal/domain"
)

type Registry struct {
	specs map[string]domain.FormatSpec
}

// NewRegistry builds the registry from the built-in filter table.
func NewRegistry() *Registry {
	specs := make(map[string]domain.FormatSpec, len(builtinSpecs))
	for _, spec := range builtinSpecs {
		specs[spec.LogicalName] = spec
	}
	return &Registry{specs: specs}
}

// Resolve returns the spec for a logical name in the requested
// direction, or ErrUnsupportedFormat.
func (r *Registry) Resolve(logicalName string, dir domain.FormatDirection) (domain.FormatSpec, error) {
	spec, ok := r.specs[logicalName]
	if !ok {
		return domain.FormatSpec{}, domain.E(domain.CodeUnsupportedFormat, "format.Resolve",
			fmt.Sprintf("format %q is not supported", logicalName), domain.ErrUnsupportedFormat)
	}
	if !spec.Allows(dir) {
		return domain.FormatSpec{}, domain.E(domain.CodeUnsupportedFormat, "format.Resolve",
			fmt.Sprintf("format %q does not support %s", logicalName, dir), domain.ErrUnsupportedFormat)
	}
	return spec, nil
}

// Names lists logical names supporting the direction, sorted.
func (r *Registry) Names(dir domain.FormatDirection) []string {
	names := make([]string, 0, len(r.specs))
	for name, spec := range r.specs {
		if spec.Allows(dir) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Filter identifiers follow the engine's export filter naming; writer
// variants are used since text documents are the primary live target.
var builtinSpecs = []domain.FormatSpec{
	{LogicalName: "pdf", EngineFilterID: "writer_pdf_Export", FileExtension: ".pdf", Direction: domain.DirectionExport},
	{LogicalName: "odt", EngineFilterID: "writer8", FileExtension: ".odt", Direction: domain.DirectionBoth},
	{LogicalName: "docx", EngineFilterID: "MS Word 2007 XML", FileExtension: ".docx", Direction: domain.DirectionBoth},
	{LogicalName: "doc", EngineFilterID: "MS Word 97", FileExtension: ".doc", Direction: domain.DirectionBoth},
	{LogicalName: "txt", EngineFilterID: "Text", FileExtension: ".txt", Direction: domain.DirectionBoth},
	{LogicalName: "rtf", EngineFilterID: "Rich Text Format", FileExtension: ".rtf", Direction: domain.DirectionBoth},
	{LogicalName: "html", EngineFilterID: "HTML (StarWriter)", FileExtension: ".html", Direction: domain.DirectionExport},
	{LogicalName: "ods", EngineFilterID: "calc8", FileExtension: ".ods", Direction: domain.DirectionBoth},
	{LogicalName: "xlsx", EngineFilterID: "Calc MS Excel 2007 XML", FileExtension: ".xlsx", Direction: domain.DirectionBoth},
	{LogicalName: "csv", EngineFilterID: "Text - txt - csv (StarCalc)", FileExtension: ".csv", Direction: domain.DirectionBoth},
	{LogicalName: "odp", EngineFilterID: "impress8", FileExtension: ".odp", Direction: domain.DirectionBoth},
	{LogicalName: "pptx", EngineFilterID: "Impress MS PowerPoint 2007 XML", FileExtension: ".pptx", Direction: domain.DirectionBoth},
	{LogicalName: "odg", EngineFilterID: "draw8", FileExtension: ".odg", Direction: domain.DirectionBoth},
}

// ExtensionFor returns the document extension created for a kind.
func ExtensionFor(kind domain.DocKind) string {
	switch kind {
	case domain.KindWriter:
		return ".odt"
	case domain.KindCalc:
		return ".ods"
	case domain.KindImpress:
		return ".odp"
	case domain.KindDraw:
		return ".odg"
	default:
		return ""
	}
}
