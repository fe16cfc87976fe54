package convert

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docmcp/internal/domain"
)

// ExtractText converts the document to a plain-text intermediate and
// reads it back. Word and character counts are computed here, not
// taken from the engine.
func (m *Manager) ExtractText(ctx context.Context, path string, timeout time.Duration) (domain.TextContent, error) {
	if _, err := os.Stat(path); err != nil {
		return domain.TextContent{}, domain.E(domain.CodeValidation, "convert.ExtractText",
			fmt.Sprintf("document not found: %s", path), err)
	}

	// Plain text needs no engine round trip.
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		data, err := os.ReadFile(path)
		if err != nil {
			return domain.TextContent{}, domain.Wrap(domain.CodeInternal, "convert.ExtractText", err)
		}
		return domain.NewTextContent(string(data)), nil
	}

	tmpDir, err := os.MkdirTemp("", "docmcp-extract-")
	if err != nil {
		return domain.TextContent{}, domain.Wrap(domain.CodeInternal, "convert.ExtractText", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	target := filepath.Join(tmpDir, stem+".txt")
	result, err := m.Convert(ctx, path, target, "txt", timeout)
	if err != nil {
		return domain.TextContent{}, err
	}
	if !result.Success {
		return domain.TextContent{}, conversionError("convert.ExtractText", result)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return domain.TextContent{}, domain.Wrap(domain.CodeInternal, "convert.ExtractText", err)
	}
	return domain.NewTextContent(string(data)), nil
}

// ReadSpreadsheet reads up to maxRows rows through a csv intermediate.
func (m *Manager) ReadSpreadsheet(ctx context.Context, path, sheetName string, maxRows int) (domain.SpreadsheetData, error) {
	if _, err := os.Stat(path); err != nil {
		return domain.SpreadsheetData{}, domain.E(domain.CodeValidation, "convert.ReadSpreadsheet",
			fmt.Sprintf("spreadsheet not found: %s", path), err)
	}
	if maxRows <= 0 {
		maxRows = 100
	}

	tmpDir, err := os.MkdirTemp("", "docmcp-sheet-")
	if err != nil {
		return domain.SpreadsheetData{}, domain.Wrap(domain.CodeInternal, "convert.ReadSpreadsheet", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	target := filepath.Join(tmpDir, stem+".csv")
	result, err := m.Convert(ctx, path, target, "csv", 0)
	if err != nil {
		return domain.SpreadsheetData{}, err
	}
	if !result.Success {
		return domain.SpreadsheetData{}, conversionError("convert.ReadSpreadsheet", result)
	}

	file, err := os.Open(target)
	if err != nil {
		return domain.SpreadsheetData{}, domain.Wrap(domain.CodeInternal, "convert.ReadSpreadsheet", err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var rows [][]string
	for len(rows) < maxRows {
		record, err := reader.Read()
		if err != nil {
			break
		}
		rows = append(rows, record)
	}

	colCount := 0
	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
	}

	if sheetName == "" {
		sheetName = "Sheet1"
	}
	return domain.SpreadsheetData{
		SheetName: sheetName,
		Data:      rows,
		RowCount:  len(rows),
		ColCount:  colCount,
	}, nil
}

func conversionError(op string, result domain.ConversionResult) error {
	code := domain.CodeConversionFailed
	if result.State == domain.JobTimedOut {
		code = domain.CodeConversionTimeout
	}
	return domain.E(code, op, result.ErrorMessage, nil)
}

// ResultError turns an unsuccessful result into its taxonomy error.
func ResultError(result domain.ConversionResult) error {
	if result.Success {
		return nil
	}
	return conversionError("convert.Convert", result)
}
