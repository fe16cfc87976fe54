package dispatch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"docmcp/internal/domain"
	"docmcp/internal/infra/format"
)

const (
	matchContextRunes     = 100
	defaultWatchSeconds   = 10
	maxWatchSeconds       = 300
	defaultMergeSeparator = "\n\n"
)

func documentInfo(path string) domain.DocumentInfo {
	info := domain.DocumentInfo{
		Path:     path,
		Filename: filepath.Base(path),
		Format:   strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
	}
	stat, err := os.Stat(path)
	if err != nil {
		return info
	}
	info.Exists = true
	info.SizeBytes = stat.Size()
	info.ModifiedTime = stat.ModTime()
	return info
}

func (d *Dispatcher) documentStatistics(ctx context.Context, path string) (domain.DocumentStatistics, error) {
	tc, err := d.converter.ExtractText(ctx, path, 0)
	if err != nil {
		return domain.DocumentStatistics{}, err
	}
	return domain.DocumentStatistics{
		FileInfo:     documentInfo(path),
		ContentStats: domain.StatsFor(tc),
	}, nil
}

// searchDocuments walks the search roots and extracts text from every
// candidate file. Text extraction goes through the engine for anything
// that is not plain text, so broad roots are expensive by nature.
func (d *Dispatcher) searchDocuments(ctx context.Context, query, searchPath string) ([]domain.SearchMatch, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.E(domain.CodeValidation, "dispatch.search_documents", "query must not be empty", nil)
	}

	roots, err := d.searchRoots(searchPath)
	if err != nil {
		return nil, err
	}

	lowerQuery := strings.ToLower(query)
	matches := []domain.SearchMatch{}
	for _, root := range roots {
		walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil || entry.IsDir() {
				return nil //nolint:nilerr // unreadable entries are skipped, not fatal
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !hasExtension(path, domain.DefaultSearchExtensions) {
				return nil
			}

			tc, err := d.converter.ExtractText(ctx, path, 0)
			if err != nil {
				d.logger.Debug("search skipped unreadable document",
					zap.String("path", path), zap.Error(err))
				return nil
			}
			idx := strings.Index(strings.ToLower(tc.Content), lowerQuery)
			if idx < 0 {
				return nil
			}
			matches = append(matches, domain.SearchMatch{
				Path:         path,
				Filename:     filepath.Base(path),
				Format:       strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
				WordCount:    tc.WordCount,
				MatchContext: excerptAround(tc.Content, idx, len(query)),
			})
			return nil
		})
		if walkErr != nil {
			return nil, walkErr
		}
	}
	return matches, nil
}

func (d *Dispatcher) searchRoots(searchPath string) ([]string, error) {
	if searchPath != "" {
		if stat, err := os.Stat(searchPath); err != nil || !stat.IsDir() {
			return nil, domain.E(domain.CodeValidation, "dispatch.search_documents",
				fmt.Sprintf("search path is not a directory: %s", searchPath), err)
		}
		return []string{searchPath}, nil
	}
	if len(d.discovery) > 0 {
		return d.discovery, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, domain.E(domain.CodeValidation, "dispatch.search_documents",
			"no search path given and no discovery paths configured", err)
	}
	return []string{filepath.Join(home, "Documents"), filepath.Join(home, "Desktop")}, nil
}

func hasExtension(path string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, candidate := range extensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

// excerptAround returns the match plus up to matchContextRunes of
// context on each side, trimmed to rune boundaries.
func excerptAround(text string, byteIdx, matchLen int) string {
	start := byteIdx
	for r := 0; r < matchContextRunes && start > 0; r++ {
		start--
		for start > 0 && !utf8.RuneStart(text[start]) {
			start--
		}
	}
	end := byteIdx + matchLen
	if end > len(text) {
		end = len(text)
	}
	for r := 0; r < matchContextRunes && end < len(text); r++ {
		_, size := utf8.DecodeRuneInString(text[end:])
		end += size
	}
	return strings.TrimSpace(text[start:end])
}

type mergePayload struct {
	TargetPath  string `json:"targetPath"`
	MergedFiles int    `json:"mergedFiles"`
	WordCount   int    `json:"wordCount"`
}

func (d *Dispatcher) mergeTextDocuments(ctx context.Context, p mergeDocumentsParams) (mergePayload, error) {
	if len(p.SourcePaths) < 2 {
		return mergePayload{}, domain.E(domain.CodeValidation, "dispatch.merge_text_documents",
			"merging needs at least two source documents", nil)
	}
	if p.TargetPath == "" {
		return mergePayload{}, domain.E(domain.CodeValidation, "dispatch.merge_text_documents",
			"target_path must not be empty", nil)
	}
	separator := p.Separator
	if separator == "" {
		separator = defaultMergeSeparator
	}

	parts := make([]string, 0, len(p.SourcePaths))
	for _, source := range p.SourcePaths {
		tc, err := d.converter.ExtractText(ctx, source, 0)
		if err != nil {
			return mergePayload{}, err
		}
		parts = append(parts, strings.TrimRight(tc.Content, "\n"))
	}
	merged := strings.Join(parts, separator)

	if err := d.writeAsDocument(ctx, p.TargetPath, merged); err != nil {
		return mergePayload{}, err
	}
	return mergePayload{
		TargetPath:  p.TargetPath,
		MergedFiles: len(p.SourcePaths),
		WordCount:   len(strings.Fields(merged)),
	}, nil
}

func (d *Dispatcher) createDocumentFile(ctx context.Context, p createDocumentParams) (domain.DocumentInfo, error) {
	kind := domain.KindWriter
	if p.DocType != "" {
		parsed, ok := domain.ParseDocKind(p.DocType)
		if !ok {
			return domain.DocumentInfo{}, domain.E(domain.CodeValidation, "dispatch.create_document",
				"unknown doc_type "+p.DocType, nil)
		}
		kind = parsed
	}

	path := p.Path
	if filepath.Ext(path) == "" {
		path += format.ExtensionFor(kind)
	}
	if _, err := os.Stat(path); err == nil {
		return domain.DocumentInfo{}, domain.E(domain.CodeValidation, "dispatch.create_document",
			fmt.Sprintf("file already exists: %s", path), nil)
	}

	if err := d.writeAsDocument(ctx, path, p.Content); err != nil {
		return domain.DocumentInfo{}, err
	}
	return documentInfo(path), nil
}

// writeAsDocument materializes text at path, routing through the
// converter when the extension asks for a real document format.
func (d *Dispatcher) writeAsDocument(ctx context.Context, path, content string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".txt" || ext == "" {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return domain.Wrap(domain.CodeInternal, "dispatch.writeAsDocument", err)
		}
		return nil
	}

	logicalName := strings.TrimPrefix(ext, ".")
	if _, err := d.formats.Resolve(logicalName, domain.DirectionExport); err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp("", "docmcp-create-")
	if err != nil {
		return domain.Wrap(domain.CodeInternal, "dispatch.writeAsDocument", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	stem := strings.TrimSuffix(filepath.Base(path), ext)
	intermediate := filepath.Join(tmpDir, stem+".txt")
	if err := os.WriteFile(intermediate, []byte(content), 0o644); err != nil {
		return domain.Wrap(domain.CodeInternal, "dispatch.writeAsDocument", err)
	}

	result, err := d.converter.Convert(ctx, intermediate, path, logicalName, 0)
	if err != nil {
		return err
	}
	if !result.Success {
		return conversionFailure("dispatch.writeAsDocument", result)
	}
	return nil
}

func (d *Dispatcher) watchDocument(ctx context.Context, path string, durationSeconds int) (domain.WatchReport, error) {
	if _, err := os.Stat(path); err != nil {
		return domain.WatchReport{}, domain.E(domain.CodeValidation, "dispatch.watch_document",
			fmt.Sprintf("document not found: %s", path), err)
	}
	if durationSeconds <= 0 {
		durationSeconds = defaultWatchSeconds
	}
	if durationSeconds > maxWatchSeconds {
		durationSeconds = maxWatchSeconds
	}
	duration := time.Duration(durationSeconds) * time.Second

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return domain.WatchReport{}, domain.E(domain.CodeInternal, "dispatch.watch_document", "", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: editors replace files on save, which drops
	// a watch registered on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return domain.WatchReport{}, domain.E(domain.CodeInternal, "dispatch.watch_document", "", err)
	}

	report := domain.WatchReport{Path: path, Duration: duration, Events: []domain.WatchEvent{}}
	target := filepath.Clean(path)
	deadline := time.NewTimer(duration)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		case <-deadline.C:
			return report, nil
		case event, ok := <-watcher.Events:
			if !ok {
				return report, nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			report.Events = append(report.Events, domain.WatchEvent{
				Op:        event.Op.String(),
				Path:      event.Name,
				Timestamp: time.Now(),
			})
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				report.Changed = true
			}
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return report, nil
			}
			d.logger.Warn("watch error", zap.String("path", path), zap.Error(watchErr))
		}
	}
}
