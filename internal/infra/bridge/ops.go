package bridge

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"docmcp/internal/domain"
	"docmcp/internal/infra/telemetry"
)

// CreateDocument asks the engine for a fresh document of the given
// kind and registers the session.
func (b *Bridge) CreateDocument(ctx context.Context, kind domain.DocKind) (domain.DocumentHandle, error) {
	value, err := b.submit(ctx, func(ctx context.Context) (any, error) {
		var res createDocumentResult
		params := createDocumentParams{DocType: string(kind)}
		if err := b.conn.Call(ctx, opCreateDocument, params, &res); err != nil {
			return nil, err
		}
		if res.Handle == "" {
			return nil, domain.E(domain.CodeInternal, "bridge.CreateDocument", "engine returned empty handle", nil)
		}
		handle := domain.DocumentHandle(res.Handle)
		b.sessions.Register(handle, kind)
		b.logger.Debug("session opened",
			telemetry.EventField(telemetry.EventSessionOpened),
			telemetry.HandleField(res.Handle),
			zap.String("kind", string(kind)))
		return handle, nil
	})
	if err != nil {
		return "", err
	}
	return value.(domain.DocumentHandle), nil
}

// ActiveDocument resolves the document currently focused in the host
// application. Documents the user opened out-of-band are registered on
// first sight.
func (b *Bridge) ActiveDocument(ctx context.Context) (domain.DocumentHandle, error) {
	value, err := b.submit(ctx, func(ctx context.Context) (any, error) {
		var res createDocumentResult
		if err := b.conn.Call(ctx, opGetActiveDocument, nil, &res); err != nil {
			return nil, err
		}
		if res.Handle == "" {
			return nil, domain.ErrNoActiveDocument
		}
		handle := domain.DocumentHandle(res.Handle)
		if _, lookupErr := b.sessions.Lookup(handle); lookupErr != nil {
			kind, ok := domain.ParseDocKind(res.DocType)
			if !ok {
				kind = domain.KindWriter
			}
			b.sessions.Register(handle, kind)
		}
		return handle, nil
	})
	if err != nil {
		return "", err
	}
	return value.(domain.DocumentHandle), nil
}

// InsertText places text according to the position mode. An at_offset
// position saturates to the nearest document boundary instead of
// failing out-of-range.
func (b *Bridge) InsertText(ctx context.Context, handle domain.DocumentHandle, text string, pos domain.InsertPosition) error {
	_, err := b.submit(ctx, func(ctx context.Context) (any, error) {
		params := insertTextParams{
			Handle: string(handle),
			Text:   text,
			Mode:   string(pos.Mode),
		}
		if pos.Mode == domain.InsertAtOffset {
			offset, err := b.clampOffset(ctx, handle, pos.Offset)
			if err != nil {
				return nil, err
			}
			params.Offset = offset
		}
		if err := b.conn.Call(ctx, opInsertText, params, nil); err != nil {
			return nil, b.checkStale(handle, err)
		}
		_ = b.sessions.MarkDirty(handle)
		return nil, nil
	})
	return err
}

// clampOffset reads the current body length and saturates the offset
// to [0, length]. Runs inside the worker, so the read and the
// subsequent insert cannot interleave with other submissions.
func (b *Bridge) clampOffset(ctx context.Context, handle domain.DocumentHandle, offset int) (int, error) {
	var res textResult
	if err := b.conn.Call(ctx, opGetText, handleParams{Handle: string(handle)}, &res); err != nil {
		return 0, b.checkStale(handle, err)
	}
	length := utf8.RuneCountInString(res.Content)
	if offset < 0 {
		return 0, nil
	}
	if offset > length {
		return length, nil
	}
	return offset, nil
}

// ReadText returns the document body with counts computed gateway-side.
func (b *Bridge) ReadText(ctx context.Context, handle domain.DocumentHandle) (domain.TextContent, error) {
	value, err := b.submit(ctx, func(ctx context.Context) (any, error) {
		var res textResult
		if err := b.conn.Call(ctx, opGetText, handleParams{Handle: string(handle)}, &res); err != nil {
			return nil, b.checkStale(handle, err)
		}
		return domain.NewTextContent(res.Content), nil
	})
	if err != nil {
		return domain.TextContent{}, err
	}
	return value.(domain.TextContent), nil
}

// FormatSelection applies attributes to the current selection; the
// engine rejects the call when nothing is selected.
func (b *Bridge) FormatSelection(ctx context.Context, handle domain.DocumentHandle, formatting domain.TextFormatting) error {
	_, err := b.submit(ctx, func(ctx context.Context) (any, error) {
		params := formatTextParams{
			Handle:    string(handle),
			Bold:      formatting.Bold,
			Italic:    formatting.Italic,
			Underline: formatting.Underline,
			FontName:  formatting.FontName,
			FontSize:  formatting.FontSize,
		}
		if err := b.conn.Call(ctx, opFormatText, params, nil); err != nil {
			return nil, b.checkStale(handle, err)
		}
		_ = b.sessions.MarkDirty(handle)
		return nil, nil
	})
	return err
}

// SaveAs stores the document at path and clears the dirty flag.
func (b *Bridge) SaveAs(ctx context.Context, handle domain.DocumentHandle, path string) error {
	_, err := b.submit(ctx, func(ctx context.Context) (any, error) {
		params := saveDocumentParams{Handle: string(handle), FilePath: path}
		if err := b.conn.Call(ctx, opSaveDocument, params, nil); err != nil {
			return nil, b.checkStale(handle, err)
		}
		_ = b.sessions.MarkClean(handle)
		return nil, nil
	})
	return err
}

// ExportDocument stores the document at path in the requested export
// format; a FormatResolver supplies the engine filter.
type FormatResolver interface {
	Resolve(logicalName string, dir domain.FormatDirection) (domain.FormatSpec, error)
}

func (b *Bridge) ExportDocument(ctx context.Context, formats FormatResolver, handle domain.DocumentHandle, path, formatName string) error {
	spec, err := formats.Resolve(formatName, domain.DirectionExport)
	if err != nil {
		return err
	}
	_, err = b.submit(ctx, func(ctx context.Context) (any, error) {
		params := exportDocumentParams{
			Handle:   string(handle),
			FilePath: path,
			Format:   spec.LogicalName,
			FilterID: spec.EngineFilterID,
		}
		if err := b.conn.Call(ctx, opExportDocument, params, nil); err != nil {
			return nil, b.checkStale(handle, err)
		}
		return nil, nil
	})
	return err
}

// ListOpenDocuments reconciles the registry against the engine's view
// and returns the surviving sessions. Handles the engine no longer
// reports are dropped; documents opened out-of-band are adopted.
func (b *Bridge) ListOpenDocuments(ctx context.Context) ([]domain.SessionEntry, error) {
	value, err := b.submit(ctx, func(ctx context.Context) (any, error) {
		var res listDocumentsResult
		if err := b.conn.Call(ctx, opListDocuments, nil, &res); err != nil {
			return nil, err
		}

		alive := make(map[domain.DocumentHandle]string, len(res.Documents))
		for _, doc := range res.Documents {
			alive[domain.DocumentHandle(doc.Handle)] = doc.DocType
		}
		for _, entry := range b.sessions.ListActive() {
			if _, ok := alive[entry.Handle]; !ok {
				b.sessions.Unregister(entry.Handle)
			}
		}
		for handle, docType := range alive {
			if _, err := b.sessions.Lookup(handle); err != nil {
				kind, ok := domain.ParseDocKind(docType)
				if !ok {
					kind = domain.KindWriter
				}
				b.sessions.Register(handle, kind)
			}
		}
		return b.sessions.ListActive(), nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]domain.SessionEntry), nil
}

// checkStale drops the session when the engine no longer resolves its
// handle, so the next lookup fails fast.
func (b *Bridge) checkStale(handle domain.DocumentHandle, err error) error {
	if errors.Is(err, domain.ErrStaleHandle) {
		b.invalidate(handle)
		b.logger.Debug("session invalidated",
			telemetry.EventField(telemetry.EventSessionInvalid),
			telemetry.HandleField(string(handle)))
		return fmt.Errorf("%w: handle %s", domain.ErrStaleHandle, handle)
	}
	return err
}
