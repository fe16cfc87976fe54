package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"docmcp/internal/domain"
)

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	entry := r.Register("doc-1", domain.KindWriter)
	require.Equal(t, domain.DocumentHandle("doc-1"), entry.Handle)
	require.False(t, entry.Dirty)

	got, err := r.Lookup("doc-1")
	require.NoError(t, err)
	require.Same(t, entry, got)
}

func TestLookup_NotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup("missing")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestMarkDirtyAndClean(t *testing.T) {
	r := NewRegistry()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := base
	r.now = func() time.Time { return clock }

	r.Register("doc-1", domain.KindWriter)
	clock = base.Add(time.Minute)
	require.NoError(t, r.MarkDirty("doc-1"))

	entry, err := r.Lookup("doc-1")
	require.NoError(t, err)
	require.True(t, entry.Dirty)
	require.Equal(t, base.Add(time.Minute), entry.LastModifiedAt)

	require.NoError(t, r.MarkClean("doc-1"))
	require.False(t, entry.Dirty)

	require.ErrorIs(t, r.MarkDirty("missing"), domain.ErrSessionNotFound)
}

func TestUnregister(t *testing.T) {
	r := NewRegistry()
	r.Register("doc-1", domain.KindCalc)
	r.Unregister("doc-1")
	_, err := r.Lookup("doc-1")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	require.Zero(t, r.Len())

	// Unregistering an unknown handle is a no-op.
	r.Unregister("doc-1")
}

func TestListActive_OrderedByCreation(t *testing.T) {
	r := NewRegistry()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := base
	r.now = func() time.Time { return clock }

	r.Register("b", domain.KindWriter)
	clock = base.Add(time.Second)
	r.Register("a", domain.KindCalc)

	list := r.ListActive()
	require.Len(t, list, 2)
	require.Equal(t, domain.DocumentHandle("b"), list[0].Handle)
	require.Equal(t, domain.DocumentHandle("a"), list[1].Handle)
}
