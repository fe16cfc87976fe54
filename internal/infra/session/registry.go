// Package session tracks live document sessions. The registry holds no
// lock of its own: every mutation happens inside the bridge worker,
// which is the sole goroutine allowed to touch it.
package session

import (
	"sort"
	"time"

	"docmcp/internal/domain"
)

type Registry struct {
	entries map[domain.DocumentHandle]*domain.SessionEntry
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[domain.DocumentHandle]*domain.SessionEntry),
		now:     time.Now,
	}
}

func (r *Registry) Register(handle domain.DocumentHandle, kind domain.DocKind) *domain.SessionEntry {
	now := r.now()
	entry := &domain.SessionEntry{
		Handle:         handle,
		Kind:           kind,
		CreatedAt:      now,
		LastModifiedAt: now,
	}
	r.entries[handle] = entry
	return entry
}

func (r *Registry) Lookup(handle domain.DocumentHandle) (*domain.SessionEntry, error) {
	entry, ok := r.entries[handle]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return entry, nil
}

// MarkDirty flags the session after a mutating engine call and bumps
// its modification time.
func (r *Registry) MarkDirty(handle domain.DocumentHandle) error {
	entry, ok := r.entries[handle]
	if !ok {
		return domain.ErrSessionNotFound
	}
	entry.Dirty = true
	entry.LastModifiedAt = r.now()
	return nil
}

// MarkClean clears the dirty flag after a successful save.
func (r *Registry) MarkClean(handle domain.DocumentHandle) error {
	entry, ok := r.entries[handle]
	if !ok {
		return domain.ErrSessionNotFound
	}
	entry.Dirty = false
	return nil
}

func (r *Registry) Unregister(handle domain.DocumentHandle) {
	delete(r.entries, handle)
}

// ListActive returns a snapshot ordered by creation time.
func (r *Registry) ListActive() []domain.SessionEntry {
	out := make([]domain.SessionEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Handle < out[j].Handle
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *Registry) Len() int {
	return len(r.entries)
}
