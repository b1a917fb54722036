package cache

import (
	"context"
	"sync"
	"time"

	"atenea/backend/internal/domain"
)

// DraftStore keeps in-progress form drafts per owner and form name.
type DraftStore interface {
	Get(ctx context.Context, owner, form string) (*domain.Draft, bool, error)
	Set(ctx context.Context, draft domain.Draft, ttl time.Duration) error
	Delete(ctx context.Context, owner, form string) error
}

func draftKey(owner, form string) string {
	return "atenea:draft:" + owner + ":" + form
}

type memoryEntry struct {
	draft     domain.Draft
	expiresAt time.Time
}

// MemoryDraftStore is used when no Redis address is configured.
type MemoryDraftStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryDraftStore) Get(_ context.Context, owner, form string) (*domain.Draft, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := draftKey(owner, form)
	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	draft := entry.draft
	return &draft, true, nil
}

func (m *MemoryDraftStore) Set(_ context.Context, draft domain.Draft, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{draft: draft}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.entries[draftKey(draft.Owner, draft.Form)] = entry
	return nil
}

func (m *MemoryDraftStore) Delete(_ context.Context, owner, form string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, draftKey(owner, form))
	return nil
}
