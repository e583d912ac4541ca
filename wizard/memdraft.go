package wizard

import (
	"context"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	draftTTL             = 24 * time.Hour
	draftCleanupInterval = time.Hour
)

var _ DraftStore = &MemoryDraftStore{}

// MemoryDraftStore keeps drafts in a TTL'd in-process cache, one slot per
// session key. Drafts are stored as their JSON wire form so restore goes
// through the same parse path as a durable store.
type MemoryDraftStore struct {
	key   string
	cache *gocache.Cache
}

// NewMemoryDraftCache returns the shared cache MemoryDraftStores slot into.
func NewMemoryDraftCache() *gocache.Cache {
	return gocache.New(draftTTL, draftCleanupInterval)
}

func NewMemoryDraftStore(cache *gocache.Cache, key string) *MemoryDraftStore {
	return &MemoryDraftStore{
		key:   key,
		cache: cache,
	}
}

func (s *MemoryDraftStore) Save(ctx context.Context, draft Draft) error {
	raw, err := json.Marshal(draft)
	if err != nil {
		return err
	}

	s.cache.Set(s.key, raw, gocache.DefaultExpiration)
	return nil
}

func (s *MemoryDraftStore) Restore(ctx context.Context) (Draft, bool, error) {
	value, found := s.cache.Get(s.key)
	if !found {
		return Draft{}, false, nil
	}

	raw, ok := value.([]byte)
	if !ok {
		return Draft{}, false, nil
	}

	var draft Draft
	if err := json.Unmarshal(raw, &draft); err != nil {
		// An unparseable draft seeds nothing; the wizard starts fresh.
		return Draft{}, false, nil
	}

	return draft, true, nil
}

func (s *MemoryDraftStore) Clear(ctx context.Context) error {
	s.cache.Delete(s.key)
	return nil
}
