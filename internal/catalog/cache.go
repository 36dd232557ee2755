package catalog

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/AutumnsGrove/FableParser/internal/entities"
)

// Searcher is the underlying catalog the cache wraps.
type Searcher interface {
	Search(ctx context.Context, title, author string) ([]entities.CandidateMatch, error)
}

// LookupStore persists cached search responses keyed by normalized query.
type LookupStore interface {
	GetLookup(queryKey string) (*entities.CatalogLookup, error)
	PutLookup(queryKey, response string) error
}

// CachedClient consults the lookup store before the network, so repeated
// screenshots of the same shelf skip catalog round trips. Store failures
// degrade to the wrapped client, never fail a search.
type CachedClient struct {
	inner Searcher
	store LookupStore
	ttl   time.Duration
}

func NewCachedClient(inner Searcher, store LookupStore, ttl time.Duration) *CachedClient {
	return &CachedClient{inner: inner, store: store, ttl: ttl}
}

func (c *CachedClient) Search(ctx context.Context, title, author string) ([]entities.CandidateMatch, error) {
	key := cacheKey(title, author)

	if lookup, err := c.store.GetLookup(key); err == nil && lookup != nil {
		if c.ttl <= 0 || time.Since(lookup.UpdatedAt) < c.ttl {
			var cached []entities.CandidateMatch
			if err := json.Unmarshal([]byte(lookup.Response), &cached); err == nil {
				return cached, nil
			}
			log.Printf("catalog cache: discarding unreadable entry for %q", key)
		}
	}

	candidates, err := c.inner.Search(ctx, title, author)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(candidates); err == nil {
		if err := c.store.PutLookup(key, string(encoded)); err != nil {
			log.Printf("catalog cache: store failed for %q: %v", key, err)
		}
	}
	return candidates, nil
}

func cacheKey(title, author string) string {
	return strings.ToLower(strings.TrimSpace(title)) + "|" + strings.ToLower(strings.TrimSpace(author))
}
