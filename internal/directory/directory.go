// Package directory resolves user identities and roles for authorization.
// The directory proper is an external collaborator; this service reads the
// copy it keeps in the users table.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Shivanand-hulikatti/ecopoints/internal/apperr"
	"github.com/Shivanand-hulikatti/ecopoints/internal/model"
	"github.com/Shivanand-hulikatti/ecopoints/internal/repository"
)

// Directory looks up users by id.
type Directory interface {
	Lookup(ctx context.Context, id string) (*model.User, error)
}

// Store reads users straight from the repository.
type Store struct {
	q repository.Queries
}

// NewStore returns a directory backed by q.
func NewStore(q repository.Queries) *Store {
	return &Store{q: q}
}

// Lookup implements Directory.
func (s *Store) Lookup(ctx context.Context, id string) (*model.User, error) {
	u, err := s.q.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

const (
	defaultCacheSize = 1024
	defaultCacheTTL  = 30 * time.Second
)

// Cached memoises another directory for a bounded time. Misses are not cached.
type Cached struct {
	next  Directory
	cache *expirable.LRU[string, model.User]
}

// NewCached wraps next. Non-positive size or ttl fall back to defaults.
func NewCached(next Directory, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cached{
		next:  next,
		cache: expirable.NewLRU[string, model.User](size, nil, ttl),
	}
}

// Lookup implements Directory.
func (c *Cached) Lookup(ctx context.Context, id string) (*model.User, error) {
	if u, ok := c.cache.Get(id); ok {
		return &u, nil
	}
	u, err := c.next.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, *u)
	return u, nil
}

// Invalidate forgets id so the next lookup reaches the backing directory.
func (c *Cached) Invalidate(id string) {
	c.cache.Remove(id)
}

var (
	_ Directory = (*Store)(nil)
	_ Directory = (*Cached)(nil)
)
