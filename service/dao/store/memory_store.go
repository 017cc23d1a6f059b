package store

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/viant/onboard/service/dao"
)

// MemoryStore is a generic in-memory implementation of dao.Service.
// It keeps entities of type *T mapped by a comparable key K obtained from
// the supplied keySelector. Entries expire after the configured TTL; a zero
// TTL keeps them until deleted.
type MemoryStore[K comparable, T any] struct {
	cache       *ttlcache.Cache[K, *T]
	keySelector func(*T) K
	filter      func(*T, []*dao.Parameter) bool
}

// Option configures a MemoryStore.
type Option[K comparable, T any] func(s *MemoryStore[K, T])

// WithFilter sets the predicate List applies to records.
func WithFilter[K comparable, T any](filter func(*T, []*dao.Parameter) bool) Option[K, T] {
	return func(s *MemoryStore[K, T]) {
		s.filter = filter
	}
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore[K comparable, T any](keySelector func(*T) K, ttl time.Duration, opts ...Option[K, T]) *MemoryStore[K, T] {
	ret := &MemoryStore[K, T]{
		cache:       ttlcache.New[K, *T](ttlcache.WithTTL[K, *T](ttl), ttlcache.WithDisableTouchOnHit[K, *T]()),
		keySelector: keySelector,
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

var _ dao.Service[string, struct{}] = (*MemoryStore[string, struct{}])(nil)

// Save stores or overwrites a record.
func (s *MemoryStore[K, T]) Save(_ context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	var zero K
	key := s.keySelector(v)
	if key == zero {
		return dao.ErrInvalidID
	}
	s.cache.Set(key, v, ttlcache.DefaultTTL)
	return nil
}

// Load returns a record by key.
func (s *MemoryStore[K, T]) Load(_ context.Context, key K) (*T, error) {
	item := s.cache.Get(key)
	if item == nil {
		return nil, dao.ErrNotFound
	}
	return item.Value(), nil
}

// Delete removes a record.
func (s *MemoryStore[K, T]) Delete(_ context.Context, key K) error {
	if s.cache.Get(key) == nil {
		return dao.ErrNotFound
	}
	s.cache.Delete(key)
	return nil
}

// List returns all live records accepted by the filter.
func (s *MemoryStore[K, T]) List(_ context.Context, parameters ...*dao.Parameter) ([]*T, error) {
	items := s.cache.Items()
	out := make([]*T, 0, len(items))
	for _, item := range items {
		v := item.Value()
		if s.filter != nil && !s.filter(v, parameters) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// Len returns the number of live records.
func (s *MemoryStore[K, T]) Len() int {
	s.cache.DeleteExpired()
	return s.cache.Len()
}
