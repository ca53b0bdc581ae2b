package providers

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/kyt-auditor/internal/domain/kyt"
	"github.com/davidleathers/kyt-auditor/internal/infrastructure/cache"
)

// CachedSanctions memoises another SanctionsProvider in a cache. Cache
// failures are logged and the lookup falls through to the wrapped provider.
type CachedSanctions struct {
	next   SanctionsProvider
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedSanctions(next SanctionsProvider, c cache.Cache, ttl time.Duration, logger *zap.Logger) *CachedSanctions {
	if ttl <= 0 {
		ttl = cache.SanctionsTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedSanctions{
		next:   next,
		cache:  c,
		ttl:    ttl,
		logger: logger.Named("sanctions_cache"),
	}
}

func sanctionsKey(query string) string {
	return cache.SanctionsPrefix + strings.ToLower(strings.TrimSpace(query))
}

// Search serves query from the cache, populating it on a miss.
func (p *CachedSanctions) Search(ctx context.Context, query string) ([]kyt.SanctionsMatch, error) {
	key := sanctionsKey(query)

	var cached []kyt.SanctionsMatch
	err := p.cache.GetJSON(ctx, key, &cached)
	if err == nil {
		for i := range cached {
			cached[i].EntityQueried = query
		}
		return cached, nil
	}
	var notFound cache.ErrCacheKeyNotFound
	if !errors.As(err, &notFound) {
		p.logger.Warn("Sanctions cache read failed", zap.String("key", key), zap.Error(err))
	}

	matches, err := p.next.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	if err := p.cache.SetJSON(ctx, key, matches, p.ttl); err != nil {
		p.logger.Warn("Sanctions cache write failed", zap.String("key", key), zap.Error(err))
	}
	return matches, nil
}

// Invalidate drops the cached result for query.
func (p *CachedSanctions) Invalidate(ctx context.Context, query string) error {
	return p.cache.Delete(ctx, sanctionsKey(query))
}
