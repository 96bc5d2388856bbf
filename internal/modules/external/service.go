package external

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Cache is the small slice of the redis wrapper the service needs. Get must
// return ("", nil) on a miss.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

// Service runs the provider fallback chain: providers are tried in order and
// the first successful result wins. Individual provider failures are logged
// and swallowed; the terminal demo provider guarantees the chain as a whole
// never fails.
type Service struct {
	providers []Provider
	cache     Cache
	cacheTTL  time.Duration
	logger    *zap.Logger
}

func NewService(providers []Provider, cache Cache, cacheTTL time.Duration, logger *zap.Logger) *Service {
	return &Service{
		providers: providers,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// FetchNearby returns nearby places from the first provider that answers.
func (s *Service) FetchNearby(ctx context.Context, lat, lng float64, radiusM int) ([]Projection, error) {
	key := cacheKey(lat, lng, radiusM)
	if cached := s.fromCache(ctx, key); cached != nil {
		return cached, nil
	}

	var lastErr error
	for _, p := range s.providers {
		projections, err := p.FetchNearby(ctx, lat, lng, radiusM)
		if err != nil {
			s.logger.Warn("place provider failed, falling back",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		s.toCache(ctx, key, projections)
		return projections, nil
	}

	// Unreachable when the demo provider terminates the chain.
	return nil, fmt.Errorf("all place providers failed: %w", lastErr)
}

// cacheKey rounds coordinates to ~100m so nearby requests share an entry.
func cacheKey(lat, lng float64, radiusM int) string {
	return fmt.Sprintf("opennow:external:nearby:%.3f:%.3f:%d", lat, lng, radiusM)
}

func (s *Service) fromCache(ctx context.Context, key string) []Projection {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil || raw == "" {
		return nil
	}
	var projections []Projection
	if err := json.Unmarshal([]byte(raw), &projections); err != nil {
		return nil
	}
	return projections
}

func (s *Service) toCache(ctx context.Context, key string, projections []Projection) {
	if s.cache == nil || len(projections) == 0 {
		return
	}
	raw, err := json.Marshal(projections)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(raw), s.cacheTTL); err != nil {
		s.logger.Debug("nearby cache write failed", zap.Error(err))
	}
}
