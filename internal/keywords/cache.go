package keywords

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CorpusStamper reports when the corpus last changed.
type CorpusStamper interface {
	CorpusUpdatedAt(ctx context.Context) (time.Time, error)
}

// Cache serves a learned mapping until the corpus stamp moves or the TTL
// expires. A zero TTL means only the stamp invalidates.
type Cache struct {
	learner *Learner
	stamper CorpusStamper
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	mapping Mapping
	stamp   time.Time
	builtAt time.Time
}

func NewCache(learner *Learner, stamper CorpusStamper, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{
		learner: learner,
		stamper: stamper,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

func (c *Cache) Mapping(ctx context.Context) Mapping {
	stamp, err := c.stamper.CorpusUpdatedAt(ctx)
	if err != nil {
		c.logger.Warn("Failed to read corpus stamp, bypassing keyword cache", zap.Error(err))
		return c.learner.Mapping(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mapping != nil && stamp.Equal(c.stamp) && !c.expired() {
		return c.mapping.Clone()
	}

	mapping, err := c.learner.Load(ctx)
	if err != nil {
		c.logger.Warn("Continuing without learned keywords", zap.Error(err))
		return Mapping{}
	}
	c.mapping = mapping
	c.stamp = stamp
	c.builtAt = c.now()
	return mapping.Clone()
}

// Invalidate drops the cached mapping.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mapping = nil
}

func (c *Cache) expired() bool {
	return c.ttl > 0 && c.now().Sub(c.builtAt) > c.ttl
}
