package keys

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	defaultCacheTTL           = 10 * time.Minute
	defaultMinRefreshInterval = 30 * time.Second
	refreshFlightKey          = "public-key"
)

// CacheConfig bounds how long a fetched key is trusted.
type CacheConfig struct {
	// TTL is how long a key is served without contacting the provider.
	TTL time.Duration
	// MaxStale is how long past TTL the previous key keeps being served
	// while a refresh is in flight or failing. Zero means equal to TTL.
	MaxStale time.Duration
	// MinRefreshInterval rate-limits Invalidate.
	MinRefreshInterval time.Duration
}

// Cache wraps a [Source] with a bounded freshness window.
//
// At most one refresh is in flight at a time. Callers holding a previous key
// keep using it while the refresh runs; callers with no usable key wait for
// that single fetch.
type Cache struct {
	source Source
	cfg    CacheConfig
	now    func() time.Time

	mu             sync.RWMutex
	key            *rsa.PublicKey
	fetchedAt      time.Time
	invalidated    bool
	lastInvalidate time.Time

	group singleflight.Group
}

// NewCache validates cfg and wraps source.
func NewCache(source Source, cfg CacheConfig) (*Cache, error) {
	if source == nil {
		return nil, errors.New("key source required")
	}
	if cfg.TTL == 0 {
		cfg.TTL = defaultCacheTTL
	}
	if cfg.TTL < 0 {
		return nil, errors.New("key cache TTL must be > 0")
	}
	if cfg.MaxStale == 0 {
		cfg.MaxStale = cfg.TTL
	}
	if cfg.MaxStale < 0 {
		return nil, errors.New("key cache MaxStale must be >= 0")
	}
	if cfg.MinRefreshInterval == 0 {
		cfg.MinRefreshInterval = defaultMinRefreshInterval
	}

	return &Cache{
		source: source,
		cfg:    cfg,
		now:    time.Now,
	}, nil
}

// PublicKey returns the cached key, refreshing it when stale.
func (c *Cache) PublicKey(ctx context.Context) (*rsa.PublicKey, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.RLock()
	key, fetchedAt, invalidated := c.key, c.fetchedAt, c.invalidated
	c.mu.RUnlock()

	age := c.now().Sub(fetchedAt)
	usable := key != nil && age < c.cfg.TTL+c.cfg.MaxStale

	if key != nil && !invalidated {
		if age < c.cfg.TTL {
			return key, nil
		}
		if usable {
			c.group.DoChan(refreshFlightKey, c.fetch(ctx))
			return key, nil
		}
	}

	fresh, err := c.wait(ctx)
	if err != nil {
		if usable {
			return key, nil
		}
		return nil, err
	}
	return fresh, nil
}

// Invalidate marks the cached key as suspect so the next call refetches.
// Calls closer together than MinRefreshInterval are ignored.
func (c *Cache) Invalidate() {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lastInvalidate.IsZero() && now.Sub(c.lastInvalidate) < c.cfg.MinRefreshInterval {
		return
	}
	c.invalidated = true
	c.lastInvalidate = now
}

func (c *Cache) wait(ctx context.Context) (*rsa.PublicKey, error) {
	ch := c.group.DoChan(refreshFlightKey, c.fetch(ctx))
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*rsa.PublicKey), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, ctx.Err())
	}
}

// fetch detaches from the caller's cancellation: the shared refresh must not
// fail for every waiter because the first caller gave up. The source applies
// its own timeout.
func (c *Cache) fetch(ctx context.Context) func() (any, error) {
	detached := context.WithoutCancel(ctx)
	return func() (any, error) {
		key, err := c.source.PublicKey(detached)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.key = key
		c.fetchedAt = c.now()
		c.invalidated = false
		c.mu.Unlock()

		return key, nil
	}
}
