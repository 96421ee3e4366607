package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/smileynet/wopt/internal/weapon"
)

// Fetcher is the remote side of the cache.
type Fetcher interface {
	Weapons(ctx context.Context) ([]string, error)
	WeaponData(ctx context.Context) (weapon.DataMap, error)
	Optimize(ctx context.Context, req weapon.Request) (weapon.Result, error)
	ClearCacheAndFetch(ctx context.Context, target string) error
}

// CachedClient answers from the store when it can and from the fetcher
// otherwise, storing what it fetches.
type CachedClient struct {
	fetcher Fetcher
	store   *Store
	logger  *slog.Logger
}

// NewCachedClient wraps fetcher with store.
func NewCachedClient(fetcher Fetcher, store *Store, logger *slog.Logger) *CachedClient {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CachedClient{fetcher: fetcher, store: store, logger: logger}
}

// Store returns the underlying store.
func (cc *CachedClient) Store() *Store { return cc.store }

// Weapons returns the weapon catalog.
func (cc *CachedClient) Weapons(ctx context.Context) ([]string, error) {
	if names, ok := cc.store.Weapons(); ok {
		cc.logger.Debug("weapons from cache", "count", len(names))
		return names, nil
	}
	names, err := cc.fetcher.Weapons(ctx)
	if err != nil {
		return nil, err
	}
	cc.persist("weapons", cc.store.PutWeapons(names))
	return names, nil
}

// WeaponData returns the snapshot, bypassing the cache when force is set.
func (cc *CachedClient) WeaponData(ctx context.Context, force bool) (weapon.DataMap, error) {
	if !force {
		if data, ok := cc.store.Snapshot(); ok {
			cc.logger.Debug("weapon data from cache", "weapons", len(data))
			return data, nil
		}
	}
	data, err := cc.fetcher.WeaponData(ctx)
	if err != nil {
		return nil, err
	}
	cc.persist("weapon data", cc.store.PutSnapshot(data))
	return data, nil
}

// Optimize returns the cached result for req or fetches and caches it.
func (cc *CachedClient) Optimize(ctx context.Context, req weapon.Request) (weapon.Result, error) {
	key := req.Key()
	if r, ok := cc.store.Get(key); ok {
		cc.logger.Debug("optimize from cache", "key", key)
		return r, nil
	}
	r, err := cc.fetcher.Optimize(ctx, req)
	if err != nil {
		return weapon.Result{}, err
	}
	cc.persist(key, cc.store.Put(key, r))
	return r, nil
}

// Cached reports whether a fresh result for req is stored.
func (cc *CachedClient) Cached(req weapon.Request) bool {
	_, ok := cc.store.Get(req.Key())
	return ok
}

// Refresh asks the backend to recompute target, drops the cached snapshot
// and fetches the new one.
func (cc *CachedClient) Refresh(ctx context.Context, target string) (weapon.DataMap, error) {
	if err := cc.fetcher.ClearCacheAndFetch(ctx, target); err != nil {
		return nil, fmt.Errorf("cache: refreshing %s: %w", target, err)
	}
	if err := cc.store.ClearSnapshot(); err != nil {
		cc.logger.Warn("dropping cached weapon data failed", "err", err)
	}
	return cc.WeaponData(ctx, true)
}

// ClearResults drops every cached optimization result.
func (cc *CachedClient) ClearResults() error {
	return cc.store.Clear()
}

// ClearAll drops results, the snapshot and the weapon list.
func (cc *CachedClient) ClearAll() error {
	return cc.store.ClearAll()
}

// persist logs a failed cache write. A write failure never fails the
// request that produced the data.
func (cc *CachedClient) persist(what string, err error) {
	if err != nil {
		cc.logger.Warn("cache write failed", "what", what, "err", err)
	}
}
