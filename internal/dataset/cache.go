package dataset

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes loaded collections for the life of the process, keyed by
// source configuration. Concurrent requests for the same key share a single
// load; failures are not cached.
type Cache struct {
	loader *Loader
	group  singleflight.Group

	mu        sync.RWMutex
	burnScar  map[string]*BurnScarCollection
	buildings map[string]*BuildingCollection
}

// NewCache creates a Cache backed by loader.
func NewCache(loader *Loader) *Cache {
	return &Cache{
		loader:    loader,
		burnScar:  make(map[string]*BurnScarCollection),
		buildings: make(map[string]*BuildingCollection),
	}
}

// BurnScar returns the burn-scar collection for src, loading it on first use.
func (c *Cache) BurnScar(ctx context.Context, src BurnScarSource) (*BurnScarCollection, error) {
	key := src.Key()

	c.mu.RLock()
	coll, ok := c.burnScar[key]
	c.mu.RUnlock()
	if ok {
		return coll, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		coll, ok := c.burnScar[key]
		c.mu.RUnlock()
		if ok {
			return coll, nil
		}
		coll, err := c.loader.LoadBurnScar(ctx, src)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.burnScar[key] = coll
		c.mu.Unlock()
		return coll, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*BurnScarCollection), nil
}

// Buildings returns the merged building collection for srcs, loading it on
// first use.
func (c *Cache) Buildings(ctx context.Context, srcs []BuildingSource) (*BuildingCollection, error) {
	key := buildingKey(srcs)

	c.mu.RLock()
	coll, ok := c.buildings[key]
	c.mu.RUnlock()
	if ok {
		return coll, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		coll, ok := c.buildings[key]
		c.mu.RUnlock()
		if ok {
			return coll, nil
		}
		coll, err := c.loader.LoadBuildingDamage(ctx, srcs)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.buildings[key] = coll
		c.mu.Unlock()
		return coll, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*BuildingCollection), nil
}
