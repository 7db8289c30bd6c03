package market

import (
	"sync"
	"time"
)

// pricePoint is one cached price observation.
type pricePoint struct {
	price float64
	at    time.Time
}

// PriceCache is a thread-safe cache of current asset prices, fed by the
// price stream client. Prices older than the staleness threshold are not
// served.
type PriceCache struct {
	mu        sync.RWMutex
	prices    map[string]pricePoint
	staleness time.Duration
}

// DefaultPriceStaleness is how long a cached price stays servable.
const DefaultPriceStaleness = 15 * time.Minute

// NewPriceCache creates an empty price cache.
func NewPriceCache() *PriceCache {
	return &PriceCache{
		prices:    make(map[string]pricePoint),
		staleness: DefaultPriceStaleness,
	}
}

// Set records a price observation for an asset.
func (c *PriceCache) Set(asset string, price float64, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[normalizeAsset(asset)] = pricePoint{price: price, at: at}
}

// GetPrice returns the cached price for an asset, if fresh.
// Implements domain.PriceSource.
func (c *PriceCache) GetPrice(asset string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[normalizeAsset(asset)]
	if !ok || time.Since(p.at) > c.staleness {
		return 0, false
	}
	return p.price, true
}

// Len returns the number of cached assets, fresh or not.
func (c *PriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.prices)
}
