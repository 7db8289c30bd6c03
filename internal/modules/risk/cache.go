package risk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/helmfi/helm/internal/domain"
	"github.com/helmfi/helm/internal/modules/calculations"
)

// AssessmentTTL bounds how stale a served risk assessment can be. There
// is no invalidation push from the ledger; callers tolerate scores up to
// this old.
const AssessmentTTL = 10 * time.Minute

// Cache stores assessments keyed by portfolio content hash and tolerance,
// backed by the persistent calculations cache.
type Cache struct {
	store *calculations.Cache
	ttl   time.Duration
}

// NewCache creates an assessment cache over the given store.
func NewCache(store *calculations.Cache) *Cache {
	return &Cache{store: store, ttl: AssessmentTTL}
}

// Get returns a cached assessment for the portfolio and tolerance, if
// present and fresh.
func (c *Cache) Get(p domain.Portfolio, tolerance domain.RiskTolerance) (*Assessment, bool) {
	var out Assessment
	if err := c.store.Get(cacheKey(p, tolerance), &out); err != nil {
		return nil, false
	}
	return &out, true
}

// Put stores an assessment.
func (c *Cache) Put(p domain.Portfolio, tolerance domain.RiskTolerance, a *Assessment) {
	// Cache write failures only cost a recomputation.
	_ = c.store.Set(cacheKey(p, tolerance), a, c.ttl)
}

// cacheKey hashes the portfolio's content so that any position change
// produces a new key. Positions are sorted for determinism.
func cacheKey(p domain.Portfolio, tolerance domain.RiskTolerance) string {
	parts := make([]string, 0, len(p.Positions))
	for _, pos := range p.Positions {
		parts = append(parts, fmt.Sprintf("%s|%s|%.2f", pos.Asset, pos.Protocol, pos.Value))
	}
	sort.Strings(parts)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%.2f|%s|%s", p.UserID, p.TotalValue, strings.Join(parts, ";"), tolerance)
	return "risk:" + hex.EncodeToString(h.Sum(nil))
}
