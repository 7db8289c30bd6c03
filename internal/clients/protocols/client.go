// Package protocols is the REST client for the Protocol Directory, which
// tracks yield-protocol health and risk ratings. Lookups are cached; a
// protocol's health does not change on request timescales.
package protocols

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helmfi/helm/internal/domain"
)

// HealthTTL is how long a cached health lookup stays fresh.
const HealthTTL = 5 * time.Minute

// Client implements domain.ProtocolDirectory over HTTP with a read
// cache.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger

	mu    sync.RWMutex
	cache map[string]cachedHealth
}

type cachedHealth struct {
	health    domain.ProtocolHealth
	fetchedAt time.Time
}

// NewClient creates a protocol directory client.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log:   log.With().Str("client", "protocols").Logger(),
		cache: make(map[string]cachedHealth),
	}
}

// GetProtocolHealth returns a protocol's health, served from cache when
// fresh.
func (c *Client) GetProtocolHealth(ctx context.Context, protocolID string) (domain.ProtocolHealth, error) {
	c.mu.RLock()
	cached, ok := c.cache[protocolID]
	c.mu.RUnlock()
	if ok && time.Since(cached.fetchedAt) < HealthTTL {
		return cached.health, nil
	}

	health, err := c.fetch(ctx, protocolID)
	if err != nil {
		// Serve stale data over nothing while the directory is down.
		if ok {
			c.log.Warn().Str("protocol", protocolID).Err(err).Msg("Serving stale protocol health")
			return cached.health, nil
		}
		return domain.ProtocolHealth{}, err
	}

	c.mu.Lock()
	c.cache[protocolID] = cachedHealth{health: health, fetchedAt: time.Now()}
	c.mu.Unlock()
	return health, nil
}

func (c *Client) fetch(ctx context.Context, protocolID string) (domain.ProtocolHealth, error) {
	url := fmt.Sprintf("%s/protocols/%s/health", c.baseURL, protocolID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.ProtocolHealth{}, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.ProtocolHealth{}, domain.WrapExecutionError(domain.ErrKindProtocolUnavailable, "directory unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ProtocolHealth{}, domain.NewExecutionError(domain.ErrKindProtocolUnavailable,
			fmt.Sprintf("protocol %q not found", protocolID))
	}
	if resp.StatusCode != http.StatusOK {
		return domain.ProtocolHealth{}, domain.NewExecutionError(domain.ErrKindProtocolUnavailable,
			fmt.Sprintf("directory returned %d", resp.StatusCode))
	}

	var health domain.ProtocolHealth
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return domain.ProtocolHealth{}, fmt.Errorf("failed to decode health response: %w", err)
	}
	return health, nil
}
