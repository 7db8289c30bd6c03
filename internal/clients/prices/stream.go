// Package prices maintains a live price feed over WebSocket, filling the
// market price cache. The feed is best-effort; consumers fall back to
// static statistics when prices are missing or stale.
package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/helmfi/helm/internal/modules/market"
)

const (
	writeWait   = 10 * time.Second
	dialTimeout = 30 * time.Second

	baseReconnectDelay = 5 * time.Second
	maxReconnectDelay  = 5 * time.Minute
)

// Stream subscribes to a price feed and writes updates into the cache.
type Stream struct {
	url    string
	assets []string
	cache  *market.PriceCache
	log    zerolog.Logger

	mu         sync.RWMutex
	conn       *websocket.Conn
	connCtx    context.Context
	cancelFunc context.CancelFunc
	connected  bool
	stopped    bool
	stopChan   chan struct{}
}

// priceUpdate is one feed message.
type priceUpdate struct {
	Asset string  `json:"asset"`
	Price float64 `json:"price"`
	TS    int64   `json:"ts"` // unix milliseconds
}

// NewStream creates a price stream client subscribed to the given assets.
func NewStream(url string, assets []string, cache *market.PriceCache, log zerolog.Logger) *Stream {
	return &Stream{
		url:      url,
		assets:   assets,
		cache:    cache,
		log:      log.With().Str("component", "price_stream").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start connects and begins reading. A failed initial connection retries
// in the background rather than blocking startup.
func (s *Stream) Start() error {
	if err := s.connect(); err != nil {
		s.log.Warn().Err(err).Msg("Initial price stream connection failed, retrying in background")
		go s.reconnectLoop()
		return err
	}

	s.mu.RLock()
	ctx := s.connCtx
	s.mu.RUnlock()
	go s.readLoop(ctx)
	return nil
}

// Stop shuts the stream down.
func (s *Stream) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.stopChan)
	return s.disconnect()
}

// IsConnected reports the current connection state.
func (s *Stream) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Stream) connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), dialTimeout)
	defer dialCancel()

	conn, _, err := websocket.Dial(dialCtx, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial price stream: %w", err)
	}

	connCtx, cancel := context.WithCancel(context.Background())
	s.conn = conn
	s.connCtx = connCtx
	s.cancelFunc = cancel
	s.connected = true

	if err := s.subscribe(connCtx); err != nil {
		cancel()
		conn.Close(websocket.StatusNormalClosure, "subscribe failed")
		s.conn = nil
		s.connCtx = nil
		s.cancelFunc = nil
		s.connected = false
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	s.log.Info().Str("url", s.url).Int("assets", len(s.assets)).Msg("Price stream connected")
	return nil
}

func (s *Stream) disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}

	err := s.conn.Close(websocket.StatusNormalClosure, "")
	s.conn = nil
	s.connCtx = nil
	s.connected = false
	return err
}

func (s *Stream) subscribe(ctx context.Context) error {
	msg := map[string]interface{}{"op": "subscribe", "assets": s.assets}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return s.conn.Write(writeCtx, websocket.MessageText, data)
}

func (s *Stream) readLoop(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.connected = false
		stopped := s.stopped
		s.mu.Unlock()
		if !stopped {
			go s.reconnectLoop()
		}
	}()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn == nil {
			return
		}

		msgType, message, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				s.log.Debug().Msg("Price stream closed")
			} else {
				s.log.Error().Err(err).Msg("Price stream read error")
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		if err := s.handleMessage(message); err != nil {
			s.log.Warn().Err(err).Msg("Failed to handle price message")
		}
	}
}

func (s *Stream) handleMessage(message []byte) error {
	var update priceUpdate
	if err := json.Unmarshal(message, &update); err != nil {
		return fmt.Errorf("failed to parse price update: %w", err)
	}
	if update.Asset == "" || update.Price <= 0 {
		return nil
	}

	at := time.Now()
	if update.TS > 0 {
		at = time.UnixMilli(update.TS)
	}
	s.cache.Set(update.Asset, update.Price, at)
	return nil
}

func (s *Stream) reconnectLoop() {
	attempt := 0
	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		attempt++
		delay := backoff(attempt)
		s.log.Info().Int("attempt", attempt).Dur("delay", delay).Msg("Reconnecting price stream")

		select {
		case <-time.After(delay):
		case <-s.stopChan:
			return
		}

		if err := s.connect(); err != nil {
			s.log.Error().Err(err).Int("attempt", attempt).Msg("Price stream reconnection failed")
			continue
		}

		s.mu.RLock()
		ctx := s.connCtx
		s.mu.RUnlock()
		go s.readLoop(ctx)
		return
	}
}

func backoff(attempt int) time.Duration {
	delay := float64(baseReconnectDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxReconnectDelay) {
		delay = float64(maxReconnectDelay)
	}
	return time.Duration(delay)
}
