package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSFeed subscribes to a best-bid/offer websocket stream and caches the
// latest observation. It implements PrimarySource; the engine never blocks
// on the network, it only reads the cache.
type WSFeed struct {
	URL    string
	Dialer *websocket.Dialer

	mu       sync.RWMutex
	bid      float64
	ask      float64
	lastTick time.Time

	// sinks receive every accepted mid (EMA tracker, sigma estimator).
	sinks []func(mid float64)

	now func() time.Time
}

// bboMessage is the wire format of one ticker frame. Prices arrive as
// strings, exchange style.
type bboMessage struct {
	Bid string `json:"b"`
	Ask string `json:"a"`
	Ts  int64  `json:"E"` // event time, ms epoch
}

// NewWSFeed builds a feed for the given stream URL.
func NewWSFeed(url string) *WSFeed {
	return &WSFeed{
		URL:    url,
		Dialer: websocket.DefaultDialer,
		now:    time.Now,
	}
}

// AddSink registers a consumer of accepted mids. Must be called before Run.
func (w *WSFeed) AddSink(fn func(mid float64)) {
	w.sinks = append(w.sinks, fn)
}

// Run connects and keeps reading until ctx is done, reconnecting with a
// fixed backoff on any error.
func (w *WSFeed) Run(ctx context.Context) error {
	if w.URL == "" {
		return fmt.Errorf("ws feed: url required")
	}
	backoff := time.Second
	for {
		if err := w.readLoop(ctx); err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			continue
		}
		return nil
	}
}

func (w *WSFeed) readLoop(ctx context.Context) error {
	conn, _, err := w.Dialer.DialContext(ctx, w.URL, nil)
	if err != nil {
		return fmt.Errorf("ws dial %s: %w", w.URL, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("ws read: %w", err)
		}
		w.handleFrame(raw)
	}
}

func (w *WSFeed) handleFrame(raw []byte) {
	var msg bboMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	bid, err1 := strconv.ParseFloat(msg.Bid, 64)
	ask, err2 := strconv.ParseFloat(msg.Ask, 64)
	if err1 != nil || err2 != nil || bid <= 0 || ask <= 0 || ask < bid {
		return
	}
	w.mu.Lock()
	w.bid = bid
	w.ask = ask
	if msg.Ts > 0 {
		w.lastTick = time.UnixMilli(msg.Ts)
	} else {
		w.lastTick = w.now()
	}
	sinks := w.sinks
	w.mu.Unlock()

	mid := (bid + ask) / 2
	for _, fn := range sinks {
		fn(mid)
	}
}

// ReadMidAndAge implements PrimarySource.
func (w *WSFeed) ReadMidAndAge() (float64, time.Duration, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.bid <= 0 || w.ask <= 0 {
		return 0, 0, false
	}
	return (w.bid + w.ask) / 2, w.now().Sub(w.lastTick), true
}

// ReadBidAsk implements PrimarySource.
func (w *WSFeed) ReadBidAsk() (float64, float64, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.bid <= 0 || w.ask <= 0 {
		return 0, 0, false
	}
	return w.bid, w.ask, true
}
