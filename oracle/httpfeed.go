package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPFeed polls an independent price API and caches the latest reading.
// It implements SecondarySource for the divergence cross-check.
type HTTPFeed struct {
	URL      string
	Interval time.Duration
	client   *resty.Client

	mu       sync.RWMutex
	mid      float64
	confBps  float64
	lastTick time.Time

	now func() time.Time
}

// secondaryQuote is the poll response body.
type secondaryQuote struct {
	Mid     float64 `json:"mid"`
	ConfBps float64 `json:"confBps"`
	TsMs    int64   `json:"ts"`
}

// NewHTTPFeed builds a poller for the given endpoint.
func NewHTTPFeed(url string, interval time.Duration) *HTTPFeed {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &HTTPFeed{
		URL:      url,
		Interval: interval,
		client:   resty.New().SetTimeout(2 * time.Second),
		now:      time.Now,
	}
}

// Run polls until ctx is done. Poll errors leave the cache untouched; the
// freshness gate in fusion handles the resulting staleness.
func (h *HTTPFeed) Run(ctx context.Context) error {
	if h.URL == "" {
		return fmt.Errorf("http feed: url required")
	}
	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			h.poll(ctx)
		}
	}
}

func (h *HTTPFeed) poll(ctx context.Context) {
	var q secondaryQuote
	resp, err := h.client.R().
		SetContext(ctx).
		SetResult(&q).
		Get(h.URL)
	if err != nil || resp.IsError() {
		return
	}
	if q.Mid <= 0 {
		return
	}
	h.mu.Lock()
	h.mid = q.Mid
	h.confBps = q.ConfBps
	if q.TsMs > 0 {
		h.lastTick = time.UnixMilli(q.TsMs)
	} else {
		h.lastTick = h.now()
	}
	h.mu.Unlock()
}

// ReadSecondaryMid implements SecondarySource.
func (h *HTTPFeed) ReadSecondaryMid() (float64, float64, time.Duration, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.mid <= 0 {
		return 0, 0, 0, false
	}
	return h.mid, h.confBps, h.now().Sub(h.lastTick), true
}
