// Package server exposes the engine over HTTP. The surface is deliberately
// small: price discovery, settlement, snapshot previews and the permissionless
// rebalance trigger.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"quote-engine-go/config"
	"quote-engine-go/engine"
	"quote-engine-go/infrastructure/logger"
	"quote-engine-go/inventory"
	"quote-engine-go/oracle"
	"quote-engine-go/snapshot"
)

// Server wraps one engine behind a gin router.
type Server struct {
	eng *engine.Engine
	log *logger.Logger

	// Manual rebalances are open to anyone, so they are the one endpoint
	// that gets rate limited.
	rebalanceLimiter *rate.Limiter

	httpSrv *http.Server
}

// New builds the server from the governance server block.
func New(eng *engine.Engine, cfg config.ServerConfig, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	limit := rate.Inf
	if cfg.RebalanceRatePerMin > 0 {
		limit = rate.Limit(cfg.RebalanceRatePerMin / 60)
	}
	burst := cfg.RebalanceBurst
	if burst <= 0 {
		burst = 1
	}
	s := &Server{
		eng:              eng,
		log:              log,
		rebalanceLimiter: rate.NewLimiter(limit, burst),
	}
	s.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router assembles the HTTP surface.
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api")
	api.POST("/quote", s.handleQuote)
	api.POST("/swap", s.handleSwap)
	api.POST("/rebalance", s.handleRebalance)

	preview := api.Group("/preview")
	preview.POST("/fees", s.handlePreviewFees)
	preview.GET("/ladder", s.handlePreviewLadder)

	state := api.Group("/state")
	state.GET("/reserves", s.handleReserves)
	state.GET("/divergence", s.handleDivergence)
	state.GET("/snapshot", s.handleSnapshot)

	return r
}

// Run serves until the context is cancelled, then drains.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.Info("http server listening", zap.String("addr", s.httpSrv.Addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

type tradeRequest struct {
	AmountIn     float64 `json:"amountIn" binding:"required,gt=0"`
	IsBaseIn     bool    `json:"isBaseIn"`
	Mode         string  `json:"mode"` // "spot" (default) or "ema"
	Caller       string  `json:"caller"`
	MinAmountOut float64 `json:"minAmountOut"`
	DeadlineUnix int64   `json:"deadlineUnix"` // zero disables
}

func parseMode(raw string) (oracle.Mode, bool) {
	switch raw {
	case "", "spot":
		return oracle.ModeSpot, true
	case "ema":
		return oracle.ModeEma, true
	default:
		return oracle.ModeSpot, false
	}
}

func (s *Server) handleQuote(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "error": err.Error()})
		return
	}
	mode, ok := parseMode(req.Mode)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "error": "unknown mode " + req.Mode})
		return
	}
	q, err := s.eng.QuoteFor(req.AmountIn, req.IsBaseIn, mode, req.Caller)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (s *Server) handleSwap(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "error": err.Error()})
		return
	}
	mode, ok := parseMode(req.Mode)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "error": "unknown mode " + req.Mode})
		return
	}
	var deadline time.Time
	if req.DeadlineUnix > 0 {
		deadline = time.Unix(req.DeadlineUnix, 0)
	}
	res, err := s.eng.Swap(engine.SwapRequest{
		AmountIn:     req.AmountIn,
		MinAmountOut: req.MinAmountOut,
		IsBaseIn:     req.IsBaseIn,
		Mode:         mode,
		Deadline:     deadline,
		Caller:       req.Caller,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleRebalance(c *gin.Context) {
	if !s.rebalanceLimiter.Allow() {
		c.JSON(http.StatusTooManyRequests, gin.H{"code": "rate_limited", "error": "rebalance rate limit exceeded"})
		return
	}
	if err := s.eng.ManualRebalance(); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "committed"})
}

type previewFeesRequest struct {
	Sizes []float64 `json:"sizes" binding:"required,min=1"`
}

func (s *Server) handlePreviewFees(c *gin.Context) {
	var req previewFeesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "error": err.Error()})
		return
	}
	fees, err := s.eng.PreviewFees(req.Sizes)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sizes": req.Sizes, "feeBps": fees})
}

func (s *Server) handlePreviewLadder(c *gin.Context) {
	var query struct {
		BaseSize float64 `form:"baseSize" binding:"required,gt=0"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "error": err.Error()})
		return
	}
	ladder, err := s.eng.PreviewLadder(query.BaseSize)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ladder)
}

func (s *Server) handleReserves(c *gin.Context) {
	c.JSON(http.StatusOK, s.eng.Reserves())
}

func (s *Server) handleDivergence(c *gin.Context) {
	c.JSON(http.StatusOK, s.eng.SoftDivergenceState())
}

func (s *Server) handleSnapshot(c *gin.Context) {
	snap := s.eng.SnapshotRaw()
	if !snap.Valid() {
		c.JSON(http.StatusNotFound, gin.H{"code": "no_snapshot", "error": "no trade settled yet"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// writeError maps engine errors onto stable codes so callers can branch
// without parsing messages.
func (s *Server) writeError(c *gin.Context, err error) {
	code, status := "internal", http.StatusInternalServerError
	var stale *snapshot.StaleError

	switch {
	case errors.Is(err, oracle.ErrMidUnset):
		code, status = "mid_unset", http.StatusServiceUnavailable
	case errors.Is(err, oracle.ErrStale):
		code, status = "oracle_stale", http.StatusServiceUnavailable
	case errors.Is(err, oracle.ErrDivergenceHard):
		code, status = "divergence_hard", http.StatusConflict
	case errors.Is(err, inventory.ErrFloorBreach):
		code, status = "floor_breach", http.StatusConflict
	case errors.Is(err, inventory.ErrRecenterCooldown):
		code, status = "recenter_cooldown", http.StatusTooManyRequests
	case errors.Is(err, inventory.ErrRecenterThreshold):
		code, status = "recenter_threshold", http.StatusConflict
	case errors.Is(err, engine.ErrDeadlineExceeded):
		code, status = "deadline_exceeded", http.StatusRequestTimeout
	case errors.Is(err, engine.ErrSlippage):
		code, status = "slippage", http.StatusConflict
	case errors.Is(err, engine.ErrNoSnapshot):
		code, status = "no_snapshot", http.StatusNotFound
	case errors.As(err, &stale):
		code, status = "snapshot_stale", http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"code": code, "error": err.Error()})
}
