package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"quote-engine-go/config"
	"quote-engine-go/engine"
	"quote-engine-go/infrastructure/logger"
	"quote-engine-go/metrics"
	"quote-engine-go/oracle"
	"quote-engine-go/risk"
	"quote-engine-go/server"
	"quote-engine-go/snapshot"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "config file path")
	logLevel := flag.String("logLevel", "info", "debug, info, warn or error")
	watch := flag.Bool("watch", true, "hot-reload the config file on change")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = *logLevel
	if cfg.Env == "dev" {
		logCfg.Format = "console"
	}
	zl, err := logger.New(logCfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zl.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	met := metrics.NewEngine(prometheus.DefaultRegisterer)
	metrics.Serve(cfg.Server.MetricsAddr)

	// Oracle plumbing: the websocket BBO feed drives both the EMA fallback
	// and the volatility estimate; the HTTP poller is the cross-check.
	primary := oracle.NewWSFeed(cfg.Oracle.PrimaryURL)
	ema := oracle.NewEmaTracker(cfg.Oracle.EmaLambda, time.Duration(cfg.Oracle.MaxAgeSec*float64(time.Second)))
	sigma := oracle.NewSigmaEstimator(cfg.Oracle.SigmaLambda)
	primary.AddSink(ema.Push)
	primary.AddSink(sigma.Push)
	go func() {
		if err := primary.Run(ctx); err != nil && ctx.Err() == nil {
			zl.Error("primary feed stopped", zap.Error(err))
		}
	}()

	var secondary oracle.SecondarySource
	if cfg.Oracle.SecondaryURL != "" {
		feed := oracle.NewHTTPFeed(cfg.Oracle.SecondaryURL, time.Duration(cfg.Oracle.PollIntervalMs)*time.Millisecond)
		go func() {
			if err := feed.Run(ctx); err != nil && ctx.Err() == nil {
				zl.Error("secondary feed stopped", zap.Error(err))
			}
		}()
		secondary = feed
	}

	var store *snapshot.Store
	if cfg.Snapshot.HistoryPath != "" {
		store, err = snapshot.OpenStore(cfg.Snapshot.HistoryPath)
		if err != nil {
			zl.Fatal("open history store", zap.Error(err))
		}
		defer store.Close()
	}

	eng, err := engine.New(engine.Options{
		Params: cfg,
		Fusion: &oracle.Fusion{
			Primary:   primary,
			Ema:       ema,
			Secondary: secondary,
			Limits: oracle.Limits{
				MaxAge:          time.Duration(cfg.Oracle.MaxAgeSec * float64(time.Second)),
				SecondaryMaxAge: time.Duration(cfg.Oracle.SecondaryMaxAgeSec * float64(time.Second)),
			},
		},
		Sigma:   sigma,
		Logger:  zl,
		Metrics: met,
		Store:   store,
		Clock:   risk.SystemClock,
	})
	if err != nil {
		zl.Fatal("init engine", zap.Error(err))
	}

	if *watch {
		watcher := config.Watcher{Path: *cfgPath, Cooldown: 2 * time.Second}
		go func() {
			err := watcher.Start(ctx, func(p config.Params) {
				if err := eng.ApplyParams(p); err != nil {
					zl.Error("apply reloaded config", zap.Error(err))
					return
				}
				zl.Info("config epoch applied")
			})
			if err != nil && ctx.Err() == nil {
				zl.Error("config watcher stopped", zap.Error(err))
			}
		}()
	}

	srv := server.New(eng, cfg.Server, zl)
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		zl.Warn("sd_notify", zap.Error(err))
	}
	zl.Info("quoted started",
		zap.String("env", cfg.Env),
		zap.String("addr", cfg.Server.Addr),
		zap.String("pair", cfg.Pool.BaseSymbol+"/"+cfg.Pool.QuoteSymbol),
	)

	if err := srv.Run(ctx); err != nil {
		zl.Fatal("http server", zap.Error(err))
	}
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		zl.Warn("sd_notify", zap.Error(err))
	}
	zl.Info("quoted stopped")
}
