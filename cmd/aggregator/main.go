// Command aggregator runs the real-time market-data aggregator: it
// connects to configured exchange feeds, deduplicates and normalizes
// ticks, builds OHLCV candles, evaluates alert rules, and serves
// Prometheus metrics and a health endpoint.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"marketagg/config"
	"marketagg/internal/adapter"
	"marketagg/internal/alert"
	"marketagg/internal/candle"
	"marketagg/internal/dedup"
	"marketagg/internal/logger"
	"marketagg/internal/metrics"
	"marketagg/internal/model"
	"marketagg/internal/notification"
	"marketagg/internal/pipeline"
	"marketagg/internal/scheduler"
	redisstore "marketagg/internal/store/redis"
	"marketagg/internal/store/sqlite"
	"marketagg/internal/symbolfilter"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	logger.Init("marketagg", slog.LevelInfo)
	log.Println("[aggregator] starting...")

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[aggregator] config load failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- metrics + health ----
	registry := metrics.NewRegistry()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, registry, health)
	metricsSrv.Start()

	// ---- storage ----
	if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
		log.Fatalf("[aggregator] create sqlite dir: %v", err)
	}
	db, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[aggregator] sqlite init failed: %v", err)
	}
	defer db.Close()
	health.SetRepositoryOK(true)

	tickRepo := sqlite.NewTickRepository(db)
	candleRepo := sqlite.NewCandleRepository(db)
	instrumentRepo := sqlite.NewInstrumentRepository(db)
	ruleRepo := sqlite.NewAlertRuleRepository(db)
	historyRepo := sqlite.NewAlertHistoryRepository(db)
	statusRepo := sqlite.NewExchangeStatusRepository(db)

	// ---- dedup backend ----
	redisClient, err := redisstore.NewClient(redisstore.ClientConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		log.Fatalf("[aggregator] redis init failed: %v", err)
	}
	health.SetDedupBackendOK(true)
	deduplicator := dedup.NewRedisDeduplicator(redisClient)

	// ---- symbol filter ----
	exchangeSymbols := make(map[string][]string, len(cfg.Exchanges))
	for _, ex := range cfg.Exchanges {
		exchangeSymbols[ex.Name] = ex.Symbols
	}
	filter := symbolfilter.New(exchangeSymbols)

	// ---- pipeline ----
	p := pipeline.New(deduplicator, filter, registry)

	candleIntervals := make([]model.Interval, 0, len(cfg.CandleIntervals))
	for _, s := range cfg.CandleIntervals {
		candleIntervals = append(candleIntervals, model.Interval(s))
	}
	aggregator := candle.New(candle.Config{
		Intervals:                      candleIntervals,
		TickBufferSize:                 cfg.TickBufferSize,
		InMemoryCandleRetentionMinutes: cfg.InMemoryCandleRetentionMinutes,
	}, instrumentRepo, tickRepo, candleRepo, registry)
	if err := p.RegisterHandler(aggregator); err != nil {
		log.Fatalf("[aggregator] register candle handler: %v", err)
	}

	channels := buildChannels(cfg.Channels)
	engine := alert.NewEngine(ruleRepo, historyRepo, instrumentRepo, channels, registry, cfg.CooldownSeconds, cfg.MaxConcurrentNotifications)
	if err := p.RegisterHandler(engine); err != nil {
		log.Fatalf("[aggregator] register alert engine: %v", err)
	}

	if err := p.Start(ctx); err != nil {
		log.Fatalf("[aggregator] pipeline start: %v", err)
	}

	// ---- adapters ----
	var adapterWG sync.WaitGroup
	adapters := startAdapters(ctx, cfg.Exchanges, p, &adapterWG)

	// ---- scheduler: periodic flush + status probe ----
	sched := scheduler.New(aggregator, cfg.FlushIntervalSeconds, adapters, statusRepo, cfg.StatusProbeIntervalSeconds)
	go sched.Run(ctx)

	log.Printf("[aggregator] ready: %d exchange adapter(s), %d candle interval(s), %d notification channel(s)",
		len(adapters), len(candleIntervals), len(channels))

	<-sigCh
	log.Println("[aggregator] shutdown signal received, cleaning up...")
	cancel()
	adapterWG.Wait()
	p.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Stop(shutdownCtx); err != nil {
		log.Printf("[aggregator] metrics server shutdown error: %v", err)
	}

	for _, c := range channels {
		if closer, ok := c.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				log.Printf("[aggregator] channel %q close error: %v", c.Name(), err)
			}
		}
	}

	log.Println("[aggregator] shutdown complete.")
}

func buildChannels(configs []config.ChannelConfig) []notification.Channel {
	var channels []notification.Channel
	for _, c := range configs {
		if !c.Enabled {
			continue
		}
		switch c.Kind {
		case "console":
			channels = append(channels, notification.NewConsoleChannel())
		case "file":
			fc, err := notification.NewFileChannel(c.Target)
			if err != nil {
				log.Printf("[aggregator] skipping file channel %q: %v", c.Name, err)
				continue
			}
			channels = append(channels, fc)
		case "email":
			channels = append(channels, notification.NewEmailStubChannel(c.Target))
		default:
			log.Printf("[aggregator] unknown channel kind %q, skipping", c.Kind)
		}
	}
	return channels
}

// startAdapters launches one goroutine per configured exchange adapter
// and registers it on wg. Callers must wg.Wait() after cancelling ctx
// and before closing sink, so no adapter goroutine can still be inside
// sink.Write's channel select when the channel closes.
func startAdapters(ctx context.Context, configs []config.ExchangeConfig, sink adapter.Sink, wg *sync.WaitGroup) []adapter.Adapter {
	var adapters []adapter.Adapter
	for _, ex := range configs {
		switch model.SourceType(ex.SourceType) {
		case model.SourceStreaming:
			a, err := adapter.NewWSAdapter(adapter.WSConfig{Exchange: ex.Name, URL: ex.WSURL})
			if err != nil {
				log.Printf("[aggregator] skipping ws adapter %q: %v", ex.Name, err)
				continue
			}
			adapters = append(adapters, a)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := a.Start(ctx, sink); err != nil {
					log.Printf("[aggregator] ws adapter %q stopped: %v", ex.Name, err)
				}
			}()
		case model.SourcePolled:
			interval := time.Duration(ex.PollMillis) * time.Millisecond
			a := adapter.NewPollAdapter(adapter.PollConfig{Exchange: ex.Name, URL: ex.RESTURL, Interval: interval})
			adapters = append(adapters, a)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := a.Start(ctx, sink); err != nil {
					log.Printf("[aggregator] poll adapter %q stopped: %v", ex.Name, err)
				}
			}()
		default:
			log.Printf("[aggregator] unknown source type %q for exchange %q, skipping", ex.SourceType, ex.Name)
		}
	}
	return adapters
}
