package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"reversal-traderv1/config"
	"reversal-traderv1/internal/agent"
	"reversal-traderv1/internal/detector"
	"reversal-traderv1/internal/events"
	"reversal-traderv1/internal/gateway"
	"reversal-traderv1/internal/journal"
	"reversal-traderv1/internal/logger"
	"reversal-traderv1/internal/metrics"
	"reversal-traderv1/internal/model"
	"reversal-traderv1/internal/notification"
	"reversal-traderv1/internal/orchestrator"
	"reversal-traderv1/internal/scanner"
	"reversal-traderv1/pkg/kucoin"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[trader] starting...")

	cfg := config.Load()
	slogger := logger.Init("trader", logger.ParseLevel(cfg.LogLevel))

	tf, err := model.ParseTimeframe(cfg.Timeframe)
	if err != nil {
		log.Fatalf("[trader] bad TIMEFRAME: %v", err)
	}

	// ---- Exchange client + boot connectivity check ----
	exchange := kucoin.New(kucoin.Config{
		Key:        cfg.KucoinAPIKey,
		Secret:     cfg.KucoinAPISecret,
		Passphrase: cfg.KucoinPassphrase,
		BaseURL:    cfg.KucoinBaseURL,
	})
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 15*time.Second)
	symbols, err := exchange.ListSymbols(bootCtx, cfg.Market)
	bootCancel()
	if err != nil {
		log.Fatalf("[trader] exchange unreachable at boot: %v", err)
	}
	log.Printf("[trader] exchange reachable, %d symbols in market %s", len(symbols), cfg.Market)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	health.SetExchangeOK(true)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Shutdown plumbing ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[trader] shutdown signal received")
		cancel()
	}()

	// ---- Order journal (audit only; degraded mode without it) ----
	os.MkdirAll("data", 0o755)
	jnl, err := journal.New(cfg.SQLitePath)
	if err != nil {
		log.Printf("[trader] WARNING: journal init failed: %v (continuing without journal)", err)
	} else {
		defer jnl.Close()
		health.SetJournalOK(true)
	}

	// ---- Redis event publisher (optional) ----
	pub, err := events.NewPublisher(events.PublisherConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Printf("[trader] WARNING: redis init failed: %v (continuing without events)", err)
	} else {
		defer pub.Close()
		health.SetRedisConnected(true)
	}

	// ---- Notifier ----
	var notifier notification.Notifier = notification.NewLogNotifier()
	var tg *notification.TelegramNotifier
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		tg = notification.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		notifier = tg
	}

	// ---- Observation hooks (must not block the tick) ----
	hooks := agent.Hooks{
		OnSignal: func(symbol string, sig detector.Signal) {
			prom.SignalsTotal.WithLabelValues(string(sig)).Inc()
			if pub != nil {
				pub.PublishSignal(ctx, symbol, sig)
			}
		},
		OnOrder: func(ev agent.OrderEvent) {
			prom.OrdersPlaced.WithLabelValues(string(ev.Side)).Inc()
			if jnl != nil {
				if err := jnl.RecordOrder(ev); err != nil {
					log.Printf("[trader] journal write failed: %v", err)
				}
			}
			if pub != nil {
				pub.PublishOrder(ctx, ev)
			}
			go func(ev agent.OrderEvent) {
				sendCtx, sendCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer sendCancel()
				alert := notification.Alert{
					Level: notification.AlertInfo,
					Title: fmt.Sprintf("%s %s", ev.Side, ev.Symbol),
					Message: fmt.Sprintf("order %s placed (funds=%s size=%s)",
						ev.OrderID, ev.Funds.String(), ev.Size.String()),
				}
				if err := notifier.Send(sendCtx, alert); err != nil {
					log.Printf("[trader] alert delivery failed: %v", err)
				}
			}(ev)
		},
	}

	// ---- Scanner + orchestrator ----
	sc := scanner.New(scanner.Config{
		Market:        cfg.Market,
		QuoteCurrency: cfg.QuoteCurrency,
		MaxAge:        cfg.StatsMaxAge,
		AllowList:     cfg.AllowList,
		DenyList:      cfg.DenyList,
	}, exchange, prom, slogger)

	orch := orchestrator.New(orchestrator.Config{
		TickInterval:   cfg.TickInterval,
		Timeframe:      tf,
		TradeFunds:     cfg.TradeFunds,
		MinVolumeQuote: cfg.MinVolumeQuote,
		MinPrice:       cfg.MinPrice,
		MinChangeRate:  cfg.MinChangeRate,
		ForceList:      cfg.ForceList,
		OnTick: func(now time.Time, universeSize int) {
			health.SetLastTickTime(now)
			if pub != nil {
				pub.PublishUniverse(ctx, universeSize)
			}
		},
		Detector: detector.Params{
			FastPeriod:        cfg.FastPeriod,
			SlowPeriod:        cfg.SlowPeriod,
			SignalPeriod:      cfg.SignalPeriod,
			UpConfirmations:   cfg.UpConfirmations,
			DownConfirmations: cfg.DownConfirmations,
		},
	}, exchange, sc, hooks, prom, slogger)

	// ---- Gateway (WS event stream + introspection REST) ----
	var hub *gateway.Hub
	if pub != nil {
		hub = gateway.NewHub(pub.Client())
	} else {
		hub = gateway.NewHub(nil)
	}
	go hub.Run(ctx)
	gwSrv := gateway.NewServer(cfg.GatewayAddr, orch, hub)
	gwSrv.Start()

	// ---- Telegram command surface ----
	if tg != nil && cfg.TelegramTOTPSecret != "" {
		chatID, err := strconv.ParseInt(cfg.TelegramChatID, 10, 64)
		if err != nil {
			log.Printf("[trader] WARNING: bad TELEGRAM_CHAT_ID, command surface disabled: %v", err)
		} else {
			cmd := notification.NewCommander(tg, orch, cfg.TelegramTOTPSecret, chatID)
			go cmd.Run(ctx)
			log.Println("[trader] telegram command surface enabled")
		}
	}

	slogger.Info("boot complete",
		slog.String("timeframe", string(tf)),
		slog.Duration("tick_interval", cfg.TickInterval),
		slog.String("quote", cfg.QuoteCurrency))

	// Blocks until ctx is cancelled; agents are stopped on the way out.
	orch.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	gwSrv.Stop(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
	log.Println("[trader] bye")
}
