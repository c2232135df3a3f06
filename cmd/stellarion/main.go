package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/stellarion/server/internal/config"
	"github.com/stellarion/server/internal/core/event"
	coresys "github.com/stellarion/server/internal/core/system"
	"github.com/stellarion/server/internal/data"
	"github.com/stellarion/server/internal/engine"
	"github.com/stellarion/server/internal/notify"
	"github.com/stellarion/server/internal/persist"
	"github.com/stellarion/server/internal/scripting"
	"github.com/stellarion/server/internal/system"
	"github.com/stellarion/server/internal/world"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(name string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m           Stellarion  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m       galaxy simulation server            \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mUniverse:\033[0m %s\n\n", name)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("STELLARION_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name)

	seed := cfg.Server.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	// 3. Load balance data
	printSection("Data")

	balance, err := data.Load(cfg.Server.BalancePath)
	if err != nil {
		return fmt.Errorf("load balance: %w", err)
	}
	printStat("Building types", len(balance.Buildings))
	printStat("Research types", len(balance.Research))
	printStat("Ship types", len(balance.Ships))

	luaEngine, err := scripting.NewEngine(cfg.Server.ScriptsDir, log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer luaEngine.Close()
	printOK("Lua scripts loaded")
	fmt.Println()

	// 4. World state, optionally hydrated from PostgreSQL
	state := world.NewState(balance)

	var db *persist.DB
	var saver engine.Saver
	var notifRepo *persist.NotificationRepo

	if cfg.Database.Enabled {
		printSection("Database")

		bootCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err = persist.NewDB(bootCtx, cfg.Database, log)
		if err != nil {
			cancel()
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		if err := db.Migrate(bootCtx); err != nil {
			cancel()
			return fmt.Errorf("migrations: %w", err)
		}
		printOK("Migrations applied")

		if err := persist.Hydrate(bootCtx, db, state, time.Now(), log); err != nil {
			cancel()
			return fmt.Errorf("hydrate world: %w", err)
		}
		cancel()
		printOK("World hydrated")
		fmt.Println()

		saver = persist.NewBridge(db, cfg.Persist.PlanetWriteInterval.Duration, log)
		notifRepo = persist.NewNotificationRepo(db)
	}

	// 5. Event bus and notifications
	bus := event.NewBus()
	notifier := notify.New(notifRepo, log)
	notifier.Attach(bus)

	// 6. Systems in pipeline order
	runner := coresys.NewRunner(log)
	runner.Register(system.NewProduction())
	runner.Register(system.NewConstruction())
	runner.Register(system.NewResearchSystem())
	runner.Register(system.NewShipyardSystem())
	runner.Register(system.NewFleetSystem(seed))
	runner.Register(system.NewBattleSystem(seed, luaEngine.Volley))
	runner.Register(system.NewUpkeep(cfg.Cleanup.InactiveAfter.Duration, cfg.Cleanup.SweepEvery.Duration))

	// 7. Metrics endpoint
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := engine.NewMetrics(reg)
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.Metrics.BindAddress, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	// 8. Engine
	eng := engine.New(engine.Config{
		TickInterval:    cfg.Engine.TickInterval.Duration,
		QueueCapacity:   cfg.Engine.QueueCapacity,
		PersistInterval: cfg.Persist.FlushInterval.Duration,
	}, state, bus, runner, saver, metrics, log)
	eng.Start()

	printSection("Server ready")
	printReady(fmt.Sprintf("Simulation loop started (tick: %s)", cfg.Engine.TickInterval))
	if cfg.Metrics.Enabled {
		printReady(fmt.Sprintf("Metrics on http://%s/metrics", cfg.Metrics.BindAddress))
	}
	fmt.Println()

	// 9. Wait for shutdown
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-shutdownCh
	log.Info("shutdown signal received", zap.String("signal", sig.String()))

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := eng.Stop(stopCtx); err != nil {
		log.Error("engine stop failed", zap.Error(err))
	}
	if err := notifier.Close(stopCtx); err != nil {
		log.Error("notifier close failed", zap.Error(err))
	}
	log.Info("server stopped", zap.Uint64("ticks", eng.Tick()))
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
