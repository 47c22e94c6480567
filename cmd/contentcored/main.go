// Command contentcored wires the content orchestration core's components and
// runs the scheduler and event handler until signaled to stop: load config,
// build the dependency graph bottom up, run, shut down on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/flapboard/contentcore/pkg/aigen"
	"github.com/flapboard/contentcore/pkg/automationbus"
	"github.com/flapboard/contentcore/pkg/breaker"
	"github.com/flapboard/contentcore/pkg/config"
	"github.com/flapboard/contentcore/pkg/dataprovider"
	"github.com/flapboard/contentcore/pkg/events"
	"github.com/flapboard/contentcore/pkg/httpapi"
	"github.com/flapboard/contentcore/pkg/metrics"
	"github.com/flapboard/contentcore/pkg/model"
	"github.com/flapboard/contentcore/pkg/notify/slack"
	"github.com/flapboard/contentcore/pkg/orchestrator"
	"github.com/flapboard/contentcore/pkg/persistence/postgres"
	redisstore "github.com/flapboard/contentcore/pkg/persistence/redis"
	"github.com/flapboard/contentcore/pkg/ports"
	"github.com/flapboard/contentcore/pkg/providers/anthropic"
	"github.com/flapboard/contentcore/pkg/providers/bedrock"
	"github.com/flapboard/contentcore/pkg/providers/gemini"
	"github.com/flapboard/contentcore/pkg/providers/openai"
	"github.com/flapboard/contentcore/pkg/registry"
	"github.com/flapboard/contentcore/pkg/retryengine"
	"github.com/flapboard/contentcore/pkg/scheduler"
	"github.com/flapboard/contentcore/pkg/selector"
	"github.com/flapboard/contentcore/pkg/staticgen"
	"github.com/flapboard/contentcore/pkg/throttlelog"
	"github.com/flapboard/contentcore/pkg/transport/display"
	"github.com/flapboard/contentcore/pkg/tierselect"
	"github.com/flapboard/contentcore/pkg/trigger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "contentcored:", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg config.AppConfig
	config.MustLoad(&cfg)

	zapLog, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer zapLog.Sync() //nolint:errcheck
	log := throttlelog.New(zapLog, cfg.ThrottleLogWindow, cfg.ThrottleLogMax)

	registerer := prometheus.NewRegistry()
	m := metrics.New(registerer)

	store, closeStore, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("build persistence store: %w", err)
	}
	defer closeStore()

	notifier := buildNotifier(cfg, log)
	breakerSvc := breaker.New(store, log, notifier)
	initCircuits(breakerSvc)

	providers := buildProviders(cfg)
	tierSel := tierselect.New(cfg.PreferredProvider, cfg.AvailableProviders, nil)

	gens := registry.New()
	if err := registerGenerators(gens, tierSel, providers, m, cfg); err != nil {
		return fmt.Errorf("register generators: %w", err)
	}

	history := selector.NewHistory()
	sel := selector.New(gens, breakerSvc, history)

	dataProv := dataprovider.New(nil, nil, cfg.DataFetchTimeout)
	retryEngine := retryengine.New(retryengine.Config{
		MaxAttempts:       cfg.RetryMaxAttempts,
		BaseDelay:         cfg.RetryBaseDelay,
		MaxDelay:          cfg.RetryMaxDelay,
		BackoffMultiplier: 2.0,
		JitterFactor:      0.2,
	}, breakerSvc)

	displayTransport := display.New(cfg.DisplayWSURL, cfg.AITimeout)

	orch := orchestrator.New(gens, sel, breakerSvc, dataProv, retryEngine, history, displayTransport, store, log, m)

	triggerLoader := trigger.NewConfigLoader(cfg.TriggerConfigPath)
	triggerCfg, err := triggerLoader.Load()
	if err != nil {
		log.Warn("main.trigger_load_failed", "failed to load trigger config, starting with no triggers", zap.Error(err))
		triggerCfg = model.TriggersConfig{}
	}
	matcher, err := trigger.New(triggerCfg)
	if err != nil {
		return fmt.Errorf("compile trigger config: %w", err)
	}

	bus := automationbus.New(automationbus.Config{
		URL:                cfg.AutomationBusURL,
		Token:              cfg.AutomationBusToken,
		HandshakeTimeout:   cfg.BusTimeout,
		ReconnectBaseDelay: cfg.AutomationReconnect,
		ReconnectMaxDelay:  30 * time.Second,
	}, log)

	handler := events.New(bus, orch, matcher, breakerSvc, log, m)

	watcher := trigger.NewWatcher(triggerLoader, log, func(cfg model.TriggersConfig, err error) {
		if err != nil {
			log.Warn("main.trigger_reload_failed", "trigger config reload failed, keeping previous snapshot", zap.Error(err))
			return
		}
		if rerr := matcher.Reload(cfg); rerr != nil {
			log.Warn("main.trigger_reload_invalid", "reloaded trigger config failed to compile", zap.Error(rerr))
		}
	})
	if err := watcher.Start(); err != nil {
		log.Warn("main.trigger_watch_unavailable", "trigger config hot-reload disabled", zap.Error(err))
	} else {
		defer watcher.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := handler.Start(ctx); err != nil {
		return fmt.Errorf("start event handler: %w", err)
	}
	defer handler.Stop(context.Background())

	sched := scheduler.New(func(tickCtx context.Context) {
		ctxData := model.GenerationContext{UpdateType: model.UpdateMinor, Timestamp: time.Now()}
		if err := orch.GenerateAndSend(tickCtx, ctxData, ""); err != nil {
			log.Warn("main.minor_tick_failed", "minor refresh failed", zap.Error(err))
		}
	}, log)
	sched.Start(ctx)
	defer sched.Stop()

	httpServer := httpapi.New(cfg.HTTPAddr, readinessFunc(bus), promhttp.HandlerFor(registerer, promhttp.HandlerOpts{}))
	go func() {
		if err := httpServer.ListenAndServe(); err != nil {
			log.Error("main.http_server_failed", "health/metrics server stopped", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Warn("main.started", "content orchestration core started")
	<-ctx.Done()
	log.Warn("main.shutting_down", "shutdown signal received")
	return nil
}

func buildStore(cfg config.AppConfig) (ports.PersistenceStore, func(), error) {
	switch cfg.PersistenceBackend {
	case "redis":
		store, err := redisstore.New(cfg.PersistenceDSN, "contentcore")
		if err != nil {
			return nil, func() {}, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		store, err := postgres.Connect(context.Background(), cfg.PersistenceDSN)
		if err != nil {
			return nil, func() {}, err
		}
		if err := postgres.Migrate(cfg.PersistenceDSN); err != nil {
			store.Close()
			return nil, func() {}, err
		}
		return store, store.Close, nil
	}
}

// buildNotifier returns a breaker.Notifier, or a true nil interface value
// when no webhook is configured — returning a nil *slack.Notifier here
// would wrap a non-nil interface around a nil pointer and defeat the
// service's s.notifier != nil check.
func buildNotifier(cfg config.AppConfig, log *throttlelog.Logger) breaker.Notifier {
	if cfg.SlackWebhookURL == "" {
		return nil
	}
	return slack.New(cfg.SlackWebhookURL, log)
}

func initCircuits(svc *breaker.Service) {
	ctx := context.Background()
	svc.InitializeCircuit(ctx, model.CircuitDefinition{
		CircuitID:    orchestrator.MasterCircuitID,
		CircuitType:  model.CircuitManual,
		DefaultState: model.CircuitOn,
	})
	for _, tier := range []model.ModelTier{model.TierLight, model.TierMedium, model.TierHeavy} {
		svc.InitializeCircuit(ctx, model.CircuitDefinition{
			CircuitID:        "provider:" + string(tier),
			CircuitType:      model.CircuitProvider,
			DefaultState:     model.CircuitOn,
			FailureThreshold: 5,
		})
	}
}

func buildProviders(cfg config.AppConfig) map[string]ports.AIProvider {
	out := make(map[string]ports.AIProvider)
	if cfg.AnthropicAPIKey != "" {
		out["anthropic"] = anthropic.New(cfg.AnthropicAPIKey)
	}
	if cfg.OpenAIAPIKey != "" {
		out["openai"] = openai.New(cfg.OpenAIAPIKey)
	}
	if cfg.GeminiAPIKey != "" {
		if p, err := gemini.New(context.Background(), cfg.GeminiAPIKey); err == nil {
			out["gemini"] = p
		}
	}
	if p, err := bedrock.New(context.Background(), cfg.AWSRegion); err == nil {
		out["bedrock"] = p
	}
	return out
}

// registerGenerators seeds the registry with the always-on static fallback
// (P3) plus one AI-backed rotating generator (P2) on the medium model
// tier. Deployment-specific reactive/scheduled generators and prompt
// authoring are configured externally, outside this core's scope.
func registerGenerators(gens *registry.Registry, tierSel *tierselect.Selector, providers map[string]ports.AIProvider, m *metrics.Metrics, cfg config.AppConfig) error {
	if err := gens.Register(&model.GeneratorRegistration{
		ID:         "static-fallback",
		Name:       "Static Fallback",
		Priority:   model.PriorityP3,
		ModelTier:  model.TierLight,
		ApplyFrame: true,
		Generator:  staticgen.New("CONTENTCORE ONLINE"),
	}); err != nil {
		return err
	}

	return gens.Register(&model.GeneratorRegistration{
		ID:         "ai-rotating-medium",
		Name:       "AI Rotating Content",
		Priority:   model.PriorityP2,
		ModelTier:  model.TierMedium,
		ApplyFrame: true,
		Generator:  aigen.New(model.TierMedium, tierSel, providers, 512, cfg.AITimeout, m),
	})
}

type readinessChecker struct {
	bus *automationbus.Bus
}

func (r readinessChecker) Ready(_ context.Context) (bool, map[string]string) {
	return true, map[string]string{"bus": "configured"}
}

func readinessFunc(bus *automationbus.Bus) httpapi.ReadinessChecker {
	return readinessChecker{bus: bus}
}
