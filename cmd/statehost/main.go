// Command statehost runs a demo state machine until SIGINT or SIGTERM.
//
// A simulated player alternates between standing and walking; the Idle
// and Moving states follow it. Snapshots are published to Redis for
// inspector tooling and phase metrics are served for Prometheus.
//
// Run with:
//
//	go run ./cmd/statehost -config statehost.yaml
//
// Override configuration via environment variables:
//
//	STATEHOST_STATES=Idle,Moving
//	STATEHOST_INITIAL_STATE=Idle
//	STATEHOST_TICK_INTERVAL=50ms
//	STATEHOST_REDIS_HOST=redis.internal
//	STATEHOST_INSPECT_ENABLED=false
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	redisclient "github.com/StricklySoft/stricklysoft-statemachine/pkg/clients/redis"
	"github.com/StricklySoft/stricklysoft-statemachine/pkg/config"
	"github.com/StricklySoft/stricklysoft-statemachine/pkg/inspect"
	"github.com/StricklySoft/stricklysoft-statemachine/pkg/lifecycle"
	"github.com/StricklySoft/stricklysoft-statemachine/pkg/metrics"
	"github.com/StricklySoft/stricklysoft-statemachine/pkg/statemachine"
)

// hostConfig is the statehost configuration. Machine fields use the bare
// prefix (STATEHOST_STATES); Redis fields use STATEHOST_REDIS_*.
type hostConfig struct {
	Machine lifecycle.Config   `yaml:"machine" json:"machine"`
	Redis   redisclient.Config `yaml:"redis" json:"redis" env:"REDIS"`

	InspectEnabled bool          `yaml:"inspect_enabled" json:"inspect_enabled" env:"INSPECT_ENABLED"`
	InspectTTL     time.Duration `yaml:"inspect_ttl" json:"inspect_ttl" env:"INSPECT_TTL" envDefault:"1m"`
	MetricsAddr    string        `yaml:"metrics_addr" json:"metrics_addr" env:"METRICS_ADDR" envDefault:":2112"`
	LogLevel       string        `yaml:"log_level" json:"log_level" env:"LOG_LEVEL" envDefault:"info"`
	MoveEvery      time.Duration `yaml:"move_every" json:"move_every" env:"MOVE_EVERY" envDefault:"3s"`
}

// Validate checks the nested sections, which the loader does not visit.
func (c *hostConfig) Validate() error {
	if err := c.Machine.Validate(); err != nil {
		return err
	}
	if c.InspectEnabled {
		return c.Redis.Validate()
	}
	return nil
}

func defaultHostConfig() hostConfig {
	return hostConfig{
		Machine: lifecycle.Config{
			States:       []string{"Idle", "Moving"},
			Initial:      "Idle",
			TickInterval: lifecycle.DefaultTickInterval,
		},
		Redis:          *redisclient.DefaultConfig(),
		InspectEnabled: true,
	}
}

func main() {
	configPath := flag.String("config", "", "path to a YAML or JSON config file")
	flag.Parse()

	cfg := defaultHostConfig()
	if err := config.New().WithEnvPrefix("STATEHOST").WithFile(*configPath).Load(&cfg); err != nil {
		slog.Error("statehost: failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))

	if err := run(cfg, logger); err != nil {
		logger.Error("statehost: exiting with error", "error", err)
		os.Exit(1)
	}
	logger.Info("statehost: stopped")
}

func run(cfg hostConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder, err := metrics.NewRecorder(reg)
	if err != nil {
		return err
	}

	publisher, closePublisher := newPublisher(ctx, cfg, logger)
	defer closePublisher()

	catalog := statemachine.NewCatalog[*Player]()
	if err := statemachine.Provide(catalog, func() *Idle { return &Idle{} }); err != nil {
		return err
	}
	if err := statemachine.Provide(catalog, func() *Moving { return &Moving{} }); err != nil {
		return err
	}

	player := &Player{logger: logger}
	runner, err := lifecycle.NewBuilder("player", catalog, cfg.Machine).
		WithOwner(player).
		WithObserver(recorder).
		WithPublisher(publisher).
		WithLogger(logger).
		OnStateChange(func(old, new lifecycle.State) {
			logger.Info("statehost: runner state changed", "from", old.String(), "to", new.String())
		}).
		Build()
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := runner.Health(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("statehost: metrics server failed", "error", err)
		}
	}()

	if err := runner.Start(ctx); err != nil {
		return err
	}
	logger.Info("statehost: running",
		"machine_id", runner.Machine().ID(),
		"metrics_addr", cfg.MetricsAddr,
	)

	simulateInput(ctx, player, cfg.MoveEvery)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopErr := runner.Stop(shutdownCtx)
	recorder.Forget(runner.Machine().Name())
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("statehost: metrics server shutdown failed", "error", err)
	}
	return stopErr
}

// newPublisher connects to Redis when inspection is enabled. If Redis is
// unreachable the host runs without publishing.
func newPublisher(ctx context.Context, cfg hostConfig, logger *slog.Logger) (inspect.Publisher, func()) {
	if !cfg.InspectEnabled {
		return inspect.Nop{}, func() {}
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Redis.DialTimeout)
	defer cancel()
	client, err := redisclient.NewClient(dialCtx, cfg.Redis)
	if err != nil {
		logger.Warn("statehost: redis unavailable, snapshots will not be published", "error", err)
		return inspect.Nop{}, func() {}
	}
	return inspect.NewRedisPublisher(client, cfg.InspectTTL), func() {
		if err := client.Close(); err != nil {
			logger.Warn("statehost: failed to close redis client", "error", err)
		}
	}
}

// simulateInput toggles the player between standing and walking until ctx
// is done.
func simulateInput(ctx context.Context, player *Player, every time.Duration) {
	if every <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			player.SetMoving(!player.Moving())
		}
	}
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}
