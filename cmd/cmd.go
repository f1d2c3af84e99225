package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/anicoll/iio-sensors/internal/pkg/config"
	"github.com/anicoll/iio-sensors/internal/pkg/configuration"
	"github.com/anicoll/iio-sensors/internal/pkg/database"
	"github.com/anicoll/iio-sensors/internal/pkg/database/migration"
	"github.com/anicoll/iio-sensors/internal/pkg/debounce"
	"github.com/anicoll/iio-sensors/internal/pkg/engine"
	"github.com/anicoll/iio-sensors/internal/pkg/iio"
	"github.com/anicoll/iio-sensors/internal/pkg/metrics"
	"github.com/anicoll/iio-sensors/internal/pkg/model"
	"github.com/anicoll/iio-sensors/internal/pkg/mqtt"
	"github.com/anicoll/iio-sensors/internal/pkg/power"
	"github.com/anicoll/iio-sensors/internal/pkg/publisher"
	"github.com/anicoll/iio-sensors/internal/pkg/reconciler"
	"github.com/anicoll/iio-sensors/internal/pkg/sensor"
	"github.com/anicoll/iio-sensors/internal/pkg/server"
	"github.com/anicoll/iio-sensors/pkg/sockets"
)

const streamPingInterval = 30 * time.Second

func SensorCommand(ctx *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if ctx.IsSet("log-level") {
		cfg.LogLevel = ctx.String("log-level")
	}
	if ctx.IsSet("iio-root") {
		cfg.IIORoot = ctx.String("iio-root")
	}

	sigCtx, stop := signal.NotifyContext(ctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return run(sigCtx, cfg)
}

func run(ctx context.Context, cfg *config.Config) error {
	var err error
	logCfg := zap.NewProductionConfig()

	logCfg.Level, err = zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logCfg.OutputPaths = []string{"stdout"}
	logCfg.ErrorOutputPaths = []string{"stdout"}
	logCfg.Sampling = nil
	logger := zap.Must(logCfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)))
	defer func() {
		_ = logger.Sync() // flushes buffer, if any.
	}()
	zap.ReplaceGlobals(logger)

	if cfg.MigrationsFolder != "" {
		if err := migration.Migrate(cfg.DatabaseURL, cfg.MigrationsFolder); err != nil {
			return err
		}
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	db := database.NewDatabase(pool, database.WithRetention(cfg.ReadingRetention))
	defer db.Close()

	var broker Broker
	if cfg.MqttCfg.Host != "" {
		svc := mqtt.New(mqtt.NewClient(cfg.MqttCfg.Host, cfg.MqttCfg.Username, cfg.MqttCfg.Password, cfg.MqttCfg.ClientID))
		if err := svc.Connect(); err != nil {
			return err
		}
		defer svc.Disconnect()
		broker = svc
	} else {
		logger.Warn("no mqtt host configured, configuration changes will not be tracked")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return serve(ctx, cfg, db, broker, reg, logger)
}

// serve wires the discovery engine to its collaborators and runs every long-lived loop
// until ctx is done or one of them fails.
func serve(ctx context.Context, cfg *config.Config, store Store, broker Broker, reg *prometheus.Registry, logger *zap.Logger) error {
	eg, ctx := errgroup.WithContext(ctx)
	m := metrics.New(reg)

	table := reconciler.NewTable()
	hub := sockets.New(
		sockets.WithPingInterval(streamPingInterval),
		sockets.OnConnected(func(c *sockets.Conn) {
			for _, s := range table.Snapshot() {
				msg, err := json.Marshal(publisher.StreamEvent{Type: publisher.EventSensor, Sensor: lo.ToPtr(s.Info())})
				if err != nil {
					continue
				}
				c.Send(msg)
			}
		}),
	)
	defer hub.Close()

	pub := publisher.NewRegistry()
	if err := pub.RegisterPublisher("postgres", store); err != nil {
		return err
	}
	if err := pub.RegisterPublisher("stream", publisher.NewStream(hub)); err != nil {
		return err
	}
	if broker != nil {
		if err := pub.RegisterPublisher("mqtt", broker); err != nil {
			return err
		}
	}

	powerMonitor := power.NewMonitor(cfg.MqttCfg.PowerStateTopic)
	factory := func(c sensor.Config) (reconciler.Sensor, error) {
		s, err := sensor.Open(c,
			sensor.WithPublisher(pub),
			sensor.WithPowerStatus(powerMonitor),
			sensor.WithMetrics(m),
		)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	rec := reconciler.New(iio.NewScanner(cfg.IIORoot), configuration.NewIndex(), table, factory,
		reconciler.WithDefaultPollRate(cfg.DefaultPollRate),
		reconciler.WithMetrics(m),
	)
	eng := engine.New(store, rec, table, debounce.New(cfg.RescanQuietPeriod), engine.WithMetrics(m))

	if broker != nil {
		for _, topic := range powerMonitor.Topics() {
			if err := broker.Subscribe(topic, powerMonitor.Handle); err != nil {
				return err
			}
		}
		inventory := strings.TrimSuffix(cfg.MqttCfg.InventoryTopic, "/")
		if err := broker.Subscribe(inventory+"/#", inventoryHandler(inventory, eng, logger)); err != nil {
			return err
		}
	}

	eg.Go(func() error {
		return eng.Run(ctx)
	})

	eg.Go(func() error {
		return cronCleanup(ctx, store, cfg.CleanupSchedule, logger)
	})

	eg.Go(func() error {
		srv := &http.Server{
			Handler:      server.LoggingMiddleware(server.New(table, store, reg, server.WithStream(hub))),
			Addr:         cfg.HTTPAddr,
			WriteTimeout: 15 * time.Second,
			ReadTimeout:  15 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	return eg.Wait()
}

type notifier interface {
	Notify(path string)
}

// inventoryHandler turns configuration change messages into engine notifications. Only
// changes to supported sensor interfaces are forwarded.
func inventoryHandler(prefix string, n notifier, logger *zap.Logger) func(topic string, payload []byte) {
	return func(topic string, payload []byte) {
		var change model.ConfigChange
		if err := json.Unmarshal(payload, &change); err != nil {
			logger.Warn("malformed configuration change", zap.String("topic", topic), zap.Error(err))
			return
		}
		if change.Path == "" {
			change.Path = "/" + strings.TrimPrefix(strings.TrimPrefix(topic, prefix), "/")
		}
		if !configuration.IsSupportedInterface(change.Interface) {
			logger.Debug("ignoring configuration change", zap.String("config_path", change.Path), zap.String("interface", change.Interface))
			return
		}
		n.Notify(change.Path)
	}
}

type cleaner interface {
	Cleanup(ctx context.Context) error
}

func cronCleanup(ctx context.Context, db cleaner, schedule string, logger *zap.Logger) error {
	if err := db.Cleanup(ctx); err != nil {
		logger.Error("error cleaning up database", zap.Error(err))
	}

	// CRON automation
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if err := db.Cleanup(ctx); err != nil {
			logger.Error("error cleaning up database", zap.Error(err))
			return
		}
		logger.Info("cleaned up old sensor readings")
	}); err != nil {
		return err
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
