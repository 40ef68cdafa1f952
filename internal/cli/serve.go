package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/resort-reservation/internal/config"
	"github.com/iliyamo/resort-reservation/internal/handler"
	"github.com/iliyamo/resort-reservation/internal/logger"
	"github.com/iliyamo/resort-reservation/internal/queue"
	"github.com/iliyamo/resort-reservation/internal/reservation"
	"github.com/iliyamo/resort-reservation/internal/router"
	"github.com/iliyamo/resort-reservation/internal/telemetry"
)

const version = "1.0.0"

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	Seed    bool
	Migrate bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the audit consumer",
		Long: `Run the HTTP API. With RABBITMQ_ENABLED the server also publishes domain
events and runs the audit consumer. SIGINT or SIGTERM shut everything down
gracefully within SHUTDOWN_TIMEOUT.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Seed, "seed", false, "load the demo catalog and events (always on for the memory driver)")
	cmd.Flags().BoolVar(&opts.Migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func runServe(ctx context.Context, cfg config.Config, opts *ServeOptions) error {
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Env,
		CollectorAddr:  cfg.OTel.CollectorAddr,
	})
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.close()
	if opts.Migrate {
		if err := be.migrate(ctx); err != nil {
			return err
		}
	}
	if opts.Seed || cfg.SeedDemo || cfg.StorageDriver == config.DriverMemory {
		if err := be.seedDemo(ctx); err != nil {
			return err
		}
	}

	ready := map[string]handler.Check{}
	if be.ping != nil {
		ready["store"] = be.ping
	}
	rdb := config.NewRedisClient(cfg.Redis, cfg.OTel.Enabled)
	if rdb == nil {
		log.Warn("redis unreachable, rate limiting and response cache disabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		defer func() { _ = rdb.Close() }()
		ready["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	var pub queue.Publisher = queue.NopPublisher{}
	var consumer *queue.AuditConsumer
	if cfg.RabbitMQEnabled {
		pub = queue.NewAMQPPublisher(cfg.RabbitMQURL, log.Named("publisher"))
		consumer = queue.NewAuditConsumer(cfg.RabbitMQURL, cfg.AuditLogPath, log)
	}
	defer func() { _ = pub.Close() }()

	engineOpts := []reservation.Option{reservation.WithLogger(log.Named("engine"))}
	manager := reservation.NewManager(be.store, be.store, engineOpts...)
	ledger := reservation.NewLedger(be.store, engineOpts...)

	e := router.New(router.Deps{
		Config:       cfg,
		Log:          log,
		Redis:        rdb,
		Reservations: handler.NewReservationHandler(manager, pub, log),
		Enrollments:  handler.NewEnrollmentHandler(ledger, pub, log),
		Services:     handler.NewServiceHandler(manager, log),
		Ready:        ready,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("storage", cfg.StorageDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return e.Shutdown(sctx)
	})
	if consumer != nil {
		g.Go(func() error { return consumer.Run(gctx) })
	}
	return g.Wait()
}
