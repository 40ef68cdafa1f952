package cli

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/resort-reservation/internal/config"
	"github.com/iliyamo/resort-reservation/internal/database"
	"github.com/iliyamo/resort-reservation/internal/handler"
	"github.com/iliyamo/resort-reservation/internal/model"
	"github.com/iliyamo/resort-reservation/internal/repository"
	"github.com/iliyamo/resort-reservation/internal/reservation"
	"github.com/iliyamo/resort-reservation/migrations"
)

// store is what every storage driver provides.
type store interface {
	reservation.Catalog
	reservation.BookingStore
	reservation.EventStore
}

// backend is an opened storage driver.
type backend struct {
	store   store
	seed    func(ctx context.Context, services []model.ServiceInstance, events []model.Event) error
	migrate func(ctx context.Context) error
	ping    handler.Check // nil for the memory driver
	close   func()
}

// openBackend connects the driver named by cfg.StorageDriver.
func openBackend(ctx context.Context, cfg config.Config, log *zap.Logger) (*backend, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		s := repository.NewMemoryStore()
		return &backend{
			store: s,
			seed: func(_ context.Context, services []model.ServiceInstance, events []model.Event) error {
				s.Seed(services, events)
				return nil
			},
			migrate: func(context.Context) error { return nil },
			close:   func() {},
		}, nil

	case config.DriverMySQL:
		db, err := database.OpenMySQL(ctx, cfg)
		if err != nil {
			return nil, err
		}
		log.Info("connected to mysql", zap.String("host", cfg.DBHost), zap.String("db", cfg.DBName))
		s := repository.NewMySQLStore(db)
		return &backend{
			store:   s,
			seed:    s.Seed,
			migrate: func(ctx context.Context) error { return migrations.ApplyMySQL(ctx, db) },
			ping:    db.PingContext,
			close:   func() { _ = db.Close() },
		}, nil

	case config.DriverPostgres:
		pool, err := database.OpenPostgres(ctx, cfg.PostgresURL, cfg.OTel.Enabled)
		if err != nil {
			return nil, err
		}
		log.Info("connected to postgres", zap.String("host", pool.Config().ConnConfig.Host))
		s := repository.NewPostgresStore(pool)
		return &backend{
			store:   s,
			seed:    s.Seed,
			migrate: func(ctx context.Context) error { return migrations.ApplyPostgres(ctx, pool) },
			ping:    pool.Ping,
			close:   pool.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}

// seedDemo loads the demo catalog and events.
func (b *backend) seedDemo(ctx context.Context) error {
	if err := b.seed(ctx, repository.DemoServices(), repository.DemoEvents(time.Now().UTC())); err != nil {
		return fmt.Errorf("seed demo data: %w", err)
	}
	return nil
}
