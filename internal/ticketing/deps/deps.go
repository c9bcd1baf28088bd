// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package deps

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/innovationmech/ticketing/internal/ledger"
	"github.com/innovationmech/ticketing/internal/purchase"
	"github.com/innovationmech/ticketing/pkg/config"
	"github.com/innovationmech/ticketing/pkg/logger"
	"github.com/innovationmech/ticketing/pkg/monitoring"
	"github.com/innovationmech/ticketing/pkg/saga"
	"github.com/innovationmech/ticketing/pkg/saga/coordinator"
	"github.com/innovationmech/ticketing/pkg/saga/storage"
	"github.com/innovationmech/ticketing/pkg/tracing"
)

const sentryFlushTimeout = 2 * time.Second

// Dependencies holds everything a purchase service needs apart from the
// order and payment collaborators.
type Dependencies struct {
	Config *config.Config

	// Infrastructure
	Registry   *prometheus.Registry
	EventStore saga.EventStore
	Tracer     tracing.TracingManager
	Sentry     *monitoring.SentryManager
	Health     *monitoring.HealthManager

	// Inventory
	Ledger        *ledger.Ledger
	LedgerMetrics *ledger.PrometheusMetrics
	Reclaimer     *ledger.Reclaimer

	// Saga runtime
	SagaMetrics *coordinator.PrometheusMetricsCollector
	Alerter     coordinator.CompensationAlerter
}

// NewDependencies builds the dependencies described by cfg.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is nil", ErrServiceInitialization)
	}
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		logger.GetLogger().Warn("invalid log level, keeping current", zap.String("level", cfg.Logging.Level), zap.Error(err))
	}

	d := &Dependencies{Config: cfg, Registry: prometheus.NewRegistry()}
	d.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var err error
	d.SagaMetrics, err = coordinator.NewPrometheusMetricsCollector(&coordinator.PrometheusMetricsConfig{Registry: d.Registry})
	if err != nil {
		return nil, fmt.Errorf("%w: saga metrics - %v", ErrServiceInitialization, err)
	}
	d.LedgerMetrics, err = ledger.NewPrometheusMetrics(d.Registry)
	if err != nil {
		return nil, fmt.Errorf("%w: ledger metrics - %v", ErrServiceInitialization, err)
	}

	d.Ledger = ledger.New(
		ledger.WithHoldTTL(cfg.Ledger.HoldTTL),
		ledger.WithDefaultPerPersonLimit(cfg.Ledger.DefaultPerPersonLimit),
		ledger.WithMetrics(d.LedgerMetrics),
	)
	d.Reclaimer = ledger.NewReclaimer(d.Ledger, ledger.ReclaimerConfig{
		Interval: cfg.Reclaimer.Interval,
		Metrics:  d.LedgerMetrics,
	})

	d.Tracer = tracing.NewTracingManager()
	if err := d.Tracer.Initialize(ctx, tracingConfig(cfg.Tracing)); err != nil {
		return nil, fmt.Errorf("%w: tracing - %v", ErrServiceInitialization, err)
	}

	d.Sentry = monitoring.NewSentryManager(monitoring.SentryConfig{
		Enabled:     cfg.Sentry.Enabled,
		DSN:         cfg.Sentry.DSN,
		Environment: cfg.Sentry.Environment,
		Tags:        map[string]string{"service": cfg.Tracing.ServiceName},
	}, logger.GetLogger())
	if err := d.Sentry.Initialize(); err != nil {
		_ = d.Tracer.Shutdown(ctx)
		return nil, fmt.Errorf("%w: sentry - %v", ErrServiceInitialization, err)
	}
	alerters := coordinator.MultiAlerter{coordinator.LogAlerter{}}
	if d.Sentry.IsEnabled() {
		alerters = append(alerters, monitoring.NewSentryAlerter(d.Sentry))
	}
	d.Alerter = alerters

	d.EventStore, err = NewEventStore(ctx, cfg)
	if err != nil {
		_ = d.Tracer.Shutdown(ctx)
		return nil, err
	}

	d.Health = newHealthManager(d.EventStore, d.Reclaimer)

	if err := d.Validate(); err != nil {
		_ = d.Close(ctx)
		return nil, fmt.Errorf("%w: validation failed - %v", ErrServiceInitialization, err)
	}

	logger.GetLogger().Info("successfully initialized all dependencies",
		zap.String("event_store", cfg.EventStore.Backend),
		zap.Duration("hold_ttl", cfg.Ledger.HoldTTL),
		zap.Bool("tracing", cfg.Tracing.Enabled),
		zap.Bool("sentry", d.Sentry.IsEnabled()))
	return d, nil
}

// NewEventStore opens the event store backend selected by cfg.
func NewEventStore(ctx context.Context, cfg *config.Config) (saga.EventStore, error) {
	switch cfg.EventStore.Backend {
	case config.BackendMemory, "":
		return storage.NewMemoryEventStore(), nil
	case config.BackendRedis:
		store, err := storage.NewRedisEventStore(ctx, &storage.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       cfg.Redis.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEventStoreConnection, err)
		}
		return store, nil
	case config.BackendPostgres:
		pgConfig := storage.DefaultPostgresConfig()
		pgConfig.DSN = cfg.Postgres.DSN
		pgConfig.Table = cfg.Postgres.Table
		pgConfig.MaxOpenConns = cfg.Postgres.MaxOpenConns
		pgConfig.MaxIdleConns = cfg.Postgres.MaxIdleConns
		pgConfig.AutoMigrate = cfg.Postgres.AutoMigrate
		store, err := storage.NewPostgresEventStore(ctx, pgConfig)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEventStoreConnection, err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown event store backend %q", ErrServiceInitialization, cfg.EventStore.Backend)
	}
}

func tracingConfig(c config.TracingConfig) *tracing.TracingConfig {
	tc := tracing.DefaultTracingConfig()
	tc.Enabled = c.Enabled
	if c.ServiceName != "" {
		tc.ServiceName = c.ServiceName
	}
	if c.Exporter != "" {
		tc.Exporter = c.Exporter
	}
	tc.Endpoint = c.Endpoint
	tc.SamplingRate = c.SamplingRate
	return tc
}

// NewPurchaseService wires a purchase service to the given collaborators.
func (d *Dependencies) NewPurchaseService(orders purchase.OrderClient, payments purchase.PaymentClient) (*purchase.Service, error) {
	return purchase.NewService(purchase.Config{
		Inventory:           d.Ledger,
		Orders:              orders,
		Payments:            payments,
		EventStore:          d.EventStore,
		StepTimeout:         d.Config.Saga.StepTimeout,
		CompensationTimeout: d.Config.Saga.CompensationTimeout,
		MetricsCollector:    d.SagaMetrics,
		Tracer:              d.Tracer,
		Alerter:             d.Alerter,
	})
}

type pinger interface {
	Ping(ctx context.Context) error
}

// newHealthManager checks the event store connection and the reclaimer loop.
// A stopped reclaimer is reported as degraded.
func newHealthManager(store saga.EventStore, reclaimer *ledger.Reclaimer) *monitoring.HealthManager {
	h := monitoring.NewHealthManager(monitoring.DefaultCheckTimeout)
	_ = h.RegisterChecker(monitoring.CheckFunc("event_store", func(ctx context.Context) error {
		if p, ok := store.(pinger); ok {
			return p.Ping(ctx)
		}
		return nil
	}))
	_ = h.RegisterChecker(monitoring.CheckFunc("reclaimer", func(context.Context) error {
		if !reclaimer.IsRunning() {
			return fmt.Errorf("reclaimer is not running: %w", monitoring.ErrDegraded)
		}
		return nil
	}))
	return h
}

// MetricsHandler serves every metric registered by the dependencies.
func (d *Dependencies) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{Registry: d.Registry})
}

// Validate checks that all required dependencies are properly initialized
func (d *Dependencies) Validate() error {
	if d == nil {
		return fmt.Errorf("dependencies struct is nil")
	}
	if d.Config == nil {
		return fmt.Errorf("config is nil")
	}
	if d.EventStore == nil {
		return fmt.Errorf("event store is nil")
	}
	if d.Ledger == nil {
		return fmt.Errorf("ledger is nil")
	}
	if d.Reclaimer == nil {
		return fmt.Errorf("reclaimer is nil")
	}
	if d.Tracer == nil {
		return fmt.Errorf("tracer is nil")
	}
	if d.SagaMetrics == nil || d.LedgerMetrics == nil {
		return fmt.Errorf("metrics are nil")
	}
	if d.Health == nil {
		return fmt.Errorf("health manager is nil")
	}
	return nil
}

// Close stops the reclaimer and releases every backend.
func (d *Dependencies) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}
	var errs []error
	if d.Reclaimer != nil {
		d.Reclaimer.Stop()
	}
	if d.EventStore != nil {
		if err := d.EventStore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close event store: %w", err))
		}
	}
	if d.Tracer != nil {
		if err := d.Tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
		}
	}
	if d.Sentry != nil {
		d.Sentry.Shutdown(sentryFlushTimeout)
	}
	return errors.Join(errs...)
}
