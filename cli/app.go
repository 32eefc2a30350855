// ABOUTME: Process-level wiring shared by every subcommand
// ABOUTME: Owns the logger, store, metrics registry, event queue and publisher, and the engine
package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/harperreed/cistore/config"
	"github.com/harperreed/cistore/db"
	"github.com/harperreed/cistore/engine"
	"github.com/harperreed/cistore/events"
	"github.com/harperreed/cistore/objects"
)

type app struct {
	log      *zap.Logger
	store    db.Store
	repo     *db.Repository
	registry *prometheus.Registry
	engine   *engine.Engine

	queue     *events.Queue
	publisher *events.NATSPublisher
	drained   chan struct{}
	cancel    context.CancelFunc

	shutdownTracing func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	shutdownTracing, err := initTracing(cfg.Tracing)
	if err != nil {
		return nil, err
	}

	store, err := db.Open(cfg.Store.Backend, cfg.Store.Path, log)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("failed to open %s store at %s: %w", cfg.Store.Backend, cfg.Store.Path, err)
	}
	log.Debug("store opened", zap.String("backend", cfg.Store.Backend), zap.String("path", cfg.Store.Path))

	a := &app{
		log:             log,
		store:           store,
		repo:            db.NewRepository(store),
		registry:        prometheus.NewRegistry(),
		queue:           events.NewQueue(cfg.Events.QueueSize, log),
		drained:         make(chan struct{}),
		shutdownTracing: shutdownTracing,
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if cfg.Events.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, log)
		if err != nil {
			// Events are still logged without a broker.
			log.Warn("event publisher unavailable", zap.String("url", cfg.Events.NATSURL), zap.Error(err))
		} else {
			a.publisher = pub
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	go func() {
		defer close(a.drained)
		a.queue.Run(runCtx, a.deliver)
	}()

	opts := engine.FromRepository(a.repo)
	opts.Events = a.queue
	opts.Log = log
	opts.Metrics = engine.NewMetrics(a.registry)
	opts.Policy = objects.VersionPolicy{
		BumpOnNoop:         cfg.Versioning.BumpOnNoop,
		CountSchemaChanges: cfg.Versioning.CountSchemaChanges,
	}
	a.engine = engine.New(opts)
	return a, nil
}

func (a *app) deliver(e events.Event) {
	a.log.Debug("event",
		zap.String("id", e.ID.String()),
		zap.String("kind", string(e.Kind)),
		zap.Int64("object_id", e.ObjectID),
		zap.Bool("active", e.Active),
		zap.Int64("user_id", e.UserID),
		zap.String("trigger", string(e.Trigger)),
	)
	if a.publisher != nil {
		a.publisher.Emit(context.Background(), e)
	}
}

// Close drains pending events, then releases the publisher, tracer, and store.
func (a *app) Close() error {
	a.queue.Close()
	<-a.drained
	a.cancel()

	if a.publisher != nil {
		a.publisher.Close()
	}
	err := errs.Combine(
		a.shutdownTracing(context.Background()),
		a.store.Close(),
	)
	_ = a.log.Sync()
	return err
}

// newLogger builds a zap logger writing to stderr so stdout stays clean for
// command output and the MCP stdio transport.
func newLogger(c config.LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}

	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
