package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"honeypot-service/internal/alert"
	"honeypot-service/internal/analyzer"
	"honeypot-service/internal/client"
	"honeypot-service/internal/config"
	"honeypot-service/internal/honeypot"
	redisrepo "honeypot-service/internal/repository/redis"
	"honeypot-service/internal/store"
	"honeypot-service/internal/util"
)

// Factory manages the lifecycle of all application dependencies: shared
// services are constructed once here and injected by reference everywhere
// else.
type Factory struct {
	config *config.Config

	// Clients
	redisClient      *client.RedisClient
	clickhouseClient *client.ClickHouseClient
	kafkaProducer    *client.KafkaProducer

	// Core services
	eventStore     store.Store
	threatAnalyzer *analyzer.ThreatAnalyzer
	alertPolicy    *alert.Policy
	pipeline       *honeypot.Pipeline
	registry       *honeypot.Registry

	closeOnce sync.Once
}

// NewFactory creates and initializes all application dependencies
func NewFactory() (*Factory, error) {
	return newFactory(config.LoadConfig())
}

// NewFactoryWithConfig is the injection point for tests.
func NewFactoryWithConfig(cfg *config.Config) (*Factory, error) {
	return newFactory(cfg)
}

func newFactory(cfg *config.Config) (*Factory, error) {
	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	f := &Factory{config: cfg}

	if err := f.initializeStore(); err != nil {
		return nil, fmt.Errorf("failed to initialize event store: %w", err)
	}
	f.initializeOptionalClients()
	f.initializeCore()

	util.Info("Factory initialized",
		util.String("environment", cfg.Environment),
		util.String("store_backend", cfg.Store.Backend),
		util.Bool("alert_suppression", f.redisClient != nil),
		util.Bool("alert_publishing", f.kafkaProducer != nil),
	)
	return f, nil
}

func (f *Factory) initializeStore() error {
	switch f.config.Store.Backend {
	case "clickhouse":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		chClient, err := client.NewClickHouseClient(f.config, util.Get())
		if err != nil {
			return fmt.Errorf("clickhouse: %w", err)
		}
		f.clickhouseClient = chClient

		eventStore, err := store.NewClickHouse(ctx, chClient, util.Get())
		if err != nil {
			chClient.Close()
			f.clickhouseClient = nil
			return fmt.Errorf("clickhouse store: %w", err)
		}
		f.eventStore = eventStore
	case "memory":
		if f.config.IsProduction() {
			util.Warn("Using the in-memory event store in production; captured events will not survive a restart")
		}
		f.eventStore = store.NewMemory()
	default:
		return fmt.Errorf("unknown store backend %q (valid: memory, clickhouse)", f.config.Store.Backend)
	}
	return nil
}

// initializeOptionalClients brings up degradable infrastructure. A missing
// Redis or Kafka only reduces alerting features, it never blocks capture.
func (f *Factory) initializeOptionalClients() {
	if f.config.Redis.URL != "" {
		if redisClient, err := client.NewRedisClient(f.config, util.Get()); err != nil {
			util.Warn("Redis initialization failed - proceeding without alert suppression", util.ErrorField(err))
		} else {
			f.redisClient = redisClient
		}
	}

	if len(f.config.Kafka.Brokers) > 0 {
		if producer, err := client.NewKafkaProducer(f.config, util.Get()); err != nil {
			util.Warn("Kafka producer initialization failed - proceeding without alert publishing", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
		}
	}
}

func (f *Factory) initializeCore() {
	f.threatAnalyzer = analyzer.NewThreatAnalyzer()

	f.alertPolicy = alert.NewPolicy(f.eventStore, util.Get())
	if f.redisClient != nil {
		cache := redisrepo.NewAlertCache(f.redisClient, f.config.Redis.SuppressTTL)
		f.alertPolicy.WithSuppression(cache)
	}
	if f.kafkaProducer != nil {
		f.alertPolicy.WithPublisher(f.kafkaProducer)
	}

	f.pipeline = honeypot.NewPipeline(f.threatAnalyzer, f.eventStore, f.alertPolicy, util.Get())
	f.registry = honeypot.NewRegistry(f.config.Honeypot, f.pipeline)
}

// StartConfiguredHoneypots starts the listeners named in HONEYPOT_AUTOSTART.
func (f *Factory) StartConfiguredHoneypots() error {
	if len(f.config.Honeypot.AutoStart) == 0 {
		return nil
	}
	return f.registry.StartConfigured(f.config.Honeypot.AutoStart)
}

func (f *Factory) Config() *config.Config { return f.config }

func (f *Factory) EventStore() store.Store { return f.eventStore }

func (f *Factory) ThreatAnalyzer() *analyzer.ThreatAnalyzer { return f.threatAnalyzer }

func (f *Factory) AlertPolicy() *alert.Policy { return f.alertPolicy }

func (f *Factory) Pipeline() *honeypot.Pipeline { return f.pipeline }

func (f *Factory) Registry() *honeypot.Registry { return f.registry }

// HealthCheck reports per-dependency health.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if err := f.eventStore.HealthCheck(ctx); err != nil {
		healthErrors["store"] = err
	}
	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	}
	return healthErrors
}

// Close stops all listeners and releases every client.
func (f *Factory) Close() {
	f.closeOnce.Do(func() {
		if f.registry != nil {
			f.registry.StopAll()
		}
		if f.kafkaProducer != nil {
			_ = f.kafkaProducer.Close()
		}
		if f.redisClient != nil {
			_ = f.redisClient.Close()
		}
		if f.eventStore != nil {
			_ = f.eventStore.Close()
		}
		util.Info("Factory closed")
	})
}
