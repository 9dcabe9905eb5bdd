package main

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/newthinker/signalwatch/internal/alert"
	"github.com/newthinker/signalwatch/internal/app"
	"github.com/newthinker/signalwatch/internal/calendar"
	"github.com/newthinker/signalwatch/internal/config"
	"github.com/newthinker/signalwatch/internal/feed/ssi"
	"github.com/newthinker/signalwatch/internal/lifecycle"
	"github.com/newthinker/signalwatch/internal/llm/factory"
	"github.com/newthinker/signalwatch/internal/logger"
	"github.com/newthinker/signalwatch/internal/metrics"
	"github.com/newthinker/signalwatch/internal/notifier"
	"github.com/newthinker/signalwatch/internal/notifier/email"
	"github.com/newthinker/signalwatch/internal/notifier/telegram"
	"github.com/newthinker/signalwatch/internal/notifier/webhook"
	"github.com/newthinker/signalwatch/internal/router"
	"github.com/newthinker/signalwatch/internal/storage/archive"
	"github.com/newthinker/signalwatch/internal/storage/signal"
)

// runtime bundles everything a command needs; close releases the store.
type runtime struct {
	cfg     *config.Config
	log     *zap.Logger
	store   signal.Store
	gate    *calendar.Gate
	metrics *metrics.Registry
	app     *app.App
	close   func()
}

func loadConfig(log *zap.Logger) (*config.Config, error) {
	if cfgFile == "" {
		log.Warn("no config file specified, using defaults")
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func openStore(cfg config.DatabaseConfig, log *zap.Logger) (signal.Store, func(), error) {
	switch cfg.Driver {
	case "postgres":
		store, err := signal.Open(signal.DBConfig{
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
			AutoMigrate:     cfg.AutoMigrate,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				log.Warn("closing database", zap.Error(err))
			}
		}, nil
	default:
		log.Warn("using in-memory signal store; signals are lost on exit")
		return signal.NewMemoryStore(), func() {}, nil
	}
}

func buildNotifiers(cfgs map[string]config.NotifierConfig, log *zap.Logger) (*notifier.Registry, error) {
	reg := notifier.NewRegistry()

	keys := make([]string, 0, len(cfgs))
	for k := range cfgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		nc := cfgs[key]
		if !nc.Enabled {
			continue
		}

		var n notifier.Notifier
		switch nc.NotifierType(key) {
		case "telegram":
			n = telegram.New("", "")
		case "webhook":
			n = webhook.New("", nil)
		case "email":
			n = email.New("", 0, "", "", "", nil)
		default:
			return nil, fmt.Errorf("notifier %s: unknown type", key)
		}

		if err := n.Init(notifier.Config{Type: nc.NotifierType(key), Params: nc.Params}); err != nil {
			return nil, fmt.Errorf("notifier %s: %w", key, err)
		}
		if err := reg.Register(n); err != nil {
			return nil, err
		}
		log.Info("notifier enabled", zap.String("name", key), zap.String("type", n.Name()))
	}
	return reg, nil
}

// buildRuntime wires config into the scheduler and its dependencies.
func buildRuntime(log *zap.Logger) (*runtime, error) {
	cfg, err := loadConfig(log)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := openStore(cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("opening signal store: %w", err)
	}
	fail := func(err error) (*runtime, error) {
		closeStore()
		return nil, err
	}

	gate, err := calendar.New(cfg.Calendar.CalendarSettings(), logger.Component(log, "calendar"))
	if err != nil {
		return fail(fmt.Errorf("building calendar: %w", err))
	}

	burst := cfg.Feed.Burst
	if burst <= 0 {
		burst = cfg.Scheduler.BatchSize
	}
	client := ssi.New(ssi.Config{
		AuthURL:           cfg.Feed.AuthURL,
		PriceURL:          cfg.Feed.PriceURL,
		ConsumerID:        cfg.Feed.ConsumerID,
		ConsumerSecret:    cfg.Feed.ConsumerSecret,
		TokenTTL:          cfg.Feed.TokenTTL,
		PriceScale:        cfg.Feed.PriceScale,
		RequestsPerSecond: cfg.Feed.RequestsPerSecond,
		Burst:             burst,
		Timeout:           cfg.Feed.Timeout,
	}, ssi.WithLogger(logger.Component(log, "feed")))

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
	}

	notifiers, err := buildNotifiers(cfg.Notifiers, log)
	if err != nil {
		return fail(err)
	}
	rt := router.New(router.Config{
		EnabledEvents: cfg.Router.Events(),
		SendTimeout:   cfg.Router.SendTimeout,
	}, notifiers, reg, logger.Component(log, "router"))

	arch, err := archive.Open(archive.Config{
		Type: cfg.Archive.Type,
		Path: cfg.Archive.Path,
		S3: archive.S3Config{
			Bucket:    cfg.Archive.S3.Bucket,
			Endpoint:  cfg.Archive.S3.Endpoint,
			Region:    cfg.Archive.S3.Region,
			AccessKey: cfg.Archive.S3.AccessKey,
			SecretKey: cfg.Archive.S3.SecretKey,
			Prefix:    cfg.Archive.S3.Prefix,
		},
	})
	if err != nil {
		return fail(fmt.Errorf("opening archive: %w", err))
	}

	provider, err := factory.New(cfg.LLM)
	if err != nil {
		return fail(fmt.Errorf("creating llm provider: %w", err))
	}

	var alerts *alert.Evaluator
	if len(cfg.Alerts.Rules) > 0 {
		alerts = alert.NewEvaluator(cfg.Alerts.Rules, rt, cfg.Alerts.Cooldown, logger.Component(log, "alert"))
	}

	evaluator := lifecycle.NewEvaluator()
	evaluator.GracePeriod = cfg.Lifecycle.GracePeriod

	a := app.New(cfg.Scheduler, app.Deps{
		Feed:       client,
		Gate:       gate,
		Store:      store,
		Evaluator:  evaluator,
		Router:     rt,
		Metrics:    reg,
		Archive:    arch,
		LLM:        provider,
		Alerts:     alerts,
		LLMTimeout: cfg.LLM.Timeout,
	}, logger.Component(log, "scheduler"))

	return &runtime{
		cfg:     cfg,
		log:     log,
		store:   store,
		gate:    gate,
		metrics: reg,
		app:     a,
		close:   closeStore,
	}, nil
}
