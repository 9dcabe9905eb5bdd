package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/newthinker/signalwatch/internal/alert"
	"github.com/newthinker/signalwatch/internal/calendar"
	"github.com/newthinker/signalwatch/internal/core"
)

type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	Database  DatabaseConfig            `mapstructure:"database"`
	Feed      FeedConfig                `mapstructure:"feed"`
	Calendar  CalendarConfig            `mapstructure:"calendar"`
	Scheduler SchedulerConfig           `mapstructure:"scheduler"`
	Lifecycle LifecycleConfig           `mapstructure:"lifecycle"`
	Notifiers map[string]NotifierConfig `mapstructure:"notifiers" validate:"dive"`
	Router    RouterConfig              `mapstructure:"router"`
	Archive   ArchiveConfig             `mapstructure:"archive"`
	LLM       LLMConfig                 `mapstructure:"llm"`
	Metrics   MetricsConfig             `mapstructure:"metrics"`
	Alerts    AlertsConfig              `mapstructure:"alerts"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	APIKey          string        `mapstructure:"api_key"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"oneof=memory postgres"`
	DSN             string        `mapstructure:"dsn" validate:"required_if=Driver postgres"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"min=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type FeedConfig struct {
	AuthURL           string        `mapstructure:"auth_url" validate:"omitempty,url"`
	PriceURL          string        `mapstructure:"price_url" validate:"omitempty,url"`
	ConsumerID        string        `mapstructure:"consumer_id"`
	ConsumerSecret    string        `mapstructure:"consumer_secret"`
	TokenTTL          time.Duration `mapstructure:"token_ttl" validate:"min=0"`
	PriceScale        float64       `mapstructure:"price_scale" validate:"min=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"min=0"`
	Burst             int           `mapstructure:"burst" validate:"min=0"` // 0 follows scheduler.batch_size
	Timeout           time.Duration `mapstructure:"timeout" validate:"min=0"`
}

type CalendarConfig struct {
	Timezone    string   `mapstructure:"timezone" validate:"required"`
	TradingDays []string `mapstructure:"trading_days" validate:"min=1,dive,oneof=mon tue wed thu fri sat sun"`
	Sessions    []string `mapstructure:"sessions" validate:"min=1"`
	Polling     []string `mapstructure:"polling" validate:"min=1"`
}

type SchedulerConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Jobs           JobsConfig    `mapstructure:"jobs"`
	BatchSize      int           `mapstructure:"batch_size" validate:"min=1"`
	BatchPause     time.Duration `mapstructure:"batch_pause" validate:"min=0"`
	AnnounceBatch  int           `mapstructure:"announce_batch" validate:"min=1"`
	AnnouncePacing time.Duration `mapstructure:"announce_pacing" validate:"min=0"`
}

// JobsConfig holds six-field cron specs (seconds first). An empty spec disables the job.
type JobsConfig struct {
	PriceUpdate  string `mapstructure:"price_update"`
	Announce     string `mapstructure:"announce"`
	ExpirySweep  string `mapstructure:"expiry_sweep"`
	DailySummary string `mapstructure:"daily_summary"`
}

type LifecycleConfig struct {
	GracePeriod        time.Duration `mapstructure:"grace_period" validate:"min=0"`
	DefaultHoldingDays int           `mapstructure:"default_holding_days" validate:"min=1"`
}

type NotifierConfig struct {
	Enabled bool           `mapstructure:"enabled"`
	Type    string         `mapstructure:"type" validate:"omitempty,oneof=telegram webhook email"`
	Params  map[string]any `mapstructure:"params"`
}

type RouterConfig struct {
	EnabledEvents []string      `mapstructure:"enabled_events" validate:"dive,oneof=TP1 TP2 TP3 SL EXPIRED"`
	SendTimeout   time.Duration `mapstructure:"send_timeout" validate:"min=0"`
}

type ArchiveConfig struct {
	Type string   `mapstructure:"type" validate:"omitempty,oneof=localfs s3"` // empty disables archiving
	Path string   `mapstructure:"path" validate:"required_if=Type localfs"`
	S3   S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type LLMConfig struct {
	Provider string         `mapstructure:"provider" validate:"omitempty,oneof=claude openai"`
	Timeout  time.Duration  `mapstructure:"timeout" validate:"min=0"`
	Claude   ProviderConfig `mapstructure:"claude"`
	OpenAI   ProviderConfig `mapstructure:"openai"`
}

type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// AlertsConfig holds pipeline health alert rules. No rules disables alerting.
type AlertsConfig struct {
	Cooldown time.Duration `mapstructure:"cooldown" validate:"min=0"`
	Rules    []alert.Rule  `mapstructure:"rules"`
}

// CronParser accepts six-field specs and descriptors such as @daily.
var CronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Load reads configuration from file on top of Defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", d.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", d.Database.ConnMaxLifetime)
	v.SetDefault("database.auto_migrate", d.Database.AutoMigrate)

	v.SetDefault("feed.token_ttl", d.Feed.TokenTTL)
	v.SetDefault("feed.price_scale", d.Feed.PriceScale)
	v.SetDefault("feed.requests_per_second", d.Feed.RequestsPerSecond)
	v.SetDefault("feed.burst", d.Feed.Burst)
	v.SetDefault("feed.timeout", d.Feed.Timeout)

	v.SetDefault("calendar.timezone", d.Calendar.Timezone)
	v.SetDefault("calendar.trading_days", d.Calendar.TradingDays)
	v.SetDefault("calendar.sessions", d.Calendar.Sessions)
	v.SetDefault("calendar.polling", d.Calendar.Polling)

	v.SetDefault("scheduler.enabled", d.Scheduler.Enabled)
	v.SetDefault("scheduler.jobs.price_update", d.Scheduler.Jobs.PriceUpdate)
	v.SetDefault("scheduler.jobs.announce", d.Scheduler.Jobs.Announce)
	v.SetDefault("scheduler.jobs.expiry_sweep", d.Scheduler.Jobs.ExpirySweep)
	v.SetDefault("scheduler.jobs.daily_summary", d.Scheduler.Jobs.DailySummary)
	v.SetDefault("scheduler.batch_size", d.Scheduler.BatchSize)
	v.SetDefault("scheduler.batch_pause", d.Scheduler.BatchPause)
	v.SetDefault("scheduler.announce_batch", d.Scheduler.AnnounceBatch)
	v.SetDefault("scheduler.announce_pacing", d.Scheduler.AnnouncePacing)

	v.SetDefault("lifecycle.grace_period", d.Lifecycle.GracePeriod)
	v.SetDefault("lifecycle.default_holding_days", d.Lifecycle.DefaultHoldingDays)

	v.SetDefault("router.enabled_events", d.Router.EnabledEvents)
	v.SetDefault("router.send_timeout", d.Router.SendTimeout)

	v.SetDefault("llm.timeout", d.LLM.Timeout)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)

	v.SetDefault("alerts.cooldown", d.Alerts.Cooldown)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "memory",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			AutoMigrate:     true,
		},
		Feed: FeedConfig{
			TokenTTL:   time.Hour,
			PriceScale: 1,
			Timeout:    10 * time.Second,
		},
		Calendar: CalendarConfig{
			Timezone:    "Asia/Ho_Chi_Minh",
			TradingDays: []string{"mon", "tue", "wed", "thu", "fri"},
			Sessions:    []string{"09:00-11:30", "13:00-14:45"},
			Polling:     []string{"08:45-11:35", "12:55-15:05"},
		},
		Scheduler: SchedulerConfig{
			Enabled: true,
			Jobs: JobsConfig{
				PriceUpdate:  "0 * * * * *",
				Announce:     "*/30 * * * * *",
				ExpirySweep:  "0 5 0 * * *",
				DailySummary: "0 0 15 * * 1-5",
			},
			BatchSize:      20,
			BatchPause:     200 * time.Millisecond,
			AnnounceBatch:  5,
			AnnouncePacing: time.Second,
		},
		Lifecycle: LifecycleConfig{
			GracePeriod:        60 * time.Hour,
			DefaultHoldingDays: core.DefaultHoldingDays,
		},
		Router: RouterConfig{
			EnabledEvents: []string{"TP1", "TP2", "TP3", "SL"},
			SendTimeout:   30 * time.Second,
		},
		LLM: LLMConfig{
			Timeout: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Alerts: AlertsConfig{
			Cooldown: alert.DefaultCooldown,
		},
	}
}

var validate = validator.New()

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("%s failed %q validation (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
		return core.WrapError(core.ErrConfigInvalid, err)
	}

	if _, err := time.LoadLocation(c.Calendar.Timezone); err != nil {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("calendar timezone: %w", err))
	}
	for _, s := range append(append([]string{}, c.Calendar.Sessions...), c.Calendar.Polling...) {
		if _, err := calendar.ParseBand(s); err != nil {
			return core.WrapError(core.ErrConfigInvalid, err)
		}
	}

	jobs := map[string]string{
		"price_update":  c.Scheduler.Jobs.PriceUpdate,
		"announce":      c.Scheduler.Jobs.Announce,
		"expiry_sweep":  c.Scheduler.Jobs.ExpirySweep,
		"daily_summary": c.Scheduler.Jobs.DailySummary,
	}
	for name, spec := range jobs {
		if spec == "" {
			continue
		}
		if _, err := CronParser.Parse(spec); err != nil {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("scheduler.jobs.%s: %w", name, err))
		}
	}

	if c.Archive.Type == "s3" && c.Archive.S3.Bucket == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("archive.s3.bucket required when type is s3"))
	}

	// LLM validation - if provider set, check credentials exist
	switch c.LLM.Provider {
	case "claude":
		if c.LLM.Claude.APIKey == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("claude api_key required when provider is claude"))
		}
	case "openai":
		if c.LLM.OpenAI.APIKey == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("openai api_key required when provider is openai"))
		}
	}

	for i := range c.Alerts.Rules {
		if err := c.Alerts.Rules[i].Validate(); err != nil {
			return core.WrapError(core.ErrConfigInvalid, err)
		}
	}

	for name, n := range c.Notifiers {
		if n.Enabled && n.NotifierType(name) == "" {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("notifier %q has no type", name))
		}
	}

	return nil
}

// NotifierType returns the configured type, falling back to the map key
// when it names a known notifier.
func (n NotifierConfig) NotifierType(key string) string {
	if n.Type != "" {
		return n.Type
	}
	switch key {
	case "telegram", "webhook", "email":
		return key
	}
	return ""
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// CalendarSettings converts the section into calendar.Config.
func (c CalendarConfig) CalendarSettings() calendar.Config {
	days := make([]time.Weekday, 0, len(c.TradingDays))
	for _, d := range c.TradingDays {
		if wd, ok := weekdays[d]; ok {
			days = append(days, wd)
		}
	}
	return calendar.Config{
		Timezone:    c.Timezone,
		TradingDays: days,
		Sessions:    c.Sessions,
		Polling:     c.Polling,
	}
}

// Events converts enabled_events into event kinds.
func (r RouterConfig) Events() []core.EventKind {
	out := make([]core.EventKind, 0, len(r.EnabledEvents))
	for _, e := range r.EnabledEvents {
		out = append(out, core.EventKind(e))
	}
	return out
}
