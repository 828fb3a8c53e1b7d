// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads simscript configuration. Values are layered: built-in
// defaults, then the YAML config file, then command-line flags.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/simscript/internal/core"
	"github.com/holomush/simscript/internal/dispatch"
	"github.com/holomush/simscript/internal/eventq"
	"github.com/holomush/simscript/internal/listen"
	"github.com/holomush/simscript/internal/region"
	"github.com/holomush/simscript/internal/throttle"
	"github.com/holomush/simscript/internal/transport"
	"github.com/holomush/simscript/internal/xdg"
)

// Config is the full simscript configuration.
type Config struct {
	LogFormat   string `koanf:"log_format"`
	MetricsAddr string `koanf:"metrics_addr"`
	ScriptsDir  string `koanf:"scripts_dir"`
	// DatabaseURL selects the Postgres agent directory. Empty means the
	// in-memory directory.
	DatabaseURL string `koanf:"database_url"`

	Throttle  Throttle  `koanf:"throttle"`
	EventQ    EventQ    `koanf:"eventq"`
	Dispatch  Dispatch  `koanf:"dispatch"`
	Registry  Registry  `koanf:"registry"`
	Listen    Listen    `koanf:"listen"`
	Sensor    Sensor    `koanf:"sensor"`
	Directory Directory `koanf:"directory"`
	HTTP      HTTP      `koanf:"http"`
	Remote    Remote    `koanf:"remote_data"`
	SMTP      SMTP      `koanf:"smtp"`
}

// Throttle holds the cooldown settings. Delays are in milliseconds.
type Throttle struct {
	SayShoutThreshold int `koanf:"say_shout_threshold"`
	SayShoutWindowMS  int `koanf:"say_shout_window_ms"`
	SayShoutDelayMS   int `koanf:"say_shout_delay_ms"`
	EmailDelayMS      int `koanf:"email_delay_ms"`
	AgentDataDelayMS  int `koanf:"agent_data_delay_ms"`
	RemoteDataDelayMS int `koanf:"remote_data_delay_ms"`
}

// EventQ bounds the per-script event queues.
type EventQ struct {
	MaxDepth int    `koanf:"max_depth"`
	Overflow string `koanf:"overflow"`
}

// Dispatch sizes the worker pool.
type Dispatch struct {
	Workers int           `koanf:"workers"`
	Timeout time.Duration `koanf:"timeout"`
}

// Registry controls expiry of unanswered requests.
type Registry struct {
	MaxAge               time.Duration `koanf:"max_age"`
	HousekeepingInterval time.Duration `koanf:"housekeeping_interval"`
}

// Listen bounds the channel table.
type Listen struct {
	MaxPerScript int `koanf:"max_per_script"`
}

// Sensor sets the sweep resolution.
type Sensor struct {
	Resolution time.Duration `koanf:"resolution"`
}

// Directory configures identity lookups.
type Directory struct {
	PresenceCacheTTL time.Duration `koanf:"presence_cache_ttl"`
}

// HTTP configures llHTTPRequest.
type HTTP struct {
	Timeout   time.Duration `koanf:"timeout"`
	UserAgent string        `koanf:"user_agent"`
	Rate      float64       `koanf:"rate"`
	Burst     int           `koanf:"burst"`
}

// Remote configures llSendRemoteData.
type Remote struct {
	Method     string        `koanf:"method"`
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries uint64        `koanf:"max_retries"`
	RetryDelay time.Duration `koanf:"retry_delay"`
}

// SMTP configures llEmail. An empty Addr logs mail instead of sending it.
type SMTP struct {
	Addr     string        `koanf:"addr"`
	Username string        `koanf:"username"`
	Password string        `koanf:"password"`
	Timeout  time.Duration `koanf:"timeout"`
	Domain   string        `koanf:"domain"`
}

// Default returns the built-in configuration.
func Default() Config {
	rules := throttle.DefaultRules()
	chat := rules[throttle.Chat]
	return Config{
		LogFormat:   "json",
		MetricsAddr: "127.0.0.1:9100",
		Throttle: Throttle{
			SayShoutThreshold: chat.Threshold,
			SayShoutWindowMS:  int(chat.Window.Milliseconds()),
			SayShoutDelayMS:   int(chat.Delay.Milliseconds()),
			EmailDelayMS:      int(rules[throttle.Email].Delay.Milliseconds()),
			AgentDataDelayMS:  int(rules[throttle.AgentData].Delay.Milliseconds()),
			RemoteDataDelayMS: int(rules[throttle.RemoteData].Delay.Milliseconds()),
		},
		EventQ: EventQ{
			MaxDepth: eventq.DefaultMaxDepth,
			Overflow: string(eventq.DropNewest),
		},
		Dispatch: Dispatch{
			Timeout: dispatch.DefaultTimeout,
		},
		Registry: Registry{
			MaxAge:               region.DefaultRequestMaxAge,
			HousekeepingInterval: region.DefaultHousekeepingInterval,
		},
		Listen: Listen{MaxPerScript: region.DefaultMaxListens},
		Sensor: Sensor{Resolution: listen.DefaultSensorResolution},
		Directory: Directory{
			PresenceCacheTTL: region.DefaultPresenceTTL,
		},
		HTTP: HTTP{
			Timeout:   transport.DefaultHTTPTimeout,
			UserAgent: "simscript",
			Rate:      region.DefaultHTTPRate,
			Burst:     region.DefaultHTTPBurst,
		},
		Remote: Remote{
			Method:     transport.DefaultRemoteMethod,
			Timeout:    transport.DefaultRemoteTimeout,
			MaxRetries: transport.DefaultRemoteRetries,
			RetryDelay: transport.DefaultRemoteRetryDelay,
		},
		SMTP: SMTP{
			Timeout: 30 * time.Second,
			Domain:  "lsl.simscript.local",
		},
	}
}

// flagKeys maps command-line flags to config keys. Flags not listed here are
// not configuration.
var flagKeys = map[string]string{
	"log-format":   "log_format",
	"metrics-addr": "metrics_addr",
	"scripts-dir":  "scripts_dir",
	"database-url": "database_url",
}

// Load reads path, or the default config file when path is empty, and
// applies the flags that were set. A missing default file is not an error.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		if p, err := xdg.ConfigFile(); err == nil {
			path = p
		}
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, oops.Code(core.CodeInvalidArgument).With("path", path).Wrapf(err, "load config file")
			}
		} else if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, oops.Code(core.CodeInvalidArgument).With("path", path).Wrapf(err, "config file")
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.Wrapf(err, "load flags")
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, oops.Code(core.CodeInvalidArgument).Wrapf(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	invalid := func(key string, format string, args ...any) error {
		return oops.Code(core.CodeInvalidArgument).With("key", key).Errorf(format, args...)
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		return invalid("log_format", "log_format must be 'json' or 'text', got %q", c.LogFormat)
	}
	t := c.Throttle
	for key, v := range map[string]int{
		"throttle.say_shout_threshold":  t.SayShoutThreshold,
		"throttle.say_shout_window_ms":  t.SayShoutWindowMS,
		"throttle.say_shout_delay_ms":   t.SayShoutDelayMS,
		"throttle.email_delay_ms":       t.EmailDelayMS,
		"throttle.agent_data_delay_ms":  t.AgentDataDelayMS,
		"throttle.remote_data_delay_ms": t.RemoteDataDelayMS,
	} {
		if v < 0 {
			return invalid(key, "%s must not be negative", key)
		}
	}
	if err := (eventq.Config{MaxDepth: c.EventQ.MaxDepth, Policy: eventq.Policy(c.EventQ.Overflow)}).Validate(); err != nil {
		return err
	}
	if c.Dispatch.Workers < 0 {
		return invalid("dispatch.workers", "dispatch.workers must not be negative")
	}
	if c.Listen.MaxPerScript <= 0 {
		return invalid("listen.max_per_script", "listen.max_per_script must be positive")
	}
	if c.Sensor.Resolution <= 0 {
		return invalid("sensor.resolution", "sensor.resolution must be positive")
	}
	if c.HTTP.Rate <= 0 || c.HTTP.Burst <= 0 {
		return invalid("http.rate", "http.rate and http.burst must be positive")
	}
	if c.Directory.PresenceCacheTTL <= 0 {
		return invalid("directory.presence_cache_ttl", "directory.presence_cache_ttl must be positive")
	}
	if c.SMTP.Addr != "" && !strings.Contains(c.SMTP.Addr, ":") {
		return invalid("smtp.addr", "smtp.addr must be host:port, got %q", c.SMTP.Addr)
	}
	return nil
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// Region converts c into the region's configuration.
func (c Config) Region() region.Config {
	t := c.Throttle
	return region.Config{
		Throttle: throttle.Config{Rules: map[throttle.Category]throttle.Rule{
			throttle.Chat:       {Threshold: t.SayShoutThreshold, Window: ms(t.SayShoutWindowMS), Delay: ms(t.SayShoutDelayMS)},
			throttle.Email:      {Window: time.Second, Delay: ms(t.EmailDelayMS)},
			throttle.AgentData:  {Window: time.Second, Delay: ms(t.AgentDataDelayMS)},
			throttle.RemoteData: {Window: time.Second, Delay: ms(t.RemoteDataDelayMS)},
		}},
		Queue: eventq.Config{
			MaxDepth: c.EventQ.MaxDepth,
			Policy:   eventq.Policy(c.EventQ.Overflow),
		},
		Dispatch: dispatch.Config{
			Workers: c.Dispatch.Workers,
			Timeout: c.Dispatch.Timeout,
		},
		MaxListens:           c.Listen.MaxPerScript,
		SensorResolution:     c.Sensor.Resolution,
		HTTPRate:             c.HTTP.Rate,
		HTTPBurst:            c.HTTP.Burst,
		RequestMaxAge:        c.Registry.MaxAge,
		HousekeepingInterval: c.Registry.HousekeepingInterval,
		PresenceTTL:          c.Directory.PresenceCacheTTL,
		MailDomain:           c.SMTP.Domain,
	}
}

// RemoteConfig converts the remote data settings.
func (c Config) RemoteConfig() transport.RemoteConfig {
	return transport.RemoteConfig{
		Method:     c.Remote.Method,
		Timeout:    c.Remote.Timeout,
		MaxRetries: c.Remote.MaxRetries,
		RetryDelay: c.Remote.RetryDelay,
	}
}

// SMTPConfig converts the mail settings.
func (c Config) SMTPConfig() transport.SMTPConfig {
	return transport.SMTPConfig{
		Addr:     c.SMTP.Addr,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		Timeout:  c.SMTP.Timeout,
	}
}
