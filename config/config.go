// Package config loads matchcore settings from a YAML file and MATCHCORE_
// environment variables and builds a ready engine from them.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	match "github.com/0x5487/matchcore"
	"github.com/0x5487/matchcore/kafkafeed"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const envPrefix = "MATCHCORE"

// logOutput is where NewEngine points the engine logger.
var logOutput io.Writer = os.Stdout

// Config is the root of the configuration tree.
type Config struct {
	Log     LogConfig      `mapstructure:"log"`
	Engine  EngineConfig   `mapstructure:"engine"`
	Markets []MarketConfig `mapstructure:"markets"`
	Kafka   KafkaConfig    `mapstructure:"kafka"`
}

// LogConfig defines logging configuration.
type LogConfig struct {
	// Level is the logging level (debug, info, warn, error)
	Level string `mapstructure:"level"`
	// Pretty switches from JSON lines to a human readable console format
	Pretty bool `mapstructure:"pretty"`
}

type EngineConfig struct {
	DepthLimit      int  `mapstructure:"depth_limit"`
	CommandBuffer   int  `mapstructure:"command_buffer"`
	EventBuffer     int  `mapstructure:"event_buffer"`
	CheckInvariants bool `mapstructure:"check_invariants"`
}

// MarketConfig describes one instrument created at startup.
// Empty tick or lot size disables that check.
type MarketConfig struct {
	ID       string `mapstructure:"id"`
	TickSize string `mapstructure:"tick_size"`
	LotSize  string `mapstructure:"lot_size"`
}

type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("engine.depth_limit", match.DefaultDepthLimit)
	v.SetDefault("engine.command_buffer", match.DefaultCommandBuffer)
	v.SetDefault("engine.event_buffer", match.DefaultEventBuffer)
	v.SetDefault("engine.check_invariants", false)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "match-events")
	v.SetDefault("kafka.write_timeout", kafkafeed.DefaultWriteTimeout)
}

// Load reads the configuration file at path, when given, and applies
// environment overrides such as MATCHCORE_ENGINE_DEPTH_LIMIT.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the values Load cannot express as types.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level %q: %w", c.Log.Level, err)
	}
	if c.Engine.DepthLimit <= 0 {
		return errors.New("engine.depth_limit must be positive")
	}
	if c.Engine.CommandBuffer <= 0 {
		return errors.New("engine.command_buffer must be positive")
	}
	if c.Engine.EventBuffer <= 0 {
		return errors.New("engine.event_buffer must be positive")
	}

	seen := make(map[string]struct{}, len(c.Markets))
	for i, m := range c.Markets {
		if m.ID == "" {
			return fmt.Errorf("markets[%d].id must not be empty", i)
		}
		if _, ok := seen[m.ID]; ok {
			return fmt.Errorf("markets[%d]: duplicate id %s", i, m.ID)
		}
		seen[m.ID] = struct{}{}

		if _, err := parseIncrement(m.TickSize); err != nil {
			return fmt.Errorf("markets[%d].tick_size: %w", i, err)
		}
		if _, err := parseIncrement(m.LotSize); err != nil {
			return fmt.Errorf("markets[%d].lot_size: %w", i, err)
		}
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("kafka.brokers must not be empty")
		}
		if c.Kafka.Topic == "" {
			return errors.New("kafka.topic must not be empty")
		}
	}
	return nil
}

// parseIncrement reads a tick or lot size. Empty means unset.
func parseIncrement(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s must be positive", s)
	}
	return d, nil
}

// Logger builds a zerolog logger writing to w.
func (c LogConfig) Logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if c.Pretty {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// EngineOptions translates the engine section, plus the Kafka feed when enabled.
func (c *Config) EngineOptions(logger zerolog.Logger) []match.EngineOption {
	opts := []match.EngineOption{
		match.WithDepthLimit(c.Engine.DepthLimit),
		match.WithCommandBuffer(c.Engine.CommandBuffer),
		match.WithEventBuffer(c.Engine.EventBuffer),
		match.WithInvariantChecks(c.Engine.CheckInvariants),
	}

	if c.Kafka.Enabled {
		feed := kafkafeed.NewPublisher(c.Kafka.Brokers, c.Kafka.Topic,
			kafkafeed.WithWriteTimeout(c.Kafka.WriteTimeout),
			kafkafeed.WithLogger(logger.With().Str("component", "kafkafeed").Logger()),
		)
		opts = append(opts, match.WithPublisher(feed))
	}
	return opts
}

// NewEngine builds an engine from c and creates the configured markets.
// extra options are applied after the configured ones.
func NewEngine(c *Config, extra ...match.EngineOption) (*match.MatchingEngine, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := c.Log.Logger(logOutput)
	match.SetLogger(logger.With().Str("component", "match").Logger())

	opts := append(c.EngineOptions(logger), extra...)
	engine := match.NewMatchingEngine(opts...)

	for _, m := range c.Markets {
		// already validated
		tick, _ := parseIncrement(m.TickSize)
		lot, _ := parseIncrement(m.LotSize)

		if err := engine.CreateMarket(m.ID, match.WithTickSize(tick), match.WithLotSize(lot)); err != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = engine.Shutdown(ctx)
			return nil, fmt.Errorf("config: create market %s: %w", m.ID, err)
		}
	}

	return engine, nil
}
