package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	LogLevel   string        `mapstructure:"log_level"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	SendBuffer int           `mapstructure:"send_buffer"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	Relay      RelayConfig   `mapstructure:"relay"`
	Store      StoreConfig   `mapstructure:"store"`
}

type RelayConfig struct {
	ProbePeriod time.Duration `mapstructure:"probe_period"`
	// CallRateLimit caps call-initiate events per user within
	// CallRateWindow. Zero disables the limit.
	CallRateLimit  int           `mapstructure:"call_rate_limit"`
	CallRateWindow time.Duration `mapstructure:"call_rate_window"`
}

type StoreConfig struct {
	Driver        string         `mapstructure:"driver"`
	DSN           string         `mapstructure:"dsn"`
	Table         string         `mapstructure:"table"`
	QueryTimeout  time.Duration  `mapstructure:"query_timeout"`
	Relationships []Relationship `mapstructure:"relationships"`
}

// Relationship seeds the in-memory store.
type Relationship struct {
	Caller string `mapstructure:"caller"`
	Callee string `mapstructure:"callee"`
	Status string `mapstructure:"status"`
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 5000)
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("send_buffer", 32)
	v.SetDefault("write_wait", "5s")
	v.SetDefault("relay.probe_period", "50s")
	v.SetDefault("relay.call_rate_limit", 0)
	v.SetDefault("relay.call_rate_window", "1m")
	v.SetDefault("store.driver", DriverPostgres)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.table", "doctor_patient_connections")
	v.SetDefault("store.query_timeout", "5s")
}

// Load reads config/config.<CONFIG_ENV>.yaml when present, then applies
// RELAY_* environment overrides (RELAY_STORE_DSN for store.dsn).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	setDefaults(v)
	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindRelayEnv(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	return decode(v)
}

// bindRelayEnv maps the relay section to RELAY_PROBE_PERIOD and friends
// instead of the prefixed RELAY_RELAY_* names AutomaticEnv would derive.
func bindRelayEnv(v *viper.Viper) {
	for _, key := range []string{"probe_period", "call_rate_limit", "call_rate_window"} {
		_ = v.BindEnv("relay."+key, "RELAY_"+strings.ToUpper(key))
	}
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("store", cfg.Store.Driver).
		Dur("probe_period", cfg.Relay.ProbePeriod).
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Relay.ProbePeriod <= 0 {
		return fmt.Errorf("relay.probe_period must be positive, got %s", c.Relay.ProbePeriod)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("send_buffer must be positive, got %d", c.SendBuffer)
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the %s driver", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	return nil
}
