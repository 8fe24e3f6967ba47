package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/dkeye/partyhub/internal/app/party"
)

type Config struct {
	Mode       string           `mapstructure:"mode"`
	Port       int              `mapstructure:"port"`
	StaticPath string           `mapstructure:"static_path"`
	ReadLimit  int64            `mapstructure:"read_limit"`
	PingPeriod time.Duration    `mapstructure:"ping_period"`
	Secret     string           `mapstructure:"secret"`
	Party      PartyConfig      `mapstructure:"party"`
	GameFinder GameFinderConfig `mapstructure:"gamefinder"`
}

type PartyConfig struct {
	ClientAckTimeout     time.Duration `mapstructure:"client_ack_timeout"`
	MaxMembers           int           `mapstructure:"max_members"`
	QueueSize            int           `mapstructure:"queue_size"`
	BroadcastConcurrency int           `mapstructure:"broadcast_concurrency"`
	InvitationCodeLength int           `mapstructure:"invitation_code_length"`
	DefaultGameFinder    string        `mapstructure:"default_game_finder"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	// JoinRateLimit of zero disables join throttling.
	JoinRateLimit    int           `mapstructure:"join_rate_limit"`
	JoinRateInterval time.Duration `mapstructure:"join_rate_interval"`
}

// GameFinderConfig drives the loopback matchmaker.
type GameFinderConfig struct {
	Delay time.Duration `mapstructure:"delay"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// PARTYHUB_PARTY_MAX_MEMBERS overrides party.max_members.
	v.SetEnvPrefix("partyhub")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")

	v.SetDefault("party.client_ack_timeout", "2s")
	v.SetDefault("party.max_members", 8)
	v.SetDefault("party.queue_size", 64)
	v.SetDefault("party.broadcast_concurrency", 16)
	v.SetDefault("party.invitation_code_length", 6)
	v.SetDefault("party.default_game_finder", "default")
	v.SetDefault("party.request_timeout", "10s")
	v.SetDefault("party.join_rate_limit", 0)
	v.SetDefault("party.join_rate_interval", "1m")

	v.SetDefault("gamefinder.delay", "3s")
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.PingPeriod <= 0 {
		errs = append(errs, errors.New("ping_period must be positive"))
	}
	if c.Party.ClientAckTimeout <= 0 {
		errs = append(errs, errors.New("party.client_ack_timeout must be positive"))
	}
	if c.Party.RequestTimeout <= 0 {
		errs = append(errs, errors.New("party.request_timeout must be positive"))
	}
	if c.GameFinder.Delay <= 0 {
		errs = append(errs, errors.New("gamefinder.delay must be positive"))
	}
	if c.Party.MaxMembers < 0 {
		errs = append(errs, errors.New("party.max_members must not be negative"))
	}
	if c.Party.QueueSize < 0 {
		errs = append(errs, errors.New("party.queue_size must not be negative"))
	}
	if c.Party.BroadcastConcurrency < 0 {
		errs = append(errs, errors.New("party.broadcast_concurrency must not be negative"))
	}
	if c.Party.InvitationCodeLength < 4 || c.Party.InvitationCodeLength > 16 {
		errs = append(errs, fmt.Errorf("party.invitation_code_length %d not in [4,16]", c.Party.InvitationCodeLength))
	}
	if c.Party.JoinRateLimit > 0 && c.Party.JoinRateInterval <= 0 {
		errs = append(errs, errors.New("party.join_rate_interval must be positive when join_rate_limit is set"))
	}
	if c.Mode == "release" && c.Secret == "" {
		errs = append(errs, errors.New("secret is required in release mode"))
	}
	return errors.Join(errs...)
}

// Engine returns the per-party engine settings.
func (p PartyConfig) Engine() party.Config {
	return party.Config{
		ClientAckTimeout:     p.ClientAckTimeout,
		MaxMembers:           p.MaxMembers,
		QueueSize:            p.QueueSize,
		BroadcastConcurrency: p.BroadcastConcurrency,
	}
}
