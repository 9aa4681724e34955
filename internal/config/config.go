package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every key when read from the environment,
// e.g. DRIVECHAT_SERVER_URL.
const EnvPrefix = "DRIVECHAT"

type Config struct {
	Mode      string `mapstructure:"mode"`
	Port      int    `mapstructure:"port"`
	ServerURL string `mapstructure:"server_url"`
	LogLevel  string `mapstructure:"log_level"`
	LogFile   string `mapstructure:"log_file"`

	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	SendQueue  int           `mapstructure:"send_queue"`

	RestStopCapacity int           `mapstructure:"rest_stop_capacity"`
	RestStopAfter    time.Duration `mapstructure:"rest_stop_after"`
	DriverSeatHold   time.Duration `mapstructure:"driver_seat_hold"`
	EmptyRoomTTL     time.Duration `mapstructure:"empty_room_ttl"`

	ChatRateLimit    int           `mapstructure:"chat_rate_limit"`
	ChatRateInterval time.Duration `mapstructure:"chat_rate_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8000)
	v.SetDefault("server_url", "http://127.0.0.1:8000")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "drivechat.log")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_queue", 32)
	v.SetDefault("rest_stop_capacity", 50)
	v.SetDefault("rest_stop_after", "15m")
	v.SetDefault("driver_seat_hold", "30s")
	v.SetDefault("empty_room_ttl", "5m")
	v.SetDefault("chat_rate_limit", 5)
	v.SetDefault("chat_rate_interval", "1s")
}

// Load reads config/config.<CONFIG_ENV>.yaml (env "dev" by default),
// then the environment, then any flags in flags that were set.
// A missing file is not an error.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("server", cfg.ServerURL).Msg("config ready")
	return &cfg, nil
}
