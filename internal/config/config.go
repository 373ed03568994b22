package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds process configuration. Values are read from an optional
// app.env file and from environment variables.
type Config struct {
	RedisURL    string `mapstructure:"REDIS_URL"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string `mapstructure:"KAFKA_TOPIC"`
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	PendingGameTimeout  time.Duration `mapstructure:"PENDING_GAME_TIMEOUT"`
	RankedQueueInterval time.Duration `mapstructure:"RANKED_QUEUE_CHECK_INTERVAL"`
	NormalQueueInterval time.Duration `mapstructure:"NORMAL_QUEUE_CHECK_INTERVAL"`
}

// Load reads configuration from path/app.env (if present) and the
// environment.
func Load(path string) (Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	viper.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	viper.SetDefault("KAFKA_BROKERS", "localhost:9092")
	viper.SetDefault("KAFKA_TOPIC", "bunnychess-events")
	viper.SetDefault("KAFKA_GROUP_ID", "matchmaking")
	viper.SetDefault("PENDING_GAME_TIMEOUT", 5*time.Second)
	viper.SetDefault("RANKED_QUEUE_CHECK_INTERVAL", 2000*time.Millisecond)
	viper.SetDefault("NORMAL_QUEUE_CHECK_INTERVAL", 1500*time.Millisecond)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Brokers splits the comma-separated broker list.
func (c Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if s := strings.TrimSpace(b); s != "" {
			out = append(out, s)
		}
	}
	return out
}
