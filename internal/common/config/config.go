package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

type Config struct {
	Debug    bool   `env:"DEBUG" envDefault:"false"`
	LogJSON  bool   `env:"LOG_JSON" envDefault:"false"`
	// LogLevel overrides the level implied by Debug.
	LogLevel string `env:"LOG_LEVEL"`

	Discord struct {
		BotToken string `env:"DISCORD_BOT_TOKEN"`
		AppID    string `env:"DISCORD_APP_ID"`
		// Empty registers commands globally.
		GuildID string `env:"DISCORD_GUILD_ID"`
	}

	Store struct {
		Backend    string `env:"STORE_BACKEND" envDefault:"file"`
		Path       string `env:"STORE_PATH" envDefault:"dice_data.json"`
		Key        string `env:"STORE_KEY" envDefault:"dice:document"`
		SQLitePath string `env:"SQLITE_PATH" envDefault:"dice_data.db"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Server struct {
		Enabled bool   `env:"HTTP_ENABLED" envDefault:"true"`
		Port    int    `env:"PORT" envDefault:"8080"`
		Origin  string `env:"ORIGIN" envDefault:"http://localhost:3000"`
	}

	Drop struct {
		Interval    time.Duration `env:"DROP_INTERVAL" envDefault:"300s"`
		PublishHold time.Duration `env:"DROP_PUBLISH_HOLD" envDefault:"500ms"`
		CoinReward  int64         `env:"DROP_COIN_REWARD" envDefault:"100"`
		PointReward int64         `env:"DROP_POINT_REWARD" envDefault:"10"`
	}

	Mega struct {
		Cost         int64         `env:"MEGA_DROP_COST" envDefault:"4000"`
		Count        int           `env:"MEGA_DROP_COUNT" envDefault:"5"`
		Countdown    int           `env:"MEGA_DROP_COUNTDOWN" envDefault:"10"`
		SummaryDelay time.Duration `env:"MEGA_DROP_SUMMARY_DELAY" envDefault:"15s"`
		Spacing      time.Duration `env:"MEGA_DROP_SPACING" envDefault:"1s"`
	}

	LeaderboardSize int `env:"LEADERBOARD_SIZE" envDefault:"10"`
}

// Load reads .env when present and parses the environment.
func Load() (*Config, error) {
	// .env is optional; production sets variables directly
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendFile, BackendRedis, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	if c.Drop.Interval <= 0 {
		return fmt.Errorf("DROP_INTERVAL must be positive")
	}
	if c.Mega.Count <= 0 {
		return fmt.Errorf("MEGA_DROP_COUNT must be positive")
	}
	if c.Mega.Cost < 0 || c.Mega.Countdown < 0 {
		return fmt.Errorf("MEGA_DROP_COST and MEGA_DROP_COUNTDOWN must not be negative")
	}
	if c.LeaderboardSize <= 0 {
		return fmt.Errorf("LEADERBOARD_SIZE must be positive")
	}
	return nil
}

// RedisAddr returns host:port for the redis backend.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
