package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DBPath               string        `env:"DB_PATH"                envDefault:"db.sqlite"`
	SyncInterval         time.Duration `env:"SYNC_INTERVAL"          envDefault:"15m"`
	InitialSyncDelay     time.Duration `env:"INITIAL_SYNC_DELAY"     envDefault:"10s"`
	ItemsPerFeed         int           `env:"ITEMS_PER_FEED"         envDefault:"50"`
	FetchTimeout         time.Duration `env:"FETCH_TIMEOUT"          envDefault:"10s"`
	MaxConcurrentFetches int           `env:"MAX_CONCURRENT_FETCHES" envDefault:"3"`
	RetentionDays        int           `env:"RETENTION_DAYS"         envDefault:"30"`
}

func LoadConfig() Config {
	var cfg Config
	env.Must(cfg, env.Parse(&cfg))
	return cfg
}
