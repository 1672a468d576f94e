package config

import (
	"time"

	"github.com/spf13/viper"
)

// SyncConfig tunes the debt synchronization core.
type SyncConfig struct {
	// ProtectUnlockedRows refuses to accept into a caller row that has no
	// lock, so a free edit in progress is never overwritten.
	ProtectUnlockedRows bool
	AcceptAllLimit      int
	RateLimitWindow     time.Duration
	EventQueue          string
	CoalesceReads       bool
}

func LoadSyncConfig() *SyncConfig {
	viper.SetDefault("sync.protect_unlocked_rows", true)
	viper.SetDefault("sync.accept_all_limit", 30)
	viper.SetDefault("sync.rate_limit_window", time.Minute)
	viper.SetDefault("sync.event_queue", "debt_sync_events")
	viper.SetDefault("sync.coalesce_reads", true)

	return &SyncConfig{
		ProtectUnlockedRows: viper.GetBool("sync.protect_unlocked_rows"),
		AcceptAllLimit:      viper.GetInt("sync.accept_all_limit"),
		RateLimitWindow:     viper.GetDuration("sync.rate_limit_window"),
		EventQueue:          viper.GetString("sync.event_queue"),
		CoalesceReads:       viper.GetBool("sync.coalesce_reads"),
	}
}

// BindEnv maps the environment variables read by the server onto viper keys.
func BindEnv() {
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")
	viper.BindEnv("database.migrate", "DATABASE_MIGRATE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")

	viper.BindEnv("sync.protect_unlocked_rows", "SYNC_PROTECT_UNLOCKED_ROWS")
	viper.BindEnv("sync.accept_all_limit", "SYNC_ACCEPT_ALL_LIMIT")
	viper.BindEnv("sync.rate_limit_window", "SYNC_RATE_LIMIT_WINDOW")
	viper.BindEnv("sync.event_queue", "SYNC_EVENT_QUEUE")
	viper.BindEnv("sync.coalesce_reads", "SYNC_COALESCE_READS")

	viper.BindEnv("server.port", "PORT")
}
