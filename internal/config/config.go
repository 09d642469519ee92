package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		Database
		Coverage
		Traversal
		Search
		Tasks
		Metrics
		Global
	}

	Database struct {
		Path string
	}

	Coverage struct {
		Enabled   bool
		Schedule  string // Cron format: "*/5 * * * *" = every 5 minutes
		BatchSize int
	}

	Traversal struct {
		Levels    int     // Max hop count outward from a seed
		Threshold float64 // Min strength product along an accepted path
		Cutoff    int     // Soft per-seed result size limit
	}

	Search struct {
		Enabled         bool
		Base            string
		Version         int    // 0 = highest known revision
		ReindexSchedule string // Cron format: "0 3 * * *" = nightly
	}

	Tasks struct {
		Enabled           bool
		Workers           int
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}

	Metrics struct {
		Enabled bool
		Host    string
		Port    int32
	}

	Global struct {
		ShutdownTimeoutInSeconds int
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("database_path", DefaultDatabasePath)

	v.SetDefault("coverage_enabled", true)
	v.SetDefault("coverage_schedule", "*/5 * * * *")
	v.SetDefault("coverage_batch_size", 50)

	v.SetDefault("traversal_levels", 5)
	v.SetDefault("traversal_threshold", 0.5)
	v.SetDefault("traversal_cutoff", 1000)

	v.SetDefault("search_enabled", true)
	v.SetDefault("search_base", DefaultSearchBase)
	v.SetDefault("search_version", 0)
	v.SetDefault("search_reindex_schedule", "0 3 * * *")

	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 1)
	v.SetDefault("task_release_after", "30m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	v.SetDefault("metrics_enabled", true)
	v.SetDefault("metrics_host", "0.0.0.0")
	v.SetDefault("metrics_port", 9187)

	v.SetDefault("shutdown_timeout_in_seconds", 10)

	return &Config{
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Coverage: Coverage{
			Enabled:   v.GetBool("COVERAGE_ENABLED"),
			Schedule:  v.GetString("COVERAGE_SCHEDULE"),
			BatchSize: v.GetInt("COVERAGE_BATCH_SIZE"),
		},
		Traversal: Traversal{
			Levels:    v.GetInt("TRAVERSAL_LEVELS"),
			Threshold: v.GetFloat64("TRAVERSAL_THRESHOLD"),
			Cutoff:    v.GetInt("TRAVERSAL_CUTOFF"),
		},
		Search: Search{
			Enabled:         v.GetBool("SEARCH_ENABLED"),
			Base:            v.GetString("SEARCH_BASE"),
			Version:         v.GetInt("SEARCH_VERSION"),
			ReindexSchedule: v.GetString("SEARCH_REINDEX_SCHEDULE"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Metrics: Metrics{
			Enabled: v.GetBool("METRICS_ENABLED"),
			Host:    v.GetString("METRICS_HOST"),
			Port:    v.GetInt32("METRICS_PORT"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
	}
}
