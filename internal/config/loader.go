package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment.
// Priority (highest to lowest): env vars > config file > defaults.
//
// Environment variables keep the names the deployment manifests use
// (REDIS_HOST, TARGET_DOMAINS, ...) rather than a prefixed scheme, so the
// bindings are explicit instead of automatic.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)
	bindEnv(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("colcapnews")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Domains arrive comma-separated from the environment.
	if domains := v.GetString("producer.target_domains"); domains != "" {
		cfg.Producer.TargetDomains = splitDomains(domains)
	}

	// WORKER_TIMEOUT is plain seconds in the manifests.
	if secs := v.GetInt("worker.pop_timeout_seconds"); secs > 0 {
		cfg.Worker.PopTimeout = time.Duration(secs) * time.Second
	}
	if secs := v.GetInt("producer.delay_between_indexes_seconds"); secs > 0 {
		cfg.Producer.DelayBetweenIndexes = time.Duration(secs) * time.Second
	}
	if secs := v.GetInt("producer.delay_between_domains_seconds"); secs > 0 {
		cfg.Producer.DelayBetweenDomains = time.Duration(secs) * time.Second
	}
	if secs := v.GetInt("redis.retry_delay_seconds"); secs > 0 {
		cfg.Redis.RetryDelay = time.Duration(secs) * time.Second
	}

	return cfg, nil
}

// bindEnv maps the deployment env vars onto config keys.
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("redis.host", "REDIS_HOST")
	_ = v.BindEnv("redis.port", "REDIS_PORT")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("redis.max_retries", "MAX_RETRIES")
	_ = v.BindEnv("redis.retry_delay_seconds", "RETRY_DELAY")
	_ = v.BindEnv("worker.id", "HOSTNAME")
	_ = v.BindEnv("worker.pop_timeout_seconds", "WORKER_TIMEOUT")
	_ = v.BindEnv("colcap.data_path", "COLCAP_DATA_PATH")
	_ = v.BindEnv("producer.delay_between_indexes_seconds", "DELAY_BETWEEN_INDEXES")
	_ = v.BindEnv("producer.delay_between_domains_seconds", "DELAY_BETWEEN_DOMAINS")
	_ = v.BindEnv("producer.target_domains", "TARGET_DOMAINS")
	_ = v.BindEnv("dashboard.max_results", "DASHBOARD_MAX_RESULTS")
	_ = v.BindEnv("storage.mongo_uri", "RESULTS_MONGO_URI")
	_ = v.BindEnv("metrics.enabled", "METRICS_ENABLED")
	_ = v.BindEnv("metrics.port", "METRICS_PORT")
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("redis.host", cfg.Redis.Host)
	v.SetDefault("redis.port", cfg.Redis.Port)
	v.SetDefault("redis.db", cfg.Redis.DB)
	v.SetDefault("redis.max_retries", cfg.Redis.MaxRetries)
	v.SetDefault("redis.retry_delay", cfg.Redis.RetryDelay)

	v.SetDefault("worker.id", cfg.Worker.ID)
	v.SetDefault("worker.batch_size", cfg.Worker.BatchSize)
	v.SetDefault("worker.pool_size", cfg.Worker.PoolSize)
	v.SetDefault("worker.pop_timeout", cfg.Worker.PopTimeout)
	v.SetDefault("worker.heartbeat_ttl", cfg.Worker.HeartbeatTTL)

	v.SetDefault("producer.queue_low_threshold", cfg.Producer.QueueLowThreshold)
	v.SetDefault("producer.wait_check_interval", cfg.Producer.WaitCheckInterval)
	v.SetDefault("producer.delay_between_indexes", cfg.Producer.DelayBetweenIndexes)
	v.SetDefault("producer.delay_between_domains", cfg.Producer.DelayBetweenDomains)
	v.SetDefault("producer.restart_pause", cfg.Producer.RestartPause)
	v.SetDefault("producer.error_pause", cfg.Producer.ErrorPause)
	v.SetDefault("producer.max_archive_failures", cfg.Producer.MaxArchiveFailures)

	v.SetDefault("colcap.data_path", cfg.Colcap.DataPath)
	v.SetDefault("colcap.months", cfg.Colcap.Months)
	v.SetDefault("colcap.news_per_month", cfg.Colcap.NewsPerMonth)

	v.SetDefault("dashboard.port", cfg.Dashboard.Port)
	v.SetDefault("dashboard.max_results", cfg.Dashboard.MaxResults)

	v.SetDefault("archive.index_base_url", cfg.Archive.IndexBaseURL)
	v.SetDefault("archive.data_base_url", cfg.Archive.DataBaseURL)
	v.SetDefault("archive.index_list_path", cfg.Archive.IndexListPath)
	v.SetDefault("archive.cdx_timeout", cfg.Archive.CDXTimeout)
	v.SetDefault("archive.fetch_timeout", cfg.Archive.FetchTimeout)
	v.SetDefault("archive.list_timeout", cfg.Archive.ListTimeout)
	v.SetDefault("archive.politeness_delay", cfg.Archive.PolitenessDelay)

	v.SetDefault("storage.mongo_database", cfg.Storage.MongoDatabase)
	v.SetDefault("storage.mongo_collection", cfg.Storage.MongoCollection)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}

// splitDomains parses the comma-separated TARGET_DOMAINS form.
func splitDomains(s string) []string {
	var out []string
	for _, d := range strings.Split(s, ",") {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}
