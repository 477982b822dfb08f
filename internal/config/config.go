package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for the pipeline.
type Config struct {
	Redis     RedisConfig     `mapstructure:"redis"     yaml:"redis"`
	Worker    WorkerConfig    `mapstructure:"worker"    yaml:"worker"`
	Producer  ProducerConfig  `mapstructure:"producer"  yaml:"producer"`
	Colcap    ColcapConfig    `mapstructure:"colcap"    yaml:"colcap"`
	Dashboard DashboardConfig `mapstructure:"dashboard" yaml:"dashboard"`
	Archive   ArchiveConfig   `mapstructure:"archive"   yaml:"archive"`
	Storage   StorageConfig   `mapstructure:"storage"   yaml:"storage"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   yaml:"metrics"`
}

// RedisConfig controls the coordination store connection.
type RedisConfig struct {
	Host       string        `mapstructure:"host"        yaml:"host"`
	Port       int           `mapstructure:"port"        yaml:"port"`
	DB         int           `mapstructure:"db"          yaml:"db"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
}

// WorkerConfig controls the batch engine.
type WorkerConfig struct {
	ID           string        `mapstructure:"id"            yaml:"id"`
	BatchSize    int           `mapstructure:"batch_size"    yaml:"batch_size"`
	PoolSize     int           `mapstructure:"pool_size"     yaml:"pool_size"`
	PopTimeout   time.Duration `mapstructure:"pop_timeout"   yaml:"pop_timeout"`
	HeartbeatTTL time.Duration `mapstructure:"heartbeat_ttl" yaml:"heartbeat_ttl"`
}

// ProducerConfig controls URL discovery and backpressure.
type ProducerConfig struct {
	TargetDomains       []string      `mapstructure:"target_domains"        yaml:"target_domains"`
	QueueLowThreshold   int64         `mapstructure:"queue_low_threshold"   yaml:"queue_low_threshold"`
	WaitCheckInterval   time.Duration `mapstructure:"wait_check_interval"   yaml:"wait_check_interval"`
	DelayBetweenIndexes time.Duration `mapstructure:"delay_between_indexes" yaml:"delay_between_indexes"`
	DelayBetweenDomains time.Duration `mapstructure:"delay_between_domains" yaml:"delay_between_domains"`
	RestartPause        time.Duration `mapstructure:"restart_pause"         yaml:"restart_pause"`
	ErrorPause          time.Duration `mapstructure:"error_pause"           yaml:"error_pause"`
	MaxArchiveFailures  int           `mapstructure:"max_archive_failures"  yaml:"max_archive_failures"`
}

// ColcapConfig controls the historical series and the correlator.
type ColcapConfig struct {
	DataPath     string `mapstructure:"data_path"      yaml:"data_path"`
	Months       int    `mapstructure:"months"         yaml:"months"`
	NewsPerMonth int    `mapstructure:"news_per_month" yaml:"news_per_month"`
}

// DashboardConfig controls the monitoring view.
type DashboardConfig struct {
	Port       int `mapstructure:"port"        yaml:"port"`
	MaxResults int `mapstructure:"max_results" yaml:"max_results"`
}

// ArchiveConfig holds the web-archive service endpoints.
type ArchiveConfig struct {
	IndexBaseURL    string        `mapstructure:"index_base_url"    yaml:"index_base_url"`
	DataBaseURL     string        `mapstructure:"data_base_url"     yaml:"data_base_url"`
	IndexListPath   string        `mapstructure:"index_list_path"   yaml:"index_list_path"`
	CDXTimeout      time.Duration `mapstructure:"cdx_timeout"       yaml:"cdx_timeout"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"     yaml:"fetch_timeout"`
	ListTimeout     time.Duration `mapstructure:"list_timeout"      yaml:"list_timeout"`
	PolitenessDelay time.Duration `mapstructure:"politeness_delay"  yaml:"politeness_delay"`
}

// StorageConfig controls the optional durable result archive.
type StorageConfig struct {
	MongoURI        string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
}

// MetricsConfig controls the Prometheus endpoint on workers.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// EconomicKeywords is the keyword list scanned for relevance scoring.
var EconomicKeywords = []string{
	"economia", "economía", "bolsa", "acciones", "colcap", "dolar", "dólar",
	"peso", "inflacion", "inflación", "banco", "inversion", "inversión",
	"mercado", "finanzas", "exportaciones", "importaciones", "pib", "gdp",
	"desempleo", "empleo", "tasa", "interes", "interés", "petroleo", "petróleo",
	"cafe", "café", "carbon", "carbón", "oro", "divisas", "bvc", "wall street",
}

// ExcludedPatterns rejects non-article URLs outright.
var ExcludedPatterns = []string{
	"robots.txt", "sitemap", ".xml", ".css", ".js", ".png", ".jpg",
	".gif", ".ico", ".woff", ".ttf", "/tag/", "/autor/", "/autor-",
	"/buscar", "/search", "/login", "/registro", "/suscripcion",
	"/privacidad", "/terminos", "/contacto", "/rss", "/feed",
}

// NewsSections are known article-section path prefixes.
var NewsSections = []string{
	"/economia", "/finanzas", "/negocios", "/empresas", "/mercados",
	"/politica", "/noticias", "/actualidad", "/colombia", "/mundo",
	"/deportes", "/cultura", "/tecnologia", "/opinion",
}

// DefaultConfig returns a Config with the defaults the pipeline runs with
// in Kubernetes; every value can be overridden via env or config file.
func DefaultConfig() *Config {
	return &Config{
		Redis: RedisConfig{
			Host:       "localhost",
			Port:       6379,
			DB:         0,
			MaxRetries: 5,
			RetryDelay: 5 * time.Second,
		},
		Worker: WorkerConfig{
			ID:           "worker-local",
			BatchSize:    4,
			PoolSize:     4,
			PopTimeout:   2 * time.Second,
			HeartbeatTTL: 15 * time.Second,
		},
		Producer: ProducerConfig{
			TargetDomains: []string{
				"eltiempo.com", "elespectador.com", "portafolio.co", "larepublica.co",
			},
			QueueLowThreshold:   50,
			WaitCheckInterval:   5 * time.Second,
			DelayBetweenIndexes: 15 * time.Second,
			DelayBetweenDomains: 5 * time.Second,
			RestartPause:        60 * time.Second,
			ErrorPause:          30 * time.Second,
			MaxArchiveFailures:  3,
		},
		Colcap: ColcapConfig{
			DataPath:     "data/colcap_historico.csv",
			Months:       8,
			NewsPerMonth: 100,
		},
		Dashboard: DashboardConfig{
			Port:       8050,
			MaxResults: 500,
		},
		Archive: ArchiveConfig{
			IndexBaseURL:    "https://index.commoncrawl.org",
			DataBaseURL:     "https://data.commoncrawl.org/",
			IndexListPath:   "data/cc_indexes.csv",
			CDXTimeout:      120 * time.Second,
			FetchTimeout:    30 * time.Second,
			ListTimeout:     60 * time.Second,
			PolitenessDelay: 5 * time.Second,
		},
		Storage: StorageConfig{
			MongoDatabase:   "colcap_news",
			MongoCollection: "resultados",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
