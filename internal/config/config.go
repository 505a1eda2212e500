package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// DatabaseURL selects the PostgreSQL store. Empty uses the in-memory store.
	DatabaseURL string

	PollInterval         time.Duration
	SourceTimeout        time.Duration
	MaxConcurrentSources int
	RefreshOnRead        bool
	FIRMSKey             string

	// Sources holds the resolved settings of every known source, in domain.Sources order.
	Sources []SourceConfig

	// Kafka change feed configuration.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	// Raw payload archive configuration. An empty bucket disables archiving.
	ArchiveBucket   string
	ArchivePrefix   string
	ArchiveEndpoint string

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
	// MapboxMaxLookups caps reverse lookups per source pass; MapboxBudget
	// bounds the time they may take.
	MapboxMaxLookups int
	MapboxBudget     time.Duration
}

// SourceConfig is the per-source adapter configuration.
type SourceConfig struct {
	ID      domain.SourceID
	Enabled bool
	URL     string // empty uses the adapter's default endpoint
	Timeout time.Duration
}

// sourceFile is the SOURCES_FILE TOML layout:
//
//	[sources.emsc]
//	enabled = true
//	url = "https://www.seismicportal.eu/fdsnws/event/1/query"
//	timeout = "45s"
type sourceFile struct {
	Sources map[string]sourceOverride `toml:"sources"`
}

type sourceOverride struct {
	Enabled *bool  `toml:"enabled"`
	URL     string `toml:"url"`
	Timeout string `toml:"timeout"`
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	pollInterval, err := parseDuration("POLL_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}
	sourceTimeout, err := parseDuration("SOURCE_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parseDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	mapboxBudget, err := parseDuration("MAPBOX_BUDGET", "10s")
	if err != nil {
		return nil, err
	}
	mapboxMaxLookups, err := parsePositiveInt("MAPBOX_MAX_LOOKUPS", 200)
	if err != nil {
		return nil, err
	}
	maxConcurrent, err := parsePositiveInt("MAX_CONCURRENT_SOURCES", 6)
	if err != nil {
		return nil, err
	}
	refreshOnRead, err := parseBool("REFRESH_ON_READ", true)
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	kafkaEnabled := os.Getenv("KAFKA_BROKERS") != ""
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DatabaseURL: os.Getenv("DATABASE_URL"),

		PollInterval:         pollInterval,
		SourceTimeout:        sourceTimeout,
		MaxConcurrentSources: maxConcurrent,
		RefreshOnRead:        refreshOnRead,
		FIRMSKey:             sharedcfg.EnvOrDefault("NASA_FIRMS_KEY", "demo_key"),

		KafkaEnabled: kafkaEnabled,
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "hazard-records"),

		ArchiveBucket:   os.Getenv("ARCHIVE_BUCKET"),
		ArchivePrefix:   sharedcfg.EnvOrDefault("ARCHIVE_PREFIX", "raw/"),
		ArchiveEndpoint: os.Getenv("ARCHIVE_ENDPOINT"),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),

		MapboxMaxLookups: mapboxMaxLookups,
		MapboxBudget:     mapboxBudget,
	}

	cfg.Sources, err = loadSources(os.Getenv("SOURCES_FILE"), sourceTimeout)
	if err != nil {
		return nil, err
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

// EnabledSources returns the sources that take part in ingestion cycles.
func (c *Config) EnabledSources() []SourceConfig {
	var out []SourceConfig
	for _, s := range c.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// loadSources resolves every known source, applying overrides from path when set.
func loadSources(path string, defaultTimeout time.Duration) ([]SourceConfig, error) {
	var file sourceFile
	if path != "" {
		if _, err := toml.DecodeFile(path, &file); err != nil {
			return nil, fmt.Errorf("read SOURCES_FILE: %w", err)
		}
	}

	for slug := range file.Sources {
		if _, ok := domain.LookupSource(domain.SourceID(slug)); !ok {
			return nil, fmt.Errorf("SOURCES_FILE: unknown source %q", slug)
		}
	}

	known := domain.Sources()
	out := make([]SourceConfig, 0, len(known))
	for _, src := range known {
		sc := SourceConfig{ID: src.ID, Enabled: true, Timeout: defaultTimeout}
		if o, ok := file.Sources[string(src.ID)]; ok {
			if o.Enabled != nil {
				sc.Enabled = *o.Enabled
			}
			sc.URL = o.URL
			if o.Timeout != "" {
				d, err := time.ParseDuration(o.Timeout)
				if err != nil || d <= 0 {
					return nil, fmt.Errorf("SOURCES_FILE: invalid timeout for %s", src.ID)
				}
				sc.Timeout = d
			}
		}
		out = append(out, sc)
	}
	return out, nil
}

func parseDuration(name, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(name, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return d, nil
}

func parsePositiveInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", name)
	}
	return n, nil
}

func parseBool(name string, def bool) (bool, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", name)
	}
	return b, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
