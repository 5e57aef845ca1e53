package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	HTTPPathPrefix  string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	StationDataPath string
	Timezone        *time.Location
	WarmupEnabled   bool

	// Cache tier lifetimes.
	StationsTTL   time.Duration
	LiveStatusTTL time.Duration

	// Live status feed configuration.
	LiveFeedEnabled        bool
	LiveFeedURL            string
	LiveFeedServiceKey     string
	LiveFeedPageSize       int
	LiveFeedZone           string
	LiveFeedConnectTimeout time.Duration
	LiveFeedReadTimeout    time.Duration
	LiveRefreshInterval    time.Duration

	UsageCacheSize int

	// Kafka status snapshot publishing.
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaStatusTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	tz, err := time.LoadLocation(sharedcfg.EnvOrDefault("STATION_TIMEZONE", "Asia/Seoul"))
	if err != nil {
		return nil, fmt.Errorf("invalid STATION_TIMEZONE: %w", err)
	}

	stationsTTL, err := parsePositiveDuration("STATIONS_CACHE_TTL", "5m")
	if err != nil {
		return nil, err
	}
	liveTTL, err := parsePositiveDuration("LIVE_STATUS_CACHE_TTL", "1m")
	if err != nil {
		return nil, err
	}
	connectTimeout, err := parsePositiveDuration("LIVE_FEED_CONNECT_TIMEOUT", "3s")
	if err != nil {
		return nil, err
	}
	readTimeout, err := parsePositiveDuration("LIVE_FEED_READ_TIMEOUT", "8s")
	if err != nil {
		return nil, err
	}

	refreshInterval, err := time.ParseDuration(sharedcfg.EnvOrDefault("LIVE_REFRESH_INTERVAL", "0s"))
	if err != nil || refreshInterval < 0 {
		return nil, errors.New("invalid LIVE_REFRESH_INTERVAL")
	}

	pageSize, err := parsePositiveInt("LIVE_FEED_PAGE_SIZE", 2000)
	if err != nil {
		return nil, err
	}
	usageCacheSize, err := parsePositiveInt("USAGE_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	serviceKey := os.Getenv("LIVE_FEED_SERVICE_KEY")
	liveEnabled := serviceKey != ""
	if v := os.Getenv("LIVE_FEED_ENABLED"); v != "" {
		liveEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		HTTPPathPrefix:  os.Getenv("HTTP_PATH_PREFIX"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		StationDataPath: sharedcfg.EnvOrDefault("STATION_DATA_PATH", "data/stations.csv"),
		Timezone:        tz,
		WarmupEnabled:   sharedcfg.EnvOrDefault("WARMUP_ENABLED", "true") == "true",

		StationsTTL:   stationsTTL,
		LiveStatusTTL: liveTTL,

		LiveFeedEnabled:        liveEnabled,
		LiveFeedURL:            sharedcfg.EnvOrDefault("LIVE_FEED_URL", "https://apis.data.go.kr/B552584/EvCharger/getChargerInfo"),
		LiveFeedServiceKey:     serviceKey,
		LiveFeedPageSize:       pageSize,
		LiveFeedZone:           sharedcfg.EnvOrDefault("LIVE_FEED_ZONE", "11"),
		LiveFeedConnectTimeout: connectTimeout,
		LiveFeedReadTimeout:    readTimeout,
		LiveRefreshInterval:    refreshInterval,

		UsageCacheSize: usageCacheSize,

		KafkaEnabled:     os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaStatusTopic: sharedcfg.EnvOrDefault("KAFKA_STATUS_TOPIC", "ev-station-status"),
	}

	if cfg.StationDataPath == "" {
		return nil, errors.New("STATION_DATA_PATH is required")
	}
	if cfg.LiveFeedEnabled && cfg.LiveFeedServiceKey == "" {
		return nil, errors.New("LIVE_FEED_ENABLED is true but LIVE_FEED_SERVICE_KEY is not set")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaStatusTopic == "" {
		return nil, errors.New("KAFKA_STATUS_TOPIC is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
