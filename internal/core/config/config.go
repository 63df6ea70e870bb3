package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type InvalidationCfg struct {
	Enabled      bool
	Topic        string
	Brokers      string
	GroupID      string
	TLS          bool
	TLSCAFile    string
	SASLUsername string
	SASLPassword string
}

type Config struct {
	Addr        string
	LogLevel    string
	LogConsole  bool
	CatalogPath string

	// ImageCache is one of "redis", "memory" or "none".
	ImageCache       string
	RedisAddr        string
	RedisPoolSize    int
	RedisDialTimeout time.Duration
	ImageCacheTTL    time.Duration
	ImageCacheSize   int
	CacheOpTimeout   time.Duration

	CapabilitiesTTL     time.Duration
	CapabilitiesSize    int
	CapabilitiesVersion string

	FetchTimeout       time.Duration
	FetchUserAgent     string
	FetchProxy         string
	TolerateTruncation bool

	MetricsEnabled bool
	Invalidation   InvalidationCfg
}

func FromEnv() Config {
	return Config{
		Addr:        getenv("ADDR", ":8090"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		LogConsole:  getbool("LOG_CONSOLE", false),
		CatalogPath: getenv("CATALOG_PATH", "catalog.yaml"),

		ImageCache:       strings.ToLower(getenv("IMAGE_CACHE", "memory")),
		RedisAddr:        getenv("REDIS_ADDR", "localhost:6379"),
		RedisPoolSize:    getint("REDIS_POOL_SIZE", 64),
		RedisDialTimeout: getduration("REDIS_DIAL_TIMEOUT", 2*time.Second),
		ImageCacheTTL:    getduration("IMAGE_CACHE_TTL", 10*time.Minute),
		ImageCacheSize:   getint("IMAGE_CACHE_SIZE", 512),
		CacheOpTimeout:   getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),

		CapabilitiesTTL:     getduration("CAPABILITIES_TTL", 24*time.Hour),
		CapabilitiesSize:    getint("CAPABILITIES_CACHE_SIZE", 256),
		CapabilitiesVersion: getenv("CAPABILITIES_VERSION", "1.1.1"),

		FetchTimeout:       getduration("FETCH_TIMEOUT", 10*time.Second),
		FetchUserAgent:     getenv("FETCH_USER_AGENT", "wmsgate-WMSLayer"),
		FetchProxy:         getenv("FETCH_PROXY", ""),
		TolerateTruncation: getbool("TOLERATE_TRUNCATION", true),

		MetricsEnabled: getbool("METRICS_ENABLED", true),
		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Topic:   getenv("KAFKA_TOPIC", "wms-capabilities"),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getenv("KAFKA_GROUP_ID", "wmsgate-invalidator"),

			TLS:          getbool("KAFKA_TLS", false),
			TLSCAFile:    getenv("KAFKA_TLS_CA_FILE", ""),
			SASLUsername: getenv("KAFKA_SASL_USERNAME", ""),
			SASLPassword: getenv("KAFKA_SASL_PASSWORD", ""),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
