package config

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/0xanmol/base64img-web/internal/domain"
)

type Config struct {
	Server    ServerConfig
	Convert   ConvertConfig
	RateLimit RateLimitConfig
	Trace     TraceConfig
}

type ServerConfig struct {
	Addr           string
	MaxUploadBytes int64
}

type ConvertConfig struct {
	DefaultTargetEdge    int
	MaxActiveConversions int
	DebounceWindow       time.Duration
}

type RateLimitConfig struct {
	Enabled  bool
	Capacity int
	Window   time.Duration
}

type TraceConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

func Load() Config {
	return Config{
		Server: ServerConfig{
			Addr:           env("BASE64IMG_ADDR", ":8080"),
			MaxUploadBytes: envInt64("BASE64IMG_MAX_UPLOAD_BYTES", 32<<20),
		},
		Convert: ConvertConfig{
			DefaultTargetEdge:    envInt("BASE64IMG_DEFAULT_TARGET_EDGE", domain.DefaultTargetEdge),
			MaxActiveConversions: envInt("BASE64IMG_MAX_ACTIVE_CONVERSIONS", max(2, runtime.NumCPU())),
			DebounceWindow:       envDuration("BASE64IMG_DEBOUNCE_WINDOW", 100*time.Millisecond),
		},
		RateLimit: RateLimitConfig{
			Enabled:  envBool("BASE64IMG_RATE_LIMIT_ENABLED", true),
			Capacity: envInt("BASE64IMG_RATE_LIMIT_CAPACITY", 30),
			Window:   envDuration("BASE64IMG_RATE_LIMIT_WINDOW", time.Minute),
		},
		Trace: TraceConfig{
			Exporter:     env("BASE64IMG_TRACE_EXPORTER", "none"),
			OTLPEndpoint: env("BASE64IMG_OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("BASE64IMG_OTLP_INSECURE", false),
		},
	}
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt64(key string, fallback int64) int64 {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
