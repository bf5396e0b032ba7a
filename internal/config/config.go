package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultBind            = ":8080"
	DefaultMongoURI        = "mongodb://localhost:27017"
	DefaultMongoDB         = "gallery"
	DefaultMongoCollection = "media"
	DefaultLimit           = 20
	DefaultMaxLimit        = 100
	DefaultRateLimitRPS    = 20.0
	DefaultRateLimitBurst  = 40
)

type AuthMode string

const (
	AuthNone   AuthMode = "none"
	AuthAPIKey AuthMode = "apikey"
)

type StoreKind string

const (
	StoreMongo  StoreKind = "mongo"
	StoreMySQL  StoreKind = "mysql"
	StoreMemory StoreKind = "memory"
)

type Config struct {
	Bind               string
	Store              StoreKind
	MongoURI           string
	MongoDB            string
	MongoCollection    string
	DBDSN              string
	AuthMode           AuthMode
	APIKeysFile        string
	CORSAllowedOrigins []string
	LogLevel           string
	LogFormat          string
	DefaultLimit       int
	MaxLimit           int
	RateLimitRPS       float64
	RateLimitBurst     int
	SwaggerUIPath      string
	OpenAPIPath        string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Bind:               getenv("GALLERY_BIND", DefaultBind),
		Store:              StoreKind(strings.ToLower(getenv("GALLERY_STORE", string(StoreMongo)))),
		MongoURI:           getenv("GALLERY_MONGO_URI", DefaultMongoURI),
		MongoDB:            getenv("GALLERY_MONGO_DB", DefaultMongoDB),
		MongoCollection:    getenv("GALLERY_MONGO_COLLECTION", DefaultMongoCollection),
		DBDSN:              os.Getenv("GALLERY_DB_DSN"),
		AuthMode:           AuthMode(getenv("GALLERY_AUTH_MODE", string(AuthAPIKey))),
		CORSAllowedOrigins: splitAndTrim(os.Getenv("GALLERY_CORS_ALLOWED_ORIGINS")),
		LogLevel:           os.Getenv("GALLERY_LOG_LEVEL"),
		LogFormat:          strings.ToLower(getenv("GALLERY_LOG_FORMAT", "text")),
		DefaultLimit:       getInt("GALLERY_DEFAULT_LIMIT", DefaultLimit),
		MaxLimit:           getInt("GALLERY_MAX_LIMIT", DefaultMaxLimit),
		RateLimitRPS:       getFloat("GALLERY_RATE_LIMIT_RPS", DefaultRateLimitRPS),
		RateLimitBurst:     getInt("GALLERY_RATE_LIMIT_BURST", DefaultRateLimitBurst),
		SwaggerUIPath:      "/swagger",
		OpenAPIPath:        "/openapi.yaml",
	}

	switch cfg.Store {
	case StoreMongo:
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("GALLERY_MONGO_URI is required when GALLERY_STORE=mongo")
		}
	case StoreMySQL:
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("GALLERY_DB_DSN is required when GALLERY_STORE=mysql")
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("invalid GALLERY_STORE: %s", cfg.Store)
	}

	switch cfg.AuthMode {
	case AuthNone, AuthAPIKey:
	default:
		return nil, fmt.Errorf("invalid GALLERY_AUTH_MODE: %s", cfg.AuthMode)
	}

	if cfg.AuthMode == AuthAPIKey {
		cfg.APIKeysFile = getenv("GALLERY_API_KEYS_FILE", "api-keys.yaml")
	}

	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = DefaultMaxLimit
	}
	if cfg.DefaultLimit > cfg.MaxLimit {
		return nil, fmt.Errorf("GALLERY_DEFAULT_LIMIT (%d) exceeds GALLERY_MAX_LIMIT (%d)", cfg.DefaultLimit, cfg.MaxLimit)
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil {
			return i
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil && f > 0 {
			return f
		}
	}
	return def
}

func splitAndTrim(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
