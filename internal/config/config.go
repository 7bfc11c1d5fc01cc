package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMongo  = "mongo"
	BackendSQLite = "sqlite"
	BackendNone   = "none"

	RenderServer = "server"
	RenderClient = "client"
)

type Config struct {
	Port int

	StoreBackend    string
	MongoHost       string
	MongoPort       int
	MongoDB         string
	MongoCollection string
	SQLiteDSN       string
	StoreTimeout    time.Duration

	VisitsLimit    int
	VisitsMaxLimit int
	RenderMode     string

	Name    string
	Project string
	Version string

	APIRateRPS   float64
	APIRateBurst int

	LogLevel string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getfloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}

// getmillis reads a millisecond duration; values <= 0 fall back to def.
func getmillis(key string, def int) time.Duration {
	ms := getint(key, def)
	if ms <= 0 {
		ms = def
	}
	return time.Duration(ms) * time.Millisecond
}

func oneOf(v, def string, allowed ...string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return def
}

// Load reads configuration from the environment. A .env file in the
// working directory, when present, fills in variables that are not set.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:            getint("PORT", 8080),
		StoreBackend:    oneOf(getenv("STORE_BACKEND", BackendMongo), BackendMongo, BackendMongo, BackendSQLite, BackendNone),
		MongoHost:       getenv("MONGO_HOST", "localhost"),
		MongoPort:       getint("MONGO_PORT", 27017),
		MongoDB:         getenv("MONGO_DB", "net4255"),
		MongoCollection: getenv("MONGO_COLLECTION", "visits"),
		SQLiteDSN:       getenv("SQLITE_DSN", "file:visits.db"),
		StoreTimeout:    getmillis("STORE_TIMEOUT_MS", 2000),
		VisitsLimit:     getint("VISITS_LIMIT", 10),
		VisitsMaxLimit:  getint("VISITS_MAX_LIMIT", 100),
		RenderMode:      oneOf(getenv("RENDER_MODE", RenderServer), RenderServer, RenderServer, RenderClient),
		Name:            getenv("APP_NAME", "Azer Hassine Zaabar"),
		Project:         getenv("APP_PROJECT", "net4255-visits"),
		Version:         getenv("APP_VERSION", "V2"),
		APIRateRPS:      getfloat("API_RATE_RPS", 5.0),
		APIRateBurst:    getint("API_RATE_BURST", 10),
		LogLevel:        getenv("LOG_LEVEL", "info"),
	}
}

// ValidBackend reports whether b names a supported store backend.
func ValidBackend(b string) bool {
	return oneOf(b, "", BackendMongo, BackendSQLite, BackendNone) != ""
}
