package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App struct {
		ENV string
	}

	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	DB struct {
		Driver   string
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		Debug    bool
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
		Prefix   string
	}

	GRPC struct {
		Host string
		Port string
	}

	Metrics struct {
		Addr string
	}

	Auth struct {
		Required bool
	}

	AMQP struct {
		URL      string
		Exchange string
	}

	Deck struct {
		LowWaterMark int
	}

	Notify struct {
		InfoDuration    time.Duration
		SuccessDuration time.Duration
		WarningDuration time.Duration
		ErrorDuration   time.Duration
		MatchDuration   time.Duration
		Gap             time.Duration
	}

	Latency struct {
		Privacy time.Duration
		Report  time.Duration
		Login   time.Duration
	}
}

func New() *Config {
	cfg := &Config{}

	cfg.App.ENV = getEnvDefault("APP_ENV", "development")

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "devmatch")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Database: sqlite (in-memory catalog) unless told otherwise
	cfg.DB.Driver = strings.ToLower(getEnvDefault("DB_DRIVER", "sqlite"))
	cfg.DB.Debug = isTruthy(os.Getenv("DB_DEBUG"))
	cfg.DB.DSN = os.Getenv("DB_DSN")
	if cfg.DB.DSN == "" {
		switch cfg.DB.Driver {
		case "mysql":
			cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
			cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
			cfg.DB.User = getEnvDefault("DB_USER", "root")
			cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
			cfg.DB.Name = getEnvDefault("DB_NAME", "devmatch")

			cfg.DB.DSN = fmt.Sprintf(
				"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
				cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
			)
		default:
			cfg.DB.DSN = "file:devmatch?mode=memory&cache=shared"
		}
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	if dbStr := getEnvDefault("REDIS_DB", "0"); dbStr != "" {
		if dbInt, err := strconv.Atoi(dbStr); err == nil {
			cfg.Redis.DB = dbInt
		}
	}
	cfg.Redis.Prefix = getEnvDefault("REDIS_PREFIX", "devmatch")

	// gRPC
	cfg.GRPC.Host = getEnvDefault("GRPC_HOST", "127.0.0.1")
	cfg.GRPC.Port = getEnvDefault("GRPC_PORT", "50051")

	cfg.Metrics.Addr = getEnvDefault("METRICS_ADDR", "127.0.0.1:9090")

	// off: callers pass user_id as-is; on: "authorization" metadata must hold the login token
	cfg.Auth.Required = isTruthy(os.Getenv("AUTH_REQUIRED"))

	// AMQP is optional, empty URL means noop publisher
	cfg.AMQP.URL = getEnvDefault("AMQP_URL", "")
	cfg.AMQP.Exchange = getEnvDefault("AMQP_EXCHANGE", "devmatch.events")

	cfg.Deck.LowWaterMark = getEnvInt("DECK_LOW_WATER_MARK", 5)

	// Toast durations
	cfg.Notify.InfoDuration = getEnvDuration("TOAST_INFO_DURATION", 3*time.Second)
	cfg.Notify.SuccessDuration = getEnvDuration("TOAST_SUCCESS_DURATION", 4*time.Second)
	cfg.Notify.WarningDuration = getEnvDuration("TOAST_WARNING_DURATION", 5*time.Second)
	cfg.Notify.ErrorDuration = getEnvDuration("TOAST_ERROR_DURATION", 6*time.Second)
	cfg.Notify.MatchDuration = getEnvDuration("TOAST_MATCH_DURATION", 5*time.Second)
	cfg.Notify.Gap = getEnvDuration("TOAST_GAP", 100*time.Millisecond)

	// Simulated network latency for mock actions
	cfg.Latency.Privacy = getEnvDuration("LATENCY_PRIVACY", 500*time.Millisecond)
	cfg.Latency.Report = getEnvDuration("LATENCY_REPORT", time.Second)
	cfg.Latency.Login = getEnvDuration("LATENCY_LOGIN", time.Second)

	return cfg
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v, err := strconv.Atoi(getEnvDefault(k, "")); err == nil {
		return v
	}
	return def
}

// getEnvDuration accepts Go durations ("250ms") or bare milliseconds ("250").
func getEnvDuration(k string, def time.Duration) time.Duration {
	v := getEnvDefault(k, "")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
