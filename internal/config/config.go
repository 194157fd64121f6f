package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	AMQP      AMQPConfig
	Lifecycle LifecycleConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

// AMQPConfig configures the notification broker. An empty URL means
// notifications are only logged, which is the default for local runs.
type AMQPConfig struct {
	URL string
}

type LifecycleConfig struct {
	HoldPeriod              time.Duration
	CompletionSweepInterval time.Duration
	ReleaseSweepInterval    time.Duration
	OutboxInterval          time.Duration
	OutboxRetryBackoff      time.Duration
	OutboxMaxAttempts       int
	OutboxBatchSize         int
	SweepBatchSize          int
	PlatformFeeBps          int64
	PartialRefundBps        int64
	DisputeAutoResolveAfter time.Duration
	DisputeRateLimit        int64
	DisputeRateWindow       time.Duration
	IdempotencyTTL          time.Duration
	BookingCacheTTL         time.Duration
	LedgerCacheTTL          time.Duration
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverHost := os.Getenv("SERVER_HOST")
	if serverHost == "" {
		serverHost = "localhost"
	}

	serverPortStr := os.Getenv("SERVER_PORT")
	if serverPortStr == "" {
		serverPortStr = "8080"
	}

	serverPort, err := strconv.Atoi(serverPortStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid SERVER_PORT: %w", op, err)
	}

	serverCfg := ServerConfig{
		Host: serverHost,
		Port: serverPort,
	}

	postgresHost := os.Getenv("POSTGRES_HOST")
	if postgresHost == "" {
		postgresHost = "localhost"
	}

	postgresPortStr := os.Getenv("POSTGRES_PORT")
	if postgresPortStr == "" {
		postgresPortStr = "5432"
	}

	postgresPort, err := strconv.Atoi(postgresPortStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid POSTGRES_PORT: %w", op, err)
	}

	postgresUser := os.Getenv("POSTGRES_USER")
	if postgresUser == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
	}

	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	if postgresPassword == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_PASSWORD", op)
	}

	postgresDB := os.Getenv("POSTGRES_DB")
	if postgresDB == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
	}

	postgresSSLMode := os.Getenv("POSTGRES_SSLMODE")
	if postgresSSLMode == "" {
		postgresSSLMode = "disable"
	}

	postgresCfg := PostgresConfig{
		User:     postgresUser,
		Password: postgresPassword,
		Name:     postgresDB,
		Host:     postgresHost,
		Port:     postgresPort,
		SSLMode:  postgresSSLMode,
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	redisCfg := RedisConfig{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	}

	amqpCfg := AMQPConfig{
		URL: os.Getenv("AMQP_URL"),
	}

	lifecycleCfg, err := lifecycleFromEnv(op)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    serverCfg,
		Postgres:  postgresCfg,
		Redis:     redisCfg,
		AMQP:      amqpCfg,
		Lifecycle: lifecycleCfg,
	}, nil
}

func lifecycleFromEnv(op string) (LifecycleConfig, error) {
	cfg := LifecycleConfig{}

	var err error

	if cfg.HoldPeriod, err = envDuration("HOLD_PERIOD", 72*time.Hour); err != nil {
		return cfg, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.CompletionSweepInterval, err = envDuration("COMPLETION_SWEEP_INTERVAL", 5*time.Minute); err != nil {
		return cfg, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.ReleaseSweepInterval, err = envDuration("RELEASE_SWEEP_INTERVAL", 5*time.Minute); err != nil {
		return cfg, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.OutboxInterval, err = envDuration("OUTBOX_INTERVAL", 30*time.Second); err != nil {
		return cfg, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.OutboxRetryBackoff, err = envDuration("OUTBOX_RETRY_BACKOFF", time.Minute); err != nil {
		return cfg, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.OutboxMaxAttempts, err = envInt("OUTBOX_MAX_ATTEMPTS", 5); err != nil {
		return cfg, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.OutboxBatchSize, err = envInt("OUTBOX_BATCH_SIZE", 100); err != nil {
		return cfg, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.SweepBatchSize, err = envInt("SWEEP_BATCH_SIZE", 200); err != nil {
		return cfg, fmt.Errorf("%s: %w", op, err)
	}

	feeBps, err := envInt("PLATFORM_FEE_BPS", 1000)
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", op, err)
	}
	cfg.PlatformFeeBps = int64(feeBps)

	refundBps, err := envInt("PARTIAL_REFUND_BPS", 5000)
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", op, err)
	}
	cfg.PartialRefundBps = int64(refundBps)

	if cfg.DisputeAutoResolveAfter, err = envDuration("DISPUTE_AUTO_RESOLVE_AFTER", 168*time.Hour); err != nil {
		return cfg, fmt.Errorf("%s: %w", op, err)
	}

	rateLimit, err := envInt("DISPUTE_RATE_LIMIT", 5)
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", op, err)
	}
	cfg.DisputeRateLimit = int64(rateLimit)

	if cfg.DisputeRateWindow, err = envDuration("DISPUTE_RATE_WINDOW", time.Minute); err != nil {
		return cfg, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.IdempotencyTTL, err = envDuration("IDEMPOTENCY_TTL", 2*time.Hour); err != nil {
		return cfg, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.BookingCacheTTL, err = envDuration("BOOKING_CACHE_TTL", 30*time.Second); err != nil {
		return cfg, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.LedgerCacheTTL, err = envDuration("LEDGER_CACHE_TTL", 30*time.Second); err != nil {
		return cfg, fmt.Errorf("%s: %w", op, err)
	}

	return cfg, nil
}

func envDuration(name string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}

	return d, nil
}

func envInt(name string, def int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}

	return n, nil
}
