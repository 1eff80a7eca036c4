// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// ErrInvalid конфиг не прошёл проверку.
var ErrInvalid = errors.New("invalid config")

// Режимы передачи заданий отправителю.
const (
	HandoffInline = "inline"
	HandoffQueue  = "queue"
)

// Хранилища журнала отправок.
const (
	LedgerPostgres = "postgres"
	LedgerRedis    = "redis"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitMQ                `yaml:"rabbitmq"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Dispatch                `yaml:"dispatch"`
	Push                    `yaml:"push"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	MetricsAddr string        `yaml:"metrics_address" env-default:":9090"`
	GRPCAddr    string        `yaml:"grpc_address" env-default:":50051"`
	RateLimit   float64       `yaml:"rate_limit" env-default:"20"`
	RateBurst   int           `yaml:"rate_burst" env-default:"40"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// RabbitMQ структура для подключения к брокеру
type RabbitMQ struct {
	URL         string `yaml:"url" env:"RABBITMQ_URL"`
	Queue       string `yaml:"queue" env-default:"notifications.reminders"`
	RoutingKey  string `yaml:"routing_key" env-default:"reminder"`
	Concurrency int    `yaml:"concurrency" env-default:"10"`

	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"10"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"3s"`
	// RequeueDelay пауза перед возвратом в очередь задания, которое не удалось отправить.
	RequeueDelay       time.Duration `yaml:"requeue_delay" env-default:"10s"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
}

// Dispatch настройки планировщика напоминаний
type Dispatch struct {
	Timezone        string        `yaml:"timezone" env-default:"Europe/Moscow"`
	TickTimeout     time.Duration `yaml:"tick_timeout" env-default:"50s"`
	Workers         int           `yaml:"workers" env-default:"16"`
	PageSize        int           `yaml:"page_size" env-default:"500"`
	HandoffMode     string        `yaml:"handoff_mode" env-default:"inline"`
	CheckHour       int           `yaml:"check_hour" env-default:"10"`
	MarkerRetention time.Duration `yaml:"marker_retention" env-default:"2160h"`
	ExpiredLookback time.Duration `yaml:"expired_lookback" env-default:"72h"`
	JobTTL          time.Duration `yaml:"job_ttl" env-default:"30m"`
	LedgerBackend   string        `yaml:"ledger_backend" env-default:"postgres"`
	LedgerTimeout   time.Duration `yaml:"ledger_timeout" env-default:"3s"`
}

// Push настройки Web Push
type Push struct {
	VAPIDPublicKey  string        `yaml:"vapid_public_key" env:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string        `yaml:"vapid_private_key" env:"VAPID_PRIVATE_KEY"`
	Subscriber      string        `yaml:"subscriber" env:"VAPID_SUBSCRIBER"`
	TTL             int           `yaml:"ttl" env-default:"3600"`
	Timeout         time.Duration `yaml:"timeout" env-default:"10s"`
	RatePerSecond   float64       `yaml:"rate_per_second" env-default:"50"`
	Burst           int           `yaml:"burst" env-default:"50"`
}

// MustLoad функция для загрузки конфига по пути из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}

// Validate проверяет значения, без которых сервис не может стартовать.
func (c *Config) Validate() error {
	const op = "config.Validate"

	if c.StorageConnectionString == "" {
		return fmt.Errorf("%s: storage_connection_string is empty: %w", op, ErrInvalid)
	}
	if _, err := time.LoadLocation(c.Dispatch.Timezone); err != nil {
		return fmt.Errorf("%s: timezone %q: %w", op, c.Dispatch.Timezone, ErrInvalid)
	}
	if c.CheckHour < 0 || c.CheckHour > 23 {
		return fmt.Errorf("%s: check_hour %d out of range: %w", op, c.CheckHour, ErrInvalid)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%s: workers must be positive: %w", op, ErrInvalid)
	}
	switch c.HandoffMode {
	case HandoffInline:
	case HandoffQueue:
		if c.RabbitMQ.URL == "" {
			return fmt.Errorf("%s: rabbitmq url required for queue handoff: %w", op, ErrInvalid)
		}
	default:
		return fmt.Errorf("%s: unknown handoff_mode %q: %w", op, c.HandoffMode, ErrInvalid)
	}
	switch c.LedgerBackend {
	case LedgerPostgres:
	case LedgerRedis:
		if c.AddressRedis == "" {
			return fmt.Errorf("%s: redis address required for redis ledger: %w", op, ErrInvalid)
		}
	default:
		return fmt.Errorf("%s: unknown ledger_backend %q: %w", op, c.LedgerBackend, ErrInvalid)
	}
	return nil
}

// ValidatePush проверяет учётные данные Web Push. Нужны только процессу,
// который выполняет отправку.
func (c *Config) ValidatePush() error {
	const op = "config.ValidatePush"
	if c.VAPIDPublicKey == "" || c.VAPIDPrivateKey == "" {
		return fmt.Errorf("%s: vapid keys are required: %w", op, ErrInvalid)
	}
	if c.Subscriber == "" {
		return fmt.Errorf("%s: subscriber is required: %w", op, ErrInvalid)
	}
	return nil
}

// Location возвращает часовой пояс по умолчанию.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Dispatch.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"Dispatch:\n"+
			"  Timezone: %s\n"+
			"  HandoffMode: %s\n"+
			"  LedgerBackend: %s\n"+
			"  CheckHour: %d\n"+
			"  Workers: %d\n",
		c.Env,
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.Dispatch.Timezone,
		c.HandoffMode,
		c.LedgerBackend,
		c.CheckHour,
		c.Workers,
	)
}
