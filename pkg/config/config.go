// Package config предоставляет загрузку конфигурации из переменных окружения.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config содержит полную конфигурацию приложения.
type Config struct {
	App       AppConfig
	Downstream DownstreamConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	JWT       JWTConfig
	Jaeger    JaegerConfig
	Metrics   MetricsConfig
	Checkout  CheckoutConfig
}

// AppConfig содержит общие настройки приложения.
type AppConfig struct {
	Name      string `env:"APP_NAME" envDefault:"checkout-saga"`
	Env       string `env:"APP_ENV" envDefault:"development"`
	Port      int    `env:"APP_PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// Addr возвращает адрес HTTP сервера.
func (c AppConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// DownstreamConfig содержит базовые адреса сервисов, с которыми
// сага-оркестратор взаимодействует через HTTP. Каждый независимо
// переопределяется отдельной переменной окружения.
type DownstreamConfig struct {
	CartBaseURL      string        `env:"CART_SERVICE_URL" envDefault:"http://cart-service"`
	AddressBaseURL   string        `env:"ADDRESS_SERVICE_URL" envDefault:"http://address-service"`
	InventoryBaseURL string        `env:"INVENTORY_SERVICE_URL" envDefault:"http://inventory-service"`
	PaymentBaseURL   string        `env:"PAYMENT_SERVICE_URL" envDefault:"http://payment-service"`
	OrderBaseURL     string        `env:"ORDER_SERVICE_URL" envDefault:"http://order-service"`
	Timeout          time.Duration `env:"DOWNSTREAM_TIMEOUT" envDefault:"5s"`
	MaxRetries       int           `env:"DOWNSTREAM_MAX_RETRIES" envDefault:"2"`
}

// RedisConfig содержит настройки подключения к Redis (используется только
// для rate limiting на входе в checkout — не для состояния саги).
type RedisConfig struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// Addr возвращает адрес Redis сервера.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig содержит настройки подключения к Kafka для публикации событий.
type KafkaConfig struct {
	Brokers       []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	OrderCreated  string   `env:"KAFKA_TOPIC_ORDER_CREATED" envDefault:"order-created"`
}

// JWTConfig содержит настройки верификации JWT токенов (RS256).
// Токен уже проверен на границе API Gateway; здесь верификация повторяется
// defensively, не заново реализует авторизацию.
type JWTConfig struct {
	PublicKeyPath string `env:"JWT_PUBLIC_KEY_PATH,required"`
	Issuer        string `env:"JWT_ISSUER" envDefault:"checkout-saga"`
}

// JaegerConfig содержит настройки трассировки Jaeger.
type JaegerConfig struct {
	Enabled  bool   `env:"JAEGER_ENABLED" envDefault:"true"`
	Host     string `env:"JAEGER_HOST" envDefault:"localhost"`
	OTLPPort int    `env:"JAEGER_OTLP_PORT" envDefault:"4317"`
}

// OTLPEndpoint возвращает OTLP gRPC endpoint для Jaeger.
func (c JaegerConfig) OTLPEndpoint() string {
	return fmt.Sprintf("%s:%d", c.Host, c.OTLPPort)
}

// MetricsConfig содержит настройки Prometheus метрик.
type MetricsConfig struct {
	Enabled bool `env:"METRICS_ENABLED" envDefault:"true"`
	Port    int  `env:"METRICS_PORT" envDefault:"9090"`
}

// Addr возвращает адрес для Metrics HTTP сервера.
func (c MetricsConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// CheckoutConfig содержит бизнес-настройки checkout-саги.
type CheckoutConfig struct {
	DefaultCurrency  string  `env:"DEFAULT_CURRENCY" envDefault:"INR"`
	StandardShipping int64   `env:"STANDARD_SHIPPING_MINOR" envDefault:"1000"` // 10.00 в минимальных единицах
	ExpressMultiplier float64 `env:"EXPRESS_SHIPPING_MULTIPLIER" envDefault:"1.5"`
	AllowedRoles     []string `env:"ALLOWED_ROLES" envDefault:"CUSTOMER" envSeparator:","`
}

// Load загружает конфигурацию из переменных окружения.
// Опционально загружает .env файл, если он существует.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфигурации: %w", err)
	}
	return cfg, nil
}

// LoadFromFile загружает конфигурацию из указанного .env файла.
func LoadFromFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("ошибка загрузки .env файла %s: %w", path, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфигурации: %w", err)
	}
	return cfg, nil
}

// IsDevelopment возвращает true, если приложение запущено в development режиме.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction возвращает true, если приложение запущено в production режиме.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
