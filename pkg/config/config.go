package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const EnvPrefix = "KHARIDO"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Gateway  GatewayConfig
	Wallet   WalletConfig
	Checkout CheckoutConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"KHARIDO_APP_ENV" required:"true"`
	Port         string `envconfig:"KHARIDO_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"KHARIDO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KHARIDO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"KHARIDO_DB_DSN"`
	Driver string `envconfig:"KHARIDO_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"KHARIDO_DB_HOST"`
	Port     int    `envconfig:"KHARIDO_DB_PORT" default:"5432"`
	User     string `envconfig:"KHARIDO_DB_USER"`
	Password string `envconfig:"KHARIDO_DB_PASSWORD"`
	Name     string `envconfig:"KHARIDO_DB_NAME"`
	SSLMode  string `envconfig:"KHARIDO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KHARIDO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KHARIDO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KHARIDO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KHARIDO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KHARIDO_REDIS_URL"`
	Address      string        `envconfig:"KHARIDO_REDIS_ADDR"`
	Password     string        `envconfig:"KHARIDO_REDIS_PASSWORD"`
	DB           int           `envconfig:"KHARIDO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KHARIDO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KHARIDO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KHARIDO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KHARIDO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KHARIDO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// GatewayConfig holds the Razorpay-style payment gateway credentials.
type GatewayConfig struct {
	BaseURL        string        `envconfig:"KHARIDO_GATEWAY_BASE_URL" default:"https://api.razorpay.com/v1"`
	KeyID          string        `envconfig:"KHARIDO_GATEWAY_KEY_ID"`
	KeySecret      string        `envconfig:"KHARIDO_GATEWAY_KEY_SECRET"`
	RequestTimeout time.Duration `envconfig:"KHARIDO_GATEWAY_REQUEST_TIMEOUT" default:"15s"`
}

// WalletConfig tunes the seller ledger rules.
type WalletConfig struct {
	MinWithdrawalAmount string `envconfig:"KHARIDO_WALLET_MIN_WITHDRAWAL" default:"100"`
	CommissionRate      string `envconfig:"KHARIDO_WALLET_COMMISSION_RATE" default:"0.10"`
}

// MinWithdrawal parses the configured minimum cash-out amount.
func (w WalletConfig) MinWithdrawal() (decimal.Decimal, error) {
	value, err := decimal.NewFromString(w.MinWithdrawalAmount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing KHARIDO_WALLET_MIN_WITHDRAWAL: %w", err)
	}
	return value, nil
}

// Commission parses the configured platform commission rate.
func (w WalletConfig) Commission() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(w.CommissionRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing KHARIDO_WALLET_COMMISSION_RATE: %w", err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("commission rate %s out of range [0,1]", rate)
	}
	return rate, nil
}

// CheckoutConfig tunes order splitting.
type CheckoutConfig struct {
	IdempotencyWindow time.Duration `envconfig:"KHARIDO_CHECKOUT_IDEMPOTENCY_WINDOW" default:"5m"`
	TxRetryAttempts   uint64        `envconfig:"KHARIDO_CHECKOUT_TX_RETRY_ATTEMPTS" default:"3"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		"KHARIDO_DB_HOST": db.Host,
		"KHARIDO_DB_USER": db.User,
		"KHARIDO_DB_NAME": db.Name,
	}
	for _, env := range []string{"KHARIDO_DB_HOST", "KHARIDO_DB_USER", "KHARIDO_DB_NAME"} {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either KHARIDO_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
