package config

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid/v5"
	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	BrokerDriverNats  = "nats"
	BrokerDriverKafka = "kafka"
	BrokerDriverNone  = "none"
)

type Config struct {
	Port               string          `mapstructure:"PORT" validate:"required"`
	InternalAuthHeader string          `mapstructure:"INTERNAL_AUTH_HEADER" validate:"required"`
	InstanceID         string          `mapstructure:"INSTANCE_ID"`
	Db                 DbConfig        `mapstructure:",squash"`
	Broker             BrokerConfig    `mapstructure:",squash"`
	Redis              RedisConfig     `mapstructure:",squash"`
	Inventory          InventoryConfig `mapstructure:",squash"`
}

type DbConfig struct {
	Driver   string `mapstructure:"STORE_DRIVER" validate:"oneof=postgres memory"`
	Host     string `mapstructure:"DB_HOST" validate:"required_if=Driver postgres"`
	Port     string `mapstructure:"DB_PORT" validate:"required_if=Driver postgres"`
	Username string `mapstructure:"DB_USERNAME" validate:"required_if=Driver postgres"`
	Password string `mapstructure:"DB_PASSWORD" validate:"required_if=Driver postgres"`
	DbName   string `mapstructure:"DB_DBNAME" validate:"required_if=Driver postgres"`
	SSLMode  string `mapstructure:"DB_SSLMODE"`
}

type BrokerConfig struct {
	Driver         string   `mapstructure:"BROKER_DRIVER" validate:"oneof=nats kafka none"`
	NatsURL        string   `mapstructure:"NATS_URL" validate:"required_if=Driver nats"`
	NatsStreamName string   `mapstructure:"NATS_STREAM_NAME" validate:"required_if=Driver nats"`
	KafkaBrokers   []string `mapstructure:"KAFKA_BROKERS" validate:"required_if=Driver kafka"`
	KafkaTopic     string   `mapstructure:"KAFKA_TOPIC" validate:"required_if=Driver kafka"`
}

// RedisConfig is optional; an empty Addr means a single instance runs the sweep.
type RedisConfig struct {
	Addr     string `mapstructure:"REDIS_ADDR"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type InventoryConfig struct {
	ReservationTTL           time.Duration `mapstructure:"RESERVATION_TTL" validate:"gt=0"`
	SweepInterval            time.Duration `mapstructure:"RESERVATION_SWEEP_INTERVAL" validate:"gt=0"`
	SweepBatch               int           `mapstructure:"RESERVATION_SWEEP_BATCH" validate:"gt=0"`
	DefaultLowStockThreshold int64         `mapstructure:"DEFAULT_LOW_STOCK_THRESHOLD" validate:"gte=0"`
	AlertAutoResolve         bool          `mapstructure:"ALERT_AUTO_RESOLVE"`
	LedgerMaxRetries         int           `mapstructure:"LEDGER_MAX_RETRIES" validate:"gte=1"`
}

// DefaultInventoryConfig mirrors the defaults applied by InitConfig.
func DefaultInventoryConfig() InventoryConfig {
	return InventoryConfig{
		ReservationTTL:           30 * time.Minute,
		SweepInterval:            5 * time.Minute,
		SweepBatch:               200,
		DefaultLowStockThreshold: 10,
		AlertAutoResolve:         true,
		LedgerMaxRetries:         3,
	}
}

func setDefaults() {
	inv := DefaultInventoryConfig()
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("BROKER_DRIVER", BrokerDriverNone)
	viper.SetDefault("NATS_URL", "nats://localhost:4222")
	viper.SetDefault("NATS_STREAM_NAME", "STOREFRONT")
	viper.SetDefault("KAFKA_BROKERS", "localhost:9092")
	viper.SetDefault("KAFKA_TOPIC", "storefront.events")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("RESERVATION_TTL", inv.ReservationTTL.String())
	viper.SetDefault("RESERVATION_SWEEP_INTERVAL", inv.SweepInterval.String())
	viper.SetDefault("RESERVATION_SWEEP_BATCH", inv.SweepBatch)
	viper.SetDefault("DEFAULT_LOW_STOCK_THRESHOLD", inv.DefaultLowStockThreshold)
	viper.SetDefault("ALERT_AUTO_RESOLVE", inv.AlertAutoResolve)
	viper.SetDefault("LEDGER_MAX_RETRIES", inv.LedgerMaxRetries)
}

func InitConfig(ctx context.Context) (*Config, error) {
	var cfg Config

	// Reset viper to avoid any previous configuration
	viper.Reset()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetConfigType("env")
	setDefaults()

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}

	_, err := os.Stat(envFile)
	if !os.IsNotExist(err) {
		viper.SetConfigFile(envFile)

		if err := viper.ReadInConfig(); err != nil {
			slog.WarnContext(ctx, "[InitConfig] ReadInConfig warning, continuing with env vars only", "error", err)
		} else {
			slog.InfoContext(ctx, "[InitConfig] Successfully loaded config file", "file", envFile)
		}
	} else {
		slog.InfoContext(ctx, "[InitConfig] No config file found, using environment variables")
	}

	viper.AutomaticEnv()

	// Keys without a default are unknown to Unmarshal unless bound explicitly.
	envVars := []string{
		"INTERNAL_AUTH_HEADER",
		"INSTANCE_ID",
		"DB_HOST",
		"DB_PORT",
		"DB_USERNAME",
		"DB_PASSWORD",
		"DB_DBNAME",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
	}
	for _, key := range envVars {
		_ = viper.BindEnv(key)
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		slog.ErrorContext(ctx, "[InitConfig] Unmarshal", "failed bind config", err)
		return nil, err
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.Must(uuid.NewV4()).String()
	}

	slog.InfoContext(ctx, "[InitConfig] Configuration after binding",
		"PORT", cfg.Port,
		"INSTANCE_ID", cfg.InstanceID,
		"STORE_DRIVER", cfg.Db.Driver,
		"DB_HOST", cfg.Db.Host,
		"DB_DBNAME", cfg.Db.DbName,
		"BROKER_DRIVER", cfg.Broker.Driver,
		"REDIS_ADDR", cfg.Redis.Addr,
		"RESERVATION_TTL", cfg.Inventory.ReservationTTL,
		"RESERVATION_SWEEP_INTERVAL", cfg.Inventory.SweepInterval)

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		validationErrs, ok := err.(validator.ValidationErrors)
		if ok {
			for _, validationErr := range validationErrs {
				slog.ErrorContext(ctx, "[InitConfig] Validation error",
					"field", validationErr.Field(),
					"namespace", validationErr.Namespace(),
					"tag", validationErr.Tag(),
					"value", validationErr.Value())
			}
		} else {
			slog.ErrorContext(ctx, "[InitConfig] Validation", "error", err)
		}
		return nil, err
	}

	slog.InfoContext(ctx, "[InitConfig] Config loaded successfully")
	return &cfg, nil
}
