package config

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"carrier-engine/internal/core/proxy"

	"github.com/spf13/viper"
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Order sources accepted by ORDER_SOURCE.
const (
	OrderSourceStore       = "store"
	OrderSourceWooCommerce = "woocommerce"
)

// AppConfig holds the configuration for the application.
// Tags used:
// - mapstructure: used by viper to unmarshal
// - default: default value to set if missing
// - required: if "true", error if missing
type AppConfig struct {
	// Environment specifies the runtime environment (e.g., development, production).
	Environment string `mapstructure:"APP_ENV" default:"development"`
	// LogLevel defines the logging verbosity (e.g., debug, info, error).
	LogLevel string `mapstructure:"LOG_LEVEL" default:"info"`
	// ServerPort is the port where the server will listen.
	ServerPort int `mapstructure:"SERVER_PORT" default:"8080"`
	// StorageDriver selects the persistence backend (memory or postgres).
	StorageDriver string `mapstructure:"STORAGE_DRIVER" default:"memory"`
	// RedisURL points at the Redis instance used for settings and order locks.
	// Empty keeps both in process.
	RedisURL string `mapstructure:"REDIS_URL"`
	// OrderSource selects where order snapshots are read from (store or woocommerce).
	OrderSource string `mapstructure:"ORDER_SOURCE" default:"store"`
	// SeedFile is a YAML or JSON file of carriers and rules applied at startup.
	// Without it the memory driver starts with the mock carrier only.
	SeedFile string `mapstructure:"SEED_FILE"`

	// Database holds the database configuration.
	Database DatabaseConfig `mapstructure:",squash"`

	// Carriers holds outbound carrier API settings.
	Carriers CarrierConfig `mapstructure:",squash"`

	// Jobs holds the background job schedules.
	Jobs JobsConfig `mapstructure:",squash"`

	// Proxy holds the optional outbound proxy for carrier calls.
	Proxy proxy.Settings `mapstructure:",squash"`

	// WooCommerce holds the WooCommerce API configuration.
	WooCommerce WooCommerceConfig `mapstructure:",squash"`
}

// WooCommerceConfig holds the credentials for the WooCommerce Store.
type WooCommerceConfig struct {
	// URL is the base URL of the WooCommerce store.
	URL string `mapstructure:"WC_URL"`
	// ConsumerKey is the public key for API access.
	ConsumerKey string `mapstructure:"WC_CONSUMER_KEY"`
	// ConsumerSecret is the secret key for API access.
	ConsumerSecret string `mapstructure:"WC_CONSUMER_SECRET"`
}

// Enabled reports whether the store credentials are complete.
func (c WooCommerceConfig) Enabled() bool {
	return c.URL != "" && c.ConsumerKey != "" && c.ConsumerSecret != ""
}

// DatabaseConfig holds database connection details.
type DatabaseConfig struct {
	Host     string `mapstructure:"DB_HOST" default:"localhost"`
	Port     int    `mapstructure:"DB_PORT" default:"5432"`
	User     string `mapstructure:"DB_USER" default:"postgres"`
	Password string `mapstructure:"DB_PASSWORD"`
	Name     string `mapstructure:"DB_NAME" default:"carrier_engine"`
	SSLMode  string `mapstructure:"DB_SSLMODE" default:"disable"`
	// MaxOpenConns caps the pool size.
	MaxOpenConns int `mapstructure:"DB_MAX_OPEN_CONNS" default:"20"`
	// MaxIdleConns caps idle pooled connections.
	MaxIdleConns int `mapstructure:"DB_MAX_IDLE_CONNS" default:"5"`
	// ConnMaxLifetime recycles pooled connections.
	ConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME" default:"30m"`
	// Debug logs every statement.
	Debug bool `mapstructure:"DB_DEBUG"`
}

// DSN returns the postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// CarrierConfig holds settings shared by every carrier adapter.
type CarrierConfig struct {
	// Timeout bounds every outbound carrier call.
	Timeout time.Duration `mapstructure:"CARRIER_TIMEOUT" default:"30s"`
	// Workers bounds concurrent carrier calls in bulk operations.
	Workers int `mapstructure:"CARRIER_WORKERS" default:"8"`
	// OrderLockTTL bounds how long a per-order booking lock may be held.
	OrderLockTTL time.Duration `mapstructure:"ORDER_LOCK_TTL" default:"2m"`
}

// JobsConfig holds cron schedules (with a seconds field).
type JobsConfig struct {
	// TrackingRefreshSchedule drives the periodic tracking refresh. Empty disables it.
	TrackingRefreshSchedule string `mapstructure:"TRACKING_REFRESH_SCHEDULE" default:"0 */30 * * * *"`
}

var configFile string

// SetConfigFile overrides the .env lookup with an explicit file.
func SetConfigFile(path string) {
	configFile = path
}

// Load loads configuration from .env files and environment variables.
func Load(path string) (*AppConfig, error) {
	v := viper.New()

	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("env")
	} else {
		v.AddConfigPath(path)
		v.SetConfigName(".env")
		v.SetConfigType("env")
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config AppConfig

	if err := processTags(v, &config); err != nil {
		return nil, err
	}

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := validateRequired(&config); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *AppConfig) validate() error {
	switch c.StorageDriver {
	case StorageMemory, StoragePostgres:
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER %q: expected %s or %s", c.StorageDriver, StorageMemory, StoragePostgres)
	}

	switch c.OrderSource {
	case OrderSourceStore:
	case OrderSourceWooCommerce:
		if !c.WooCommerce.Enabled() {
			return fmt.Errorf("ORDER_SOURCE=%s requires WC_URL, WC_CONSUMER_KEY and WC_CONSUMER_SECRET", OrderSourceWooCommerce)
		}
	default:
		return fmt.Errorf("invalid ORDER_SOURCE %q", c.OrderSource)
	}

	if c.Carriers.Workers < 1 {
		return fmt.Errorf("CARRIER_WORKERS must be at least 1, got %d", c.Carriers.Workers)
	}
	return nil
}

// processTags walks the struct fields and registers env bindings and default values in Viper.
func processTags(v *viper.Viper, config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := processTags(v, val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		key := field.Tag.Get("mapstructure")
		defaultValue := field.Tag.Get("default")

		if key != "" {
			if err := v.BindEnv(key); err != nil {
				return fmt.Errorf("failed to bind %s: %w", key, err)
			}
		}

		if key != "" && defaultValue != "" {
			v.SetDefault(key, defaultValue)
		}
	}
	return nil
}

// validateRequired checks if fields marked as required have non-zero values.
func validateRequired(config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := validateRequired(val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		if field.Tag.Get("required") == "true" && isZero(val.Field(i)) {
			return fmt.Errorf("missing required configuration: %s", field.Tag.Get("mapstructure"))
		}
	}
	return nil
}

// isZero checks if a reflect.Value is the zero value for its type.
func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.String() == ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	default:
		return v.IsZero()
	}
}
