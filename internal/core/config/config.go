package config

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/spf13/viper"
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

	// RedisURL is the connection URL for the Redis instance backing the
	// event store, route cache and notification channel.
	RedisURL string `mapstructure:"REDIS_URL" required:"true"`

	// JWT holds the token signing configuration.
	JWT JWTConfig `mapstructure:",squash"`

	// ERP holds the Lucky Gas ERP API configuration.
	ERP ERPConfig `mapstructure:",squash"`

	// Sync holds tunables for the driver sync pipeline.
	Sync SyncConfig `mapstructure:",squash"`
}

// JWTConfig holds the token signing configuration.
type JWTConfig struct {
	// Secret is the HMAC secret used to sign and verify bearer tokens.
	Secret string `mapstructure:"JWT_SECRET" required:"true"`
	// TTLMinutes is the token lifetime in minutes.
	TTLMinutes int `mapstructure:"JWT_TTL_MINUTES" default:"720"`
}

// ERPConfig holds the credentials for the Lucky Gas ERP API.
type ERPConfig struct {
	// URL is the base URL of the ERP REST API.
	URL string `mapstructure:"ERP_URL" required:"true"`
	// APIKey is the public key for API access.
	APIKey string `mapstructure:"ERP_API_KEY" required:"true"`
	// APISecret is the secret key for API access.
	APISecret string `mapstructure:"ERP_API_SECRET" required:"true"`
}

// SyncConfig holds tunables for the driver sync pipeline.
type SyncConfig struct {
	// RouteCacheTTLSeconds is how long ERP route assignments are cached.
	RouteCacheTTLSeconds int `mapstructure:"ROUTE_CACHE_TTL_SECONDS" default:"30"`
	// LocationTrailLimit is the number of pings kept in each driver's trail.
	LocationTrailLimit int `mapstructure:"LOCATION_TRAIL_LIMIT" default:"500"`
}

// Load loads configuration from .env files and environment variables.
func Load(path string) (*AppConfig, error) {
	v := viper.New()

	v.AutomaticEnv()

	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

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

	return &config, nil
}

// processTags iterates over the struct fields and sets default values in Viper.
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
			v.BindEnv(key)
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

		required := field.Tag.Get("required")
		if required == "true" {
			value := val.Field(i)
			if isZero(value) {
				key := field.Tag.Get("mapstructure")
				return fmt.Errorf("missing required configuration: %s", key)
			}
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
