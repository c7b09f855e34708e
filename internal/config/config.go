package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"reflect"
	"time"

	"cardpointe-client/internal/payment"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the CardPointe connection snapshot. It is read once at startup
// and never changes afterwards.
type Config struct {
	APIURL       string        `mapstructure:"api_url" env:"CARDPOINTE_API_URL" validate:"required,url"`
	Username     string        `mapstructure:"username" env:"CARDPOINTE_USERNAME" validate:"required"`
	Password     string        `mapstructure:"password" env:"CARDPOINTE_PASSWORD" validate:"required"`
	MerchantID   string        `mapstructure:"merchant_id" env:"CARDPOINTE_MERCHANT_ID" validate:"required"`
	TokenizerURL string        `mapstructure:"tokenizer_url" env:"CARDPOINTE_TOKENIZER_URL" validate:"required,url"`
	Timeout      time.Duration `mapstructure:"timeout" env:"CARDPOINTE_TIMEOUT" validate:"gte=0"`
	MetricsAddr  string        `mapstructure:"metrics_addr" env:"CARDPOINTE_METRICS_ADDR"`
	AppEnv       string        `mapstructure:"app_env" env:"APP_ENV"`
	LogLevel     string        `mapstructure:"log_level" env:"LOG_LEVEL"`

	authHeader string
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by the environment variable that feeds them.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// LoadConfig reads .env (if present), the environment and an optional
// cardpointe.yaml, then validates the result. Any missing required value
// fails here instead of surfacing later as a gateway error.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("timeout", "0s")
	v.SetDefault("app_env", "development")

	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		key, env := f.Tag.Get("mapstructure"), f.Tag.Get("env")
		if key == "" || env == "" {
			continue
		}
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	v.SetConfigName("cardpointe")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg.authHeader = BasicAuthHeader(cfg.Username, cfg.Password)
	return &cfg, nil
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}

	errs := make([]error, 0, len(ve))
	for _, fe := range ve {
		switch fe.Tag() {
		case "required":
			errs = append(errs, fmt.Errorf("missing required environment variable: %s", fe.Field()))
		case "url":
			errs = append(errs, fmt.Errorf("%s must be an absolute URL, got %q", fe.Field(), fe.Value()))
		default:
			errs = append(errs, fmt.Errorf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return errors.Join(errs...)
}

// BasicAuthHeader builds an HTTP Basic Authorization header value.
func BasicAuthHeader(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// AuthHeader returns the Authorization header for the configured credentials.
func (c *Config) AuthHeader() string {
	if c.authHeader == "" {
		return BasicAuthHeader(c.Username, c.Password)
	}
	return c.authHeader
}

// Gateway projects the settings the gateway client needs.
func (c *Config) Gateway() payment.GatewayConfig {
	return payment.GatewayConfig{
		BaseURL:    c.APIURL,
		MerchantID: c.MerchantID,
		AuthHeader: c.AuthHeader(),
		Timeout:    c.Timeout,
	}
}
