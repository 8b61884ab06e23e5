package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/spf13/viper"
)

// Config is the file and environment form of the Manager options.
type Config struct {
	// Timeout bounds each request attempt. Zero means no timeout.
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
	// MaxConcurrent limits running transfers. Zero means unlimited.
	MaxConcurrent   int               `mapstructure:"max_concurrent" validate:"gte=0"`
	FollowRedirects bool              `mapstructure:"follow_redirects"`
	AutoStart       bool              `mapstructure:"auto_start"`
	HTTP3           bool              `mapstructure:"http3"`
	UserAgent       string            `mapstructure:"user_agent" validate:"omitempty,printascii"`
	RequestIDHeader string            `mapstructure:"request_id_header" validate:"omitempty,printascii"`
	TempDir         string            `mapstructure:"temp_dir"`
	Headers         map[string]string `mapstructure:"headers" validate:"dive,keys,required,printascii,endkeys,printascii"`
	Throttle        *ThrottleConfig   `mapstructure:"throttle" validate:"omitempty"`
}

// ThrottleConfig enables outbound rate limiting.
type ThrottleConfig struct {
	RPS   int `mapstructure:"rps" validate:"required,gt=0"`
	Burst int `mapstructure:"burst" validate:"required,gt=0"`
}

// DefaultConfig returns the configuration Build uses without options.
func DefaultConfig() Config {
	return Config{
		Timeout:         0,
		FollowRedirects: true,
		AutoStart:       true,
		UserAgent:       defaultUserAgent,
	}
}

// LoadConfig reads configuration from path when non-empty, otherwise
// from httpflow.yaml in the working directory or ~/.httpflow, then
// applies HTTPFLOW_* environment overrides (HTTPFLOW_MAX_CONCURRENT=4).
// A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("HTTPFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("timeout", cfg.Timeout)
	v.SetDefault("max_concurrent", cfg.MaxConcurrent)
	v.SetDefault("follow_redirects", cfg.FollowRedirects)
	v.SetDefault("auto_start", cfg.AutoStart)
	v.SetDefault("http3", cfg.HTTP3)
	v.SetDefault("user_agent", cfg.UserAgent)
	v.SetDefault("request_id_header", cfg.RequestIDHeader)
	v.SetDefault("temp_dir", cfg.TempDir)

	if path == "" {
		path = os.Getenv("HTTPFLOW_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("httpflow")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".httpflow"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate = validator.New()
	var ok bool
	translator, ok = ut.New(en.New(), en.New()).GetTranslator("en")
	if !ok {
		panic("client: failed to get 'en' translator")
	}

	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})
}

// Validate checks c against its declared tags.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrors validator.ValidationErrors
		if !errors.As(err, &verrors) {
			return err
		}

		var fields FieldErrors
		for _, verror := range verrors {
			fields = append(fields, FieldError{
				Field: verror.Namespace(),
				Err:   customErrForTag(verror.Tag(), verror),
			})
		}
		return fields
	}

	return nil
}

// FieldError is a single invalid configuration field.
type FieldError struct {
	Field string `json:"field"`
	Err   string `json:"error"`
}

// FieldErrors collects every invalid configuration field.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, f := range fe {
		parts[i] = f.Field + ": " + f.Err
	}
	return strings.Join(parts, "; ")
}

func customErrForTag(tag string, verror validator.FieldError) string {
	switch tag {
	case "required":
		return "This field is required"
	default:
		return verror.Translate(translator)
	}
}
