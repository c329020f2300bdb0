package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

// TokenConfig holds the signing secret and lifetime for one token purpose.
// Each purpose gets its own secret so a leaked token for one purpose can
// never verify as another.
type TokenConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type JWTConfig struct {
	Issuer        string      `mapstructure:"issuer"`
	Access        TokenConfig `mapstructure:"access"`
	Refresh       TokenConfig `mapstructure:"refresh"`
	EmailVerify   TokenConfig `mapstructure:"emailVerify"`
	PasswordReset TokenConfig `mapstructure:"passwordReset"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       string `mapstructure:"db"`
	SSLMode  string `mapstructure:"sslmode"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type UploadsConfig struct {
	Dir          string `mapstructure:"dir"`
	MaxSizeBytes int64  `mapstructure:"maxSizeBytes"`
	BaseURL      string `mapstructure:"baseURL"`
}

type Config struct {
	Mode        string `mapstructure:"mode"`
	FrontendURL string `mapstructure:"frontendURL"`
	Server struct {
		HTTPPort    string        `mapstructure:"HTTPPort"`
		MetricsPort string        `mapstructure:"metricsPort"`
		Timeout     time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	Repositories struct {
		Postgres PostgresConfig `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	JWT JWTConfig `mapstructure:"jwt"`
	// Registry selects the refresh-token revocation backend:
	// "memory" (single instance) or "postgres" (durable, multi-instance).
	Registry string        `mapstructure:"registry"`
	SMTP     SMTPConfig    `mapstructure:"smtp"`
	Uploads  UploadsConfig `mapstructure:"uploads"`
}

// IsDevelopment reports whether raw verification/reset tokens may be echoed
// in HTTP responses. Production routes them exclusively through the mailer.
func (c *Config) IsDevelopment() bool {
	return c.Mode == "development" || c.Mode == ""
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Environment variables override file values, e.g. TASKNEST_JWT_ACCESS_SECRET.
	v.SetEnvPrefix("TASKNEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err = validate(&config); err != nil {
		return Config{}, err
	}
	return config, nil
}

func validate(c *Config) error {
	for name, tc := range map[string]TokenConfig{
		"access":        c.JWT.Access,
		"refresh":       c.JWT.Refresh,
		"emailVerify":   c.JWT.EmailVerify,
		"passwordReset": c.JWT.PasswordReset,
	} {
		if tc.Secret == "" {
			return fmt.Errorf("jwt.%s.secret must not be empty", name)
		}
		if tc.TTL <= 0 {
			return fmt.Errorf("jwt.%s.ttl must be positive", name)
		}
	}
	if c.Registry != "" && c.Registry != "memory" && c.Registry != "postgres" {
		return fmt.Errorf("registry must be %q or %q, got %q", "memory", "postgres", c.Registry)
	}
	return nil
}
