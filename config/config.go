package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"loan-origination-api/utils"
)

// Config is the process configuration, built once at startup.
type Config struct {
	Environment        string
	GinMode            string
	ServerPort         string
	JWTSecret          string
	CORSAllowedOrigins []string
	AssignmentStrategy string
	AutoMigrate        bool
	Database           DatabaseConfig
	Log                LogConfig
	SMTP               SMTPConfig
}

// IsProduction reports whether ENVIRONMENT is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Load reads .env (if present), an optional config.yaml and the environment.
// Environment variables win over the file.
func Load(configPaths ...string) (*Config, error) {
	// .env is optional; real environment variables are enough in containers.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(configPaths) == 0 {
		configPaths = []string{"."}
	}
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		Environment:        strings.ToLower(strings.TrimSpace(v.GetString("environment"))),
		GinMode:            v.GetString("gin.mode"),
		ServerPort:         v.GetString("server.port"),
		JWTSecret:          v.GetString("jwt.secret"),
		CORSAllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
		AssignmentStrategy: strings.ToLower(strings.TrimSpace(v.GetString("assignment.strategy"))),
		AutoMigrate:        v.GetBool("auto.migrate"),
		Database: DatabaseConfig{
			Driver:   strings.ToLower(strings.TrimSpace(v.GetString("db.driver"))),
			Host:     v.GetString("db.host"),
			Port:     v.GetString("db.port"),
			Name:     v.GetString("db.database"),
			Username: v.GetString("db.username"),
			Password: v.GetString("db.password"),
			SSLMode:  v.GetString("db.sslmode"),
			Path:     v.GetString("db.path"),
			DebugSQL: v.GetBool("debug.sql"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
			File:  v.GetString("log.file"),
		},
		SMTP: SMTPConfig{
			Host:          v.GetString("smtp.host"),
			Port:          v.GetInt("smtp.port"),
			User:          v.GetString("smtp.user"),
			Pass:          v.GetString("smtp.pass"),
			From:          v.GetString("smtp.from"),
			SkipTLSVerify: v.GetString("smtp.skip_tls_verify") == "1" || v.GetBool("smtp.skip_tls_verify"),
			NotifyTo:      splitList(v.GetString("smtp.notify_to")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("gin.mode", "debug")
	v.SetDefault("server.port", "8080")
	v.SetDefault("assignment.strategy", "unique_index")
	v.SetDefault("auto.migrate", false)
	v.SetDefault("db.driver", "mysql")
	v.SetDefault("db.host", "127.0.0.1")
	v.SetDefault("db.port", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.path", "loan-origination.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000")
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMySQL, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Database.Port != "" {
		if _, err := strconv.Atoi(c.Database.Port); err != nil {
			return fmt.Errorf("invalid DB_PORT %q", c.Database.Port)
		}
	}
	if c.IsProduction() && strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required in production")
	}
	for _, addr := range c.SMTP.NotifyTo {
		if !utils.ValidateEmail(addr) {
			return fmt.Errorf("invalid SMTP_NOTIFY_TO address %q", addr)
		}
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
