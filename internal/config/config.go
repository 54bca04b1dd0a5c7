package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Permissions PermissionsConfig
	Media       MediaConfig
	Bootstrap   BootstrapConfig
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port     string
	AppName  string `mapstructure:"app_name"`
	BaseURL  string `mapstructure:"base_url"`
	LogLevel string `mapstructure:"log_level"`
}

type DatabaseConfig struct {
	Driver      string // postgres | sqlite
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	TimeZone    string
	TablePrefix string `mapstructure:"table_prefix"`
	// Path is the sqlite database file (or a file: URI) when Driver is sqlite.
	Path string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
}

type PermissionsConfig struct {
	// IncidentManagerRoles lists the profile roles allowed to manage incidents.
	IncidentManagerRoles []string `mapstructure:"incident_manager_roles"`
}

type MediaConfig struct {
	DefaultPhoto string `mapstructure:"default_photo"`
	URLPrefix    string `mapstructure:"url_prefix"`
}

// BootstrapConfig describes the superuser created when the identity table is empty.
type BootstrapConfig struct {
	AdminUsername string `mapstructure:"admin_username"`
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
}

// RateLimitConfig throttles the token endpoints per client IP.
type RateLimitConfig struct {
	LoginPerMinute int `mapstructure:"login_per_minute"` // 0 disables throttling
	LoginBurst     int `mapstructure:"login_burst"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8000")
	v.SetDefault("server.app_name", "helpdesk")
	v.SetDefault("server.base_url", "http://localhost:8000")
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "helpdesk")
	v.SetDefault("database.table_prefix", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("database.path", "helpdesk.db")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "helpdesk")
	v.SetDefault("jwt.access_ttl", "5m")
	v.SetDefault("jwt.refresh_ttl", "24h")

	v.SetDefault("permissions.incident_manager_roles", []string{"manager", "admin"})

	v.SetDefault("media.default_photo", "profile_photos/default.png")
	v.SetDefault("media.url_prefix", "/media/")

	v.SetDefault("bootstrap.admin_username", "admin")
	v.SetDefault("bootstrap.admin_email", "admin@example.com")
	v.SetDefault("bootstrap.admin_password", "")

	v.SetDefault("rate_limit.login_per_minute", 20)
	v.SetDefault("rate_limit.login_burst", 5)
}

func LoadConfig() *Config {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")        // 在当前目录中查找配置
	v.AddConfigPath("./config") // 在 config 目录中查找配置

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		slog.Warn("config file not loaded, using defaults and environment", "error", err)
	}

	cfg, err := decode(v)
	if err != nil {
		slog.Error("unable to decode config", "error", err)
		panic(err)
	}
	return cfg
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// Default returns the configuration built from defaults only.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := decode(v)
	if err != nil {
		panic(err)
	}
	return cfg
}

// SlogLevel maps server.log_level to a slog level.
func (c ServerConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
