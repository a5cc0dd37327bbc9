package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 结构体定义了应用程序的所有配置项
// 它与 config.yaml 文件的结构完全对应
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig 定义了服务器相关的配置
type ServerConfig struct {
	Mode      string          `mapstructure:"mode"`
	Address   string          `mapstructure:"address"`
	Cors      CorsConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
	// TrustedProxies 是可信反向代理的IP或CIDR，为空时不信任任何转发头
	TrustedProxies []string `mapstructure:"trustedProxies"`
}

// RateLimitConfig 定义了注册和登录接口按IP的频率限制，Limit为0时不限制
type RateLimitConfig struct {
	Limit  int64         `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

// CorsConfig 定义了CORS相关的配置
type CorsConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// DatabaseConfig 定义了数据库和缓存相关的配置
type DatabaseConfig struct {
	// Driver 取值 sqlite 或 postgres
	Driver string      `mapstructure:"driver"`
	DSN    string      `mapstructure:"dsn"`
	Redis  RedisConfig `mapstructure:"redis"`
}

// RedisConfig 定义了Redis的配置
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig 定义了会话令牌的配置
type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwtSecret"`
	TokenTTL     time.Duration `mapstructure:"tokenTTL"`
	CookieSecure bool          `mapstructure:"cookieSecure"`
}

// LogConfig 定义了日志相关的配置
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.cors.allowedOrigins", []string{"http://localhost:3000"})
	v.SetDefault("server.rateLimit.limit", 20)
	v.SetDefault("server.rateLimit.window", 15*time.Minute)
	v.SetDefault("server.trustedProxies", []string{})
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.dsn", "standing.db?_busy_timeout=5000")
	v.SetDefault("database.redis.address", "localhost:6379")
	v.SetDefault("database.redis.db", 0)
	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.tokenTTL", 72*time.Hour)
	v.SetDefault("auth.cookieSecure", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// LoadConfig 函数负责查找、加载和解析配置文件
// 它会在 dir、./config 和 . 中查找名为 config.yaml 的文件，找不到时使用默认值
func LoadConfig(dir string) (*Config, error) {
	// .env 是可选的，只用于本地开发时注入环境变量
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	// 允许通过环境变量覆盖配置，例如 SERVER_ADDRESS=:8888
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查配置中无法通过默认值修复的错误
func (c *Config) Validate() error {
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return errors.New("server.mode 只能是 debug、release 或 test")
	}
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return errors.New("database.driver 只能是 sqlite 或 postgres")
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn 不能为空")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return errors.New("auth.jwtSecret 至少需要32个字符")
	}
	if c.Server.RateLimit.Limit < 0 || (c.Server.RateLimit.Limit > 0 && c.Server.RateLimit.Window <= 0) {
		return errors.New("server.rateLimit 配置不合法")
	}
	for _, proxy := range c.Server.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("server.trustedProxies 中的 %q 不是合法的IP或CIDR", proxy)
			}
		}
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.tokenTTL 必须为正数")
	}
	return nil
}
