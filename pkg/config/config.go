package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Logger   LoggerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Billing  BillingConfig
	Mail     MailConfig
	Payment  PaymentConfig
	Worker   WorkerConfig
	Schedule ScheduleConfig
}

type ServerConfig struct {
	Port        string
	Mode        string
	CorsOrigins []string `mapstructure:"cors_origins"`
}

type LoggerConfig struct {
	Mode       string
	Level      string
	Path       string
	MaxSize    int `mapstructure:"max_size"`
	MaxBackups int `mapstructure:"max_backups"`
	MaxAge     int `mapstructure:"max_age"`
	Compress   bool
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// BillingConfig 计费相关的全局参数
type BillingConfig struct {
	BaseCurrency     string `mapstructure:"base_currency"`
	HomeCountry      string `mapstructure:"home_country"`
	InvoicePrefix    string `mapstructure:"invoice_prefix"`
	QuotePrefix      string `mapstructure:"quote_prefix"`
	PaymentTermsDays int    `mapstructure:"payment_terms_days"`
	QuoteValidDays   int    `mapstructure:"quote_valid_days"`
}

type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// PaymentConfig 支付网关, driver 为 mock 或 http
type PaymentConfig struct {
	Driver   string `mapstructure:"driver"`
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
}

type WorkerConfig struct {
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
	// MetricsPort 非空时 worker 在该端口暴露 /metrics
	MetricsPort string `mapstructure:"metrics_port"`
}

// ScheduleConfig 周期任务的 cron 表达式, 留空表示不调度
type ScheduleConfig struct {
	OverdueInvoices string `mapstructure:"overdue_invoices"`
	HostingSync     string `mapstructure:"hosting_sync"`
	TldPriceSync    string `mapstructure:"tld_price_sync"`
	DomainExpiry    string `mapstructure:"domain_expiry"`
	HostingInvoices string `mapstructure:"hosting_invoices"`
	QuoteExpiry     string `mapstructure:"quote_expiry"`
}

// 全局配置变量
var Cfg *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("logger.mode", "dev")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.path", "log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 7)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "backoffice")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "isp-backoffice")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("billing.base_currency", "USD")
	v.SetDefault("billing.home_country", "US")
	v.SetDefault("billing.invoice_prefix", "INV")
	v.SetDefault("billing.quote_prefix", "QUO")
	v.SetDefault("billing.payment_terms_days", 14)
	v.SetDefault("billing.quote_valid_days", 30)
	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.from", "billing@localhost")
	v.SetDefault("payment.driver", "mock")
	v.SetDefault("payment.endpoint", "")
	v.SetDefault("payment.api_key", "")
	v.SetDefault("worker.concurrency", 10)
	v.SetDefault("worker.queues", map[string]int{"critical": 6, "default": 3, "low": 1})
	v.SetDefault("schedule.overdue_invoices", "0 1 * * *")
	v.SetDefault("schedule.hosting_sync", "*/30 * * * *")
	v.SetDefault("schedule.tld_price_sync", "0 3 * * *")
	v.SetDefault("schedule.domain_expiry", "0 6 * * *")
	v.SetDefault("schedule.hosting_invoices", "0 2 * * *")
	v.SetDefault("schedule.quote_expiry", "30 0 * * *")
}

// LoadConfig 从 config.yaml 加载配置, 环境变量 BACKOFFICE_* 可覆盖
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath("./pkg/config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BACKOFFICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret 不能为空")
	}

	Cfg = &cfg
	return &cfg, nil
}
