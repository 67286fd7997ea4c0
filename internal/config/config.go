package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig 应用基础信息
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	ServerID string `mapstructure:"serverId"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	Pprof        HTTPPprof     `mapstructure:"pprof"`
	Swagger      bool          `mapstructure:"swagger"`
}

// HTTPPprof HTTP pprof 配置
type HTTPPprof struct {
	Enable bool   `mapstructure:"enable"`
	Prefix string `mapstructure:"prefix"`
}

// TCPConfig TCP 旁路监听配置（端口由 zvt.tcpPort 决定）
type TCPConfig struct {
	Host           string        `mapstructure:"host"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	MaxConnections int           `mapstructure:"maxConnections"`
	RateLimit      RateLimit     `mapstructure:"rateLimit"`
}

// RateLimit 建链速率限制
type RateLimit struct {
	PerSecond float64 `mapstructure:"perSecond"`
	Burst     int     `mapstructure:"burst"`
}

// BreakerConfig 存储写入熔断器配置
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failureThreshold"`
	SuccessThreshold int           `mapstructure:"successThreshold"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// ZVTConfig 协议解析配置
type ZVTConfig struct {
	// TCPPort ZVT 流量端口，0 表示不监听
	TCPPort           int    `mapstructure:"tcpPort"`
	Transport         string `mapstructure:"transport"` // auto|stream|serial
	StrictMinLength   bool   `mapstructure:"strictMinLength"`
	StatusLengthField bool   `mapstructure:"statusLengthField"`
	MaxBufferBytes    int    `mapstructure:"maxBufferBytes"`
}

// Addr 监听地址；端口为 0 时返回空串
func (z ZVTConfig) Addr(host string) string {
	if z.TCPPort <= 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", host, z.TCPPort)
}

// LumberjackConfig 日志滚动（lumberjack）配置
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig 日志级别与输出配置
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig Prometheus 指标暴露配置
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// DatabaseConfig PostgreSQL 连接配置；DSN 为空时不记录抓包
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
	MigrationsDir   string        `mapstructure:"migrationsDir"`
	AutoMigrate     bool          `mapstructure:"autoMigrate"`
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"poolSize"`
	MinIdleConns int           `mapstructure:"minIdleConns"`
	DialTimeout  time.Duration `mapstructure:"dialTimeout"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
}

// SessionConfig 连接会话配置
type SessionConfig struct {
	IdleTimeout time.Duration `mapstructure:"idleTimeout"`
	// RecentUnits 每个连接在 Redis 中保留的最近单元条数
	RecentUnits int `mapstructure:"recentUnits"`
}

// NATSConfig 单元事件发布配置；URL 为空时不连接
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	SubjectPrefix string        `mapstructure:"subjectPrefix"`
	Name          string        `mapstructure:"name"`
	ReconnectWait time.Duration `mapstructure:"reconnectWait"`
}

// CaptureConfig 抓包记录配置
type CaptureConfig struct {
	Enable     bool          `mapstructure:"enable"`
	QueueSize  int           `mapstructure:"queueSize"`
	Workers    int           `mapstructure:"workers"`
	Timeout    time.Duration `mapstructure:"timeout"`
	BatchSize  int           `mapstructure:"batchSize"`
	KeepRawHex bool          `mapstructure:"keepRawHex"`
	// Retention 抓包保留时长，0 表示不清理
	Retention     time.Duration `mapstructure:"retention"`
	CleanInterval time.Duration `mapstructure:"cleanInterval"`
	Breaker       BreakerConfig `mapstructure:"breaker"`
}

// APIConfig HTTP API 鉴权
type APIConfig struct {
	Keys      []string `mapstructure:"keys"`
	MaxHexLen int      `mapstructure:"maxHexLen"`
}

// Config 顶层配置结构
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	TCP      TCPConfig      `mapstructure:"tcp"`
	ZVT      ZVTConfig      `mapstructure:"zvt"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Session  SessionConfig  `mapstructure:"session"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Capture  CaptureConfig  `mapstructure:"capture"`
	API      APIConfig      `mapstructure:"api"`
}

// Load 从 YAML/TOML/JSON 文件与环境变量加载配置。
// 若 path 为空，则尝试从环境变量 ZVT_CONFIG 读取；否则回退到 configs/example.yaml。
func Load(path string) (*Config, error) {
	v := viper.New()

	// 环境变量覆盖：前缀 ZVT_，并将点号替换为下划线
	v.SetEnvPrefix("ZVT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString("CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("example")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// 首次运行允许缺少配置文件，依赖默认值与环境变量
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	if c.ZVT.TCPPort < 0 || c.ZVT.TCPPort > 65535 {
		return fmt.Errorf("config: zvt.tcpPort out of range: %d", c.ZVT.TCPPort)
	}
	switch c.ZVT.Transport {
	case "auto", "stream", "serial":
	default:
		return fmt.Errorf("config: zvt.transport must be auto, stream or serial, got %q", c.ZVT.Transport)
	}
	if c.ZVT.MaxBufferBytes < 0 {
		return fmt.Errorf("config: zvt.maxBufferBytes must not be negative")
	}
	if c.Capture.Retention < 0 {
		return fmt.Errorf("config: capture.retention must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "zvt-tap")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.serverId", "")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "10s")
	v.SetDefault("http.pprof.enable", false)
	v.SetDefault("http.pprof.prefix", "/debug/pprof")
	v.SetDefault("http.swagger", true)

	v.SetDefault("tcp.host", "0.0.0.0")
	v.SetDefault("tcp.readTimeout", "5m")
	v.SetDefault("tcp.writeTimeout", "10s")
	v.SetDefault("tcp.maxConnections", 256)
	v.SetDefault("tcp.rateLimit.perSecond", 50)
	v.SetDefault("tcp.rateLimit.burst", 100)

	// ZVT 端口未在 IANA 注册，默认关闭
	v.SetDefault("zvt.tcpPort", 0)
	v.SetDefault("zvt.transport", "stream")
	v.SetDefault("zvt.strictMinLength", false)
	v.SetDefault("zvt.statusLengthField", false)
	v.SetDefault("zvt.maxBufferBytes", 5+65535+6)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.filename", "logs/zvt-tap.log")
	v.SetDefault("logging.file.maxSize", 100)
	v.SetDefault("logging.file.maxBackups", 7)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.maxOpenConns", 10)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", "1h")
	// 为空时使用内嵌迁移脚本
	v.SetDefault("database.migrationsDir", "")
	v.SetDefault("database.autoMigrate", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.poolSize", 20)
	v.SetDefault("redis.minIdleConns", 2)
	v.SetDefault("redis.dialTimeout", "5s")
	v.SetDefault("redis.readTimeout", "3s")
	v.SetDefault("redis.writeTimeout", "3s")

	v.SetDefault("session.idleTimeout", "10m")
	v.SetDefault("session.recentUnits", 50)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subjectPrefix", "zvt.units")
	v.SetDefault("nats.name", "zvt-tap")
	v.SetDefault("nats.reconnectWait", "2s")

	v.SetDefault("capture.enable", true)
	v.SetDefault("capture.queueSize", 1024)
	v.SetDefault("capture.workers", 2)
	v.SetDefault("capture.timeout", "3s")
	v.SetDefault("capture.batchSize", 64)
	v.SetDefault("capture.keepRawHex", true)
	v.SetDefault("capture.retention", "168h")
	v.SetDefault("capture.cleanInterval", "1h")
	v.SetDefault("capture.breaker.failureThreshold", 5)
	v.SetDefault("capture.breaker.successThreshold", 2)
	v.SetDefault("capture.breaker.timeout", "30s")

	v.SetDefault("api.keys", []string{})
	v.SetDefault("api.maxHexLen", 2*(5+65535+6))
}
