package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 服务配置
type Config struct {
	// HTTP 服务端口
	HTTPPort string
	// 最大并发数
	MaxConcurrent int
	// 请求超时时间
	RequestTimeout time.Duration
	// 连接池大小
	MaxIdleConns int
	// 每个主机的最大连接数
	MaxConnsPerHost int
	// User-Agent
	UserAgent string
	// 是否启用无头浏览器回退
	BrowserEnabled bool
	// Browserless 地址（为空时使用本地 Chrome）
	BrowserlessURL string
	// Redis URL（用于队列消费）
	RedisURL string
	// 队列消费者名称
	QueueConsumer string
	// 代理路由模板，{url} 会被替换为转义后的目标地址
	ProxyTemplates []string
	// 变体标记属性
	MarkerAttribute string
	// 可信图片 CDN 主机
	CDNHosts []string
	// 输出画布尺寸与背景色
	PadWidth        int
	PadHeight       int
	BackgroundColor string
	// 画布单边上限（请求参数超过时拒绝）
	PadMaxDimension int
	// 单张图片最大下载字节数
	MaxImageBytes int64
	// 日志级别
	LogLevel string
	// 归档上传（S3 兼容存储，可选）
	Archive ArchiveConfig
}

// ArchiveConfig S3 兼容归档存储配置
type ArchiveConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLExpiry time.Duration
}

// Enabled 是否配置了归档存储
func (a ArchiveConfig) Enabled() bool {
	return a.Endpoint != "" && a.Bucket != ""
}

// rawConfig viper 解码目标（环境变量名即键名）
type rawConfig struct {
	HTTPPort         string `mapstructure:"HTTP_PORT"`
	MaxConcurrent    int    `mapstructure:"MAX_CONCURRENT"`
	RequestTimeoutMS int    `mapstructure:"REQUEST_TIMEOUT_MS"`
	MaxIdleConns     int    `mapstructure:"MAX_IDLE_CONNS"`
	MaxConnsPerHost  int    `mapstructure:"MAX_CONNS_PER_HOST"`
	UserAgent        string `mapstructure:"USER_AGENT"`
	BrowserEnabled   bool   `mapstructure:"BROWSER_ENABLED"`
	BrowserlessURL   string `mapstructure:"BROWSERLESS_URL"`
	RedisURL         string `mapstructure:"REDIS_URL"`
	QueueConsumer    string `mapstructure:"QUEUE_CONSUMER"`
	ProxyTemplates   string `mapstructure:"PROXY_TEMPLATES"`
	MarkerAttribute  string `mapstructure:"MARKER_ATTRIBUTE"`
	CDNHosts         string `mapstructure:"CDN_HOSTS"`
	PadWidth         int    `mapstructure:"PAD_WIDTH"`
	PadHeight        int    `mapstructure:"PAD_HEIGHT"`
	BackgroundColor  string `mapstructure:"BACKGROUND_COLOR"`
	PadMaxDimension  int    `mapstructure:"PAD_MAX_DIMENSION"`
	MaxImageBytes    int64  `mapstructure:"MAX_IMAGE_BYTES"`
	LogLevel         string `mapstructure:"LOG_LEVEL"`

	ArchiveEndpoint  string `mapstructure:"ARCHIVE_S3_ENDPOINT"`
	ArchiveRegion    string `mapstructure:"ARCHIVE_S3_REGION"`
	ArchiveAccessKey string `mapstructure:"ARCHIVE_S3_ACCESS_KEY"`
	ArchiveSecretKey string `mapstructure:"ARCHIVE_S3_SECRET_KEY"`
	ArchiveBucket    string `mapstructure:"ARCHIVE_S3_BUCKET"`
	ArchiveUseSSL    bool   `mapstructure:"ARCHIVE_S3_USE_SSL"`
	ArchiveExpirySec int    `mapstructure:"ARCHIVE_URL_EXPIRY_SEC"`
}

var defaults = map[string]any{
	"HTTP_PORT":              "8080",
	"MAX_CONCURRENT":         100,
	"REQUEST_TIMEOUT_MS":     15000,
	"MAX_IDLE_CONNS":         100,
	"MAX_CONNS_PER_HOST":     10,
	"USER_AGENT":             "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"BROWSER_ENABLED":        false,
	"BROWSERLESS_URL":        "",
	"REDIS_URL":              "",
	"QUEUE_CONSUMER":         "variantpad-1",
	"PROXY_TEMPLATES":        "https://api.allorigins.win/raw?url={url},https://corsproxy.io/?{url}",
	"MARKER_ATTRIBUTE":       "data-variant",
	"CDN_HOSTS":              "cdn.shopify.com",
	"PAD_WIDTH":              1920,
	"PAD_HEIGHT":             1080,
	"BACKGROUND_COLOR":       "#FFFFFF",
	"PAD_MAX_DIMENSION":      8192,
	"MAX_IMAGE_BYTES":        20 << 20,
	"LOG_LEVEL":              "info",
	"ARCHIVE_S3_ENDPOINT":    "",
	"ARCHIVE_S3_REGION":      "us-east-1",
	"ARCHIVE_S3_ACCESS_KEY":  "",
	"ARCHIVE_S3_SECRET_KEY":  "",
	"ARCHIVE_S3_BUCKET":      "",
	"ARCHIVE_S3_USE_SSL":     true,
	"ARCHIVE_URL_EXPIRY_SEC": 3600,
}

// DefaultConfig 默认配置（不读取环境变量）
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, _ := decode(v)
	return cfg
}

// Load 加载配置：.env 文件 + 环境变量 + 默认值
func Load() (*Config, error) {
	// .env 不存在时只使用环境变量，已有的环境变量不会被覆盖
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return decode(v)
}

func setDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

func decode(v *viper.Viper) (*Config, error) {
	resetInvalid(v)

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPPort:        raw.HTTPPort,
		MaxConcurrent:   positive(raw.MaxConcurrent, defaults["MAX_CONCURRENT"].(int)),
		RequestTimeout:  time.Duration(positive(raw.RequestTimeoutMS, defaults["REQUEST_TIMEOUT_MS"].(int))) * time.Millisecond,
		MaxIdleConns:    positive(raw.MaxIdleConns, defaults["MAX_IDLE_CONNS"].(int)),
		MaxConnsPerHost: positive(raw.MaxConnsPerHost, defaults["MAX_CONNS_PER_HOST"].(int)),
		UserAgent:       raw.UserAgent,
		BrowserEnabled:  raw.BrowserEnabled,
		BrowserlessURL:  raw.BrowserlessURL,
		RedisURL:        raw.RedisURL,
		QueueConsumer:   raw.QueueConsumer,
		ProxyTemplates:  SplitList(raw.ProxyTemplates),
		MarkerAttribute: raw.MarkerAttribute,
		CDNHosts:        SplitList(raw.CDNHosts),
		PadWidth:        positive(raw.PadWidth, defaults["PAD_WIDTH"].(int)),
		PadHeight:       positive(raw.PadHeight, defaults["PAD_HEIGHT"].(int)),
		BackgroundColor: raw.BackgroundColor,
		PadMaxDimension: positive(raw.PadMaxDimension, defaults["PAD_MAX_DIMENSION"].(int)),
		MaxImageBytes:   raw.MaxImageBytes,
		LogLevel:        raw.LogLevel,
		Archive: ArchiveConfig{
			Endpoint:  raw.ArchiveEndpoint,
			Region:    raw.ArchiveRegion,
			AccessKey: raw.ArchiveAccessKey,
			SecretKey: raw.ArchiveSecretKey,
			Bucket:    raw.ArchiveBucket,
			UseSSL:    raw.ArchiveUseSSL,
			URLExpiry: time.Duration(positive(raw.ArchiveExpirySec, defaults["ARCHIVE_URL_EXPIRY_SEC"].(int))) * time.Second,
		},
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = int64(defaults["MAX_IMAGE_BYTES"].(int))
	}
	if cfg.MarkerAttribute == "" {
		cfg.MarkerAttribute = defaults["MARKER_ATTRIBUTE"].(string)
	}
	return cfg, nil
}

// resetInvalid 无法解析的数值与布尔值回退到默认值
func resetInvalid(v *viper.Viper) {
	for key, def := range defaults {
		var err error
		switch def.(type) {
		case int:
			_, err = strconv.Atoi(v.GetString(key))
		case bool:
			_, err = strconv.ParseBool(v.GetString(key))
		default:
			continue
		}
		if err != nil {
			v.Set(key, def)
		}
	}
}

// SplitList 拆分逗号分隔的列表，去除空白与空项
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func positive(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
