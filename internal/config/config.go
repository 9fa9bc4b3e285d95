package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 结构体包含所有应用的配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	AliyunOSS AliyunOSSConfig `mapstructure:"aliyun_oss"`
	Storage   StorageConfig   `mapstructure:"storageconfig"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Solana    SolanaConfig    `mapstructure:"solana"`
	File      FileConfig      `mapstructure:"file"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port string `mapstructure:"port"`
	// BaseURL 用于拼接对外的分享链接，例如 https://dropburn.example.com
	BaseURL string `mapstructure:"base_url"`
	// SecureCookie 生产环境置为 true，premium_token cookie 带 Secure 标记
	SecureCookie bool `mapstructure:"secure_cookie"`
}

// MySQLConfig 数据库配置
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MinIOConfig MinIO配置
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

type AliyunOSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"` // 例如: oss-cn-hangzhou.aliyuncs.com
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type StorageConfig struct {
	Type string `mapstructure:"type"` // minio 或 aliyun_oss
}

// JWTConfig premium token 签发配置
type JWTConfig struct {
	SecretKey string `mapstructure:"secret_key"`
	Issuer    string `mapstructure:"issuer"`
}

// SolanaConfig 链上支付验证配置
type SolanaConfig struct {
	// RPCEndpoint 例如 https://api.mainnet-beta.solana.com
	RPCEndpoint string `mapstructure:"rpc_endpoint"`
	// RecipientWallet 收款钱包地址，所有 premium 付款都应打到这个地址
	RecipientWallet string `mapstructure:"recipient_wallet"`
	// PremiumPriceLamports premium 价格，单位 lamports (0.01 SOL = 10000000)
	PremiumPriceLamports uint64 `mapstructure:"premium_price_lamports"`
	// PremiumDurationDays 一次付款解锁的天数
	PremiumDurationDays int `mapstructure:"premium_duration_days"`
}

// FileConfig 文件上传与过期策略配置
type FileConfig struct {
	// MaxFileSize 单文件大小上限，字节 (默认 50MiB)
	MaxFileSize int64 `mapstructure:"max_file_size"`
	// MaxLifetime 所有文件的硬性存活上限 (默认 72h)，按下载次数过期的文件同样受此约束
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
	// 每日上传配额由客户端配额追踪器执行，服务端仅在 /premium/status 中回显给前端
	FreeDailyQuota    int64 `mapstructure:"free_daily_quota"`
	PremiumDailyQuota int64 `mapstructure:"premium_daily_quota"`
}

// zap日志配置
type LogConfig struct {
	OutputPath string `mapstructure:"output_path"`
	ErrorPath  string `mapstructure:"error_path"`
	Level      string `mapstructure:"level"`
}

var AppConfig *Config // 全局应用配置实例

// LoadConfig 加载配置
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/go-dropburn/")

	// 环境变量覆盖，例如 DROPBURN_MYSQL_DSN 对应 mysql.dsn
	viper.SetEnvPrefix("DROPBURN")
	viper.AutomaticEnv()
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	// 过期策略相关的常量不该依赖配置文件存在与否，给默认值
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.base_url", "http://localhost:8080")
	viper.SetDefault("storageconfig.type", "minio")
	viper.SetDefault("file.max_file_size", 50*1024*1024)
	viper.SetDefault("file.max_lifetime", 72*time.Hour)
	viper.SetDefault("file.free_daily_quota", 50*1024*1024)
	viper.SetDefault("file.premium_daily_quota", 500*1024*1024)
	viper.SetDefault("solana.rpc_endpoint", "https://api.mainnet-beta.solana.com")
	viper.SetDefault("solana.premium_price_lamports", 10_000_000) // 0.01 SOL
	viper.SetDefault("solana.premium_duration_days", 30)
	viper.SetDefault("jwt.issuer", "go-dropburn")
	viper.SetDefault("log.output_path", "logs/app.log")
	viper.SetDefault("log.error_path", "logs/error.log")
	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// 配置文件缺失不是致命错误，环境变量加默认值也能跑起来
			log.Println("Warning: config file not found, using environment variables or default values.")
		} else {
			log.Fatalf("Fatal error reading config file: %s \n", err)
			return nil, err
		}
	}

	AppConfig = &Config{}
	if err := viper.Unmarshal(AppConfig); err != nil {
		log.Fatalf("Fatal error unmarshaling config: %s \n", err)
		return nil, err
	}

	log.Println("Configuration loaded successfully with Viper.")
	return AppConfig, nil
}
