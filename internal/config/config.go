package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 结构体包含所有应用的配置
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	MySQL         MySQLConfig         `mapstructure:"mysql"`
	Redis         RedisConfig         `mapstructure:"redis"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	AliyunOSS     AliyunOSSConfig     `mapstructure:"aliyun_oss"`
	RabbitMQ      RabbitMQConfig      `mapstructure:"rabbitmq"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Upload        UploadConfig        `mapstructure:"upload"`
	Thumbnail     ThumbnailConfig     `mapstructure:"thumbnail"`
	SMTP          SMTPConfig          `mapstructure:"smtp"`
	Log           LogConfig           `mapstructure:"log"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port string `mapstructure:"port"`
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

// AliyunOSSConfig 阿里云OSS配置
type AliyunOSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"` // 例如: oss-cn-hangzhou.aliyuncs.com
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// RabbitMQConfig RabbitMQ配置
type RabbitMQConfig struct {
	URL string `mapstructure:"url"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	SecretKey          string        `mapstructure:"secret_key"`
	ExpiresIn          time.Duration `mapstructure:"expires_in"`
	RefreshExpireHours time.Duration `mapstructure:"refresh_expire_hours"`
	Issuer             string        `mapstructure:"issuer"`
}

// StorageConfig 存储后端选择
// type: minio | aliyun_oss | local
type StorageConfig struct {
	Type               string `mapstructure:"type"`
	LocalBasePath      string `mapstructure:"local_base_path"`
	LocalBucketName    string `mapstructure:"local_bucket_name"`
	PresignedURLExpiry int    `mapstructure:"presigned_url_expiry"` // 预签名URL有效期（分钟）
}

// UploadConfig 上传限制
type UploadConfig struct {
	MaxFileSize int64 `mapstructure:"max_file_size"` // 单文件大小上限（字节）
	MaxParts    int   `mapstructure:"max_parts"`     // 分块上传的最大分块数
}

// ThumbnailConfig 缩略图流水线配置
type ThumbnailConfig struct {
	MaxWidth  int `mapstructure:"max_width"`  // 缩略图外接框宽,默认 256
	MaxHeight int `mapstructure:"max_height"` // 缩略图外接框高,默认 256
	Quality   int `mapstructure:"quality"`    // JPEG 质量,默认 80
}

// SMTPConfig 分享通知邮件配置,Host 为空时不发送
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// LogConfig zap日志配置
type LogConfig struct {
	OutputPath string `mapstructure:"output_path"`
	ErrorPath  string `mapstructure:"error_path"`
	Level      string `mapstructure:"level"`
}

// ElasticsearchConfig 定义 Elasticsearch 连接配置
type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	FileIndex string   `mapstructure:"file_index"`
}

var AppConfig *Config // 全局应用配置实例

// LoadConfig 加载配置
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")            // 配置文件名 (不带扩展名)
	viper.SetConfigType("yaml")              // 配置文件类型
	viper.AddConfigPath(".")                 // 在当前目录查找配置文件
	viper.AddConfigPath("./configs")         // 也可以添加其他路径
	viper.AddConfigPath("/etc/go-skyvault/") // 生产环境常见路径

	// 读取环境变量,环境变量名将自动转换为大写,并用下划线替换点
	// 例如: SERVER.PORT 对应环境变量 GO_SKYVAULT_SERVER_PORT
	viper.SetEnvPrefix("GO_SKYVAULT")
	viper.AutomaticEnv()

	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	// 设置默认值 (如果配置文件和环境变量中都没有,则使用这些默认值)
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("storage.type", "minio")
	viper.SetDefault("storage.local_bucket_name", "local")
	viper.SetDefault("storage.presigned_url_expiry", 15)
	viper.SetDefault("upload.max_file_size", 5*1024*1024*1024) // 5GB
	viper.SetDefault("upload.max_parts", 1000)
	viper.SetDefault("thumbnail.max_width", 256)
	viper.SetDefault("thumbnail.max_height", 256)
	viper.SetDefault("thumbnail.quality", 80)
	viper.SetDefault("elasticsearch.file_index", "skyvault-files")

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// 配置文件未找到不是致命错误,可以依赖环境变量或默认值
			log.Println("Warning: config file not found, using environment variables or default values.")
		} else {
			log.Fatalf("Fatal error reading config file: %s \n", err)
			return nil, err
		}
	}

	// 将读取到的配置绑定到结构体
	AppConfig = &Config{}
	if err := viper.Unmarshal(AppConfig); err != nil {
		log.Fatalf("Fatal error unmarshaling config: %s \n", err)
		return nil, err
	}

	log.Println("Configuration loaded successfully with Viper.")
	return AppConfig, nil
}
