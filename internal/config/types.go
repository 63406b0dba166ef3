// Package config 统一配置管理
//
// 配置加载优先级（高→低）：
//  1. 环境变量（通过 .env.{env} 文件或 shell/systemd 注入）
//  2. YAML 配置文件（{env}.yaml，如 dev.yaml、test.yaml、prod.yaml）
//  3. 公共 YAML 配置文件（common.yaml）
//  4. 代码硬编码默认值
//
// 凭据单一数据源：
//
//	密码/密钥只存在环境变量中（YAML 中不存储任何密码）。
//
// 配置路径确定策略：
//  1. SetConfigDir 显式指定（--config 命令行参数）
//  2. CONFIG_DIR 环境变量
//  3. 按 APP_ENV 选择默认路径：
//     - prod → /etc/agents-workflow/
//     - dev/test → ./configs/
package config

import (
	"time"

	"agents-workflow/pkg/logging"
)

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// 存储驱动
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongoDB  = "mongodb"
	DriverEtcd     = "etcd"
)

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Etcd    EtcdConfig    `yaml:"etcd"`
	Redis   RedisConfig   `yaml:"redis"`
	MinIO   MinIOConfig   `yaml:"minio"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig API Server 配置
type ServerConfig struct {
	Port string `yaml:"port"`
}

// StorageConfig 文档存储配置
type StorageConfig struct {
	Driver   string `yaml:"driver"` // memory, sqlite, postgres, mongodb, etcd
	Path     string `yaml:"path"`   // SQLite 文件路径
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"-"` // 只从 DB_PASSWORD 环境变量读取
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	URI      string `yaml:"uri"` // 直接指定连接 URI（优先于 host/port）
}

// EtcdConfig etcd 配置
type EtcdConfig struct {
	Endpoints []string `yaml:"endpoints"`
	Prefix    string   `yaml:"prefix"`
}

// RedisConfig Redis 配置；Host 与 URL 均为空时不启用缓存和事件总线
type RedisConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	DB       int           `yaml:"db"`
	Password string        `yaml:"-"` // 只从 REDIS_PASSWORD 环境变量读取
	URL      string        `yaml:"url"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// MinIOConfig MinIO 对象存储配置；Endpoint 为空时不启用文件上传
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"` // 例如 localhost:9000
	AccessKey string `yaml:"-"`        // 只从 MINIO_ROOT_USER 环境变量读取
	SecretKey string `yaml:"-"`        // 只从 MINIO_ROOT_PASSWORD 环境变量读取
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env            Environment
	APIPort        string
	StorageDriver  string
	StorageURL     string // sqlite DSN / postgres URL / mongodb URI
	StorageDBName  string // MongoDB 数据库名称
	EtcdEndpoints  []string
	EtcdPrefix     string
	RedisURL       string
	CacheTTL       time.Duration
	MinIO          MinIOConfig
	Log            logging.Config
	ConfigFilePath string // 实际加载的配置文件路径
}
