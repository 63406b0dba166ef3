package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"agents-workflow/pkg/logging"
)

// buildStorageURL 根据驱动类型构建连接字符串
func buildStorageURL(driver string, s StorageConfig) string {
	switch driver {
	case DriverSQLite:
		if s.URI != "" {
			return s.URI
		}
		return fmt.Sprintf("file:%s?cache=shared&mode=rwc", s.Path)
	case DriverMongoDB:
		if s.URI != "" {
			return s.URI
		}
		if s.User != "" && s.Password != "" {
			return fmt.Sprintf("mongodb://%s:%s@%s:%d", s.User, s.Password, s.Host, s.Port)
		}
		return fmt.Sprintf("mongodb://%s:%d", s.Host, s.Port)
	case DriverPostgres:
		if s.URI != "" {
			return s.URI
		}
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			s.User, s.Password, s.Host, s.Port, s.Name, s.SSLMode)
	default:
		// memory / etcd 不需要 URL
		return ""
	}
}

// detectStorageDriver 检测存储驱动类型
// 优先级：YAML/环境变量 driver 字段 > DATABASE_URL 前缀自动检测 > 默认 memory
func detectStorageDriver(driver, databaseURL string) string {
	switch d := strings.ToLower(driver); d {
	case DriverMemory, DriverSQLite, DriverPostgres, DriverMongoDB, DriverEtcd:
		return d
	}
	switch {
	case strings.HasPrefix(databaseURL, "file:"), strings.HasPrefix(databaseURL, "sqlite:"):
		return DriverSQLite
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(databaseURL, "mongodb://"), strings.HasPrefix(databaseURL, "mongodb+srv://"):
		return DriverMongoDB
	}
	return DriverMemory
}

// buildRedisURL 构建 Redis 连接字符串
// URL 优先；Host 为空表示未启用 Redis，返回空字符串
func buildRedisURL(redis RedisConfig) string {
	if redis.URL != "" {
		return redis.URL
	}
	if redis.Host == "" {
		return ""
	}
	if redis.Password != "" {
		return fmt.Sprintf("redis://:%s@%s:%d/%d", redis.Password, redis.Host, redis.Port, redis.DB)
	}
	return fmt.Sprintf("redis://%s:%d/%d", redis.Host, redis.Port, redis.DB)
}

func loggingConfig(l LogConfig) logging.Config {
	return logging.Config{
		Level:  l.Level,
		Format: l.Format,
		Output: "stdout",
	}
}

var passwordRe = regexp.MustCompile(`(://[^:/]*:)([^@]+)(@)`)

// maskPassword 隐藏密码
func maskPassword(url string) string {
	return passwordRe.ReplaceAllString(url, "${1}***${3}")
}

// parseEnv 解析环境字符串
func parseEnv(env string) Environment {
	switch strings.ToLower(env) {
	case "test":
		return EnvTest
	case "prod", "production":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

// firstEnv 返回第一个非空的环境变量值（用于兼容多种 Docker Compose 变量名）
func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// getEnv 获取环境变量，支持默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// RedisEnabled 是否配置了 Redis
func (c *Config) RedisEnabled() bool {
	return c.RedisURL != ""
}

// MinIOEnabled 是否配置了 MinIO
func (c *Config) MinIOEnabled() bool {
	return c.MinIO.Endpoint != ""
}

// String 返回配置摘要（隐藏密码）
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, Driver: %s, Storage: %s, Redis: %s, MinIO: %s}",
		c.Env, c.StorageDriver, maskPassword(c.StorageURL), maskPassword(c.RedisURL), c.MinIO.Endpoint)
}
