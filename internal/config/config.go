package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// configDir 由外部通过 SetConfigDir 指定，优先级最高
var configDir string

// envSearchDirs .env 文件搜索目录（仅 dev/test 使用）
var envSearchDirs = []string{
	".",
	"..",
}

// SetConfigDir 设置配置文件目录（用于 --config 命令行参数）
func SetConfigDir(dir string) {
	configDir = dir
}

// Load 加载配置
// 1. 加载 .env.{env}（敏感信息）
// 2. 加载 common.yaml 与 {env}.yaml
// 3. 环境变量覆盖，构建最终配置
func Load() *Config {
	env := parseEnv(getEnv("APP_ENV", "dev"))
	loadEnvFiles(env)

	yamlCfg, loadedFrom := loadYAMLConfig(env, effectiveConfigPaths(env))
	applyEnvOverrides(yamlCfg)

	driver := detectStorageDriver(yamlCfg.Storage.Driver, os.Getenv("DATABASE_URL"))
	storageURL := os.Getenv("DATABASE_URL")
	if storageURL == "" {
		storageURL = buildStorageURL(driver, yamlCfg.Storage)
	}

	return &Config{
		Env:            env,
		APIPort:        yamlCfg.Server.Port,
		StorageDriver:  driver,
		StorageURL:     storageURL,
		StorageDBName:  yamlCfg.Storage.Name,
		EtcdEndpoints:  yamlCfg.Etcd.Endpoints,
		EtcdPrefix:     yamlCfg.Etcd.Prefix,
		RedisURL:       buildRedisURL(yamlCfg.Redis),
		CacheTTL:       yamlCfg.Redis.CacheTTL,
		MinIO:          yamlCfg.MinIO,
		Log:            loggingConfig(yamlCfg.Log),
		ConfigFilePath: loadedFrom,
	}
}

// defaultYAMLConfig 代码默认值
func defaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Server: ServerConfig{Port: "8080"},
		Storage: StorageConfig{
			Driver:  "",
			Path:    "data/agents-workflow.db",
			Host:    "localhost",
			Port:    5432,
			User:    "agents",
			Name:    "agents_workflow",
			SSLMode: "disable",
		},
		Etcd:  EtcdConfig{Endpoints: []string{"localhost:2379"}, Prefix: "/agents-workflow"},
		Redis: RedisConfig{Port: 6379, CacheTTL: 10 * time.Minute},
		MinIO: MinIOConfig{Bucket: "agents-workflow"},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → common.yaml → {env}.yaml
func loadYAMLConfig(env Environment, paths []string) (*YAMLConfig, string) {
	cfg := defaultYAMLConfig()
	var loadedFrom string

	for _, name := range []string{"common.yaml", fmt.Sprintf("%s.yaml", env)} {
		for _, base := range paths {
			path := filepath.Join(base, name)
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				fmt.Fprintf(os.Stderr, "[Config] Failed to parse %s: %v\n", path, err)
				break
			}
			loadedFrom = path
			break
		}
	}

	return cfg, loadedFrom
}

// applyEnvOverrides 环境变量覆盖 YAML 配置
func applyEnvOverrides(cfg *YAMLConfig) {
	if v := os.Getenv("API_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Storage.Name = v
	}
	cfg.Storage.Password = firstEnv("DB_PASSWORD", "MONGO_ROOT_PASSWORD")

	if v := os.Getenv("ETCD_ENDPOINTS"); v != "" {
		cfg.Etcd.Endpoints = strings.Split(v, ",")
	}
	if v := os.Getenv("ETCD_PREFIX"); v != "" {
		cfg.Etcd.Prefix = v
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Redis.CacheTTL = d
		}
	}

	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	cfg.MinIO.AccessKey = firstEnv("MINIO_ROOT_USER", "MINIO_ACCESS_KEY")
	cfg.MinIO.SecretKey = firstEnv("MINIO_ROOT_PASSWORD", "MINIO_SECRET_KEY")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// effectiveConfigPaths 返回实际搜索路径
func effectiveConfigPaths(env Environment) []string {
	if configDir != "" {
		return []string{configDir}
	}
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return []string{dir}
	}
	if env == EnvProduction {
		return []string{"/etc/agents-workflow"}
	}
	return []string{"configs", "../configs"}
}

// loadEnvFiles 加载 .env.{env} 文件
//
// 生产环境不搜索 .env 文件（密码由 systemd EnvironmentFile 或 shell 环境注入）。
// godotenv.Load 不覆盖已有环境变量，优先级低于 shell 环境变量。
func loadEnvFiles(env Environment) {
	if env == EnvProduction {
		return
	}
	envFileName := fmt.Sprintf(".env.%s", string(env))
	for _, dir := range envSearchDirs {
		if err := godotenv.Load(filepath.Join(dir, envFileName)); err == nil {
			break
		}
	}
}
