package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var configPaths = []string{
	"configs",
	"../configs",
	"../../configs",
	"../../../configs",
}

var envPaths = []string{
	".env",
	"../.env",
	"../../.env",
	"../../../.env",
}

// Load 加载配置
// 1. 加载 .env（敏感信息 + APP_ENV）
// 2. 根据 APP_ENV 加载 configs/{env}.yaml
// 3. 环境变量覆盖敏感字段
func Load() *Config {
	// 加载 .env
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	// 解析环境
	env := parseEnv(getEnv("APP_ENV", "dev"))

	// 加载 YAML 配置
	yamlCfg := loadYAMLConfig(env)

	// 从环境变量获取敏感信息
	dbPassword := getEnv("DB_PASSWORD", "parking_dev_password")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	cfg := &Config{
		Env:         env,
		APIPort:     getEnv("API_PORT", yamlCfg.Server.Port),
		Database:    yamlCfg.Database,
		DatabaseURL: buildDatabaseURL(yamlCfg.Database, dbPassword),
		RedisURL:    buildRedisURL(yamlCfg.Redis, redisPassword),
		Auth:        yamlCfg.Auth,
		Simulator:   yamlCfg.Simulator,
		Log:         yamlCfg.Log,
	}
	cfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.Auth.validate()
	cfg.Simulator.validate()

	return cfg
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → common.yaml → {env}.yaml
func loadYAMLConfig(env Environment) *YAMLConfig {
	// 1. 初始化默认值
	cfg := &YAMLConfig{
		Server:   ServerConfig{Port: "8080"},
		Database: DatabaseConfig{Driver: "sqlite", Path: "parking_admin.db", Host: "localhost", Port: 5432, User: "parking", Name: "parking_admin", SSLMode: "disable"},
		Redis:    RedisConfig{Host: "localhost", Port: 6379, DB: 0},
		Auth:     AuthConfig{AccessTokenTTL: 24 * time.Hour, Hasher: "legacy"},
		Simulator: SimulatorConfig{
			HeartbeatInterval: 5 * time.Second,
			UpdateInterval:    3 * time.Second,
			UpdateProbability: 0.1,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}

	// 2. 加载 common.yaml（公共配置）
	for _, base := range configPaths {
		path := filepath.Join(base, "common.yaml")
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	// 3. 加载 {env}.yaml（环境特定配置，覆盖公共配置）
	filename := fmt.Sprintf("%s.yaml", env)
	for _, base := range configPaths {
		path := filepath.Join(base, filename)
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	return cfg
}

// buildDatabaseURL 构建 PostgreSQL 连接字符串（driver=postgres 时使用）
func buildDatabaseURL(db DatabaseConfig, password string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		db.User, password, db.Host, db.Port, db.Name, db.SSLMode)
}

// buildRedisURL 构建 Redis 连接字符串
func buildRedisURL(r RedisConfig, password string) string {
	if r.URL != "" {
		return r.URL
	}
	if password != "" {
		return fmt.Sprintf("redis://:%s@%s:%d/%d", password, r.Host, r.Port, r.DB)
	}
	return fmt.Sprintf("redis://%s:%d/%d", r.Host, r.Port, r.DB)
}

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

// String 返回配置摘要（隐藏密码）
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, Driver: %s, Redis: %s, Hasher: %s}",
		c.Env, c.Database.Driver, maskPassword(c.RedisURL), c.Auth.Hasher)
}

// maskPassword 隐藏密码
func maskPassword(url string) string {
	re := regexp.MustCompile(`(://[^:]*:)([^@]+)(@)`)
	return re.ReplaceAllString(url, "${1}***${3}")
}

// validate 验证并填充认证默认值
func (a *AuthConfig) validate() {
	if a.AccessTokenTTL <= 0 {
		a.AccessTokenTTL = 24 * time.Hour
	}
	switch a.Hasher {
	case "legacy", "bcrypt":
	default:
		a.Hasher = "legacy"
	}
}

// validate 验证并填充模拟器默认值
func (s *SimulatorConfig) validate() {
	if s.HeartbeatInterval <= 0 {
		s.HeartbeatInterval = 5 * time.Second
	}
	if s.UpdateInterval <= 0 {
		s.UpdateInterval = 3 * time.Second
	}
	if s.UpdateProbability <= 0 || s.UpdateProbability > 1 {
		s.UpdateProbability = 0.1
	}
}
