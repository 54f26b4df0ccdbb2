// Package config 统一配置管理
//
// 配置加载优先级（高→低）：
//  1. 环境变量（通过 .env 文件或 shell/systemd 注入）
//  2. YAML 配置文件（configs/{env}.yaml，如 dev.yaml、test.yaml、prod.yaml）
//  3. 代码硬编码默认值
//
// 凭据单一数据源：
//
//	密码/密钥只存在 .env 文件中（YAML 中不存储任何密码）。
//	JWT_SECRET、REDIS_PASSWORD 只从环境变量读取。
//
// 环境：
//   - 开发: APP_ENV=dev → configs/dev.yaml + .env
//   - 测试: APP_ENV=test → configs/test.yaml
//   - 生产: APP_ENV=prod → configs/prod.yaml
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Simulator SimulatorConfig `yaml:"simulator"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port string `yaml:"port"`
}

// DatabaseConfig 快照存储配置
//
// driver 决定 currentUser/users 快照的落地方式：
// "redis"、"sqlite"、"postgres" 或 "memory"（仅测试）。
type DatabaseConfig struct {
	Driver  string `yaml:"driver"`
	Path    string `yaml:"path"` // SQLite 文件路径
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	User    string `yaml:"user"`
	Name    string `yaml:"name"`
	SSLMode string `yaml:"sslmode"`
}

// RedisConfig Redis 配置（快照存储 + 事件中继共用）
type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	DB   int    `yaml:"db"`
	URL  string `yaml:"url"` // 直接指定 URL（优先于 host/port/db）
}

// AuthConfig 认证配置
// 注意：JWTSecret 只从 JWT_SECRET 环境变量读取，不存储在 YAML 中
type AuthConfig struct {
	JWTSecret      string        `yaml:"-"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl"` // 例如 24h
	Hasher         string        `yaml:"hasher"`           // "legacy"（演示用前缀哈希）或 "bcrypt"
}

// SimulatorConfig 可用数模拟器配置
type SimulatorConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"` // 连接心跳周期
	UpdateInterval    time.Duration `yaml:"update_interval"`    // 扰动周期
	UpdateProbability float64       `yaml:"update_probability"` // 单个车场被扰动的概率
}

// UnmarshalYAML 支持 "24h" 这类时长字面量（yaml.v3 不原生解析 time.Duration）
func (a *AuthConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		AccessTokenTTL string `yaml:"access_token_ttl"`
		Hasher         string `yaml:"hasher"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.AccessTokenTTL != "" {
		d, err := time.ParseDuration(raw.AccessTokenTTL)
		if err != nil {
			return fmt.Errorf("invalid access_token_ttl: %w", err)
		}
		a.AccessTokenTTL = d
	}
	if raw.Hasher != "" {
		a.Hasher = raw.Hasher
	}
	return nil
}

// UnmarshalYAML 同上，解析 "5s" / "3s" 时长字面量；空字段保留已有默认值
func (s *SimulatorConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		HeartbeatInterval string   `yaml:"heartbeat_interval"`
		UpdateInterval    string   `yaml:"update_interval"`
		UpdateProbability *float64 `yaml:"update_probability"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.HeartbeatInterval != "" {
		d, err := time.ParseDuration(raw.HeartbeatInterval)
		if err != nil {
			return fmt.Errorf("invalid heartbeat_interval: %w", err)
		}
		s.HeartbeatInterval = d
	}
	if raw.UpdateInterval != "" {
		d, err := time.ParseDuration(raw.UpdateInterval)
		if err != nil {
			return fmt.Errorf("invalid update_interval: %w", err)
		}
		s.UpdateInterval = d
	}
	if raw.UpdateProbability != nil {
		s.UpdateProbability = *raw.UpdateProbability
	}
	return nil
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env         Environment
	APIPort     string
	Database    DatabaseConfig
	DatabaseURL string // postgres DSN（driver=postgres 时）
	RedisURL    string
	Auth        AuthConfig
	Simulator   SimulatorConfig
	Log         LogConfig
}
