// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// Storage backends
const (
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// AppConfig 包含运行时可修改并持久化的配置
type AppConfig struct {
	// 基础配置
	Port      string `json:"port"`
	DataDir   string `json:"data_dir"`
	LogDir    string `json:"log_dir"`
	DebugMode bool   `json:"debug_mode"`

	// LLM相关配置
	LLMProvider string            `json:"llm_provider"`
	LLMConfig   map[string]string `json:"llm_config"`
}

// Config 存储从环境变量读取的启动配置
type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	DataDir     string `envconfig:"DATA_DIR" default:"data"`
	LogDir      string `envconfig:"LOG_DIR" default:"logs"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"console"`
	DebugMode   bool   `envconfig:"DEBUG_MODE" default:"true"`

	// 存储后端: file, redis, memory
	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"file"`
	RedisURL       string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	RedisPrefix    string `envconfig:"REDIS_PREFIX" default:"script-studio:"`

	// 文本生成服务
	LLMProvider    string        `envconfig:"LLM_PROVIDER" default:"google"`
	LLMModel       string        `envconfig:"LLM_MODEL"`
	LLMBaseURL     string        `envconfig:"LLM_BASE_URL"`
	RequestTimeout time.Duration `envconfig:"LLM_REQUEST_TIMEOUT" default:"180s"`
	RateLimit      float64       `envconfig:"LLM_RATE_LIMIT" default:"1"`
	RateBurst      int           `envconfig:"LLM_RATE_BURST" default:"2"`
	SuggestionTTL  time.Duration `envconfig:"SUGGESTION_CACHE_TTL" default:"30m"`

	// 长篇脚本阈值（字数），超过且类型为 Video 时只生成大纲
	LongFormThreshold int `envconfig:"LONG_FORM_THRESHOLD" default:"1000"`

	// 密钥相关，不输出到日志
	GeminiAPIKey     string `envconfig:"GEMINI_API_KEY"`
	OpenAIAPIKey     string `envconfig:"OPENAI_API_KEY"`
	CredentialSecret string `envconfig:"CREDENTIAL_SECRET"`
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("加载环境配置失败: %w", err)
	}

	switch cfg.StorageBackend {
	case StorageFile, StorageRedis, StorageMemory:
	default:
		return nil, fmt.Errorf("未知的存储后端: %s", cfg.StorageBackend)
	}
	if cfg.LongFormThreshold <= 0 {
		return nil, fmt.Errorf("LONG_FORM_THRESHOLD 必须为正数")
	}
	if cfg.RateLimit <= 0 {
		return nil, fmt.Errorf("LLM_RATE_LIMIT 必须为正数")
	}
	if cfg.RateBurst < 1 {
		cfg.RateBurst = 1
	}

	ensureDir(cfg.DataDir)
	ensureDir(cfg.LogDir)

	return &cfg, nil
}

// EnvAPIKey returns the key supplied through the environment for the configured provider
func (c *Config) EnvAPIKey() string {
	if c.LLMProvider == "google" {
		return c.GeminiAPIKey
	}
	return c.OpenAIAPIKey
}

// ensureDir 确保目录存在
func ensureDir(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			fmt.Printf("警告: 创建目录失败 %s: %v\n", path, err)
		}
	}
}

// InitConfig 初始化配置管理器
func InitConfig(base *Config) error {
	configFile = filepath.Join(base.DataDir, "config.json")

	configMutex.Lock()
	defer configMutex.Unlock()

	llmConfig := map[string]string{}
	if base.LLMModel != "" {
		llmConfig["default_model"] = base.LLMModel
	}
	if base.LLMBaseURL != "" {
		llmConfig["base_url"] = base.LLMBaseURL
	}

	currentConfig = &AppConfig{
		Port:        base.Port,
		DataDir:     base.DataDir,
		LogDir:      base.LogDir,
		DebugMode:   base.DebugMode,
		LLMProvider: base.LLMProvider,
		LLMConfig:   llmConfig,
	}

	// 尝试从文件加载已保存的配置
	if data, err := os.ReadFile(configFile); err == nil {
		var savedConfig AppConfig
		if json.Unmarshal(data, &savedConfig) == nil && savedConfig.LLMProvider != "" {
			// 保留文件中的LLM设置，但使用最新的基础配置
			savedConfig.Port = base.Port
			savedConfig.DataDir = base.DataDir
			savedConfig.LogDir = base.LogDir
			savedConfig.DebugMode = base.DebugMode
			if savedConfig.LLMConfig == nil {
				savedConfig.LLMConfig = map[string]string{}
			}
			currentConfig = &savedConfig
		}
	}

	// 保存初始配置到文件
	return saveLocked()
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		return &AppConfig{
			Port:        "8080",
			DataDir:     "data",
			LogDir:      "logs",
			LLMProvider: "google",
			LLMConfig:   map[string]string{},
		}
	}

	configCopy := *currentConfig
	configCopy.LLMConfig = make(map[string]string, len(currentConfig.LLMConfig))
	for k, v := range currentConfig.LLMConfig {
		configCopy.LLMConfig[k] = v
	}
	return &configCopy
}

// UpdateLLMConfig 更新LLM配置
func UpdateLLMConfig(provider string, config map[string]string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	currentConfig.LLMProvider = provider
	currentConfig.LLMConfig = config

	return saveLocked()
}

// SaveConfig 保存当前配置到文件
func SaveConfig() error {
	configMutex.Lock()
	defer configMutex.Unlock()
	return saveLocked()
}

func saveLocked() error {
	if currentConfig == nil {
		return fmt.Errorf("没有配置可保存")
	}

	dir := filepath.Dir(configFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	// API 密钥不写入配置文件，由凭据存储管理
	persisted := *currentConfig
	persisted.LLMConfig = make(map[string]string, len(currentConfig.LLMConfig))
	for k, v := range currentConfig.LLMConfig {
		if k == "api_key" {
			continue
		}
		persisted.LLMConfig[k] = v
	}

	data, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	return os.WriteFile(configFile, data, 0644)
}
