// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
)

// LLMConfig 文本生成服务配置
// APIKey 为空表示演示模式：跳过网络调用，返回确定性的离线结果
type LLMConfig struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key,omitempty"`
	BaseURL  string `json:"base_url"`
	Model    string `json:"model"`
}

// ImageConfig 图像生成服务配置
type ImageConfig struct {
	APIKey  string `json:"api_key,omitempty"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

// SpeechConfig 语音合成服务配置
type SpeechConfig struct {
	APIKey  string `json:"api_key,omitempty"`
	BaseURL string `json:"base_url"`
}

// VideoConfig 视频生成服务配置
type VideoConfig struct {
	APIKey       string `json:"api_key,omitempty"`
	BaseURL      string `json:"base_url"`
	Model        string `json:"model"`
	PollInterval int    `json:"poll_interval_seconds"`
	MaxPolls     int    `json:"max_polls"`
}

// StorageConfig 对象存储配置（七牛云）
// AccessKey 为空表示演示模式：返回占位图 URL，不上传
type StorageConfig struct {
	AccessKey string `json:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty"`
	Bucket    string `json:"bucket"`
	Domain    string `json:"domain"`
}

// PoolConfig 流水线工作池配置
type PoolConfig struct {
	CoreWorkers int `json:"core_workers"`
	MaxWorkers  int `json:"max_workers"`
	QueueSize   int `json:"queue_size"`
}

// AppConfig 包含应用程序的所有配置
type AppConfig struct {
	// 基础配置
	Port      string `json:"port"`
	DataDir   string `json:"data_dir"`
	DBPath    string `json:"db_path"`
	LogDir    string `json:"log_dir"`
	DebugMode bool   `json:"debug_mode"`

	// 外部服务配置
	LLM     LLMConfig     `json:"llm"`
	Image   ImageConfig   `json:"image"`
	Speech  SpeechConfig  `json:"speech"`
	Video   VideoConfig   `json:"video"`
	Storage StorageConfig `json:"storage"`

	// 并发配置
	Pool PoolConfig `json:"pool"`
}

// IsDemoMode 未配置文本生成凭证时整体进入演示模式
func (c *AppConfig) IsDemoMode() bool {
	return c.LLM.APIKey == ""
}

// Load 从环境变量加载配置
func Load() (*AppConfig, error) {
	// 尝试加载.env文件（可选）
	godotenv.Load()

	config := &AppConfig{
		Port:      getEnv("PORT", "8080"),
		DataDir:   getEnvPath("DATA_DIR", "data"),
		LogDir:    getEnvPath("LOG_DIR", "logs"),
		DebugMode: getEnvBool("DEBUG_MODE", true),
		LLM: LLMConfig{
			Provider: getEnv("LLM_PROVIDER", "deepseek"),
			APIKey:   getEnv("LLM_API_KEY", ""),
			BaseURL:  getEnv("LLM_BASE_URL", "https://api.deepseek.com/v1"),
			Model:    getEnv("LLM_MODEL", "deepseek-chat"),
		},
		Image: ImageConfig{
			APIKey:  getEnv("IMAGE_API_KEY", ""),
			BaseURL: getEnv("IMAGE_BASE_URL", "https://api.siliconflow.cn/v1"),
			Model:   getEnv("IMAGE_MODEL", "Kwai-Kolors/Kolors"),
		},
		Speech: SpeechConfig{
			APIKey:  getEnv("SPEECH_API_KEY", ""),
			BaseURL: getEnv("SPEECH_BASE_URL", "https://openai.qiniu.com/v1"),
		},
		Video: VideoConfig{
			APIKey:       getEnv("VIDEO_API_KEY", ""),
			BaseURL:      getEnv("VIDEO_BASE_URL", "https://api.qnaigc.com/v1"),
			Model:        getEnv("VIDEO_MODEL", "veo3"),
			PollInterval: getEnvInt("VIDEO_POLL_INTERVAL", 5),
			MaxPolls:     getEnvInt("VIDEO_MAX_POLLS", 60),
		},
		Storage: StorageConfig{
			AccessKey: getEnv("QINIU_ACCESS_KEY", ""),
			SecretKey: getEnv("QINIU_SECRET_KEY", ""),
			Bucket:    getEnv("QINIU_BUCKET", "aigo-assets"),
			Domain:    getEnv("QINIU_DOMAIN", ""),
		},
		Pool: PoolConfig{
			CoreWorkers: getEnvInt("PIPELINE_CORE_WORKERS", 4),
			MaxWorkers:  getEnvInt("PIPELINE_MAX_WORKERS", 8),
			QueueSize:   getEnvInt("PIPELINE_QUEUE_SIZE", 100),
		},
	}
	config.DBPath = getEnv("DB_PATH", config.DataDir+"/aigo.db")

	if config.LLM.APIKey == "" {
		// 只记录警告，不返回错误：无凭证时走演示模式
		log.Println("警告: 未设置LLM_API_KEY，流水线将以演示模式运行")
	}

	return config, nil
}

// InitConfig 初始化配置管理器
func InitConfig() error {
	config, err := Load()
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()
	currentConfig = config
	return nil
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		// 紧急情况，返回一个基本配置
		config, _ := Load()
		return config
	}

	configCopy := *currentConfig
	return &configCopy
}

// UpdateLLMConfig 更新文本生成服务配置
func UpdateLLMConfig(llm LLMConfig) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	currentConfig.LLM = llm
	return nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的路径，如果不存在则返回默认值
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	// 确保目录存在
	if _, err := os.Stat(path); os.IsNotExist(err) {
		err = os.MkdirAll(path, 0755)
		if err != nil {
			fmt.Printf("警告: 创建目录失败 %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt 获取整数类型环境变量
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
