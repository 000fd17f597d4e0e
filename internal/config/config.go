package config

import (
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 项目配置结构体，在 main 中构造一次后向下传递
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Scorer      ScorerConfig      `yaml:"scorer"`
	LLM         LLMConfig         `yaml:"llm"`
	Impact      ImpactConfig      `yaml:"impact"`
	Log         LogConfig         `yaml:"log"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Report      ReportConfig      `yaml:"report"`
}

// ServerConfig HTTP 服务相关配置
type ServerConfig struct {
	Addr    string `yaml:"addr"`
	Timeout string `yaml:"timeout"`
}

// ScorerConfig 外部评分引擎相关配置
type ScorerConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// LLMConfig LLM 相关配置。Temperature 用指针区分"未配置"和显式的 0。
type LLMConfig struct {
	BaseURL     string   `yaml:"base_url"`
	APIKey      string   `yaml:"api_key"`
	Model       string   `yaml:"model"`
	Temperature *float32 `yaml:"temperature"`
}

// ImpactConfig 影响力分级阈值，量纲由外部评分引擎决定
type ImpactConfig struct {
	HighThreshold   float64 `yaml:"high_threshold"`
	MediumThreshold float64 `yaml:"medium_threshold"`
	TopN            int     `yaml:"top_n"`
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConcurrencyConfig LLM 调用限流配置
type ConcurrencyConfig struct {
	QPS int `yaml:"qps"`
	RPM int `yaml:"rpm"`
}

// ReportConfig PDF 报告相关配置
type ReportConfig struct {
	WatermarkPath string `yaml:"watermark_path"`
}

// LoadConfig 从指定路径加载配置，环境变量可覆盖密钥类字段
func LoadConfig(path string) (*Config, error) {
	// .env 仅用于本地开发，缺失不是错误
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if v := os.Getenv("FINSIGHT_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("FINSIGHT_SCORER_URL"); v != "" {
		cfg.Scorer.BaseURL = v
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Scorer.TimeoutSeconds <= 0 {
		c.Scorer.TimeoutSeconds = 30
	}
	if c.LLM.Temperature == nil {
		t := float32(0.4)
		c.LLM.Temperature = &t
	}
	if c.Impact.HighThreshold <= 0 {
		c.Impact.HighThreshold = 0.1
	}
	if c.Impact.MediumThreshold <= 0 {
		c.Impact.MediumThreshold = 0.05
	}
	if c.Impact.TopN <= 0 {
		c.Impact.TopN = 4
	}
	if c.Concurrency.QPS <= 0 {
		c.Concurrency.QPS = 1
	}
	if c.Concurrency.RPM <= 0 {
		c.Concurrency.RPM = 30
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
