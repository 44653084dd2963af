package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/LmsArchive/internal/models"
	"github.com/spf13/viper"
)

// Config 应用程序配置
type Config struct {
	Portal   PortalConfig        `mapstructure:"portal"`
	Export   models.ExportConfig `mapstructure:"export"`
	Logging  LoggingConfig       `mapstructure:"logging"`
	Output   OutputConfig        `mapstructure:"output"`
	Resource ResourceConfig      `mapstructure:"resource"`
}

// PortalConfig 门户配置
type PortalConfig struct {
	URL string `mapstructure:"url"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// ResourceConfig 资源监控配置
type ResourceConfig struct {
	SafetyReserveMemory int `mapstructure:"safety_reserve_memory"` // MB
	SafetyThreshold     int `mapstructure:"safety_threshold"`      // MB
	CPULoadThreshold    int `mapstructure:"cpu_load_threshold"`    // 百分比,>=200禁用
	MaxTabsLimit        int `mapstructure:"max_tabs_limit"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// 设置配置文件
	if configPath != "" {
		// 使用指定的配置文件
		v.SetConfigFile(configPath)
	} else {
		// 搜索默认位置
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// 添加配置搜索路径
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		// 用户主目录
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".lmsarchive"))
		}
	}

	// 设置默认值
	setDefaults(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		// 如果配置文件不存在,使用默认值
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &models.ConfigError{FilePath: v.ConfigFileUsed(), Cause: err}
		}
	}

	// 解析配置
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 门户配置默认值
	v.SetDefault("portal.url", "")

	// 导出配置默认值
	v.SetDefault("export.tabs", 4)
	v.SetDefault("export.headless", true)
	v.SetDefault("export.page_timeout", 30)
	v.SetDefault("export.page_depth", 3)
	v.SetDefault("export.max_render_retries", 0)
	v.SetDefault("export.resume", false)
	v.SetDefault("export.attachments", true)
	v.SetDefault("export.clean_output", true)

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 输出配置默认值
	v.SetDefault("output.base_dir", "output")

	// 资源监控配置默认值
	v.SetDefault("resource.safety_reserve_memory", 512)
	v.SetDefault("resource.safety_threshold", 1024)
	v.SetDefault("resource.cpu_load_threshold", 85)
	v.SetDefault("resource.max_tabs_limit", 20)
}

// MergeCLIFlags 合并命令行参数到配置
// 命令行参数优先于配置文件
func (c *Config) MergeCLIFlags(
	portalURL string,
	tabs int,
	pageTimeout int,
	pageDepth int,
	maxRenderRetries int,
	headless bool,
	resume bool,
	attachments bool,
	outputDir string,
) {
	if portalURL != "" {
		c.Portal.URL = portalURL
	}
	if tabs > 0 {
		c.Export.Tabs = tabs
	}
	if pageTimeout > 0 {
		c.Export.PageTimeout = pageTimeout
	}
	if pageDepth > 0 {
		c.Export.PageDepth = pageDepth
	}
	if maxRenderRetries >= 0 {
		c.Export.MaxRenderRetries = maxRenderRetries
	}
	c.Export.Headless = headless
	c.Export.Resume = resume
	c.Export.Attachments = attachments
	if resume {
		// 断点续传时保留已有输出
		c.Export.CleanOutput = false
	}
	if outputDir != "" {
		c.Output.BaseDir = outputDir
	}
}

// Validate 验证配置完整性
func (c *Config) Validate() error {
	if c.Portal.URL == "" {
		return &models.ValidationError{
			Field:      "portal.url",
			Reason:     "门户地址为空",
			Suggestion: "通过--url参数或配置文件的portal.url指定门户地址",
		}
	}
	if err := models.ValidateURL(c.Portal.URL); err != nil {
		return fmt.Errorf("门户地址无效: %w", err)
	}
	return c.Export.Validate()
}
