package main

import (
	"fmt"
	"net/url"

	"github.com/RecoveryAshes/LmsArchive/internal/core"
	"github.com/RecoveryAshes/LmsArchive/internal/models"
	"github.com/RecoveryAshes/LmsArchive/internal/utils"
)

// ValidateURL 验证URL格式
func ValidateURL(urlStr string) error {
	return models.ValidateURL(urlStr)
}

// ValidateFlags 验证合并后的配置和课程过滤条目
func ValidateFlags(config *core.Config, classNames []string) error {
	// 验证门户地址
	if err := ValidateURL(config.Portal.URL); err != nil {
		return fmt.Errorf("无效的门户地址: %w", err)
	}

	// 验证导出配置(标签页数/超时/深度/重试上限)
	if err := config.Export.Validate(); err != nil {
		return err
	}

	// 验证输出目录和课程过滤条目
	validator := utils.NewPathValidator()
	if err := validator.ValidateOutputDir(config.Output.BaseDir); err != nil {
		return err
	}
	if err := validator.ValidateClassNames(classNames); err != nil {
		return err
	}

	return nil
}

// NormalizeURL 规范化URL
func NormalizeURL(urlStr string) (string, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", err
	}

	// 如果没有协议,默认使用https
	if parsed.Scheme == "" {
		urlStr = "https://" + urlStr
		parsed, err = url.Parse(urlStr)
		if err != nil {
			return "", err
		}
	}

	return parsed.String(), nil
}
