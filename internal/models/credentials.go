package models

import (
	"fmt"
	"strings"
)

// 登录凭据的环境变量名,两个都是必填项
const (
	EnvUsername = "LMSARCHIVE_USERNAME"
	EnvPassword = "LMSARCHIVE_PASSWORD"
)

// Credentials 门户登录凭据
// 只能从进程环境变量加载,不写入配置文件和日志
type Credentials struct {
	Username string `json:"-"`
	Password string `json:"-"`
}

// Validate 验证凭据完整性
func (c *Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return &ValidationError{
			Field:      "username",
			EnvVar:     EnvUsername,
			Reason:     "用户名为空",
			Suggestion: fmt.Sprintf("请设置环境变量 %s", EnvUsername),
		}
	}
	if c.Password == "" {
		return &ValidationError{
			Field:      "password",
			EnvVar:     EnvPassword,
			Reason:     "密码为空",
			Suggestion: fmt.Sprintf("请设置环境变量 %s", EnvPassword),
		}
	}
	return nil
}

// Redacted 返回可安全写入日志的用户名表示
// 保留首尾字符,中间打码
func (c *Credentials) Redacted() string {
	u := c.Username
	if len(u) <= 2 {
		return "***"
	}
	return u[:1] + strings.Repeat("*", len(u)-2) + u[len(u)-1:]
}

// ValidationError 凭据/配置验证错误
// 表示验证失败的详细信息
type ValidationError struct {
	// Field 出错的字段
	Field string

	// EnvVar 关联的环境变量名(可选)
	EnvVar string

	// Reason 错误原因
	Reason string

	// Suggestion 修复建议 (可选)
	Suggestion string
}

// Error 实现error接口
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("验证失败 [%s]: %s", e.Field, e.Reason)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (建议: %s)", e.Suggestion)
	}
	return msg
}

// ConfigError 配置文件错误
// 表示配置文件解析失败
type ConfigError struct {
	// FilePath 配置文件路径
	FilePath string

	// Cause 底层错误 (如viper.ConfigParseError)
	Cause error
}

// Error 实现error接口
func (e *ConfigError) Error() string {
	return fmt.Sprintf("配置文件错误 [%s]: %v", e.FilePath, e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Cause
}
