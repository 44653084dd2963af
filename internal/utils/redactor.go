package utils

import (
	"strings"
)

var (
	// SensitiveKeywords 敏感字段名称关键字 (用于脱敏)
	SensitiveKeywords = []string{
		"authorization",
		"token",
		"key",
		"secret",
		"password",
		"credential",
		"cookie",
		"session",
	}
)

// Redactor 敏感信息脱敏器
// 负责识别并脱敏日志中的凭据、cookie和会话标识
type Redactor struct {
	sensitiveKeywords []string
}

// NewRedactor 创建脱敏器
func NewRedactor() *Redactor {
	return &Redactor{
		sensitiveKeywords: SensitiveKeywords,
	}
}

// IsSensitive 检查字段名是否为敏感字段
// 根据字段名称关键字判断
func (r *Redactor) IsSensitive(name string) bool {
	nameLower := strings.ToLower(name)
	for _, keyword := range r.sensitiveKeywords {
		if strings.Contains(nameLower, keyword) {
			return true
		}
	}
	return false
}

// RedactValue 脱敏单个字段值
// 根据值的格式选择不同的脱敏策略
func (r *Redactor) RedactValue(name, value string) string {
	if !r.IsSensitive(name) {
		return value
	}

	// 策略1: Bearer Token - 仅显示前缀
	if strings.HasPrefix(value, "Bearer ") {
		return "Bearer ***"
	}

	// 策略2: 长值 - 显示前4位+后4位
	if len(value) > 8 {
		return value[:4] + "***" + value[len(value)-4:]
	}

	// 策略3: 短值 - 完全隐藏
	return "***"
}

// Redact 脱敏整个字段map,返回安全的字符串map (用于日志)
func (r *Redactor) Redact(fields map[string]string) map[string]string {
	result := make(map[string]string)
	for name, value := range fields {
		if r.IsSensitive(name) {
			result[name] = r.RedactValue(name, value)
		} else {
			result[name] = value
		}
	}
	return result
}

// RedactToString 脱敏字段map并返回格式化字符串 (用于日志输出)
// 格式: "field1: value1, field2: value2, ..."
func (r *Redactor) RedactToString(fields map[string]string) string {
	redacted := r.Redact(fields)
	var parts []string
	for name, value := range redacted {
		parts = append(parts, name+": "+value)
	}
	return strings.Join(parts, ", ")
}
