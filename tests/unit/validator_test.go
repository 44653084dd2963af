package unit

import (
	"strings"
	"testing"

	"github.com/RecoveryAshes/LmsArchive/internal/utils"
)

func TestPathValidator_ValidateClassName(t *testing.T) {
	validator := utils.NewPathValidator()

	tests := []struct {
		name        string
		className   string
		expectError bool
	}{
		{"合法课程名-英文", "Math 101", false},
		{"合法课程名-数字ID", "482913", false},
		{"合法课程名-中文", "高等数学", false},
		{"非法课程名-空字符串", "", true},
		{"非法课程名-仅空白", "   ", true},
		{"非法课程名-控制字符", "Math\x00101", true},
		{"非法课程名-换行符", "Math\n101", true},
		{"非法课程名-超长", strings.Repeat("a", utils.MaxNameLength+1), true},
		{"非法课程名-保留名称", "CON", true},
		{"非法课程名-保留名称小写", "nul", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateClassName(tt.className)
			if (err != nil) != tt.expectError {
				t.Errorf("期望错误=%v, 实际错误=%v", tt.expectError, err)
			}
		})
	}
}

func TestPathValidator_ValidateOutputDir(t *testing.T) {
	validator := utils.NewPathValidator()

	tests := []struct {
		name        string
		dir         string
		expectError bool
	}{
		{"合法目录-相对路径", "output", false},
		{"合法目录-嵌套路径", "data/archive/2026", false},
		{"非法目录-空字符串", "", true},
		{"非法目录-控制字符", "out\x01put", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateOutputDir(tt.dir)
			if (err != nil) != tt.expectError {
				t.Errorf("期望错误=%v, 实际错误=%v", tt.expectError, err)
			}
		})
	}
}

func TestPathValidator_ValidateClassNames(t *testing.T) {
	validator := utils.NewPathValidator()

	if err := validator.ValidateClassNames([]string{"Math 101", "History 202"}); err != nil {
		t.Errorf("合法列表不应报错: %v", err)
	}
	if err := validator.ValidateClassNames([]string{"Math 101", ""}); err == nil {
		t.Error("包含非法条目的列表应报错")
	}
	if err := validator.ValidateClassNames(nil); err != nil {
		t.Errorf("空列表不应报错: %v", err)
	}
}

func TestRedactor_IsSensitive(t *testing.T) {
	redactor := utils.NewRedactor()

	tests := []struct {
		name      string
		fieldName string
		want      bool
	}{
		{"密码字段", "password", true},
		{"Cookie字段", "cookie.SESSID", true},
		{"会话字段", "session_id", true},
		{"Token字段", "access_token", true},
		{"普通字段", "username_display", false},
		{"大小写不敏感", "PASSWORD", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := redactor.IsSensitive(tt.fieldName); got != tt.want {
				t.Errorf("IsSensitive(%q) = %v, want %v", tt.fieldName, got, tt.want)
			}
		})
	}
}

func TestRedactor_RedactValue(t *testing.T) {
	redactor := utils.NewRedactor()

	tests := []struct {
		name      string
		fieldName string
		value     string
		want      string
	}{
		{"Bearer Token", "authorization", "Bearer abc123def456", "Bearer ***"},
		{"长密钥显示首尾", "api_key", "abcd1234efgh5678", "abcd***5678"},
		{"短密钥完全隐藏", "password", "secret", "***"},
		{"非敏感字段原样返回", "display_name", "张三", "张三"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := redactor.RedactValue(tt.fieldName, tt.value); got != tt.want {
				t.Errorf("RedactValue(%q, %q) = %q, want %q", tt.fieldName, tt.value, got, tt.want)
			}
		})
	}
}

func TestRedactor_Redact(t *testing.T) {
	redactor := utils.NewRedactor()

	fields := map[string]string{
		"password":     "topsecret123",
		"display_name": "student",
	}
	redacted := redactor.Redact(fields)

	if redacted["password"] == "topsecret123" {
		t.Error("密码字段应被脱敏")
	}
	if redacted["display_name"] != "student" {
		t.Error("非敏感字段不应被修改")
	}
}
