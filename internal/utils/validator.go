package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/RecoveryAshes/LmsArchive/internal/models"
)

const (
	// MaxNameLength 课程名/文件名最大长度 (字节)
	MaxNameLength = 255
)

var (
	// ReservedNames Windows保留文件名,跨平台输出时不允许作为目录名
	ReservedNames = []string{
		"CON", "PRN", "AUX", "NUL",
		"COM1", "COM2", "COM3", "COM4",
		"LPT1", "LPT2", "LPT3", "LPT4",
	}
)

// PathValidator 验证用户输入的课程名和输出目录
// 课程名会成为输出目录树的一级目录,提前拦截会导致落盘失败的输入
type PathValidator struct {
	// controlRegex 匹配控制字符
	controlRegex *regexp.Regexp

	// maxLength 名称最大长度 (字节)
	maxLength int

	// reservedNames 保留名称集合 (不区分大小写)
	reservedNames map[string]bool
}

// NewPathValidator 创建验证器
func NewPathValidator() *PathValidator {
	reserved := make(map[string]bool)
	for _, n := range ReservedNames {
		reserved[strings.ToUpper(n)] = true
	}

	return &PathValidator{
		controlRegex:  regexp.MustCompile(`[\x00-\x1F\x7F]`),
		maxLength:     MaxNameLength,
		reservedNames: reserved,
	}
}

// ValidateClassName 验证课程过滤条目
// 返回: 如果名称非法,返回ValidationError
func (pv *PathValidator) ValidateClassName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &models.ValidationError{
			Field:  "class",
			Reason: "课程名不能为空",
		}
	}

	if len(name) > pv.maxLength {
		return &models.ValidationError{
			Field:      "class",
			Reason:     fmt.Sprintf("课程名过长: %d 字节 (最大 %d)", len(name), pv.maxLength),
			Suggestion: fmt.Sprintf("将名称缩短至 %d 字节以内", pv.maxLength),
		}
	}

	if pv.controlRegex.MatchString(name) {
		return &models.ValidationError{
			Field:      "class",
			Reason:     "课程名包含控制字符",
			Suggestion: "移除换行、制表等控制字符",
		}
	}

	if pv.IsReserved(name) {
		return &models.ValidationError{
			Field:      "class",
			Reason:     fmt.Sprintf("'%s' 是系统保留名称", name),
			Suggestion: "重命名该课程过滤条目",
		}
	}

	return nil
}

// ValidateOutputDir 验证输出目录路径
func (pv *PathValidator) ValidateOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return &models.ValidationError{
			Field:      "output",
			Reason:     "输出目录不能为空",
			Suggestion: "通过--output参数或配置文件的output.base_dir指定",
		}
	}

	if pv.controlRegex.MatchString(dir) {
		return &models.ValidationError{
			Field:  "output",
			Reason: "输出目录路径包含控制字符",
		}
	}

	return nil
}

// IsReserved 检查名称是否为系统保留名称
func (pv *PathValidator) IsReserved(name string) bool {
	return pv.reservedNames[strings.ToUpper(strings.TrimSpace(name))]
}

// ValidateClassNames 验证课程过滤列表
// 返回: 第一个非法条目的ValidationError
func (pv *PathValidator) ValidateClassNames(names []string) error {
	for _, name := range names {
		if err := pv.ValidateClassName(name); err != nil {
			return err
		}
	}
	return nil
}
