package utils

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// ReadClassFilterFromFile 从文件中读取课程过滤列表
// 每行一个课程名或课程ID,支持#注释行
func ReadClassFilterFromFile(filepath string) ([]string, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("打开课程列表文件失败: %w", err)
	}
	defer file.Close()

	validator := NewPathValidator()
	names := make([]string, 0)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// 跳过空行和注释行
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if err := validator.ValidateClassName(line); err != nil {
			Warnf("跳过无效课程名 (行 %d): %s - %v", lineNum, line, err)
			continue
		}

		names = append(names, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取课程列表文件失败: %w", err)
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("课程列表文件中没有有效条目")
	}

	Infof("从文件加载了 %d 个课程过滤条目", len(names))
	return names, nil
}

// ValidateURL 验证URL格式
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("URL格式无效: %w", err)
	}

	if parsed.Scheme == "" {
		return fmt.Errorf("URL缺少协议(http/https)")
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL协议必须是http或https")
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL缺少主机名")
	}

	return nil
}
