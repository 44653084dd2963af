package models

import (
	"testing"
	"time"
)

func validExportConfig() ExportConfig {
	return ExportConfig{
		Tabs:        4,
		Headless:    true,
		PageTimeout: 30,
		PageDepth:   3,
		Attachments: true,
		CleanOutput: true,
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		expectError bool
	}{
		{"合法HTTPS地址", "https://lms.example.com", false},
		{"合法HTTP地址", "http://lms.example.com", false},
		{"带路径和端口", "https://lms.example.com:8443/portal", false},
		{"缺少协议", "lms.example.com", true},
		{"非HTTP协议", "file:///etc/passwd", true},
		{"缺少主机名", "https://", true},
		{"空字符串", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.expectError {
				t.Errorf("ValidateURL(%q) 期望错误=%v, 实际=%v", tt.url, tt.expectError, err)
			}
		})
	}
}

func TestExportConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*ExportConfig)
		expectError bool
	}{
		{"默认配置合法", func(c *ExportConfig) {}, false},
		{"标签页过多", func(c *ExportConfig) { c.Tabs = 50 }, true},
		{"标签页为零", func(c *ExportConfig) { c.Tabs = 0 }, true},
		{"超时过短", func(c *ExportConfig) { c.PageTimeout = 1 }, true},
		{"深度过深", func(c *ExportConfig) { c.PageDepth = 20 }, true},
		{"重试上限为负", func(c *ExportConfig) { c.MaxRenderRetries = -1 }, true},
		{"续传与清空输出冲突", func(c *ExportConfig) { c.Resume = true }, true},
		{"续传且不清空输出", func(c *ExportConfig) { c.Resume = true; c.CleanOutput = false }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validExportConfig()
			tt.modify(&config)
			err := config.Validate()
			if (err != nil) != tt.expectError {
				t.Errorf("期望错误=%v, 实际=%v", tt.expectError, err)
			}
		})
	}
}

func TestNewExportTask(t *testing.T) {
	t.Run("创建合法任务", func(t *testing.T) {
		task, err := NewExportTask("https://lms.example.com", validExportConfig())
		if err != nil {
			t.Fatalf("创建任务失败: %v", err)
		}
		if task.ID == "" {
			t.Error("任务ID不应为空")
		}
		if task.Domain != "lms.example.com" {
			t.Errorf("域名解析错误: %s", task.Domain)
		}
		if task.Status != StatusPending {
			t.Errorf("初始状态应为pending, 得到: %s", task.Status)
		}
	})

	t.Run("非法URL拒绝创建", func(t *testing.T) {
		if _, err := NewExportTask("not-a-url", validExportConfig()); err == nil {
			t.Error("非法URL应该报错")
		}
	})

	t.Run("非法配置拒绝创建", func(t *testing.T) {
		config := validExportConfig()
		config.Tabs = 0
		if _, err := NewExportTask("https://lms.example.com", config); err == nil {
			t.Error("非法配置应该报错")
		}
	})

	t.Run("JSON序列化往返", func(t *testing.T) {
		task, err := NewExportTask("https://lms.example.com", validExportConfig())
		if err != nil {
			t.Fatal(err)
		}

		data, err := task.ToJSON()
		if err != nil {
			t.Fatalf("序列化失败: %v", err)
		}

		var restored ExportTask
		if err := restored.FromJSON(data); err != nil {
			t.Fatalf("反序列化失败: %v", err)
		}
		if restored.ID != task.ID || restored.Domain != task.Domain {
			t.Error("往返后任务信息不一致")
		}
	})
}

func TestExportStatsMerge(t *testing.T) {
	stats := ExportStats{
		TotalClasses:  2,
		TotalSections: 5,
		PDFCount:      10,
		TotalSize:     1024,
	}
	other := ExportStats{
		TotalSections:   5,
		PDFCount:        7,
		AttachmentCount: 3,
		SkippedItems:    2,
		FailedItems:     1,
		RenderRetries:   4,
		TotalSize:       2048,
	}

	stats.Merge(other)

	if stats.TotalSections != 10 {
		t.Errorf("栏目数合并错误: %d", stats.TotalSections)
	}
	if stats.PDFCount != 17 {
		t.Errorf("PDF数合并错误: %d", stats.PDFCount)
	}
	if stats.AttachmentCount != 3 || stats.SkippedItems != 2 || stats.FailedItems != 1 {
		t.Error("附件/跳过/失败计数合并错误")
	}
	if stats.RenderRetries != 4 {
		t.Errorf("重试计数合并错误: %d", stats.RenderRetries)
	}
	if stats.TotalSize != 3072 {
		t.Errorf("总大小合并错误: %d", stats.TotalSize)
	}
	// 课程总数不参与合并,由调用方统一设置
	if stats.TotalClasses != 2 {
		t.Errorf("课程总数不应被合并修改: %d", stats.TotalClasses)
	}
}

func TestExportReportOverallStatus(t *testing.T) {
	outcome := func(status ExportStatus) ClassOutcome {
		return ClassOutcome{ClassName: "Math 101", Status: status}
	}

	tests := []struct {
		name    string
		classes []ClassOutcome
		want    ExportStatus
	}{
		{"无课程视为失败", nil, StatusFailed},
		{"全部成功", []ClassOutcome{outcome(StatusCompleted), outcome(StatusCompleted)}, StatusCompleted},
		{"全部失败", []ClassOutcome{outcome(StatusFailed), outcome(StatusFailed)}, StatusFailed},
		{"部分失败", []ClassOutcome{outcome(StatusCompleted), outcome(StatusFailed)}, StatusPartial},
		{"部分成功也算部分失败", []ClassOutcome{outcome(StatusCompleted), outcome(StatusPartial)}, StatusPartial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := &ExportReport{Classes: tt.classes}
			if got := report.OverallStatus(); got != tt.want {
				t.Errorf("OverallStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassSectionValidate(t *testing.T) {
	tests := []struct {
		name        string
		class       ClassSection
		expectError bool
	}{
		{"完整课程信息", ClassSection{ID: "482913", Name: "Math 101", URL: "https://lms.example.com/courses/482913"}, false},
		{"缺少名称", ClassSection{ID: "482913", URL: "https://lms.example.com/courses/482913"}, true},
		{"非法URL", ClassSection{ID: "482913", Name: "Math 101", URL: "not-a-url"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.class.Validate()
			if (err != nil) != tt.expectError {
				t.Errorf("期望错误=%v, 实际=%v", tt.expectError, err)
			}
		})
	}
}

func TestAttachmentIsValidExtension(t *testing.T) {
	tests := []struct {
		name      string
		extension string
		want      bool
	}{
		{"PDF附件", ".pdf", true},
		{"Word文档", ".docx", true},
		{"大写扩展名", ".PDF", true},
		{"压缩包", ".zip", true},
		{"可执行文件", ".exe", false},
		{"JS脚本", ".js", false},
		{"无扩展名", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Attachment{Extension: tt.extension}
			if got := a.IsValidExtension(); got != tt.want {
				t.Errorf("IsValidExtension(%q) = %v, want %v", tt.extension, got, tt.want)
			}
		})
	}
}

func TestAttachmentValidateSize(t *testing.T) {
	tests := []struct {
		name        string
		size        int64
		expectError bool
	}{
		{"正常大小", 1024, false},
		{"最大允许大小", MaxAttachmentSize, false},
		{"零大小", 0, true},
		{"负大小", -1, true},
		{"超过限制", MaxAttachmentSize + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Attachment{Size: tt.size}
			err := a.ValidateSize()
			if (err != nil) != tt.expectError {
				t.Errorf("ValidateSize(%d) 期望错误=%v, 实际=%v", tt.size, tt.expectError, err)
			}
		})
	}
}

func TestCredentialsValidate(t *testing.T) {
	tests := []struct {
		name        string
		username    string
		password    string
		expectError bool
	}{
		{"完整凭据", "student@example.com", "secret", false},
		{"缺少用户名", "", "secret", true},
		{"用户名仅空白", "  ", "secret", true},
		{"缺少密码", "student@example.com", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := Credentials{Username: tt.username, Password: tt.password}
			err := creds.Validate()
			if (err != nil) != tt.expectError {
				t.Errorf("期望错误=%v, 实际=%v", tt.expectError, err)
			}
		})
	}
}

func TestManifestFilename(t *testing.T) {
	if got := ManifestFilename("lms.example.com"); got != "manifest_lms.example.com.json" {
		t.Errorf("清单文件名错误: %s", got)
	}
}

func TestManifestRecordAndLookup(t *testing.T) {
	m := NewManifest("task-1", "https://lms.example.com", validExportConfig())

	before := m.UpdatedAt
	time.Sleep(time.Millisecond)
	m.Record("Math-101/pages/01_intro.pdf", "https://lms.example.com/pages/1", 2048)

	entry, ok := m.Lookup("Math-101/pages/01_intro.pdf")
	if !ok {
		t.Fatal("应能查到记录的条目")
	}
	if entry.Size != 2048 {
		t.Errorf("条目大小错误: %d", entry.Size)
	}
	if entry.SourceURL != "https://lms.example.com/pages/1" {
		t.Errorf("来源URL错误: %s", entry.SourceURL)
	}
	if !m.UpdatedAt.After(before) {
		t.Error("记录条目后应刷新更新时间")
	}
	if m.Len() != 1 {
		t.Errorf("条目数错误: %d", m.Len())
	}

	if _, ok := m.Lookup("nonexist.pdf"); ok {
		t.Error("不存在的条目不应命中")
	}
}
