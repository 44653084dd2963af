package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// ExportStatus 导出状态
type ExportStatus string

const (
	StatusPending   ExportStatus = "pending"   // 待执行
	StatusRunning   ExportStatus = "running"   // 执行中
	StatusCompleted ExportStatus = "completed" // 已完成
	StatusPartial   ExportStatus = "partial"   // 部分成功
	StatusFailed    ExportStatus = "failed"    // 失败
	StatusCancelled ExportStatus = "cancelled" // 已取消
	StatusSkipped   ExportStatus = "skipped"   // 已跳过(断点续传)
)

// SectionKind 课程栏目类型
type SectionKind string

const (
	SectionPages       SectionKind = "pages"       // 课程页面
	SectionMessages    SectionKind = "messages"    // 课程消息
	SectionAssignments SectionKind = "assignments" // 作业
	SectionDiscussions SectionKind = "discussions" // 讨论区
	SectionGradebook   SectionKind = "gradebook"   // 成绩册
)

// AllSectionKinds 全部栏目,按导出顺序排列
var AllSectionKinds = []SectionKind{
	SectionPages,
	SectionMessages,
	SectionAssignments,
	SectionDiscussions,
	SectionGradebook,
}

// ExportStats 导出统计
type ExportStats struct {
	TotalClasses    int     `json:"total_classes"`    // 课程总数
	TotalSections   int     `json:"total_sections"`   // 导出的栏目总数
	PDFCount        int     `json:"pdf_count"`        // 生成PDF数
	AttachmentCount int     `json:"attachment_count"` // 下载附件数
	SkippedItems    int     `json:"skipped_items"`    // 跳过条目数(断点续传)
	FailedItems     int     `json:"failed_items"`     // 失败条目数
	RenderRetries   int     `json:"render_retries"`   // 渲染重试次数
	TabsCreated     int64   `json:"tabs_created"`     // 标签页创建总数
	TotalSize       int64   `json:"total_size"`       // 总大小(字节)
	Duration        float64 `json:"duration"`         // 总耗时(秒)
}

// Merge 合并另一份统计
func (s *ExportStats) Merge(other ExportStats) {
	s.TotalSections += other.TotalSections
	s.PDFCount += other.PDFCount
	s.AttachmentCount += other.AttachmentCount
	s.SkippedItems += other.SkippedItems
	s.FailedItems += other.FailedItems
	s.RenderRetries += other.RenderRetries
	s.TotalSize += other.TotalSize
}

// ExportConfig 导出配置
type ExportConfig struct {
	Tabs             int  `json:"tabs" mapstructure:"tabs"`                             // 浏览器标签页上限 (默认:4)
	Headless         bool `json:"headless" mapstructure:"headless"`                     // 无头模式 (默认:true)
	PageTimeout      int  `json:"page_timeout" mapstructure:"page_timeout"`             // 单页操作超时(秒) (默认:30)
	PageDepth        int  `json:"page_depth" mapstructure:"page_depth"`                 // 课程页面子页面追踪深度 (默认:3)
	MaxRenderRetries int  `json:"max_render_retries" mapstructure:"max_render_retries"` // 渲染失败重试上限 (0=不限)
	Resume           bool `json:"resume" mapstructure:"resume"`                         // 断点续传,跳过已导出文件
	Attachments      bool `json:"attachments" mapstructure:"attachments"`               // 下载页面附件 (默认:true)
	CleanOutput      bool `json:"clean_output" mapstructure:"clean_output"`             // 导出前清空输出目录 (默认:true)
}

// Validate 验证配置
func (c *ExportConfig) Validate() error {
	if c.Tabs < 1 || c.Tabs > 20 {
		return fmt.Errorf("标签页数必须在1-20之间")
	}
	if c.PageTimeout < 5 || c.PageTimeout > 300 {
		return fmt.Errorf("页面超时必须在5-300秒之间")
	}
	if c.PageDepth < 1 || c.PageDepth > 10 {
		return fmt.Errorf("页面深度必须在1-10之间")
	}
	if c.MaxRenderRetries < 0 || c.MaxRenderRetries > 100 {
		return fmt.Errorf("渲染重试上限必须在0-100之间")
	}
	if c.Resume && c.CleanOutput {
		return fmt.Errorf("断点续传与清空输出目录不能同时启用")
	}
	return nil
}

// ClassSection 课程班级,门户中导出的顶层单位
type ClassSection struct {
	ID   string `json:"id"`   // 课程ID(从URL解析)
	Name string `json:"name"` // 课程名称
	URL  string `json:"url"`  // 课程主页URL
}

// Validate 验证课程信息
func (cs *ClassSection) Validate() error {
	if cs.Name == "" {
		return fmt.Errorf("课程名称不能为空")
	}
	if err := ValidateURL(cs.URL); err != nil {
		return fmt.Errorf("课程URL无效: %w", err)
	}
	return nil
}

// ExportTask 导出任务
type ExportTask struct {
	// 基本信息
	ID          string     `json:"id"`                     // 任务唯一ID (UUID)
	PortalURL   string     `json:"portal_url"`             // 门户地址
	Domain      string     `json:"domain"`                 // 解析的域名
	CreatedAt   time.Time  `json:"created_at"`             // 创建时间
	StartedAt   *time.Time `json:"started_at,omitempty"`   // 开始时间
	CompletedAt *time.Time `json:"completed_at,omitempty"` // 完成时间

	// 配置参数
	Config ExportConfig `json:"config"` // 导出配置

	// 执行状态
	Status ExportStatus `json:"status"` // 任务状态

	// 统计信息
	Stats ExportStats `json:"stats"` // 任务统计

	// 错误信息
	ErrorMessage string `json:"error_message,omitempty"` // 错误消息
}

// NewExportTask 创建新任务
func NewExportTask(portalURL string, config ExportConfig) (*ExportTask, error) {
	if err := ValidateURL(portalURL); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	parsed, _ := url.Parse(portalURL)
	domain := parsed.Host

	return &ExportTask{
		ID:        generateID(),
		PortalURL: portalURL,
		Domain:    domain,
		CreatedAt: time.Now(),
		Config:    config,
		Status:    StatusPending,
		Stats:     ExportStats{},
	}, nil
}

// ToJSON 序列化为JSON
func (t *ExportTask) ToJSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// FromJSON 从JSON反序列化
func (t *ExportTask) FromJSON(data []byte) error {
	return json.Unmarshal(data, t)
}
