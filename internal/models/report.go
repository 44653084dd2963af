package models

import (
	"encoding/json"
	"time"
)

// ExportReport 导出报告
// 报告中的Status用来区分完整运行与被截断的运行,
// 任何一个分支失败都会使整体状态降级为partial或failed
type ExportReport struct {
	// 任务信息
	TaskID    string `json:"task_id"`
	PortalURL string `json:"portal_url"`
	Domain    string `json:"domain"`

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	// 整体状态
	Status ExportStatus `json:"status"`

	// 统计信息
	Stats ExportStats `json:"stats"`

	// 每门课程的导出结果(成功与失败都记录)
	Classes []ClassOutcome `json:"classes"`

	// 文件列表
	Artifacts   []ArtifactInfo   `json:"artifacts"`    // 成功导出的文件
	FailedItems []FailedItemInfo `json:"failed_items"` // 失败条目

	// 输出路径
	OutputDir string `json:"output_dir"` // 输出目录

	// 配置快照
	Config ExportConfig `json:"config"`
}

// ClassOutcome 单门课程的导出结果
type ClassOutcome struct {
	ClassName string           `json:"class_name"`
	ClassURL  string           `json:"class_url"`
	Status    ExportStatus     `json:"status"`
	Sections  []SectionOutcome `json:"sections"`
	Duration  float64          `json:"duration"` // 秒
	Error     string           `json:"error,omitempty"`
}

// SectionOutcome 单个栏目的导出结果
type SectionOutcome struct {
	Kind            SectionKind  `json:"kind"`
	Status          ExportStatus `json:"status"`
	PDFCount        int          `json:"pdf_count"`
	AttachmentCount int          `json:"attachment_count"`
	SkippedCount    int          `json:"skipped_count"`
	Duration        float64      `json:"duration"` // 秒
	Error           string       `json:"error,omitempty"`
}

// ArtifactInfo 导出文件信息
type ArtifactInfo struct {
	ClassName  string      `json:"class_name"`
	Section    SectionKind `json:"section"`
	Title      string      `json:"title"`
	FilePath   string      `json:"file_path"`
	Size       int64       `json:"size"`
	ExportedAt time.Time   `json:"exported_at"`
}

// FailedItemInfo 失败条目信息
type FailedItemInfo struct {
	ClassName string      `json:"class_name"`
	Section   SectionKind `json:"section"`
	ItemURL   string      `json:"item_url"`
	ErrorType string      `json:"error_type"` // auth_error, render_timeout, selector_missing等
	ErrorMsg  string      `json:"error_msg"`
	Retries   int         `json:"retries"`
}

// OverallStatus 根据各课程结果推导整体状态
func (r *ExportReport) OverallStatus() ExportStatus {
	if len(r.Classes) == 0 {
		return StatusFailed
	}

	failed := 0
	for _, c := range r.Classes {
		if c.Status == StatusFailed || c.Status == StatusPartial {
			failed++
		}
	}

	switch {
	case failed == 0:
		return StatusCompleted
	case failed == len(r.Classes):
		return StatusFailed
	default:
		return StatusPartial
	}
}

// ToJSON 序列化为JSON
func (r *ExportReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FromJSON 从JSON反序列化
func (r *ExportReport) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}
