package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// MaxAttachmentSize 最大附件大小 100MB
	MaxAttachmentSize = 100 * 1024 * 1024
)

// AttachmentExtensions 识别为课程附件的文件扩展名
var AttachmentExtensions = []string{
	".pdf", ".doc", ".docx", ".ppt", ".pptx", ".xls", ".xlsx",
	".odt", ".txt", ".rtf", ".csv", ".zip",
}

// PDFArtifact 导出生成的PDF文件
type PDFArtifact struct {
	// 标识信息
	ID       string `json:"id"`        // 文件唯一ID
	FilePath string `json:"file_path"` // 本地存储路径

	// 来源信息
	ClassName string      `json:"class_name"` // 所属课程
	Section   SectionKind `json:"section"`    // 所属栏目
	Title     string      `json:"title"`      // 条目标题
	SourceURL string      `json:"source_url"` // 渲染来源页面URL

	// 元数据
	Size int64 `json:"size"` // 文件大小(字节)

	// 时间戳
	ExportedAt time.Time `json:"exported_at"` // 导出时间
}

// ToJSON 序列化为JSON
func (p *PDFArtifact) ToJSON() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// Attachment 从课程页面下载的附件文件
type Attachment struct {
	// 标识信息
	ID       string `json:"id"`        // 文件唯一ID
	URL      string `json:"url"`       // 附件URL
	FilePath string `json:"file_path"` // 本地存储路径

	// 元数据
	Hash        string `json:"hash"`         // SHA-256哈希值
	Size        int64  `json:"size"`         // 文件大小(字节)
	Extension   string `json:"extension"`    // 文件扩展名
	ContentType string `json:"content_type"` // HTTP Content-Type

	// 来源信息
	ClassName string `json:"class_name"` // 所属课程
	SourceURL string `json:"source_url"` // 发现该附件的页面URL

	// 状态标记
	IsDuplicate bool `json:"is_duplicate"` // 是否与已下载附件重复(哈希相同)

	// 时间戳
	DownloadedAt time.Time `json:"downloaded_at"` // 下载时间
}

// IsValidExtension 检查扩展名是否在附件白名单内
func (a *Attachment) IsValidExtension() bool {
	ext := strings.ToLower(a.Extension)
	for _, e := range AttachmentExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ValidateSize 验证文件大小
func (a *Attachment) ValidateSize() error {
	if a.Size <= 0 {
		return fmt.Errorf("文件大小必须大于0")
	}
	if a.Size > MaxAttachmentSize {
		return fmt.Errorf("文件大小超过限制: %d > %d", a.Size, MaxAttachmentSize)
	}
	return nil
}

// ToJSON 序列化为JSON
func (a *Attachment) ToJSON() ([]byte, error) {
	return json.MarshalIndent(a, "", "  ")
}
