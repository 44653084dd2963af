package models

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Manifest 导出清单
// 记录一次运行写入的所有文件,供--resume跳过已完成条目。
// 多个课程分支会并发记录条目,因此内部加锁。
type Manifest struct {
	mu sync.RWMutex

	// 任务信息
	TaskID    string `json:"task_id"`    // 关联的任务ID
	PortalURL string `json:"portal_url"` // 门户地址

	// 条目: 输出目录内的相对路径 -> 条目信息
	Entries map[string]ManifestEntry `json:"entries"`

	// 时间戳
	CreatedAt time.Time `json:"created_at"` // 清单创建时间
	UpdatedAt time.Time `json:"updated_at"` // 最后更新时间

	// 配置快照
	Config ExportConfig `json:"config"` // 配置快照
}

// ManifestEntry 清单条目
type ManifestEntry struct {
	SourceURL  string    `json:"source_url"`  // 来源页面URL
	Size       int64     `json:"size"`        // 文件大小(字节)
	ExportedAt time.Time `json:"exported_at"` // 导出时间
}

// NewManifest 创建新清单
func NewManifest(taskID, portalURL string, config ExportConfig) *Manifest {
	now := time.Now()
	return &Manifest{
		TaskID:    taskID,
		PortalURL: portalURL,
		Entries:   make(map[string]ManifestEntry),
		CreatedAt: now,
		UpdatedAt: now,
		Config:    config,
	}
}

// ManifestFilename 生成清单文件名
func ManifestFilename(domain string) string {
	return fmt.Sprintf("manifest_%s.json", domain)
}

// Record 记录一个已写入的文件
func (m *Manifest) Record(relPath, sourceURL string, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Entries[relPath] = ManifestEntry{
		SourceURL:  sourceURL,
		Size:       size,
		ExportedAt: time.Now(),
	}
	m.UpdatedAt = time.Now()
}

// Lookup 查询指定相对路径的条目
func (m *Manifest) Lookup(relPath string) (ManifestEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.Entries[relPath]
	return entry, ok
}

// Matches 判断磁盘上的文件是否与清单条目一致
// 一致的条目在--resume模式下直接跳过
func (m *Manifest) Matches(relPath, absPath string) bool {
	entry, ok := m.Lookup(relPath)
	if !ok {
		return false
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return false
	}

	return info.Size() == entry.Size
}

// Len 条目数量
func (m *Manifest) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Entries)
}

// ToJSON 序列化为JSON
func (m *Manifest) ToJSON() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return json.MarshalIndent(m, "", "  ")
}

// SaveToFile 保存到文件
func (m *Manifest) SaveToFile(filepath string) error {
	data, err := m.ToJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath, data, 0644)
}

// LoadManifestFromFile 从文件加载
func LoadManifestFromFile(filepath string) (*Manifest, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Entries == nil {
		m.Entries = make(map[string]ManifestEntry)
	}

	return &m, nil
}
