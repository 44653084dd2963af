package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/LmsArchive/internal/utils"
	"github.com/kennygrant/sanitize"
)

// attachmentDirName 每门课程下附件的子目录名
const attachmentDirName = "files"

// Tree 输出目录树
// 布局: <root>/<课程名>/<栏目>/<序号>_<标题>.pdf
// 附件: <root>/<课程名>/files/<文件名>
// 课程名/标题在写入前统一做文件名清洗
type Tree struct {
	root string
}

// NewTree 创建输出目录树
func NewTree(root string) *Tree {
	return &Tree{root: root}
}

// Root 输出根目录
func (t *Tree) Root() string {
	return t.root
}

// Clean 清空并重建输出根目录
func (t *Tree) Clean() error {
	if err := os.RemoveAll(t.root); err != nil {
		return fmt.Errorf("清空输出目录失败: %w", err)
	}
	utils.Infof("🗑️  已清空输出目录: %s", t.root)
	return t.EnsureRoot()
}

// EnsureRoot 确保输出根目录存在
func (t *Tree) EnsureRoot() error {
	if err := os.MkdirAll(t.root, 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	return nil
}

// SectionDir 确保并返回课程某栏目的目录
func (t *Tree) SectionDir(className, section string) (string, error) {
	dir := filepath.Join(t.root, safeName(className), safeName(section))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("创建栏目目录失败: %w", err)
	}
	return dir, nil
}

// FilesDir 确保并返回课程的附件目录
func (t *Tree) FilesDir(className string) (string, error) {
	dir := filepath.Join(t.root, safeName(className), attachmentDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("创建附件目录失败: %w", err)
	}
	return dir, nil
}

// CandidatePDFPath 生成一个条目的确定性PDF路径,不做重名避让
// 文件名格式: <两位序号>_<清洗后的标题>.pdf
// 断点续传用这个路径与清单比对,两次运行必须得到同一路径
func (t *Tree) CandidatePDFPath(className, section string, index int, title string) (string, error) {
	dir, err := t.SectionDir(className, section)
	if err != nil {
		return "", err
	}

	name := safeName(title)
	if name == "" {
		name = "untitled"
	}
	filename := fmt.Sprintf("%02d_%s.pdf", index, name)

	return filepath.Join(dir, filename), nil
}

// PDFPath 生成一个条目的PDF输出路径,同名文件追加编号避让
func (t *Tree) PDFPath(className, section string, index int, title string) (string, error) {
	candidate, err := t.CandidatePDFPath(className, section, index, title)
	if err != nil {
		return "", err
	}
	return uniquePath(candidate), nil
}

// AttachmentPath 生成附件的输出路径
func (t *Tree) AttachmentPath(className, filename string) (string, error) {
	dir, err := t.FilesDir(className)
	if err != nil {
		return "", err
	}

	name := safeName(filename)
	if name == "" {
		name = "attachment"
	}

	return uniquePath(filepath.Join(dir, name)), nil
}

// RelPath 返回相对输出根目录的路径,作为清单条目的键
func (t *Tree) RelPath(absPath string) string {
	rel, err := filepath.Rel(t.root, absPath)
	if err != nil {
		return absPath
	}
	return filepath.ToSlash(rel)
}

// AbsPath 由清单键还原绝对路径
func (t *Tree) AbsPath(relPath string) string {
	return filepath.Join(t.root, filepath.FromSlash(relPath))
}

// safeName 将任意标题清洗为安全文件名,保留扩展名
func safeName(name string) string {
	name = strings.TrimSpace(name)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	cleaned := strings.Trim(sanitize.BaseName(base), "-_.")
	if cleaned == "" {
		return ""
	}
	if ext != "" {
		cleaned += "." + strings.ToLower(sanitize.BaseName(ext[1:]))
	}
	return cleaned
}

// uniquePath 文件已存在时追加编号,直到找到未占用的路径
func uniquePath(fullPath string) string {
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return fullPath
	}

	dir := filepath.Dir(fullPath)
	filename := filepath.Base(fullPath)
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	for i := 1; ; i++ {
		newPath := filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, i, ext))
		if _, err := os.Stat(newPath); os.IsNotExist(err) {
			return newPath
		}
	}
}
