package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/LmsArchive/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

// A4纸张尺寸(英寸)
const (
	paperWidthA4  = 8.27
	paperHeightA4 = 11.69
)

// RenderPDF 将页面当前内容渲染为A4 PDF并写入磁盘
// 打印背景图形,保证页面样式完整;返回写入的字节数
func RenderPDF(page *rod.Page, path string) (int64, error) {
	stream, err := page.PDF(&proto.PagePrintToPDF{
		PaperWidth:      gson.Num(paperWidthA4),
		PaperHeight:     gson.Num(paperHeightA4),
		PrintBackground: true,
	})
	if err != nil {
		return 0, fmt.Errorf("生成PDF失败: %w", err)
	}

	data, err := io.ReadAll(stream)
	if err != nil {
		return 0, fmt.Errorf("读取PDF流失败: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("创建目录失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return 0, fmt.Errorf("写入PDF文件失败: %w", err)
	}

	utils.Debugf("PDF已写入: %s (%d bytes)", filepath.Base(path), len(data))
	return int64(len(data)), nil
}
