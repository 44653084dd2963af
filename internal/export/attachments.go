package export

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"crypto/sha256"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/RecoveryAshes/LmsArchive/internal/models"
	"github.com/RecoveryAshes/LmsArchive/internal/utils"
	"github.com/andybalholm/brotli"
	"github.com/go-rod/rod/lib/proto"
	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"
)

// Downloader 附件下载器(使用Colly)
// 复用浏览器会话的Cookie,使门户把下载请求视作已登录用户;
// 未登录的下载会被门户重定向到登录页,内容检测负责识别这种情况
type Downloader struct {
	base *colly.Collector
	tree *Tree

	// 全局附件哈希表: hash -> 相对路径(跨课程去重)
	hashes map[string]string
	mu     sync.Mutex
}

// NewDownloader 创建附件下载器
// cookies取自浏览器会话,注入Colly的Cookie jar
func NewDownloader(tree *Tree, cookies []*proto.NetworkCookie, timeout time.Duration) (*Downloader, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // 门户常见自签名/内网证书
			},
		},
		Timeout: timeout,
	}

	c := colly.NewCollector()
	c.SetClient(httpClient)
	c.SetRequestTimeout(timeout)

	// 按域名分组注入会话Cookie
	byDomain := make(map[string][]*http.Cookie)
	redactor := utils.NewRedactor()
	cookieFields := make(map[string]string)
	for _, ck := range cookies {
		domain := strings.TrimPrefix(ck.Domain, ".")
		if domain == "" {
			continue
		}
		byDomain[domain] = append(byDomain[domain], &http.Cookie{
			Name:  ck.Name,
			Value: ck.Value,
			Path:  ck.Path,
		})
		cookieFields["cookie."+ck.Name] = ck.Value
	}
	for domain, cks := range byDomain {
		if err := c.SetCookies("https://"+domain, cks); err != nil {
			return nil, fmt.Errorf("注入会话Cookie失败 [%s]: %w", domain, err)
		}
		utils.Debugf("已注入%d个会话Cookie到域名 %s", len(cks), domain)
	}
	if len(cookieFields) > 0 {
		utils.Debugf("会话Cookie: %s", redactor.RedactToString(cookieFields))
	}

	return &Downloader{
		base:   c,
		tree:   tree,
		hashes: make(map[string]string),
	}, nil
}

// Download 下载一个附件并保存到课程的附件目录
// 处理流程:
//  1. 抓取响应并按Content-Encoding解压
//  2. 内容检测: 识别被重定向到登录页的HTML响应
//  3. 大小校验
//  4. SHA-256去重(跨课程,重复附件不再落盘)
//  5. 生成文件路径并写入磁盘
func (d *Downloader) Download(fileURL, className, sourceURL string) (*models.Attachment, error) {
	var (
		body            []byte
		contentType     string
		contentEncoding string
		statusCode      int
		fetchErr        error
	)

	c := d.base.Clone()
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		contentType = r.Headers.Get("Content-Type")
		contentEncoding = r.Headers.Get("Content-Encoding")
		statusCode = r.StatusCode
	})
	c.OnError(func(r *colly.Response, err error) {
		statusCode = r.StatusCode
		fetchErr = err
	})

	if err := c.Visit(fileURL); err != nil {
		return nil, fmt.Errorf("请求附件失败: %w", err)
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fmt.Errorf("下载附件失败 (HTTP %d): %w", statusCode, fetchErr)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("附件响应为空 (HTTP %d)", statusCode)
	}

	if contentEncoding != "" {
		decompressed, err := decompressResponse(contentEncoding, body)
		if err != nil {
			utils.Warnf("解压附件响应失败 [%s] (编码=%s): %v", fileURL, contentEncoding, err)
		} else {
			body = decompressed
		}
	}

	// 内容检测: 门户对未授权下载返回登录页HTML而非附件本体
	if isHTMLDocument(contentType, body) {
		return nil, fmt.Errorf("附件请求返回HTML页面,疑似被重定向到登录页: %s", fileURL)
	}

	if int64(len(body)) > models.MaxAttachmentSize {
		return nil, fmt.Errorf("附件超过大小限制: %d > %d", len(body), models.MaxAttachmentSize)
	}

	hash := calculateHash(body)
	filename := attachmentFilename(fileURL)

	// 跨课程哈希去重
	d.mu.Lock()
	if existing, ok := d.hashes[hash]; ok {
		d.mu.Unlock()
		utils.Debugf("发现重复附件(哈希相同): %s (与 %s 相同)", fileURL, existing)
		return &models.Attachment{
			ID:           uuid.New().String(),
			URL:          fileURL,
			FilePath:     "",
			Hash:         hash,
			Size:         int64(len(body)),
			Extension:    strings.ToLower(filepath.Ext(filename)),
			ContentType:  contentType,
			ClassName:    className,
			SourceURL:    sourceURL,
			IsDuplicate:  true,
			DownloadedAt: time.Now(),
		}, nil
	}
	d.mu.Unlock()

	filePath, err := d.tree.AttachmentPath(className, filename)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filePath, body, 0644); err != nil {
		return nil, fmt.Errorf("写入附件文件失败: %w", err)
	}

	d.mu.Lock()
	d.hashes[hash] = d.tree.RelPath(filePath)
	d.mu.Unlock()

	utils.Infof("📥 附件下载成功: %s (%d bytes)", filepath.Base(filePath), len(body))

	return &models.Attachment{
		ID:           uuid.New().String(),
		URL:          fileURL,
		FilePath:     filePath,
		Hash:         hash,
		Size:         int64(len(body)),
		Extension:    strings.ToLower(filepath.Ext(filename)),
		ContentType:  contentType,
		ClassName:    className,
		SourceURL:    sourceURL,
		DownloadedAt: time.Now(),
	}, nil
}

// attachmentFilename 从附件URL解析文件名
func attachmentFilename(fileURL string) string {
	parsed, err := url.Parse(fileURL)
	if err != nil {
		return "attachment"
	}
	filename := path.Base(parsed.Path)
	if filename == "" || filename == "." || filename == "/" {
		return "attachment"
	}
	return filename
}

// isHTMLDocument 检测响应内容是否为HTML文档
// 用于识别门户把未授权下载重定向到登录页的情况
func isHTMLDocument(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}

	// 内容特征检测(检查前1KB)
	sample := body
	if len(body) > 1024 {
		sample = body[:1024]
	}
	head := strings.ToLower(strings.TrimSpace(string(sample)))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

// calculateHash 计算SHA-256哈希
func calculateHash(data []byte) string {
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}

// decompressResponse 根据Content-Encoding头部解压响应体
// 支持 gzip, deflate, br (Brotli) 三种压缩格式
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip":
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		reader := brotli.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "":
		return body, nil

	default:
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}
