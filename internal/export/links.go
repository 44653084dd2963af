package export

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/RecoveryAshes/LmsArchive/internal/models"
	"golang.org/x/net/html"
)

// IsAttachmentURL 判断URL是否指向课程附件
// 依据路径扩展名白名单,查询参数不参与判断
func IsAttachmentURL(urlStr string) bool {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	ext := strings.ToLower(path.Ext(parsed.Path))
	for _, e := range models.AttachmentExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ExtractAttachmentLinks 从页面HTML中提取附件链接
// 相对链接用baseURL转为绝对URL,同一附件只返回一次
func ExtractAttachmentLinks(htmlContent, baseURL string) ([]string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("解析HTML失败: %w", err)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("解析baseURL失败: %w", err)
	}

	var links []string
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				linkURL, err := url.Parse(attr.Val)
				if err != nil {
					continue
				}
				absURL := base.ResolveReference(linkURL).String()
				if IsAttachmentURL(absURL) && !seen[absURL] {
					seen[absURL] = true
					links = append(links, absURL)
				}
				break
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)
	return links, nil
}
