package portal

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/RecoveryAshes/LmsArchive/internal/browser"
	"github.com/RecoveryAshes/LmsArchive/internal/models"
	"github.com/RecoveryAshes/LmsArchive/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Client 门户客户端
// 职责: 维护登录态,枚举课程,驱动各栏目页面的DOM准备工作
// 所有抓取操作调用前必须完成Login,否则返回ErrNotAuthenticated
type Client struct {
	pool      *browser.Pool
	portalURL string

	// 单页操作超时
	timeout time.Duration

	// 登录态标志
	authed atomic.Bool
}

// NewClient 创建门户客户端
func NewClient(pool *browser.Pool, portalURL string, timeout time.Duration) *Client {
	return &Client{
		pool:      pool,
		portalURL: strings.TrimRight(portalURL, "/"),
		timeout:   timeout,
	}
}

// Authenticated 查询是否已登录
func (c *Client) Authenticated() bool {
	return c.authed.Load()
}

// requireAuth 抓取操作的统一登录态检查
func (c *Client) requireAuth() error {
	if !c.authed.Load() {
		return ErrNotAuthenticated
	}
	return nil
}

// Login 执行用户名/密码表单登录
// 提交后出现错误提示条即判定为登录失败,中止整次运行
func (c *Client) Login(ctx context.Context, creds models.Credentials) error {
	tab, err := c.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("获取登录标签页失败: %w", err)
	}
	defer tab.Close()

	page := tab.Page().Context(ctx)
	loginURL := c.portalURL + "/login"

	utils.Infof("🔑 正在登录门户: %s (用户: %s)", loginURL, creds.Redacted())

	if err := c.Navigate(page, loginURL); err != nil {
		return fmt.Errorf("打开登录页失败: %w", err)
	}

	// 等待登录表单出现
	form, err := page.Timeout(c.timeout).Element(selLoginForm)
	if err != nil {
		return fmt.Errorf("未找到登录表单 [%s]: %w", selLoginForm, err)
	}
	if err := form.WaitVisible(); err != nil {
		return fmt.Errorf("登录表单不可见: %w", err)
	}

	mailInput, err := page.Timeout(c.timeout).Element(selLoginMail)
	if err != nil {
		return fmt.Errorf("未找到用户名输入框: %w", err)
	}
	if err := mailInput.Input(creds.Username); err != nil {
		return fmt.Errorf("填写用户名失败: %w", err)
	}

	passInput, err := page.Timeout(c.timeout).Element(selLoginPass)
	if err != nil {
		return fmt.Errorf("未找到密码输入框: %w", err)
	}
	if err := passInput.Input(creds.Password); err != nil {
		return fmt.Errorf("填写密码失败: %w", err)
	}

	submit, err := page.Timeout(c.timeout).Element(selLoginSubmit)
	if err != nil {
		return fmt.Errorf("未找到登录按钮: %w", err)
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("点击登录按钮失败: %w", err)
	}

	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("等待登录跳转失败: %w", err)
	}

	// 检查错误提示条
	if has, el, _ := page.Has(selLoginError); has {
		msg, _ := el.Text()
		utils.Errorf("登录被拒绝: %s", strings.TrimSpace(msg))
		return fmt.Errorf("%w: %s", ErrAuthFailed, strings.TrimSpace(msg))
	}

	c.authed.Store(true)
	utils.Infof("✅ 登录成功")
	return nil
}

// ListClasses 枚举当前账号的全部课程班级
// 课程班级是导出的顶层单位
func (c *Client) ListClasses(ctx context.Context) ([]models.ClassSection, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}

	tab, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取标签页失败: %w", err)
	}
	defer tab.Close()

	page := tab.Page().Context(ctx)
	coursesURL := c.portalURL + "/courses"

	if err := c.Navigate(page, coursesURL); err != nil {
		return nil, fmt.Errorf("打开课程列表失败: %w", err)
	}

	if _, err := page.Timeout(c.timeout).Element(selCourseLink); err != nil {
		return nil, fmt.Errorf("课程列表为空或结构变更 [%s]: %w", selCourseLink, err)
	}

	links, err := collectLinks(page, selCourseLink)
	if err != nil {
		return nil, fmt.Errorf("提取课程链接失败: %w", err)
	}

	classes := make([]models.ClassSection, 0, len(links))
	seen := make(map[string]bool)
	for _, l := range links {
		absURL := c.absoluteURL(l.href)
		if absURL == "" || seen[absURL] {
			continue
		}
		seen[absURL] = true
		classes = append(classes, models.ClassSection{
			ID:   classIDFromURL(absURL),
			Name: strings.TrimSpace(l.text),
			URL:  absURL,
		})
	}

	utils.Infof("📚 发现%d门课程", len(classes))
	return classes, nil
}

// Navigate 导航到URL并等待加载完成
// 落到错误页时整页重载一次,仍失败则放弃
func (c *Client) Navigate(page *rod.Page, pageURL string) error {
	if err := page.Navigate(pageURL); err != nil {
		return fmt.Errorf("导航失败 [%s]: %w", pageURL, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("等待页面加载失败 [%s]: %w", pageURL, err)
	}

	if has, _, _ := page.Has(selErrorPage); has {
		utils.Warnf("页面加载异常,重新加载一次: %s", pageURL)
		if err := page.Reload(); err != nil {
			return fmt.Errorf("重新加载失败 [%s]: %w", pageURL, err)
		}
		if err := page.WaitLoad(); err != nil {
			return fmt.Errorf("等待重新加载失败 [%s]: %w", pageURL, err)
		}
	}

	return nil
}

// sectionURL 拼接课程栏目URL
func (c *Client) sectionURL(classURL, suffix string) string {
	return strings.TrimRight(classURL, "/") + "/" + suffix
}

// absoluteURL 将门户内的相对链接转换为绝对URL
func (c *Client) absoluteURL(href string) string {
	if href == "" {
		return ""
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if parsed.IsAbs() {
		return parsed.String()
	}
	base, err := url.Parse(c.portalURL)
	if err != nil {
		return ""
	}
	return base.ResolveReference(parsed).String()
}

// classIDFromURL 从课程URL解析课程ID(路径最后一段)
func classIDFromURL(classURL string) string {
	parsed, err := url.Parse(classURL)
	if err != nil {
		return ""
	}
	return path.Base(parsed.Path)
}

// pageLink 提取到的链接(href+文本)
type pageLink struct {
	href string
	text string
}

// collectLinks 在页面上下文中收集匹配选择器的全部链接
func collectLinks(page *rod.Page, selector string) ([]pageLink, error) {
	result, err := page.Evaluate(&rod.EvalOptions{
		JS: fmt.Sprintf(`() => {
			var els = document.querySelectorAll(%q);
			var out = [];
			for (var i = 0; i < els.length; i++) {
				var href = els[i].getAttribute('href') || '';
				if (href === '' || href.indexOf('#') === 0) {
					continue;
				}
				out.push({href: href, text: els[i].textContent || ''});
			}
			return out;
		}`, selector),
	})
	if err != nil {
		return nil, fmt.Errorf("执行JavaScript提取链接失败: %w", err)
	}

	links := []pageLink{}
	if result.Value.Arr() != nil {
		for _, item := range result.Value.Arr() {
			links = append(links, pageLink{
				href: item.Get("href").Str(),
				text: item.Get("text").Str(),
			})
		}
	}
	return links, nil
}
