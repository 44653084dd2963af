package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/RecoveryAshes/LmsArchive/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

var (
	// ErrBrowserCrashed 浏览器崩溃或连接断开
	ErrBrowserCrashed = errors.New("浏览器崩溃")
)

// 固定视口尺寸,所有标签页创建时统一设置
const (
	ViewportWidth  = 1280
	ViewportHeight = 1024
)

// Session 无头浏览器会话
// 职责: 启动/连接Chromium,为标签页池提供工厂函数,统一设置视口
type Session struct {
	browser  *rod.Browser
	headless bool
}

// NewSession 启动无头Chromium并建立连接
func NewSession(headless bool) (*Session, error) {
	l := launcher.New()

	if headless {
		l = l.Headless(true)
	} else {
		l = l.Headless(false)
	}

	// 门户常见于内网部署,跳过证书验证以兼容自签名证书
	l = l.Set("ignore-certificate-errors")
	utils.Debugf("浏览器启动参数: --ignore-certificate-errors (跳过TLS证书验证)")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}

	utils.Debugf("浏览器已启动: %s", controlURL)

	return &Session{
		browser:  b,
		headless: headless,
	}, nil
}

// NewTab 创建新标签页并设置固定视口
// 这是标签页池的生产工厂;浏览器连接已断开时rod会panic,
// 捕获后转换为ErrBrowserCrashed
func (s *Session) NewTab(ctx context.Context) (page *rod.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("创建标签页panic: %v", r)
			page = nil
			err = ErrBrowserCrashed
		}
	}()

	if ctx != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	page, err = s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("创建标签页失败(浏览器可能已崩溃): %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             ViewportWidth,
		Height:            ViewportHeight,
		DeviceScaleFactor: 1,
		Mobile:            false,
	}); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("设置视口失败: %w", err)
	}

	return page, nil
}

// Cookies 返回当前会话的全部cookie
// 登录成功后交给附件下载器复用会话
func (s *Session) Cookies() ([]*proto.NetworkCookie, error) {
	cookies, err := s.browser.GetCookies()
	if err != nil {
		return nil, fmt.Errorf("读取会话cookie失败: %w", err)
	}
	return cookies, nil
}

// Close 关闭浏览器
func (s *Session) Close() {
	if s.browser != nil {
		defer func() {
			if r := recover(); r != nil {
				utils.Warnf("关闭浏览器panic: %v", r)
			}
		}()
		s.browser.MustClose()
		utils.Debugf("浏览器已关闭")
	}
}
