package portal

import "errors"

// 错误类型定义
var (
	// ErrAuthFailed 登录失败,中止整次运行
	ErrAuthFailed = errors.New("门户登录失败")

	// ErrNotAuthenticated 未登录就调用抓取操作
	ErrNotAuthenticated = errors.New("尚未登录门户")

	// ErrRenderTimeout 页面渲染未在超时前稳定(瞬态,换标签页重试)
	ErrRenderTimeout = errors.New("页面渲染超时")
)
