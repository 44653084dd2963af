package portal

import (
	"fmt"
	"strings"
	"time"

	"github.com/RecoveryAshes/LmsArchive/internal/models"
	"github.com/RecoveryAshes/LmsArchive/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// SectionURL 返回课程某栏目的入口URL
func (c *Client) SectionURL(classURL string, kind models.SectionKind) string {
	switch kind {
	case models.SectionPages:
		return c.sectionURL(classURL, pathPages)
	case models.SectionMessages:
		return c.sectionURL(classURL, pathMessages)
	case models.SectionAssignments:
		return c.sectionURL(classURL, pathAssignments)
	case models.SectionDiscussions:
		return c.sectionURL(classURL, pathDiscussions)
	case models.SectionGradebook:
		return c.sectionURL(classURL, pathGradebook)
	default:
		return classURL
	}
}

// ListPages 收集课程页面栏目的顶层页面链接
// 调用方负责先导航到页面栏目入口
func (c *Client) ListPages(page *rod.Page) ([]models.PageItem, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}
	return c.collectItems(page, selPageLink, 0)
}

// ListSubpages 收集当前页面内嵌的子页面链接
// 子页面深度由调用方递增,遍历策略(广度优先/去重/深度上限)在导出层实现
func (c *Client) ListSubpages(page *rod.Page, depth int) ([]models.PageItem, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}
	return c.collectItems(page, selSubpageLink, depth)
}

// ListAssignments 收集作业栏目的作业链接
func (c *Client) ListAssignments(page *rod.Page) ([]models.PageItem, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}
	return c.collectItems(page, selAssignmentLink, 0)
}

// ListDiscussions 收集讨论区的讨论帖链接
func (c *Client) ListDiscussions(page *rod.Page) ([]models.PageItem, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}
	return c.collectItems(page, selDiscussionLink, 0)
}

// collectItems 提取链接并转换为带绝对URL的待导出条目
func (c *Client) collectItems(page *rod.Page, selector string, depth int) ([]models.PageItem, error) {
	links, err := collectLinks(page, selector)
	if err != nil {
		return nil, err
	}

	items := make([]models.PageItem, 0, len(links))
	seen := make(map[string]bool)
	sourceURL := ""
	if info, err := page.Info(); err == nil {
		sourceURL = info.URL
	}
	for _, l := range links {
		absURL := c.absoluteURL(l.href)
		if absURL == "" || seen[absURL] {
			continue
		}
		seen[absURL] = true
		items = append(items, models.PageItem{
			URL:       absURL,
			Title:     strings.TrimSpace(l.text),
			Depth:     depth,
			SourceURL: sourceURL,
		})
	}
	return items, nil
}

// PrepareMessages 展开课程消息流的全部历史
// 反复点击"加载更多"直到按钮消失,整体受超时约束
func (c *Client) PrepareMessages(page *rod.Page) error {
	if err := c.requireAuth(); err != nil {
		return err
	}

	if has, _, _ := page.Has(selFeedContainer); !has {
		// 消息流为空时容器可能不渲染,直接按原样导出
		utils.Debugf("消息流容器未出现,跳过展开")
		return nil
	}

	deadline := time.Now().Add(c.timeout)
	clicks := 0
	for time.Now().Before(deadline) {
		has, el, err := page.Has(selFeedLoadMore)
		if err != nil || !has {
			utils.Debugf("消息流展开完成,共点击%d次", clicks)
			return nil
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return fmt.Errorf("点击加载更多失败: %w", err)
		}
		clicks++
		time.Sleep(500 * time.Millisecond)
	}

	return fmt.Errorf("%w: 消息流在%.0f秒内未展开完毕", ErrRenderTimeout, c.timeout.Seconds())
}

// ExpandDiscussion 完整展开一个讨论帖
// 先反复点击"显示更多评论",再滚动到底直到页面高度稳定
func (c *Client) ExpandDiscussion(page *rod.Page) error {
	if err := c.requireAuth(); err != nil {
		return err
	}

	deadline := time.Now().Add(c.timeout)

	for time.Now().Before(deadline) {
		has, el, err := page.Has(selShowMoreComments)
		if err != nil || !has {
			break
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return fmt.Errorf("点击显示更多评论失败: %w", err)
		}
		time.Sleep(500 * time.Millisecond)
	}

	if has, _, _ := page.Has(selShowMoreComments); has {
		return fmt.Errorf("%w: 评论在%.0f秒内未展开完毕", ErrRenderTimeout, c.timeout.Seconds())
	}

	// 懒加载内容: 滚动到底,高度连续两轮不变即认为稳定
	lastHeight := -1.0
	for time.Now().Before(deadline) {
		result, err := page.Evaluate(&rod.EvalOptions{
			JS: `() => {
				window.scrollTo(0, document.body.scrollHeight);
				return document.body.scrollHeight;
			}`,
		})
		if err != nil {
			return fmt.Errorf("滚动页面失败: %w", err)
		}
		height := result.Value.Num()
		if height == lastHeight {
			return nil
		}
		lastHeight = height
		time.Sleep(500 * time.Millisecond)
	}

	return fmt.Errorf("%w: 讨论帖在%.0f秒内未稳定", ErrRenderTimeout, c.timeout.Seconds())
}

// PrepareGradebook 展开成绩册中所有折叠的学期分组
func (c *Client) PrepareGradebook(page *rod.Page) error {
	if err := c.requireAuth(); err != nil {
		return err
	}

	if _, err := page.Timeout(c.timeout).Element(selGradebookTable); err != nil {
		return fmt.Errorf("未找到成绩册表格 [%s]: %w", selGradebookTable, err)
	}

	deadline := time.Now().Add(c.timeout)
	expanded := 0
	for time.Now().Before(deadline) {
		has, el, err := page.Has(selCollapsedPeriod)
		if err != nil || !has {
			utils.Debugf("成绩册展开完成,共展开%d个学期", expanded)
			return nil
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return fmt.Errorf("展开学期分组失败: %w", err)
		}
		expanded++
		time.Sleep(300 * time.Millisecond)
	}

	return fmt.Errorf("%w: 成绩册在%.0f秒内未展开完毕", ErrRenderTimeout, c.timeout.Seconds())
}
