package export

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/RecoveryAshes/LmsArchive/internal/models"
)

// PageQueue 课程页面遍历队列
// 职责: 按广度优先顺序管理待导出的页面,支持并发安全的Push/Pop
// 子页面追踪受深度上限约束,同一URL只导出一次
type PageQueue struct {
	// 待处理页面队列
	pending chan models.PageItem

	// 已入队URL标记集合
	visited map[string]bool

	// 保护visited的读写锁
	mu sync.RWMutex

	// 门户主机名(站外链接不追踪)
	portalHost string

	// 子页面追踪深度上限
	maxDepth int

	// 队列是否已关闭
	closed bool
}

// NewPageQueue 创建页面队列
func NewPageQueue(portalHost string, maxDepth int) *PageQueue {
	return &PageQueue{
		pending:    make(chan models.PageItem, 1000),
		visited:    make(map[string]bool),
		portalHost: portalHost,
		maxDepth:   maxDepth,
	}
}

// Push 添加页面到待处理队列
// 检查URL有效性、深度上限、站外过滤、重复入队
func (q *PageQueue) Push(item models.PageItem) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("队列已关闭")
	}
	q.mu.RUnlock()

	parsedURL, err := url.Parse(item.URL)
	if err != nil {
		return fmt.Errorf("URL格式无效: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("不支持的协议: %s", parsedURL.Scheme)
	}

	if item.Depth > q.maxDepth {
		return fmt.Errorf("深度超过上限: %d > %d", item.Depth, q.maxDepth)
	}

	if parsedURL.Host != q.portalHost {
		return fmt.Errorf("站外链接已过滤: %s (门户主机: %s)", parsedURL.Host, q.portalHost)
	}

	q.mu.Lock()
	if q.visited[item.URL] {
		q.mu.Unlock()
		return fmt.Errorf("页面已入队: %s", item.URL)
	}
	q.visited[item.URL] = true
	q.mu.Unlock()

	q.pending <- item
	return nil
}

// Pop 取出下一个待处理页面
// 队列为空时立即返回false,不阻塞等待
func (q *PageQueue) Pop(ctx context.Context) (models.PageItem, bool) {
	if ctx.Err() != nil {
		return models.PageItem{}, false
	}
	select {
	case item, ok := <-q.pending:
		return item, ok
	default:
		return models.PageItem{}, false
	}
}

// IsVisited 检查URL是否已入队过
func (q *PageQueue) IsVisited(urlStr string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.visited[urlStr]
}

// PendingCount 当前待处理页面数
func (q *PageQueue) PendingCount() int {
	return len(q.pending)
}

// Close 关闭队列
func (q *PageQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		close(q.pending)
		q.closed = true
	}
}
