package browser

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/rs/zerolog/log"
)

var (
	// ErrPoolClosed 标签页池已关闭
	ErrPoolClosed = errors.New("标签页池已关闭")
)

// DefaultReconcileInterval 默认协调间隔
const DefaultReconcileInterval = 100 * time.Millisecond

// TabFactory 标签页工厂函数
// 生产环境由Session.NewTab提供,测试中可替换为假工厂
type TabFactory func(ctx context.Context) (*rod.Page, error)

// Tab 池管理的标签页句柄
// 持有者可随时关闭,池在下一次协调时感知并回收容量
type Tab struct {
	page   *rod.Page
	pool   *Pool
	closed atomic.Bool
}

// Page 返回底层的rod页面
func (t *Tab) Page() *rod.Page {
	return t.page
}

// Close 关闭标签页,释放池容量
// 幂等,重复关闭无副作用
func (t *Tab) Close() {
	if !t.closed.CompareAndSwap(false, true) {
		return
	}
	if t.page != nil {
		if err := t.page.Close(); err != nil {
			log.Warn().Err(err).Msg("关闭标签页失败")
		}
	}
	if t.pool != nil {
		t.pool.wake()
	}
}

// Closed 查询标签页是否已关闭
func (t *Tab) Closed() bool {
	return t.closed.Load()
}

// acquireResult 等待者收到的结果
type acquireResult struct {
	tab *Tab
	err error
}

// waiter 一个待定的获取请求
// 除FIFO位置和调用方context外没有其他状态
type waiter struct {
	ctx context.Context
	ch  chan acquireResult
}

// Pool 有界标签页池
// 职责: 以固定容量上限串行创建浏览器标签页,按FIFO顺序服务等待者,
// 通过周期协调回收已关闭标签页占用的容量。
//
// 不变式(每次协调结束后成立):
//   - 打开标签页数 <= 容量
//   - 已关闭的句柄不会留在打开集合中
//
// 容量在构造时固定,运行期间不可调整。
type Pool struct {
	factory  TabFactory
	capacity int
	interval time.Duration

	mu      sync.Mutex
	open    []*Tab
	waiters []*waiter
	closed  bool

	// 生命周期内创建的标签页总数,单调递增
	created atomic.Int64

	// 非阻塞唤醒channel,Acquire与Tab.Close借此催促协调器,
	// 避免每次都等满一个完整间隔
	wakeCh chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPool 创建标签页池并启动协调goroutine
// capacity必须为正数;interval<=0时使用默认值
func NewPool(factory TabFactory, capacity int, interval time.Duration) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		factory:  factory,
		capacity: capacity,
		interval: interval,
		open:     make([]*Tab, 0, capacity),
		waiters:  make([]*waiter, 0),
		wakeCh:   make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go p.run()

	log.Debug().Msgf("标签页池已启动: 容量=%d, 协调间隔=%v", capacity, interval)
	return p
}

// Acquire 获取一个标签页
// 容量耗尽时排队等待,队列深度不设上限;请求严格按调用顺序被服务。
// 调用方context取消时放弃等待,不影响其余等待者的顺序。
// 标签页创建失败时错误返回给队首等待者,而不是让它永远等下去。
func (p *Pool) Acquire(ctx context.Context) (*Tab, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	w := &waiter{
		ctx: ctx,
		ch:  make(chan acquireResult, 1),
	}
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	p.wake()

	select {
	case res := <-w.ch:
		return res.tab, res.err
	case <-ctx.Done():
		// 协调器可能恰好在取消瞬间已发出标签页,回收它
		select {
		case res := <-w.ch:
			if res.tab != nil {
				res.tab.Close()
			}
		default:
		}
		return nil, ctx.Err()
	case <-p.ctx.Done():
		return nil, ErrPoolClosed
	}
}

// OpenCount 当前打开的标签页数
func (p *Pool) OpenCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.open)
}

// WaitingCount 当前排队的等待者数
func (p *Pool) WaitingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}

// Created 生命周期内创建的标签页总数
// 每实际创建一个标签页恰好加一;排队后才被服务的请求同样只计一次
func (p *Pool) Created() int64 {
	return p.created.Load()
}

// Capacity 配置的容量上限
func (p *Pool) Capacity() int {
	return p.capacity
}

// Close 关闭池: 停止协调goroutine,使所有排队请求失败,关闭剩余标签页
// 关闭后Acquire立即返回ErrPoolClosed
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	<-p.done

	p.mu.Lock()
	waiters := p.waiters
	p.waiters = nil
	open := p.open
	p.open = nil
	p.mu.Unlock()

	for _, w := range waiters {
		w.ch <- acquireResult{err: ErrPoolClosed}
	}
	for _, t := range open {
		t.Close()
	}

	log.Debug().Msg("标签页池已关闭")
	return nil
}

// wake 非阻塞催促协调器
func (p *Pool) wake() {
	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
}

// run 协调循环,池的生命周期内唯一执行协调的goroutine
func (p *Pool) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.reconcile()
		case <-p.wakeCh:
			p.reconcile()
		}
	}
}

// reconcile 一次协调: 先清理已关闭的标签页,再按FIFO放行等待者
func (p *Pool) reconcile() {
	p.cullDead()
	p.admit()
}

// cullDead 从打开集合中移除已关闭的标签页
// 先对快照过滤再整体替换,避免边遍历边按下标删除时
// 相邻两个句柄同时关闭会跳过其一
func (p *Pool) cullDead() {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.open[:0]
	culled := 0
	for _, t := range p.open {
		if t.Closed() {
			culled++
			continue
		}
		kept = append(kept, t)
	}
	p.open = kept

	if culled > 0 {
		log.Debug().Msgf("协调: 清理%d个已关闭标签页, 当前打开数=%d", culled, len(p.open))
	}
}

// admit 容量允许时放行队首等待者,每放行一个创建一个标签页
// 容量或队列耗尽即停止;已取消的等待者直接丢弃,不扰动其余顺序
func (p *Pool) admit() {
	for {
		p.mu.Lock()
		if len(p.open) >= p.capacity || len(p.waiters) == 0 {
			p.mu.Unlock()
			return
		}
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.mu.Unlock()

		if w.ctx != nil && w.ctx.Err() != nil {
			continue
		}

		page, err := p.factory(p.ctx)
		if err != nil {
			log.Error().Err(err).Msg("创建标签页失败")
			w.ch <- acquireResult{err: err}
			continue
		}

		tab := &Tab{page: page, pool: p}
		p.mu.Lock()
		p.open = append(p.open, tab)
		openCount := len(p.open)
		p.mu.Unlock()
		p.created.Add(1)

		log.Debug().Msgf("放行等待者: 当前打开数=%d, 容量=%d, 累计创建=%d",
			openCount, p.capacity, p.created.Load())

		w.ch <- acquireResult{tab: tab}
	}
}
