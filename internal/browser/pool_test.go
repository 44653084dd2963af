package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-rod/rod"
)

// fakeFactory 假标签页工厂,返回nil页面并统计创建次数
func fakeFactory() (TabFactory, *int64) {
	var count int64
	var mu sync.Mutex
	factory := func(ctx context.Context) (*rod.Page, error) {
		mu.Lock()
		count++
		mu.Unlock()
		return nil, nil
	}
	return factory, &count
}

// testInterval 测试用的短协调间隔
const testInterval = 10 * time.Millisecond

// waitFor 轮询等待条件成立
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("等待超时: %s", msg)
}

func TestPool_CapacityInvariant(t *testing.T) {
	factory, _ := fakeFactory()
	pool := NewPool(factory, 3, testInterval)
	defer pool.Close()

	ctx := context.Background()

	// 先占满容量,再随机交替关闭/获取,打开数始终不超过容量
	var tabs []*Tab
	for i := 0; i < 3; i++ {
		tab, err := pool.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		tabs = append(tabs, tab)
	}

	for round := 0; round < 5; round++ {
		if got := pool.OpenCount(); got > 3 {
			t.Fatalf("打开标签页数超过容量: got %d, 容量 3", got)
		}

		tabs[0].Close()
		tabs = tabs[1:]

		tab, err := pool.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		tabs = append(tabs, tab)

		if got := pool.OpenCount(); got > 3 {
			t.Fatalf("打开标签页数超过容量: got %d, 容量 3", got)
		}
	}
}

func TestPool_FIFOFairness(t *testing.T) {
	factory, _ := fakeFactory()
	pool := NewPool(factory, 1, testInterval)
	defer pool.Close()

	ctx := context.Background()

	// 占住唯一容量,随后按顺序提交多个请求
	first, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	const n = 5
	order := make(chan int, n)
	var done sync.WaitGroup

	for i := 0; i < n; i++ {
		i := i
		done.Add(1)
		go func() {
			defer done.Done()
			tab, err := pool.Acquire(ctx)
			if err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			order <- i
			tab.Close()
		}()
		// 等该请求真正入队后再提交下一个,保证Acquire调用顺序确定
		waitFor(t, time.Second, func() bool {
			return pool.WaitingCount() == i+1
		}, fmt.Sprintf("第%d个等待者入队", i+1))
	}

	first.Close()
	done.Wait()
	close(order)

	want := 0
	for got := range order {
		if got != want {
			t.Fatalf("FIFO顺序被打破: 期望第%d个请求先被服务, 实际是第%d个", want, got)
		}
		want++
	}
}

func TestPool_EventualAdmission(t *testing.T) {
	factory, _ := fakeFactory()
	const capacity = 2
	pool := NewPool(factory, capacity, testInterval)
	defer pool.Close()

	ctx := context.Background()

	// 容量C,提交C+1个请求: 前C个被放行,第C+1个排队
	var tabs []*Tab
	for i := 0; i < capacity; i++ {
		tab, err := pool.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		tabs = append(tabs, tab)
	}

	extra := make(chan *Tab, 1)
	go func() {
		tab, err := pool.Acquire(ctx)
		if err != nil {
			t.Errorf("Acquire() error = %v", err)
			return
		}
		extra <- tab
	}()

	waitFor(t, time.Second, func() bool { return pool.WaitingCount() == 1 }, "第C+1个请求排队")

	select {
	case <-extra:
		t.Fatal("容量耗尽时第C+1个请求不应被放行")
	case <-time.After(5 * testInterval):
	}

	// 关闭一个打开的标签页,下一次协调恰好放行一个
	tabs[0].Close()

	select {
	case tab := <-extra:
		tab.Close()
	case <-time.After(time.Second):
		t.Fatal("释放容量后排队请求未被放行")
	}

	if got := pool.WaitingCount(); got != 0 {
		t.Errorf("等待队列应为空: got %d", got)
	}
}

func TestPool_CounterMonotonicity(t *testing.T) {
	factory, createdByFactory := fakeFactory()
	pool := NewPool(factory, 2, testInterval)
	defer pool.Close()

	ctx := context.Background()

	// 创建-关闭若干轮,计数器等于实际产生过的句柄总数
	const rounds = 4
	for i := 0; i < rounds; i++ {
		tab, err := pool.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		tab.Close()
		waitFor(t, time.Second, func() bool { return pool.OpenCount() == 0 }, "标签页被清理")
	}

	if got := pool.Created(); got != rounds {
		t.Errorf("生命周期计数器 = %d, want %d", got, rounds)
	}
	if got := *createdByFactory; got != rounds {
		t.Errorf("工厂实际创建次数 = %d, want %d", got, rounds)
	}
}

func TestPool_AdjacentDeadCulling(t *testing.T) {
	factory, _ := fakeFactory()
	pool := NewPool(factory, 3, testInterval)
	defer pool.Close()

	ctx := context.Background()

	var tabs []*Tab
	for i := 0; i < 3; i++ {
		tab, err := pool.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		tabs = append(tabs, tab)
	}

	// 相邻的两个句柄在同一次协调间隔内关闭,两个都必须被清理
	tabs[0].Close()
	tabs[1].Close()

	waitFor(t, time.Second, func() bool { return pool.OpenCount() == 1 }, "两个相邻已关闭标签页都被清理")

	if tabs[2].Closed() {
		t.Error("第三个标签页不应被清理")
	}
}

func TestPool_Scenario(t *testing.T) {
	// 容量=2; 依次获取R1,R2,R3: R1/R2在一个协调间隔内被放行,R3排队;
	// 关闭R1后R3被放行,R2保持打开,累计创建数=3
	factory, _ := fakeFactory()
	pool := NewPool(factory, 2, testInterval)
	defer pool.Close()

	ctx := context.Background()

	type result struct {
		tab *Tab
		err error
	}

	acquire := func() chan result {
		ch := make(chan result, 1)
		go func() {
			tab, err := pool.Acquire(ctx)
			ch <- result{tab, err}
		}()
		return ch
	}

	r1ch := acquire()
	var r1 result
	select {
	case r1 = <-r1ch:
	case <-time.After(time.Second):
		t.Fatal("R1未在一个协调间隔内被放行")
	}
	if r1.err != nil {
		t.Fatalf("R1 error = %v", r1.err)
	}

	r2ch := acquire()
	var r2 result
	select {
	case r2 = <-r2ch:
	case <-time.After(time.Second):
		t.Fatal("R2未在一个协调间隔内被放行")
	}
	if r2.err != nil {
		t.Fatalf("R2 error = %v", r2.err)
	}

	r3ch := acquire()
	waitFor(t, time.Second, func() bool { return pool.WaitingCount() == 1 }, "R3排队")

	select {
	case <-r3ch:
		t.Fatal("容量耗尽时R3不应被放行")
	case <-time.After(5 * testInterval):
	}

	r1.tab.Close()

	var r3 result
	select {
	case r3 = <-r3ch:
	case <-time.After(time.Second):
		t.Fatal("关闭R1后R3未被放行")
	}
	if r3.err != nil {
		t.Fatalf("R3 error = %v", r3.err)
	}

	if r2.tab.Closed() {
		t.Error("R2应保持打开")
	}
	if got := pool.Created(); got != 3 {
		t.Errorf("累计创建数 = %d, want 3", got)
	}
}

func TestPool_AcquireContextCancel(t *testing.T) {
	factory, _ := fakeFactory()
	pool := NewPool(factory, 1, testInterval)
	defer pool.Close()

	first, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	// 排队的请求被取消后放弃等待,不影响后来者
	cancelCtx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := pool.Acquire(cancelCtx)
		errCh <- err
	}()

	waitFor(t, time.Second, func() bool { return pool.WaitingCount() == 1 }, "等待者入队")
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Acquire() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("取消后Acquire未返回")
	}

	// 被取消的等待者不阻塞后续请求
	laterCh := make(chan *Tab, 1)
	go func() {
		tab, err := pool.Acquire(context.Background())
		if err != nil {
			t.Errorf("Acquire() error = %v", err)
			return
		}
		laterCh <- tab
	}()

	first.Close()

	select {
	case tab := <-laterCh:
		tab.Close()
	case <-time.After(time.Second):
		t.Fatal("被取消的等待者阻塞了后续请求")
	}
}

func TestPool_FactoryError(t *testing.T) {
	wantErr := errors.New("标签页创建失败")
	failing := func(ctx context.Context) (*rod.Page, error) {
		return nil, wantErr
	}
	pool := NewPool(failing, 2, testInterval)
	defer pool.Close()

	// 创建失败的错误交付给队首等待者,而不是让它永远等待
	_, err := pool.Acquire(context.Background())
	if !errors.Is(err, wantErr) {
		t.Errorf("Acquire() error = %v, want %v", err, wantErr)
	}

	if got := pool.Created(); got != 0 {
		t.Errorf("创建失败不应增加计数器: got %d", got)
	}
}

func TestPool_Close(t *testing.T) {
	factory, _ := fakeFactory()
	pool := NewPool(factory, 1, testInterval)

	first, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	_ = first

	errCh := make(chan error, 1)
	go func() {
		_, err := pool.Acquire(context.Background())
		errCh <- err
	}()

	waitFor(t, time.Second, func() bool { return pool.WaitingCount() == 1 }, "等待者入队")

	if err := pool.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// 排队请求收到池已关闭错误
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrPoolClosed) {
			t.Errorf("排队请求 error = %v, want ErrPoolClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close后排队请求未返回")
	}

	// 关闭后Acquire立即失败
	if _, err := pool.Acquire(context.Background()); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("关闭后Acquire() error = %v, want ErrPoolClosed", err)
	}

	// 重复关闭无副作用
	if err := pool.Close(); err != nil {
		t.Errorf("重复Close() error = %v", err)
	}
}
