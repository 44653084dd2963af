// Package browser 管理无头Chromium会话和有界标签页池
//
// # 概述
//
// browser包是导出流水线的底座: Session负责启动/连接无头Chromium并创建
// 设置了固定视口的标签页,Pool以固定容量上限串行化标签页创建,按严格
// FIFO顺序服务并发的获取请求。
//
// # 核心组件
//
// ## Pool (标签页池)
//
// 有界标签页池,容量构造时固定。核心行为:
//   - Acquire排队等待,请求严格按调用顺序被服务,绝不插队
//   - 协调goroutine周期执行"清理-放行"两步: 先用快照过滤法移除
//     已关闭的标签页,再在容量允许时放行队首等待者
//   - 每实际创建一个标签页,生命周期计数器恰好加一
//   - Close停止协调器,使所有排队请求失败并关闭剩余标签页
//
// 使用示例:
//
//	pool := NewPool(session.NewTab, 4, 100*time.Millisecond)
//	defer pool.Close()
//
//	tab, err := pool.Acquire(ctx)
//	if err != nil { /* 处理错误 */ }
//	defer tab.Close()
//
//	tab.Page().Navigate(url)
//
// ## Session (浏览器会话)
//
// 封装rod的launcher/connect流程,提供标签页工厂NewTab(创建页面并
// 设置1280x1024视口)。浏览器崩溃时rod会panic,NewTab捕获并转换为
// ErrBrowserCrashed。
//
// ## ResourceMonitor (资源监控器)
//
// 启动时根据可用内存与CPU核数将配置的标签页数收敛到主机承受范围
// (ClampTabs),收敛结果作为池的固定容量;之后后台采样仅用于压力告警,
// 不再影响容量。
//
// # 并发安全
//
// Pool内部集合仅由协调goroutine变更成员关系,互斥锁保护读写;
// Tab.Close可在任意goroutine调用,只翻转关闭标志并唤醒协调器。
package browser
