package models

// PageItem 表示页面遍历队列中的一个课程页面
// 用途:
//   - 在channel中传递页面URL、标题和深度信息
//   - 课程页面栏目按广度优先追踪嵌套子页面
type PageItem struct {
	// URL 页面的完整URL
	URL string

	// Title 页面标题(来自链接文本,可能为空)
	Title string

	// Depth 页面的深度层级
	//   - 0: 栏目列表中直接列出的页面
	//   - 1: 从深度0页面发现的子页面
	//   - 以此类推...
	Depth int

	// SourceURL 发现此页面的父页面(可选,用于调试)
	SourceURL string
}
