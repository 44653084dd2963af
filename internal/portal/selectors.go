package portal

// 门户页面的CSS选择器,与供应商当前的HTML结构硬绑定
// 站点改版即失效,按既定范围不做可配置化
const (
	// 登录页
	selLoginForm   = "form#login-form"
	selLoginMail   = "input#edit-mail"
	selLoginPass   = "input#edit-pass"
	selLoginSubmit = "input#edit-submit"
	selLoginError  = "div.messages-error"

	// 错误页(导航落到错误页时整页重载一次)
	selErrorPage = "div.error-page-content"

	// 课程列表页
	selCourseLink = "div.my-courses .course-title a"

	// 课程页面栏目
	selPageLink    = "ul.page-list .page-title a"
	selSubpageLink = "ul.subpage-list a"

	// 课程消息流
	selFeedContainer = "div.feed-updates"
	selFeedLoadMore  = "a.load-more-link"

	// 作业栏目
	selAssignmentLink = "ul.assignment-list .item-title a"

	// 讨论区
	selDiscussionLink   = "ul.discussion-list .item-title a"
	selShowMoreComments = "a.show-more-comments"

	// 成绩册
	selGradebookTable  = "table.gradebook-course-grades"
	selCollapsedPeriod = "tr.period-row.collapsed a.expand-link"
)

// 各栏目相对课程主页的路径后缀
const (
	pathPages       = "pages"
	pathMessages    = "updates"
	pathAssignments = "assignments"
	pathDiscussions = "discussions"
	pathGradebook   = "grades"
)
