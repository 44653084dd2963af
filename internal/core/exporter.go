package core

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"github.com/RecoveryAshes/LmsArchive/internal/browser"
	"github.com/RecoveryAshes/LmsArchive/internal/export"
	"github.com/RecoveryAshes/LmsArchive/internal/models"
	"github.com/RecoveryAshes/LmsArchive/internal/portal"
	"github.com/RecoveryAshes/LmsArchive/internal/utils"
	"github.com/go-rod/rod"
)

// Exporter 导出协调器
// 执行流程: 登录 → 枚举课程 → 按课程并发、课程内按栏目顺序导出 →
// 写清单和报告。任一分支失败不中断其他分支,失败汇总进报告。
type Exporter struct {
	config *Config
	task   *models.ExportTask

	// 浏览器层
	session *browser.Session
	pool    *browser.Pool
	monitor *browser.ResourceMonitor

	// 门户层
	client *portal.Client

	// 输出层
	tree       *export.Tree
	downloader *export.Downloader

	// 清单: 本次运行写入的文件
	manifest *models.Manifest
	// 上次运行的清单(--resume时加载)
	prevManifest *models.Manifest

	// 课程过滤(为空表示导出全部)
	classFilter map[string]bool

	// 运行期收集的结果
	mu          sync.Mutex
	stats       models.ExportStats
	artifacts   []models.ArtifactInfo
	failedItems []models.FailedItemInfo
}

// NewExporter 创建导出协调器
// classFilter按课程名或课程ID匹配,为空导出全部课程
func NewExporter(config *Config, classFilter []string) (*Exporter, error) {
	task, err := models.NewExportTask(config.Portal.URL, config.Export)
	if err != nil {
		return nil, fmt.Errorf("创建导出任务失败: %w", err)
	}

	filter := make(map[string]bool)
	for _, name := range classFilter {
		if name != "" {
			filter[name] = true
		}
	}

	return &Exporter{
		config:      config,
		task:        task,
		classFilter: filter,
	}, nil
}

// Run 执行完整的导出流程
func (e *Exporter) Run(ctx context.Context) (*models.ExportReport, error) {
	startTime := time.Now()
	e.task.StartedAt = &startTime
	e.task.Status = models.StatusRunning

	utils.Infof("🚀 开始导出任务")
	utils.Infof("门户地址: %s", e.task.PortalURL)
	utils.Infof("任务ID: %s", e.task.ID)

	// 1. 资源监控: 启动前把标签页容量收敛到主机承受范围
	e.monitor = browser.NewResourceMonitor(browser.ResourceMonitorConfig{
		SafetyReserveMemory: int64(e.config.Resource.SafetyReserveMemory) * 1024 * 1024,
		SafetyThreshold:     int64(e.config.Resource.SafetyThreshold) * 1024 * 1024,
		CPULoadThreshold:    e.config.Resource.CPULoadThreshold,
		MaxTabsLimit:        e.config.Resource.MaxTabsLimit,
	})
	tabs := e.monitor.ClampTabs(e.config.Export.Tabs)
	e.monitor.StartMonitoring(time.Second)
	defer e.monitor.StopMonitoring()

	// 2. 凭据检查放在浏览器启动之前,缺失时不浪费一次启动
	creds, err := LoadCredentials()
	if err != nil {
		return e.finish(startTime, nil, err)
	}

	// 3. 浏览器会话和标签页池
	session, err := browser.NewSession(e.config.Export.Headless)
	if err != nil {
		return e.finish(startTime, nil, err)
	}
	e.session = session
	defer e.session.Close()

	e.pool = browser.NewPool(session.NewTab, tabs, browser.DefaultReconcileInterval)
	defer e.pool.Close()
	utils.Infof("标签页池容量: %d", tabs)

	// 4. 登录(失败直接中止整次运行)
	e.client = portal.NewClient(e.pool, e.config.Portal.URL, e.pageTimeout())
	if err := e.client.Login(ctx, creds); err != nil {
		return e.finish(startTime, nil, err)
	}

	// 5. 枚举并过滤课程
	classes, err := e.client.ListClasses(ctx)
	if err != nil {
		return e.finish(startTime, nil, err)
	}
	classes = e.filterClasses(classes)
	if len(classes) == 0 {
		return e.finish(startTime, nil, fmt.Errorf("没有匹配的课程可导出"))
	}
	e.stats.TotalClasses = len(classes)

	// 6. 输出目录和清单
	if err := e.setupOutput(); err != nil {
		return e.finish(startTime, nil, err)
	}

	// 7. 附件下载器复用浏览器会话cookie
	if e.config.Export.Attachments {
		cookies, err := session.Cookies()
		if err != nil {
			utils.Warnf("读取会话cookie失败,附件下载可能被重定向到登录页: %v", err)
		}
		downloader, err := export.NewDownloader(e.tree, cookies, e.pageTimeout())
		if err != nil {
			return e.finish(startTime, nil, err)
		}
		e.downloader = downloader
	}

	// 8. 按课程并发导出
	outcomes := e.exportClasses(ctx, classes)

	// 9. 持久化清单
	manifestPath := filepath.Join(e.tree.Root(), models.ManifestFilename(e.task.Domain))
	if err := e.manifest.SaveToFile(manifestPath); err != nil {
		utils.Warnf("保存导出清单失败: %v", err)
	}

	return e.finish(startTime, outcomes, ctx.Err())
}

// finish 汇总统计,生成并落盘报告
func (e *Exporter) finish(startTime time.Time, outcomes []models.ClassOutcome, runErr error) (*models.ExportReport, error) {
	endTime := time.Now()
	e.task.CompletedAt = &endTime

	e.mu.Lock()
	e.stats.Duration = endTime.Sub(startTime).Seconds()
	if e.pool != nil {
		e.stats.TabsCreated = e.pool.Created()
	}
	stats := e.stats
	artifacts := e.artifacts
	failedItems := e.failedItems
	e.mu.Unlock()

	report := &models.ExportReport{
		TaskID:      e.task.ID,
		PortalURL:   e.task.PortalURL,
		Domain:      e.task.Domain,
		StartTime:   startTime,
		EndTime:     endTime,
		Duration:    stats.Duration,
		Stats:       stats,
		Classes:     outcomes,
		Artifacts:   artifacts,
		FailedItems: failedItems,
		Config:      e.config.Export,
	}
	if e.tree != nil {
		report.OutputDir = e.tree.Root()
	}

	switch {
	case runErr != nil && errors.Is(runErr, context.Canceled):
		report.Status = models.StatusCancelled
	case runErr != nil && outcomes == nil:
		report.Status = models.StatusFailed
	default:
		report.Status = report.OverallStatus()
	}
	e.task.Status = report.Status
	e.task.Stats = stats
	if runErr != nil {
		e.task.ErrorMessage = runErr.Error()
	}

	// 报告写入输出目录,输出目录未创建时只保留在内存
	if e.tree != nil {
		reporter := utils.NewReporter(e.tree.Root())
		if err := reporter.GenerateReport(report); err != nil {
			utils.Warnf("生成导出报告失败: %v", err)
		}
	}

	if runErr != nil {
		return report, runErr
	}
	if report.Status == models.StatusFailed {
		return report, fmt.Errorf("所有课程导出均失败")
	}
	return report, nil
}

// setupOutput 准备输出目录树和清单
func (e *Exporter) setupOutput() error {
	root := filepath.Join(e.config.Output.BaseDir, e.task.Domain)
	e.tree = export.NewTree(root)

	if e.config.Export.CleanOutput {
		if err := e.tree.Clean(); err != nil {
			return err
		}
	} else if err := e.tree.EnsureRoot(); err != nil {
		return err
	}

	manifestPath := filepath.Join(root, models.ManifestFilename(e.task.Domain))
	if e.config.Export.Resume {
		prev, err := models.LoadManifestFromFile(manifestPath)
		if err != nil {
			utils.Warnf("加载上次导出清单失败,本次全量导出: %v", err)
		} else {
			e.prevManifest = prev
			utils.Infof("📋 断点续传: 上次清单包含%d个条目", prev.Len())
		}
	}

	e.manifest = models.NewManifest(e.task.ID, e.task.PortalURL, e.config.Export)
	utils.Infof("✅ 输出目录已就绪: %s", root)
	return nil
}

// filterClasses 应用课程过滤
func (e *Exporter) filterClasses(classes []models.ClassSection) []models.ClassSection {
	if len(e.classFilter) == 0 {
		return classes
	}

	filtered := make([]models.ClassSection, 0, len(classes))
	for _, cls := range classes {
		if e.classFilter[cls.Name] || e.classFilter[cls.ID] {
			filtered = append(filtered, cls)
		}
	}
	utils.Infof("课程过滤: %d/%d门课程匹配", len(filtered), len(classes))
	return filtered
}

// exportClasses 按课程并发导出,收集每门课程的结果
func (e *Exporter) exportClasses(ctx context.Context, classes []models.ClassSection) []models.ClassOutcome {
	bar := utils.NewProgressBar(len(classes), "导出课程")
	outcomes := make([]models.ClassOutcome, len(classes))

	var wg sync.WaitGroup
	for i, cls := range classes {
		wg.Add(1)
		go func(i int, cls models.ClassSection) {
			defer wg.Done()
			outcomes[i] = e.exportClass(ctx, cls)
			_ = bar.Add(1)
		}(i, cls)
	}
	wg.Wait()

	fmt.Println()
	return outcomes
}

// exportClass 导出单门课程: 五个栏目顺序执行,栏目失败不中断后续栏目
func (e *Exporter) exportClass(ctx context.Context, cls models.ClassSection) models.ClassOutcome {
	startTime := time.Now()
	outcome := models.ClassOutcome{
		ClassName: cls.Name,
		ClassURL:  cls.URL,
		Sections:  make([]models.SectionOutcome, 0, len(models.AllSectionKinds)),
	}

	utils.Infof("📖 开始导出课程: %s", cls.Name)

	for _, kind := range models.AllSectionKinds {
		if ctx.Err() != nil {
			break
		}
		section := e.exportSection(ctx, cls, kind)
		outcome.Sections = append(outcome.Sections, section)

		e.mu.Lock()
		e.stats.TotalSections++
		e.mu.Unlock()
	}

	outcome.Duration = time.Since(startTime).Seconds()
	outcome.Status = classStatus(outcome.Sections, ctx.Err())
	if ctx.Err() != nil {
		outcome.Error = ctx.Err().Error()
	}

	utils.Infof("✅ 课程导出结束: %s (状态: %s, 耗时: %.1f秒)", cls.Name, outcome.Status, outcome.Duration)
	return outcome
}

// classStatus 由各栏目结果推导课程状态
func classStatus(sections []models.SectionOutcome, ctxErr error) models.ExportStatus {
	if ctxErr != nil {
		return models.StatusCancelled
	}
	if len(sections) == 0 {
		return models.StatusFailed
	}

	failed := 0
	for _, s := range sections {
		if s.Status == models.StatusFailed || s.Status == models.StatusPartial {
			failed++
		}
	}
	switch {
	case failed == 0:
		return models.StatusCompleted
	case failed == len(sections):
		return models.StatusFailed
	default:
		return models.StatusPartial
	}
}

// exportSection 导出课程的一个栏目
func (e *Exporter) exportSection(ctx context.Context, cls models.ClassSection, kind models.SectionKind) models.SectionOutcome {
	startTime := time.Now()
	outcome := models.SectionOutcome{Kind: kind, Status: models.StatusRunning}

	var err error
	switch kind {
	case models.SectionPages:
		err = e.exportPages(ctx, cls, &outcome)
	case models.SectionMessages:
		err = e.exportSinglePage(ctx, cls, kind, "messages", e.client.PrepareMessages, &outcome)
	case models.SectionAssignments:
		err = e.exportItemList(ctx, cls, kind, e.client.ListAssignments, nil, &outcome)
	case models.SectionDiscussions:
		err = e.exportItemList(ctx, cls, kind, e.client.ListDiscussions, e.client.ExpandDiscussion, &outcome)
	case models.SectionGradebook:
		err = e.exportSinglePage(ctx, cls, kind, "gradebook", e.client.PrepareGradebook, &outcome)
	}

	outcome.Duration = time.Since(startTime).Seconds()
	if err != nil {
		outcome.Status = models.StatusFailed
		outcome.Error = err.Error()
		utils.Errorf("❌ 栏目导出失败 [%s/%s]: %v", cls.Name, kind, err)
	} else if outcome.Error != "" {
		outcome.Status = models.StatusPartial
	} else {
		outcome.Status = models.StatusCompleted
	}
	return outcome
}

// exportSinglePage 导出单页面栏目(消息流/成绩册)
// 整个栏目渲染成一份PDF,渲染前先由prepare把页面展开到位
func (e *Exporter) exportSinglePage(ctx context.Context, cls models.ClassSection, kind models.SectionKind, title string, prepare func(*rod.Page) error, outcome *models.SectionOutcome) error {
	sectionURL := e.client.SectionURL(cls.URL, kind)

	skipped, err := e.exportItem(ctx, cls, kind, 1, title, sectionURL, prepare, outcome)
	if err != nil {
		e.recordFailure(cls.Name, kind, sectionURL, err, outcome)
		return err
	}
	if skipped {
		outcome.SkippedCount++
	}
	return nil
}

// exportItemList 导出列表型栏目(作业/讨论区)
// 先抓列表,再逐条渲染;单条失败记入失败清单,不中断其余条目
func (e *Exporter) exportItemList(ctx context.Context, cls models.ClassSection, kind models.SectionKind, list func(*rod.Page) ([]models.PageItem, error), prepare func(*rod.Page) error, outcome *models.SectionOutcome) error {
	sectionURL := e.client.SectionURL(cls.URL, kind)

	var items []models.PageItem
	err := e.withTab(ctx, func(page *rod.Page) error {
		if err := e.client.Navigate(page, sectionURL); err != nil {
			return err
		}
		var listErr error
		items, listErr = list(page)
		return listErr
	})
	if err != nil {
		e.recordFailure(cls.Name, kind, sectionURL, err, outcome)
		return fmt.Errorf("抓取栏目列表失败: %w", err)
	}

	utils.Infof("栏目 [%s/%s]: 共%d个条目", cls.Name, kind, len(items))

	for i, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// 渲染前顺带保存页面HTML,供附件提取
		var pageHTML string
		harvest := func(page *rod.Page) error {
			if prepare != nil {
				if err := prepare(page); err != nil {
					return err
				}
			}
			if e.downloader != nil {
				html, err := page.HTML()
				if err != nil {
					utils.Debugf("读取页面HTML失败 [%s]: %v", item.URL, err)
				} else {
					pageHTML = html
				}
			}
			return nil
		}

		skipped, err := e.exportItem(ctx, cls, kind, i+1, item.Title, item.URL, harvest, outcome)
		if err != nil {
			e.recordFailure(cls.Name, kind, item.URL, err, outcome)
			continue
		}
		if skipped {
			outcome.SkippedCount++
		}
		if pageHTML != "" {
			e.downloadAttachments(cls, kind, item.URL, pageHTML, outcome)
		}
	}
	return nil
}

// exportPages 导出课程页面栏目
// 顶层页面来自栏目列表,子页面按广度优先追踪,受深度上限约束
func (e *Exporter) exportPages(ctx context.Context, cls models.ClassSection, outcome *models.SectionOutcome) error {
	sectionURL := e.client.SectionURL(cls.URL, models.SectionPages)

	parsed, err := url.Parse(e.config.Portal.URL)
	if err != nil {
		return fmt.Errorf("解析门户地址失败: %w", err)
	}
	queue := export.NewPageQueue(parsed.Host, e.config.Export.PageDepth)
	defer queue.Close()

	var tops []models.PageItem
	err = e.withTab(ctx, func(page *rod.Page) error {
		if err := e.client.Navigate(page, sectionURL); err != nil {
			return err
		}
		var listErr error
		tops, listErr = e.client.ListPages(page)
		return listErr
	})
	if err != nil {
		e.recordFailure(cls.Name, models.SectionPages, sectionURL, err, outcome)
		return fmt.Errorf("抓取页面列表失败: %w", err)
	}

	for _, item := range tops {
		if err := queue.Push(item); err != nil {
			utils.Debugf("页面未入队 [%s]: %v", item.URL, err)
		}
	}

	utils.Infof("栏目 [%s/pages]: 顶层页面%d个, 子页面深度上限%d", cls.Name, len(tops), e.config.Export.PageDepth)

	index := 0
	for {
		item, ok := queue.Pop(ctx)
		if !ok {
			break
		}
		index++

		// 渲染前顺带收集子页面链接和附件链接
		var subpages []models.PageItem
		var pageHTML string
		harvest := func(page *rod.Page) error {
			if item.Depth < e.config.Export.PageDepth {
				subs, err := e.client.ListSubpages(page, item.Depth+1)
				if err != nil {
					utils.Debugf("收集子页面链接失败 [%s]: %v", item.URL, err)
				} else {
					subpages = subs
				}
			}
			if e.downloader != nil {
				html, err := page.HTML()
				if err != nil {
					utils.Debugf("读取页面HTML失败 [%s]: %v", item.URL, err)
				} else {
					pageHTML = html
				}
			}
			return nil
		}

		skipped, err := e.exportItem(ctx, cls, models.SectionPages, index, item.Title, item.URL, harvest, outcome)
		if err != nil {
			e.recordFailure(cls.Name, models.SectionPages, item.URL, err, outcome)
			continue
		}
		if skipped {
			outcome.SkippedCount++
		}

		for _, sub := range subpages {
			if err := queue.Push(sub); err != nil {
				utils.Debugf("子页面未入队 [%s]: %v", sub.URL, err)
			}
		}

		if pageHTML != "" {
			e.downloadAttachments(cls, models.SectionPages, item.URL, pageHTML, outcome)
		}
	}

	return ctx.Err()
}

// downloadAttachments 下载一个页面里发现的全部附件
func (e *Exporter) downloadAttachments(cls models.ClassSection, kind models.SectionKind, pageURL, pageHTML string, outcome *models.SectionOutcome) {
	links, err := export.ExtractAttachmentLinks(pageHTML, pageURL)
	if err != nil {
		utils.Warnf("提取附件链接失败 [%s]: %v", pageURL, err)
		return
	}

	for _, link := range links {
		att, err := e.downloader.Download(link, cls.Name, pageURL)
		if err != nil {
			utils.Warnf("附件下载失败 [%s]: %v", link, err)
			e.mu.Lock()
			e.failedItems = append(e.failedItems, models.FailedItemInfo{
				ClassName: cls.Name,
				Section:   kind,
				ItemURL:   link,
				ErrorType: "attachment_failed",
				ErrorMsg:  err.Error(),
			})
			e.stats.FailedItems++
			e.mu.Unlock()
			continue
		}
		if att.IsDuplicate {
			continue
		}

		e.manifest.Record(e.tree.RelPath(att.FilePath), link, att.Size)
		outcome.AttachmentCount++
		e.mu.Lock()
		e.stats.AttachmentCount++
		e.stats.TotalSize += att.Size
		e.mu.Unlock()
	}
}

// exportItem 导出一个条目为PDF,包含断点续传检查与瞬态失败重试
// 返回skipped=true表示条目已在上次运行导出且文件完好
func (e *Exporter) exportItem(ctx context.Context, cls models.ClassSection, kind models.SectionKind, index int, title, itemURL string, prepare func(*rod.Page) error, outcome *models.SectionOutcome) (bool, error) {
	if title == "" {
		title = string(kind)
	}

	candidate, err := e.tree.CandidatePDFPath(cls.Name, string(kind), index, title)
	if err != nil {
		return false, err
	}
	relPath := e.tree.RelPath(candidate)

	// 断点续传: 上次清单中的条目且磁盘文件完好,直接跳过
	if e.config.Export.Resume && e.prevManifest != nil && e.prevManifest.Matches(relPath, candidate) {
		prev, _ := e.prevManifest.Lookup(relPath)
		e.manifest.Record(relPath, itemURL, prev.Size)
		e.mu.Lock()
		e.stats.SkippedItems++
		e.mu.Unlock()
		utils.Debugf("断点续传跳过: %s", relPath)
		return true, nil
	}

	size, retries, err := e.renderWithRetry(ctx, itemURL, prepare, candidate)
	e.mu.Lock()
	e.stats.RenderRetries += retries
	e.mu.Unlock()
	if err != nil {
		return false, err
	}

	e.manifest.Record(relPath, itemURL, size)
	outcome.PDFCount++
	e.mu.Lock()
	e.stats.PDFCount++
	e.stats.TotalSize += size
	e.artifacts = append(e.artifacts, models.ArtifactInfo{
		ClassName:  cls.Name,
		Section:    kind,
		Title:      title,
		FilePath:   candidate,
		Size:       size,
		ExportedAt: time.Now(),
	})
	e.mu.Unlock()

	return false, nil
}

// renderWithRetry 渲染条目,瞬态失败时丢弃标签页换新重试
// 渲染超时和浏览器崩溃视为瞬态;MaxRenderRetries=0表示不限次数
func (e *Exporter) renderWithRetry(ctx context.Context, itemURL string, prepare func(*rod.Page) error, pdfPath string) (int64, int, error) {
	retries := 0
	for {
		size, err := e.renderOnce(ctx, itemURL, prepare, pdfPath)
		if err == nil {
			return size, retries, nil
		}
		if ctx.Err() != nil {
			return 0, retries, ctx.Err()
		}
		if !isTransient(err) {
			return 0, retries, err
		}

		retries++
		if max := e.config.Export.MaxRenderRetries; max > 0 && retries >= max {
			return 0, retries, fmt.Errorf("渲染重试%d次后放弃: %w", retries, err)
		}
		utils.Warnf("渲染失败,换标签页重试(第%d次) [%s]: %v", retries, itemURL, err)
	}
}

// renderOnce 用一个新获取的标签页渲染条目
func (e *Exporter) renderOnce(ctx context.Context, itemURL string, prepare func(*rod.Page) error, pdfPath string) (int64, error) {
	var size int64
	err := e.withTab(ctx, func(page *rod.Page) error {
		if err := e.client.Navigate(page, itemURL); err != nil {
			return err
		}
		if prepare != nil {
			if err := prepare(page); err != nil {
				return err
			}
		}
		var renderErr error
		size, renderErr = export.RenderPDF(page, pdfPath)
		return renderErr
	})
	return size, err
}

// withTab 从池中获取标签页执行操作,用完即还
func (e *Exporter) withTab(ctx context.Context, fn func(page *rod.Page) error) error {
	tab, err := e.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("获取标签页失败: %w", err)
	}
	defer tab.Close()

	return fn(tab.Page().Context(ctx))
}

// recordFailure 记录失败条目
func (e *Exporter) recordFailure(className string, kind models.SectionKind, itemURL string, err error, outcome *models.SectionOutcome) {
	if outcome.Error == "" {
		outcome.Error = err.Error()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.failedItems = append(e.failedItems, models.FailedItemInfo{
		ClassName: className,
		Section:   kind,
		ItemURL:   itemURL,
		ErrorType: classifyError(err),
		ErrorMsg:  err.Error(),
	})
	e.stats.FailedItems++
}

// classifyError 失败分类,写入报告的error_type字段
func classifyError(err error) string {
	switch {
	case errors.Is(err, portal.ErrAuthFailed), errors.Is(err, portal.ErrNotAuthenticated):
		return "auth_error"
	case errors.Is(err, portal.ErrRenderTimeout):
		return "render_timeout"
	case errors.Is(err, browser.ErrBrowserCrashed):
		return "browser_crashed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "export_error"
	}
}

// isTransient 判断错误是否可通过换标签页重试解决
func isTransient(err error) bool {
	return errors.Is(err, portal.ErrRenderTimeout) || errors.Is(err, browser.ErrBrowserCrashed)
}

// pageTimeout 单页操作超时
func (e *Exporter) pageTimeout() time.Duration {
	return time.Duration(e.config.Export.PageTimeout) * time.Second
}

// Task 当前任务
func (e *Exporter) Task() *models.ExportTask {
	return e.task
}
