package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RecoveryAshes/LmsArchive/internal/core"
	"github.com/RecoveryAshes/LmsArchive/internal/models"
	"github.com/RecoveryAshes/LmsArchive/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// 配置验证
	validateConfig bool

	// 导出参数
	portalURL        string
	classNames       []string
	classFile        string
	tabs             int
	pageTimeout      int
	pageDepth        int
	maxRenderRetries int
	headless         bool
	resume           bool
	attachments      bool
	outputDir        string
)

var rootCmd = &cobra.Command{
	Use:   "lmsarchive",
	Short: "LMS门户课程内容PDF归档工具",
	Long: `LmsArchive - LMS门户课程内容归档工具 (Go版本)

自动登录学校的LMS门户,把每门课程的内容逐项渲染成PDF离线归档,支持:
  • 无头浏览器登录和课程枚举
  • 页面/消息/作业/讨论区/成绩册五个栏目导出
  • 课程页面子页面追踪和附件下载
  • 并发标签页池和资源自适应
  • 断点续传(--resume)
  • 课程过滤(--classes / --class-file)

登录凭据通过环境变量传入:
  export ` + models.EnvUsername + `=student@example.com
  export ` + models.EnvPassword + `=secret

使用示例:
  # 导出全部课程
  lmsarchive -u https://lms.example.com

  # 只导出指定课程,保留上次进度
  lmsarchive -u https://lms.example.com --classes "Math 101" --resume

  # 验证配置文件
  lmsarchive --validate-config

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 加载配置
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		// 初始化日志系统
		logConfig := utils.LogConfig{
			Level:      config.Logging.Level,
			LogDir:     config.Logging.LogDir,
			MaxSize:    config.Logging.Rotation.MaxSize,
			MaxBackups: config.Logging.Rotation.MaxBackups,
			MaxAge:     config.Logging.Rotation.MaxAge,
			Compress:   config.Logging.Rotation.Compress,
		}

		// 命令行参数覆盖配置文件
		if logLevel != "" {
			logConfig.Level = logLevel
		}

		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		if verbose {
			utils.Info("详细模式已启用")
		}

		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// 加载配置并合并命令行参数
		appConfig, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		// 允许省略协议,默认补全https
		if portalURL != "" {
			if normalized, err := NormalizeURL(portalURL); err == nil {
				portalURL = normalized
			}
		}
		appConfig.MergeCLIFlags(
			portalURL,
			tabs,
			pageTimeout,
			pageDepth,
			maxRenderRetries,
			headless,
			resume,
			attachments,
			outputDir,
		)

		// 如果用户请求验证配置
		if validateConfig {
			utils.Info("🔍 验证配置...")
			if err := appConfig.Validate(); err != nil {
				return fmt.Errorf("配置验证失败: %w", err)
			}
			utils.Info("✅ 配置验证通过!")
			utils.Infof("门户地址: %s", appConfig.Portal.URL)
			utils.Infof("标签页上限: %d", appConfig.Export.Tabs)
			utils.Infof("页面超时: %d秒", appConfig.Export.PageTimeout)
			utils.Infof("子页面深度: %d", appConfig.Export.PageDepth)
			utils.Infof("输出目录: %s", appConfig.Output.BaseDir)
			return nil
		}

		// 如果没有提供门户地址,显示帮助信息
		if appConfig.Portal.URL == "" {
			return cmd.Help()
		}

		// 验证参数
		if err := ValidateFlags(appConfig, classNames); err != nil {
			return err
		}

		// 合并课程过滤条目(--classes和--class-file可同时使用)
		filter := append([]string{}, classNames...)
		if classFile != "" {
			fromFile, err := utils.ReadClassFilterFromFile(classFile)
			if err != nil {
				return fmt.Errorf("读取课程列表文件失败: %w", err)
			}
			filter = append(filter, fromFile...)
		}

		// 设置信号处理(Ctrl+C优雅退出)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		go func() {
			sig := <-sigChan
			utils.Warnf("\n收到中断信号: %v, 正在优雅关闭...", sig)
			cancel()
		}()

		// 创建并执行导出
		exporter, err := core.NewExporter(appConfig, filter)
		if err != nil {
			return fmt.Errorf("创建导出器失败: %w", err)
		}

		report, err := exporter.Run(ctx)
		if err != nil {
			return fmt.Errorf("导出失败: %w", err)
		}

		// 显示统计结果
		stats := report.Stats
		fmt.Println("\n==================================================")
		fmt.Println("📊 导出统计")
		fmt.Println("==================================================")
		fmt.Printf("✅ 课程数: %d\n", stats.TotalClasses)
		fmt.Printf("✅ 栏目数: %d\n", stats.TotalSections)
		fmt.Printf("✅ 生成PDF: %d\n", stats.PDFCount)
		fmt.Printf("✅ 下载附件: %d\n", stats.AttachmentCount)
		fmt.Printf("⏭️  跳过条目(续传): %d\n", stats.SkippedItems)
		fmt.Printf("❌ 失败条目: %d\n", stats.FailedItems)
		fmt.Printf("🔄 渲染重试: %d\n", stats.RenderRetries)
		fmt.Printf("🗂  标签页创建总数: %d\n", stats.TabsCreated)
		fmt.Printf("📦 总大小: %.2f MB\n", float64(stats.TotalSize)/(1024*1024))
		fmt.Printf("⏱️  总耗时: %.2f秒\n", stats.Duration)
		fmt.Printf("📁 输出目录: %s\n", report.OutputDir)
		fmt.Println("==================================================")

		// 部分失败也算运行失败,退出码非零
		if report.Status != models.StatusCompleted {
			return fmt.Errorf("导出未完整完成 (状态: %s, 失败条目: %d)", report.Status, stats.FailedItems)
		}

		utils.Info("✨ 导出任务完成!")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("LmsArchive %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
		fmt.Println("Go实现版本 - LMS门户课程内容归档工具")
	},
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&validateConfig, "validate-config", false, "验证配置文件正确性")

	// 导出参数
	rootCmd.Flags().StringVarP(&portalURL, "url", "u", "", "门户地址 (必需,也可通过配置文件指定)")
	rootCmd.Flags().StringSliceVar(&classNames, "classes", []string{}, "只导出指定课程(课程名或ID),可多次指定")
	rootCmd.Flags().StringVarP(&classFile, "class-file", "f", "", "包含课程过滤列表的文件路径")
	rootCmd.Flags().IntVar(&tabs, "tabs", 4, "浏览器标签页上限 (1-20)")
	rootCmd.Flags().IntVarP(&pageTimeout, "timeout", "t", 30, "单页操作超时(秒)")
	rootCmd.Flags().IntVarP(&pageDepth, "depth", "d", 3, "课程页面子页面追踪深度 (1-10)")
	rootCmd.Flags().IntVar(&maxRenderRetries, "max-render-retries", 0, "渲染失败重试上限 (0=不限)")
	rootCmd.Flags().BoolVar(&headless, "headless", true, "无头浏览器模式")
	rootCmd.Flags().BoolVar(&resume, "resume", false, "断点续传,跳过上次已导出的条目")
	rootCmd.Flags().BoolVar(&attachments, "attachments", true, "下载课程页面附件")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "output", "输出目录")

	// 添加子命令
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
