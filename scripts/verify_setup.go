package main

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

func main() {
	fmt.Println("==============================================")
	fmt.Println("  LmsArchive 环境验证")
	fmt.Println("==============================================")
	fmt.Println()

	allOK := true

	// 检查Go版本
	goVersion := runtime.Version()
	fmt.Printf("✅ Go版本: %s\n", goVersion)

	// 检查Go版本是否满足要求
	if !strings.HasPrefix(goVersion, "go1.21") &&
		!strings.HasPrefix(goVersion, "go1.22") &&
		!strings.HasPrefix(goVersion, "go1.23") {
		fmt.Println("⚠️  警告: 建议使用Go 1.21+版本")
	}

	// 检查操作系统
	fmt.Printf("✅ 操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	// 检查Chromium/Chrome (rod优先使用系统浏览器,找不到会自动下载)
	browserFound := false
	for _, name := range []string{"chromium", "chromium-browser", "google-chrome", "google-chrome-stable", "chrome"} {
		if path, err := exec.LookPath(name); err == nil {
			fmt.Printf("✅ 浏览器已安装: %s\n", path)
			browserFound = true
			break
		}
	}
	if !browserFound {
		fmt.Println("⚠️  未找到系统Chromium/Chrome - 首次运行时会自动下载浏览器")
	}

	// 检查登录凭据环境变量
	fmt.Println()
	fmt.Println("检查登录凭据环境变量...")
	if os.Getenv("LMSARCHIVE_USERNAME") != "" {
		fmt.Println("✅ LMSARCHIVE_USERNAME已设置")
	} else {
		fmt.Println("⚠️  LMSARCHIVE_USERNAME未设置 - 运行前请设置门户用户名")
	}
	if os.Getenv("LMSARCHIVE_PASSWORD") != "" {
		fmt.Println("✅ LMSARCHIVE_PASSWORD已设置")
	} else {
		fmt.Println("⚠️  LMSARCHIVE_PASSWORD未设置 - 运行前请设置门户密码")
	}

	// 检查项目依赖
	fmt.Println()
	fmt.Println("检查Go模块依赖...")
	if _, err := os.Stat("go.mod"); err == nil {
		fmt.Println("✅ go.mod文件存在")

		// 运行go mod tidy
		fmt.Println("正在整理依赖...")
		cmd := exec.Command("go", "mod", "tidy")
		if err := cmd.Run(); err != nil {
			fmt.Printf("❌ go mod tidy失败: %v\n", err)
			allOK = false
		} else {
			fmt.Println("✅ 依赖整理完成")
		}

		// 运行go mod download
		fmt.Println("正在下载依赖...")
		cmd = exec.Command("go", "mod", "download")
		if err := cmd.Run(); err != nil {
			fmt.Printf("❌ go mod download失败: %v\n", err)
			allOK = false
		} else {
			fmt.Println("✅ 依赖下载完成")
		}
	} else {
		fmt.Println("❌ go.mod文件不存在")
		allOK = false
	}

	// 检查项目结构
	fmt.Println()
	fmt.Println("检查项目结构...")
	requiredDirs := []string{
		"cmd/lmsarchive",
		"internal/browser",
		"internal/portal",
		"internal/export",
		"internal/core",
		"internal/utils",
		"internal/models",
		"configs",
		"scripts",
		"tests",
	}

	for _, dir := range requiredDirs {
		if _, err := os.Stat(dir); err == nil {
			fmt.Printf("✅ %s/\n", dir)
		} else {
			fmt.Printf("❌ %s/ 不存在\n", dir)
			allOK = false
		}
	}

	fmt.Println()
	fmt.Println("==============================================")
	if allOK {
		fmt.Println("✅ 环境验证通过!可以开始开发了。")
		fmt.Println()
		fmt.Println("下一步:")
		fmt.Println("  1. 运行 'make install' 安装依赖")
		fmt.Println("  2. 运行 'make build' 构建项目")
		fmt.Println("  3. 运行 './lmsarchive --help' 查看帮助")
		os.Exit(0)
	} else {
		fmt.Println("❌ 环境验证失败,请解决上述问题。")
		os.Exit(1)
	}
}
