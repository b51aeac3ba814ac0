// Package main provides the PERead CLI tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ZacharyZcR/PERead/internal/cli"
	"github.com/ZacharyZcR/PERead/internal/pe"
	"github.com/fatih/color"
	"github.com/xyproto/env/v2"
)

var (
	showExports  = flag.Bool("exports", false, "显示导出表")
	showImports  = flag.Bool("imports", true, "显示导入表（默认开启）")
	showHeaders  = flag.Bool("headers", false, "显示文件头信息和校验和")
	showSections = flag.Bool("sections", false, "显示节区表（权限和熵值）")
	verbose      = flag.Bool("v", env.Bool("PEREAD_VERBOSE"), "详细模式：显示所有导出函数、数据目录和描述符字段")
	detectCaves  = flag.Bool("caves", false, "检测Code Caves（节区内的填充空隙）")
	minCaveSize  = flag.Uint("min-cave-size", 32, "Code Cave最小大小（字节）")
	analyzeDeps  = flag.Bool("deps", false, "分析依赖关系（递归检测所有DLL依赖）")
	maxDepth     = flag.Int("max-depth", env.Int("PEREAD_MAX_DEPTH", 3), "依赖分析最大深度")
	flatList     = flag.Bool("flat", false, "依赖分析使用扁平列表格式（默认: 树状）")
	workers      = flag.Int("j", env.Int("PEREAD_WORKERS", 0), "并行分析的文件数（默认: CPU核心数）")
	noColor      = flag.Bool("no-color", false, "禁用彩色输出")
)

// config is the flag state handed to run.
type config struct {
	exports  bool
	imports  bool
	headers  bool
	sections bool
	verbose  bool
	caves    uint32 // minimum cave size, 0 disables the scan
	deps     bool
	maxDepth int
	flat     bool
	workers  int
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if *noColor {
		color.NoColor = true
	}

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg := config{
		exports:  *showExports,
		imports:  *showImports,
		headers:  *showHeaders,
		sections: *showSections,
		verbose:  *verbose,
		caves:    caveSize(*detectCaves, *minCaveSize),
		deps:     *analyzeDeps,
		maxDepth: *maxDepth,
		flat:     *flatList,
		workers:  *workers,
	}

	if err := run(context.Background(), os.Stdout, cfg, flag.Args()); err != nil {
		red := color.New(color.FgRed, color.Bold)
		_, _ = red.Fprintf(os.Stderr, "\n错误: %v\n\n", err)
		os.Exit(1)
	}
}

// run analyzes every path and prints the reports in argument order. With
// several paths each report is preceded by the file name, and failures are
// reported per file without stopping the others.
func run(ctx context.Context, w io.Writer, cfg config, paths []string) error {
	opts := pe.Options{
		SkipExports: !cfg.exports,
		SkipImports: !cfg.imports,
		CaveMinSize: cfg.caves,
	}

	if len(paths) == 1 {
		info, err := pe.AnalyzeFile(paths[0], opts)
		if err != nil {
			return err
		}
		return report(w, cfg, info)
	}

	cyan := color.New(color.FgCyan, color.Bold)
	red := color.New(color.FgRed)

	failed := 0
	for _, res := range pe.AnalyzeFiles(ctx, paths, cfg.workers, opts) {
		_, _ = cyan.Fprintf(w, "==> %s <==\n", res.Path)
		if res.Err == nil {
			res.Err = report(w, cfg, res.Analysis)
		}
		if res.Err != nil {
			failed++
			_, _ = red.Fprintf(w, "错误: %v\n", res.Err)
		}
		fmt.Fprintln(w)
	}

	if failed > 0 {
		return fmt.Errorf("%d/%d 个文件分析失败", failed, len(paths))
	}
	return nil
}

func caveSize(enabled bool, minSize uint) uint32 {
	if !enabled {
		return 0
	}
	if minSize == 0 {
		return 1
	}
	return uint32(minSize)
}

func report(w io.Writer, cfg config, info *pe.Analysis) error {
	reporter := cli.NewReporter(w, info)
	reporter.SetVerbose(cfg.verbose)

	if cfg.headers {
		reporter.PrintHeaders()
	}
	if cfg.sections {
		reporter.PrintSections()
	}
	if cfg.imports {
		if cfg.headers || cfg.sections {
			_, _ = color.New(color.FgYellow, color.Bold).Fprintf(w, "\n【导入表】(共 %d 个DLL)\n", len(info.Image.Imports))
		}
		reporter.PrintImports()
	}
	if cfg.exports {
		reporter.PrintExports()
	}
	if cfg.caves > 0 {
		reporter.PrintCodeCaves(cfg.caves)
	}

	if cfg.deps {
		if info.FilePath == "" {
			return fmt.Errorf("依赖分析需要文件路径")
		}
		analysis, err := pe.AnalyzeDependencies(info.FilePath, cfg.maxDepth)
		if err != nil {
			return fmt.Errorf("依赖分析失败: %w", err)
		}
		cli.PrintDependencies(w, analysis, cfg.flat)
	}

	return nil
}

func printUsage() {
	cyan := color.New(color.FgCyan, color.Bold)
	_, _ = cyan.Println("\nPERead - PE文件只读解析工具")

	fmt.Println("\n用法:")
	fmt.Println("  peread [选项] <PE文件路径> [更多文件...]")
	fmt.Println("\n选项:")
	fmt.Println("  -imports        显示导入表（默认: true，-imports=false 关闭）")
	fmt.Println("  -exports        显示导出表")
	fmt.Println("  -headers        显示文件头信息、数据目录和校验和")
	fmt.Println("  -sections       显示节区表（权限、熵值）")
	fmt.Println("  -v              详细模式（环境变量 PEREAD_VERBOSE）")
	fmt.Println("  -caves          检测Code Caves（节区内的填充空隙）")
	fmt.Println("  -min-cave-size  Code Cave最小大小（字节，默认: 32）")
	fmt.Println("  -deps           分析依赖关系（递归检测所有DLL依赖）")
	fmt.Println("  -max-depth      依赖分析最大深度（默认: 3，环境变量 PEREAD_MAX_DEPTH）")
	fmt.Println("  -flat           依赖分析使用扁平列表格式（默认: 树状）")
	fmt.Println("  -j              多文件并行数（默认: CPU核心数，环境变量 PEREAD_WORKERS）")
	fmt.Println("  -no-color       禁用彩色输出（也可设置 NO_COLOR）")

	fmt.Println("\n示例:")
	fmt.Println("  peread C:\\Windows\\System32\\notepad.exe")
	fmt.Println("  peread -exports -imports=false C:\\Windows\\System32\\kernel32.dll")
	fmt.Println("  peread -headers -sections -v program.exe")
	fmt.Println("  peread -caves -min-cave-size 64 program.exe")
	fmt.Println("  peread -deps -max-depth 5 program.exe")
	fmt.Println("  peread -j 8 *.dll")
	fmt.Println()
}
