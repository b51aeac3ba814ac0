// Package cli provides command-line interface utilities.
package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ZacharyZcR/PERead/internal/pe"
	"github.com/fatih/color"
)

// Placeholders printed instead of a function name.
const (
	ordinalPlaceholder    = "-"
	unresolvedPlaceholder = "?"
)

// Reporter formats and prints PE analysis results.
type Reporter struct {
	w       io.Writer
	info    *pe.Analysis
	verbose bool
}

// NewReporter creates a new reporter writing the given analysis to w.
func NewReporter(w io.Writer, info *pe.Analysis) *Reporter {
	return &Reporter{w: w, info: info}
}

// SetVerbose enables verbose mode (show all exports and descriptor fields).
func (r *Reporter) SetVerbose(verbose bool) {
	r.verbose = verbose
}

// PrintImports writes each import descriptor's module name followed by one
// line per thunk slot: the slot's file offset and the function name.
func (r *Reporter) PrintImports() {
	green := color.New(color.FgGreen)
	gray := color.New(color.FgHiBlack)

	for _, imp := range r.info.Image.Imports {
		_, _ = green.Fprintln(r.w, imp.NameString())
		if r.verbose {
			_, _ = gray.Fprintf(r.w, "\tOriginalFirstThunk=0x%08X FirstThunk=0x%08X TimeDateStamp=0x%08X\n",
				imp.OriginalFirstThunk, imp.FirstThunk, imp.TimeDateStamp)
		}
		for _, fn := range imp.Functions {
			fmt.Fprintf(r.w, "\t%08X - %s\n", fn.Offset, functionLabel(fn))
		}
	}
}

func functionLabel(fn pe.ImportedFunction) string {
	switch fn.Kind {
	case pe.ImportByOrdinal:
		return ordinalPlaceholder
	case pe.ImportUnresolved:
		return unresolvedPlaceholder
	default:
		return fn.NameString()
	}
}

// PrintExports writes the named exports with their function table values.
func (r *Reporter) PrintExports() {
	yellow := color.New(color.FgYellow, color.Bold)
	exports := r.info.Image.Exports
	_, _ = yellow.Fprintf(r.w, "\n【导出表】(共 %d 个函数)\n", len(exports))

	if dir := r.info.Image.ExportDirectory; dir != nil {
		fmt.Fprintf(r.w, "  序号基数: %d, 函数: %d, 名称: %d, 仅序号: %d\n",
			dir.OrdinalBase, dir.NumberOfFunctions, dir.NumberOfNames, dir.OrdinalOnly())
	}

	if len(exports) == 0 {
		fmt.Fprintln(r.w, "  未发现导出")
		return
	}

	maxDisplay := 20
	if r.verbose {
		maxDisplay = len(exports)
	}

	displayCount := len(exports)
	if displayCount > maxDisplay {
		displayCount = maxDisplay
	}

	for _, e := range exports[:displayCount] {
		fmt.Fprintf(r.w, "\t%08X - %s\n", e.Offset, e.NameString())
	}

	if len(exports) > maxDisplay {
		gray := color.New(color.FgHiBlack)
		_, _ = gray.Fprintf(r.w, "  ... (还有 %d 个函数)\n", len(exports)-maxDisplay)
	}
}

// PrintHeaders writes the basic file and header information.
func (r *Reporter) PrintHeaders() {
	cyan := color.New(color.FgCyan, color.Bold)
	_, _ = cyan.Fprintln(r.w, "\n╔════════════════════════════════════════╗")
	_, _ = cyan.Fprintln(r.w, "║           PERead 分析报告              ║")
	_, _ = cyan.Fprintln(r.w, "╚════════════════════════════════════════╝")

	yellow := color.New(color.FgYellow, color.Bold)
	_, _ = yellow.Fprintln(r.w, "\n【基本信息】")

	img := r.info.Image
	oh := &img.OptionalHeader
	if r.info.FilePath != "" {
		fmt.Fprintf(r.w, "  %-20s: %s\n", "文件路径", r.info.FilePath)
	}
	fmt.Fprintf(r.w, "  %-20s: %s\n", "文件大小", formatSize(r.info.FileSize))
	fmt.Fprintf(r.w, "  %-20s: %s\n", "格式", img.Kind())
	fmt.Fprintf(r.w, "  %-20s: %s\n", "架构", pe.MachineName(img.FileHeader.Machine))
	fmt.Fprintf(r.w, "  %-20s: %s\n", "子系统", pe.SubsystemName(oh.Subsystem))
	fmt.Fprintf(r.w, "  %-20s: 0x%X\n", "入口点", oh.AddressOfEntryPoint)
	fmt.Fprintf(r.w, "  %-20s: 0x%X\n", "镜像基址", oh.ImageBase)

	r.printChecksum()

	if r.verbose {
		_, _ = yellow.Fprintln(r.w, "\n【数据目录】")
		for i, d := range oh.DataDirectory {
			if d.VirtualAddress == 0 && d.Size == 0 {
				continue
			}
			fmt.Fprintf(r.w, "  %-20s: RVA 0x%08X, 大小 0x%X\n", pe.DirectoryEntry(i), d.VirtualAddress, d.Size)
		}

		_, _ = yellow.Fprintln(r.w, "\n【头部偏移】")
		fmt.Fprintf(r.w, "  %-20s: 0x%X\n", "COFF头", img.Offsets.COFFHeader)
		fmt.Fprintf(r.w, "  %-20s: 0x%X\n", "可选头", img.Offsets.StandardFields)
		fmt.Fprintf(r.w, "  %-20s: 0x%X\n", "Windows域", img.Offsets.WindowsFields)
		fmt.Fprintf(r.w, "  %-20s: 0x%X\n", "数据目录", img.Offsets.DataDirectories)
		fmt.Fprintf(r.w, "  %-20s: 0x%X\n", "节区表", img.Offsets.SectionTable)
	}
}

func (r *Reporter) printChecksum() {
	sum := r.info.Checksum
	if sum == nil {
		return
	}

	fmt.Fprintf(r.w, "  %-20s: ", "校验和")
	switch {
	case sum.Stored == 0:
		_, _ = color.New(color.FgHiBlack).Fprint(r.w, "未设置")
	case sum.Valid:
		_, _ = color.New(color.FgGreen).Fprintf(r.w, "✓ 有效 (0x%08X)", sum.Stored)
	default:
		_, _ = color.New(color.FgRed, color.Bold).Fprintf(r.w, "✗ 无效 (存储: 0x%08X, 计算: 0x%08X)",
			sum.Stored, sum.Computed)
	}
	fmt.Fprintln(r.w)
}

// PrintSections writes the section table with permissions and entropy.
func (r *Reporter) PrintSections() {
	sections := r.info.Image.Sections

	yellow := color.New(color.FgYellow, color.Bold)
	_, _ = yellow.Fprintf(r.w, "\n【节区信息】(共 %d 个)\n", len(sections))

	if len(sections) == 0 {
		fmt.Fprintln(r.w, "  未发现节区")
		return
	}

	fmt.Fprintln(r.w, strings.Repeat("-", 100))
	fmt.Fprintf(r.w, "  %-10s %-12s %-15s %-15s %-8s %-8s %-20s\n",
		"名称", "虚拟地址", "虚拟大小", "原始大小", "权限", "熵", "特征")
	fmt.Fprintln(r.w, strings.Repeat("-", 100))

	for i := range sections {
		section := &sections[i]
		perms := section.Permissions()

		// Highlight dangerous permissions (RWX)
		permColor := color.New(color.FgWhite)
		if perms == "RWX" {
			permColor = color.New(color.FgRed, color.Bold)
		} else if strings.Contains(perms, "X") {
			permColor = color.New(color.FgYellow)
		}

		fmt.Fprintf(r.w, "  %-10s 0x%08X   %-15s %-15s ",
			section.NameString(),
			section.VirtualAddress,
			formatSize(int64(section.VirtualSize)),
			formatSize(int64(section.SizeOfRawData)),
		)
		_, _ = permColor.Fprintf(r.w, "%-8s", perms)
		fmt.Fprintf(r.w, " %-8s 0x%08X\n", r.entropy(i), section.Characteristics)
	}
	fmt.Fprintln(r.w, strings.Repeat("-", 100))
}

func (r *Reporter) entropy(i int) string {
	if i >= len(r.info.Entropy) {
		return "-"
	}
	e := r.info.Entropy[i]
	s := fmt.Sprintf("%.2f", e)
	// Packed or encrypted data sits near the 8.0 ceiling.
	if e > 7.0 {
		return color.New(color.FgRed).Sprint(s)
	}
	return s
}

// PrintCodeCaves writes the padding runs found by the analysis.
func (r *Reporter) PrintCodeCaves(minSize uint32) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	fmt.Fprintln(r.w)
	_, _ = cyan.Fprintf(r.w, "========== Code Caves (最小 %d 字节) ==========\n", minSize)

	caves := r.info.Caves
	if len(caves) == 0 {
		_, _ = yellow.Fprintln(r.w, "未发现符合条件的 Code Caves")
		return
	}

	_, _ = green.Fprintf(r.w, "发现 %d 个 Code Caves:\n\n", len(caves))

	for i, cave := range caves {
		fillPattern := "0x00"
		if cave.FillByte == 0xCC {
			fillPattern = "0xCC (INT3)"
		}

		fmt.Fprintf(r.w, "%d. 节区: %s\n", i+1, cave.Section)
		fmt.Fprintf(r.w, "   文件偏移: 0x%08X\n", cave.Offset)
		fmt.Fprintf(r.w, "   RVA:      0x%08X\n", cave.RVA)
		fmt.Fprintf(r.w, "   大小:     %d 字节\n", cave.Size)
		fmt.Fprintf(r.w, "   填充:     %s\n", fillPattern)
		fmt.Fprintln(r.w)
	}
}

// PrintDependencies writes the dependency analysis as a tree followed by a
// summary, or as a flat list.
func PrintDependencies(w io.Writer, analysis *pe.DependencyAnalysis, flat bool) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	fmt.Fprintln(w)
	_, _ = cyan.Fprintf(w, "========== 依赖分析 ==========\n")

	if flat {
		PrintDependencyList(w, analysis)
		return
	}

	_, _ = green.Fprintf(w, "\n依赖树:\n")
	PrintDependencyTree(w, analysis.Root, "", false)

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(w, "总计: %d 个依赖\n", analysis.TotalCount)
	fmt.Fprintf(w, "最大深度: %d\n", analysis.MaxDepth)

	if len(analysis.MissingDeps) > 0 {
		_, _ = red.Fprintf(w, "\n⚠️  缺失 %d 个依赖:\n", len(analysis.MissingDeps))
		for _, dll := range analysis.MissingDeps {
			_, _ = red.Fprintf(w, "  - %s\n", dll)
		}
	}
}

// PrintDependencyTree prints the dependency tree in a visual format.
func PrintDependencyTree(w io.Writer, node *pe.DependencyNode, prefix string, isLast bool) {
	if node == nil {
		return
	}

	marker := "├── "
	if isLast {
		marker = "└── "
	}
	if node.Depth == 0 {
		marker = ""
	}

	fmt.Fprintf(w, "%s%s%s", prefix, marker, node.Name)
	switch {
	case !node.Found:
		_, _ = color.New(color.FgRed).Fprint(w, " ⚠️ (NOT FOUND)")
	case node.Path == pe.SystemPath:
		_, _ = color.New(color.FgHiBlack).Fprint(w, " (system)")
	}
	fmt.Fprintln(w)

	childPrefix := prefix
	if node.Depth > 0 {
		if isLast {
			childPrefix += "    "
		} else {
			childPrefix += "│   "
		}
	}

	for i, child := range node.Dependencies {
		PrintDependencyTree(w, child, childPrefix, i == len(node.Dependencies)-1)
	}
}

// PrintDependencyList prints a flat list of all dependencies, sorted by name.
func PrintDependencyList(w io.Writer, analysis *pe.DependencyAnalysis) {
	fmt.Fprintf(w, "\n依赖摘要:\n")
	fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(w, "总计依赖: %d 个\n", analysis.TotalCount)
	fmt.Fprintf(w, "最大深度: %d\n", analysis.MaxDepth)
	fmt.Fprintf(w, "循环依赖: %v\n", analysis.HasCycles)
	fmt.Fprintf(w, "缺失依赖: %d 个\n\n", len(analysis.MissingDeps))

	if len(analysis.MissingDeps) > 0 {
		_, _ = color.New(color.FgRed).Fprintf(w, "⚠️  缺失的 DLL:\n")
		for _, dll := range analysis.MissingDeps {
			fmt.Fprintf(w, "  - %s\n", dll)
		}
		fmt.Fprintf(w, "\n")
	}

	names := make([]string, 0, len(analysis.AllDeps))
	for dll := range analysis.AllDeps {
		names = append(names, dll)
	}
	sort.Strings(names)

	fmt.Fprintf(w, "所有依赖:\n")
	for _, dll := range names {
		path := analysis.AllDeps[dll]
		if path == pe.SystemPath {
			fmt.Fprintf(w, "  ✓ %s (系统DLL)\n", dll)
		} else {
			fmt.Fprintf(w, "  ✓ %s\n", dll)
			fmt.Fprintf(w, "    → %s\n", path)
		}
	}
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
