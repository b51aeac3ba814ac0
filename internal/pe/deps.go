package pe

import (
	"os"
	"path/filepath"
	"strings"
)

// SystemPath marks a dependency that is a well-known system DLL and was not
// searched for.
const SystemPath = "<system>"

// DependencyNode represents a node in the dependency tree.
type DependencyNode struct {
	Name         string            // DLL name
	Path         string            // Full path (if found)
	Found        bool              // Whether the DLL was found
	Dependencies []*DependencyNode // Child dependencies
	Depth        int               // Depth in dependency tree
}

// DependencyAnalysis contains the complete dependency analysis result.
type DependencyAnalysis struct {
	Root        *DependencyNode   // Root PE file
	AllDeps     map[string]string // All dependencies: name -> path
	MissingDeps []string          // List of missing dependencies
	TotalCount  int               // Total number of unique dependencies
	MaxDepth    int               // Maximum dependency depth
	HasCycles   bool              // Whether circular dependencies exist
}

// systemDLLs is a list of well-known Windows system DLLs that we skip recursion for.
var systemDLLs = map[string]bool{
	"kernel32.dll": true,
	"ntdll.dll":    true,
	"user32.dll":   true,
	"gdi32.dll":    true,
	"advapi32.dll": true,
	"ws2_32.dll":   true,
	"msvcrt.dll":   true,
	"shell32.dll":  true,
	"ole32.dll":    true,
	"comctl32.dll": true,
	"comdlg32.dll": true,
	"oleaut32.dll": true,
	"shlwapi.dll":  true,
	"wininet.dll":  true,
	"rpcrt4.dll":   true,
	"crypt32.dll":  true,
	"version.dll":  true,
	"winspool.drv": true,
	"secur32.dll":  true,
	"netapi32.dll": true,
	"userenv.dll":  true,
	"psapi.dll":    true,
	"iphlpapi.dll": true,
	"bcrypt.dll":   true,
	"setupapi.dll": true,
	"cfgmgr32.dll": true,
	"wintrust.dll": true,
	"imagehlp.dll": true,
	"dbghelp.dll":  true,
	"imm32.dll":    true,
	"msimg32.dll":  true,
	"powrprof.dll": true,
	"uxtheme.dll":  true,
	"dwmapi.dll":   true,
}

// AnalyzeDependencies builds the import dependency tree of a PE file down to
// maxDepth levels.
func AnalyzeDependencies(filePath string, maxDepth int) (*DependencyAnalysis, error) {
	analysis := &DependencyAnalysis{
		AllDeps:     make(map[string]string),
		MissingDeps: make([]string, 0),
	}

	visited := make(map[string]bool)
	analysis.Root = buildDependencyTree(filePath, 0, maxDepth, visited, analysis)
	analysis.TotalCount = len(analysis.AllDeps)

	return analysis, nil
}

// buildDependencyTree recursively builds the dependency tree. Files that
// cannot be parsed become leaves.
func buildDependencyTree(filePath string, depth, maxDepth int, visited map[string]bool, analysis *DependencyAnalysis) *DependencyNode {
	fileName := filepath.Base(filePath)
	normalizedName := strings.ToLower(fileName)

	node := &DependencyNode{
		Name:  fileName,
		Path:  filePath,
		Found: true,
		Depth: depth,
	}

	// Cycle detection.
	if visited[normalizedName] {
		analysis.HasCycles = true
		return node
	}
	visited[normalizedName] = true
	defer func() { visited[normalizedName] = false }()

	if depth > analysis.MaxDepth {
		analysis.MaxDepth = depth
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		node.Found = false
		return node
	}

	if depth >= maxDepth {
		return node
	}

	dlls, err := importedDLLs(filePath)
	if err != nil {
		return node
	}

	baseDir := filepath.Dir(filePath)
	for _, dllName := range dlls {
		// System DLLs are recorded but not followed.
		if isSystemDLL(dllName) {
			analysis.AllDeps[dllName] = SystemPath
			continue
		}

		dllPath := findDLL(dllName, baseDir)
		if dllPath == "" {
			if !contains(analysis.MissingDeps, dllName) {
				analysis.MissingDeps = append(analysis.MissingDeps, dllName)
			}
			node.Dependencies = append(node.Dependencies, &DependencyNode{
				Name:  dllName,
				Found: false,
				Depth: depth + 1,
			})
			continue
		}

		analysis.AllDeps[dllName] = dllPath
		child := buildDependencyTree(dllPath, depth+1, maxDepth, visited, analysis)
		node.Dependencies = append(node.Dependencies, child)
	}

	return node
}

// importedDLLs returns the lower-cased module names imported by the file, in
// descriptor order without duplicates.
func importedDLLs(filePath string) ([]string, error) {
	img, err := ParseFile(filePath, Options{SkipExports: true})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var dlls []string
	for _, imp := range img.Imports {
		name := strings.ToLower(imp.NameString())
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		dlls = append(dlls, name)
	}

	return dlls, nil
}

// findDLL attempts to locate a DLL file using standard Windows search paths.
func findDLL(dllName, baseDir string) string {
	if filepath.Ext(dllName) == "" {
		dllName += ".dll"
	}

	// Search order: the importing file's directory, the Windows system
	// directories, the working directory, then PATH.
	searchPaths := []string{
		baseDir,
		"C:\\Windows\\System32",
		"C:\\Windows\\SysWOW64",
		"C:\\Windows",
		".",
	}

	if pathEnv := os.Getenv("PATH"); pathEnv != "" {
		searchPaths = append(searchPaths, filepath.SplitList(pathEnv)...)
	}

	for _, dir := range searchPaths {
		fullPath := filepath.Join(dir, dllName)
		if _, err := os.Stat(fullPath); err == nil {
			return fullPath
		}
	}

	// Wine prefixes, for analysis off Windows.
	if homeDir, err := os.UserHomeDir(); err == nil {
		winePaths := []string{
			filepath.Join(homeDir, ".wine/drive_c/windows/system32", dllName),
			filepath.Join(homeDir, ".wine/drive_c/windows/syswow64", dllName),
		}
		for _, winePath := range winePaths {
			if _, err := os.Stat(winePath); err == nil {
				return winePath
			}
		}
	}

	return ""
}

// isSystemDLL checks if a DLL is a well-known Windows system DLL.
func isSystemDLL(dllName string) bool {
	normalized := strings.ToLower(dllName)

	if systemDLLs[normalized] {
		return true
	}

	// API sets.
	return strings.HasPrefix(normalized, "api-ms-win-") || strings.HasPrefix(normalized, "ext-ms-")
}

// contains checks if a string slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}
