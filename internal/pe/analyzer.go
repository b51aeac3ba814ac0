package pe

import (
	"debug/pe"
	"fmt"
)

// Analysis is a parsed image together with file-level facts that need the
// source bytes: size, checksum and per-section entropy.
type Analysis struct {
	FilePath string
	FileSize int64
	Image    *ParsedImage
	Checksum *ChecksumInfo
	Entropy  []float64 // indexed like Image.Sections
	Caves    []CodeCave
}

// Analyzer extracts information from PE files.
type Analyzer struct {
	reader *Reader
	opts   Options
}

// NewAnalyzer creates a new analyzer for the given reader.
func NewAnalyzer(r *Reader, opts Options) *Analyzer {
	return &Analyzer{reader: r, opts: opts}
}

// Analyze parses the image and computes the checksum and entropy, plus code
// caves when Options.CaveMinSize is set. Only the parse can fail; errors in
// the later stages leave their fields empty.
func (a *Analyzer) Analyze() (*Analysis, error) {
	img, err := Parse(a.reader, a.opts)
	if err != nil {
		return nil, err
	}

	info := &Analysis{
		FilePath: a.reader.FilePath(),
		FileSize: a.reader.FileSize(),
		Image:    img,
	}

	a.computeEntropy(info)
	a.verifyChecksum(info)
	if a.opts.CaveMinSize > 0 {
		info.Caves, _ = FindCodeCaves(a.reader, img.Sections, a.opts.CaveMinSize)
	}

	return info, nil
}

func (a *Analyzer) computeEntropy(info *Analysis) {
	info.Entropy = make([]float64, len(info.Image.Sections))
	for i := range info.Image.Sections {
		entropy, err := SectionEntropy(a.reader, &info.Image.Sections[i])
		if err != nil {
			entropy = 0.0
		}
		info.Entropy[i] = entropy
	}
}

func (a *Analyzer) verifyChecksum(info *Analysis) {
	checksum, err := VerifyChecksum(info.Image, a.reader, a.reader.FileSize())
	if err != nil {
		return
	}
	info.Checksum = checksum
}

// AnalyzeFile opens the file at path and analyzes it.
func AnalyzeFile(path string, opts Options) (*Analysis, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	return NewAnalyzer(r, opts).Analyze()
}

// MachineName describes a COFF machine type.
func MachineName(machine uint16) string {
	switch machine {
	case pe.IMAGE_FILE_MACHINE_I386:
		return "x86 (32位)"
	case pe.IMAGE_FILE_MACHINE_AMD64:
		return "x64 (64位)"
	case pe.IMAGE_FILE_MACHINE_ARM, pe.IMAGE_FILE_MACHINE_ARMNT:
		return "ARM"
	case pe.IMAGE_FILE_MACHINE_ARM64:
		return "ARM64"
	case pe.IMAGE_FILE_MACHINE_IA64:
		return "IA64"
	default:
		return fmt.Sprintf("未知 (0x%X)", machine)
	}
}

// SubsystemName describes an optional header subsystem value.
func SubsystemName(subsystem uint16) string {
	switch subsystem {
	case pe.IMAGE_SUBSYSTEM_WINDOWS_GUI:
		return "Windows GUI"
	case pe.IMAGE_SUBSYSTEM_WINDOWS_CUI:
		return "Windows 控制台"
	case pe.IMAGE_SUBSYSTEM_NATIVE:
		return "Native"
	case pe.IMAGE_SUBSYSTEM_EFI_APPLICATION:
		return "EFI 应用程序"
	default:
		return fmt.Sprintf("未知 (0x%X)", subsystem)
	}
}
