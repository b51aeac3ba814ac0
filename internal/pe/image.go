package pe

import "fmt"

// Options selects the optional parse stages.
type Options struct {
	SkipExports bool
	SkipImports bool

	// CaveMinSize enables the code cave scan in Analyze. Parse ignores it.
	CaveMinSize uint32
}

// ParsedImage is the result of one parse. It owns copies of everything it
// reports and does not reference the source after Parse returns.
type ParsedImage struct {
	FileHeader      FileHeader
	OptionalHeader  OptionalHeader
	Offsets         HeaderOffsets
	Sections        []SectionHeader
	ExportDirectory *ExportDirectory
	Exports         []ExportEntry
	Imports         []ImportDescriptor
}

// Kind returns PE32 or PE32Plus.
func (img *ParsedImage) Kind() ImageKind {
	return img.OptionalHeader.Kind
}

// Resolver returns an RVA resolver over the image's sections.
func (img *ParsedImage) Resolver() *Resolver {
	return NewResolver(img.Sections)
}

// Parse decodes the image behind r. Header and section table failures
// abort with no partial result.
func Parse(r *Reader, opts Options) (*ParsedImage, error) {
	c := r.Cursor()

	fh, oh, offsets, err := parseHeaders(c)
	if err != nil {
		return nil, err
	}

	sections, err := parseSectionTable(c, offsets.SectionTable, fh.NumberOfSections)
	if err != nil {
		return nil, err
	}

	img := &ParsedImage{
		FileHeader:     *fh,
		OptionalHeader: *oh,
		Offsets:        offsets,
		Sections:       sections,
	}
	res := img.Resolver()

	if !opts.SkipExports {
		dir, exports, err := walkExports(c, res, oh.Directory(DirExport).VirtualAddress)
		if err != nil {
			return nil, fmt.Errorf("解析导出表失败: %w", err)
		}
		img.ExportDirectory = dir
		img.Exports = exports
	}

	if !opts.SkipImports {
		imports, err := walkImports(c, res, oh.Directory(DirImport).VirtualAddress, oh.Kind)
		if err != nil {
			return nil, fmt.Errorf("解析导入表失败: %w", err)
		}
		img.Imports = imports
	}

	return img, nil
}

// ParseBytes parses an in-memory image.
func ParseBytes(b []byte, opts Options) (*ParsedImage, error) {
	return Parse(NewReaderBytes(b), opts)
}

// ParseFile opens, parses and closes the file at path.
func ParseFile(path string, opts Options) (*ParsedImage, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	return Parse(r, opts)
}
