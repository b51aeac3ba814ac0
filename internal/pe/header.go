package pe

import (
	"debug/pe"
	"fmt"
)

const (
	dosSignature       = 0x5A4D     // "MZ"
	ntSignature        = 0x00004550 // "PE\0\0"
	lfanewOffset       = 0x3C
	magicPE32          = 0x10B
	magicPE32Plus      = 0x20B
	numDataDirectories = 16
)

// ImageKind distinguishes PE32 from PE32+ images.
type ImageKind uint8

const (
	PE32 ImageKind = iota
	PE32Plus
)

func (k ImageKind) String() string {
	if k == PE32Plus {
		return "PE32+"
	}
	return "PE32"
}

// WordSize is the width in bytes of image base, reserve/commit sizes and
// thunk slots.
func (k ImageKind) WordSize() int64 {
	if k == PE32Plus {
		return 8
	}
	return 4
}

// DirectoryEntry indexes OptionalHeader.DataDirectory.
type DirectoryEntry int

const (
	DirExport DirectoryEntry = iota
	DirImport
	DirResource
	DirException
	DirCertificate
	DirBaseRelocation
	DirDebug
	DirArchitecture
	DirGlobalPtr
	DirTLS
	DirLoadConfig
	DirBoundImport
	DirImportAddressTable
	DirDelayImport
	DirCLRRuntimeHeader
	DirReserved
)

var directoryNames = [numDataDirectories]string{
	"Export", "Import", "Resource", "Exception",
	"Certificate", "BaseRelocation", "Debug", "Architecture",
	"GlobalPtr", "TLS", "LoadConfig", "BoundImport",
	"ImportAddressTable", "DelayImport", "CLRRuntimeHeader", "Reserved",
}

func (d DirectoryEntry) String() string {
	if d < 0 || int(d) >= len(directoryNames) {
		return fmt.Sprintf("Directory(%d)", int(d))
	}
	return directoryNames[d]
}

// DataDirectory locates an optional sub-structure of the image.
type DataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

// FileHeader is the COFF header that follows the PE signature.
type FileHeader struct {
	Machine              uint16
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

// OptionalHeader holds the fields of both optional header variants.
// BaseOfData is only present in PE32 images. Stack and heap reserve/commit
// sizes are consumed while parsing but not kept.
type OptionalHeader struct {
	Kind                        ImageKind
	Magic                       uint16
	MajorLinkerVersion          uint8
	MinorLinkerVersion          uint8
	SizeOfCode                  uint32
	SizeOfInitializedData       uint32
	SizeOfUninitializedData     uint32
	AddressOfEntryPoint         uint32
	BaseOfCode                  uint32
	BaseOfData                  uint32
	ImageBase                   uint64
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   uint16
	DllCharacteristics          uint16
	LoaderFlags                 uint32
	NumberOfRvaAndSizes         uint32
	DataDirectory               [numDataDirectories]DataDirectory
}

// Directory returns the data directory for entry.
func (o *OptionalHeader) Directory(entry DirectoryEntry) DataDirectory {
	if entry < 0 || int(entry) >= len(o.DataDirectory) {
		return DataDirectory{}
	}
	return o.DataDirectory[entry]
}

// HeaderOffsets records the absolute file offset of each header block.
type HeaderOffsets struct {
	COFFHeader      int64 // PE signature
	StandardFields  int64 // start of the optional header
	WindowsFields   int64
	DataDirectories int64
	SectionTable    int64
}

// CheckSumOffset is the file offset of OptionalHeader.CheckSum.
func (h HeaderOffsets) CheckSumOffset() int64 {
	return h.WindowsFields + 32
}

// kindFor picks the image kind from the optional header magic, falling back
// to the machine type when the magic is not one of the two known values.
func kindFor(magic, machine uint16) ImageKind {
	switch magic {
	case magicPE32:
		return PE32
	case magicPE32Plus:
		return PE32Plus
	}

	switch machine {
	case pe.IMAGE_FILE_MACHINE_AMD64, pe.IMAGE_FILE_MACHINE_ARM64, pe.IMAGE_FILE_MACHINE_IA64:
		return PE32Plus
	}
	return PE32
}

// parseHeaders decodes the DOS stub, COFF header, optional header and data
// directories. Any failure aborts the parse.
func parseHeaders(c *Cursor) (*FileHeader, *OptionalHeader, HeaderOffsets, error) {
	var offsets HeaderOffsets

	c.Seek(0)
	mz, err := c.ReadU16()
	if err != nil {
		return nil, nil, offsets, fmt.Errorf("读取DOS头失败: %w", err)
	}
	if mz != dosSignature {
		return nil, nil, offsets, fmt.Errorf("DOS签名 0x%04X: %w", mz, ErrNotAPEFile)
	}

	c.Seek(lfanewOffset)
	lfanew, err := c.ReadU32()
	if err != nil {
		return nil, nil, offsets, fmt.Errorf("读取PE头偏移失败: %w", err)
	}

	c.Seek(int64(lfanew))
	offsets.COFFHeader = c.Pos()
	sig, err := c.ReadU32()
	if err != nil {
		return nil, nil, offsets, fmt.Errorf("读取PE签名失败: %w", err)
	}
	if sig != ntSignature {
		return nil, nil, offsets, fmt.Errorf("PE签名 0x%08X: %w", sig, ErrNotAPEFile)
	}

	fh, err := readFileHeader(c)
	if err != nil {
		return nil, nil, offsets, err
	}

	offsets.StandardFields = c.Pos()
	oh, err := readOptionalHeader(c, fh.Machine, &offsets)
	if err != nil {
		return nil, nil, offsets, err
	}

	// The COFF-declared size locates the section table even when the
	// optional header is padded.
	offsets.SectionTable = offsets.StandardFields + int64(fh.SizeOfOptionalHeader)

	return fh, oh, offsets, nil
}

func readFileHeader(c *Cursor) (*FileHeader, error) {
	f := fieldReader{c: c}
	fh := &FileHeader{
		Machine:              f.u16(),
		NumberOfSections:     f.u16(),
		TimeDateStamp:        f.u32(),
		PointerToSymbolTable: f.u32(),
		NumberOfSymbols:      f.u32(),
		SizeOfOptionalHeader: f.u16(),
		Characteristics:      f.u16(),
	}
	if f.err != nil {
		return nil, fmt.Errorf("读取COFF头失败: %w", f.err)
	}
	return fh, nil
}

func readOptionalHeader(c *Cursor, machine uint16, offsets *HeaderOffsets) (*OptionalHeader, error) {
	f := fieldReader{c: c}
	oh := &OptionalHeader{}

	// Standard fields.
	oh.Magic = f.u16()
	oh.Kind = kindFor(oh.Magic, machine)
	oh.MajorLinkerVersion = f.u8()
	oh.MinorLinkerVersion = f.u8()
	oh.SizeOfCode = f.u32()
	oh.SizeOfInitializedData = f.u32()
	oh.SizeOfUninitializedData = f.u32()
	oh.AddressOfEntryPoint = f.u32()
	oh.BaseOfCode = f.u32()
	if oh.Kind == PE32 {
		oh.BaseOfData = f.u32()
	}
	oh.ImageBase = f.word(oh.Kind)
	if f.err != nil {
		return nil, fmt.Errorf("读取可选头标准域失败: %w", f.err)
	}

	// Windows-specific fields.
	offsets.WindowsFields = c.Pos()
	oh.SectionAlignment = f.u32()
	oh.FileAlignment = f.u32()
	oh.MajorOperatingSystemVersion = f.u16()
	oh.MinorOperatingSystemVersion = f.u16()
	oh.MajorImageVersion = f.u16()
	oh.MinorImageVersion = f.u16()
	oh.MajorSubsystemVersion = f.u16()
	oh.MinorSubsystemVersion = f.u16()
	oh.Win32VersionValue = f.u32()
	oh.SizeOfImage = f.u32()
	oh.SizeOfHeaders = f.u32()
	oh.CheckSum = f.u32()
	oh.Subsystem = f.u16()
	oh.DllCharacteristics = f.u16()
	for i := 0; i < 4; i++ {
		f.word(oh.Kind) // stack/heap reserve and commit
	}
	oh.LoaderFlags = f.u32()
	oh.NumberOfRvaAndSizes = f.u32()
	if f.err != nil {
		return nil, fmt.Errorf("读取可选头Windows域失败: %w", f.err)
	}

	if oh.NumberOfRvaAndSizes != numDataDirectories {
		return nil, fmt.Errorf("数据目录数量 %d (需要 %d): %w",
			oh.NumberOfRvaAndSizes, numDataDirectories, ErrUnsupportedDataDirectoryCount)
	}

	offsets.DataDirectories = c.Pos()
	for i := range oh.DataDirectory {
		oh.DataDirectory[i] = DataDirectory{
			VirtualAddress: f.u32(),
			Size:           f.u32(),
		}
	}
	if f.err != nil {
		return nil, fmt.Errorf("读取数据目录失败: %w", f.err)
	}

	return oh, nil
}
