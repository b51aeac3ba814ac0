package pe

import (
	"bytes"
	"debug/pe"
	"fmt"
	"io"
)

const sectionHeaderSize = 40

// SectionHeader is one entry of the section table. The relocation and line
// number fields are legacy COFF data and are kept only for completeness.
type SectionHeader struct {
	Name                 [8]byte
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLinenumbers uint32
	NumberOfRelocations  uint16
	NumberOfLinenumbers  uint16
	Characteristics      uint32
}

// NameString returns the section name without NUL padding. An 8-byte name
// has no terminator.
func (s *SectionHeader) NameString() string {
	if i := bytes.IndexByte(s.Name[:], 0); i >= 0 {
		return string(s.Name[:i])
	}
	return string(s.Name[:])
}

// IsExecutable reports whether the section is flagged as containing code.
func (s *SectionHeader) IsExecutable() bool {
	return s.Characteristics&pe.IMAGE_SCN_CNT_CODE != 0
}

// Permissions renders the memory access flags as "RWX" with '-' for
// missing rights.
func (s *SectionHeader) Permissions() string {
	return sectionPermissions(s.Characteristics)
}

func sectionPermissions(c uint32) string {
	perms := [3]byte{'-', '-', '-'}

	if c&pe.IMAGE_SCN_MEM_READ != 0 {
		perms[0] = 'R'
	}
	if c&pe.IMAGE_SCN_MEM_WRITE != 0 {
		perms[1] = 'W'
	}
	if c&pe.IMAGE_SCN_MEM_EXECUTE != 0 {
		perms[2] = 'X'
	}

	return string(perms[:])
}

// parseSectionTable reads count section headers starting at offset. The
// caller's cursor position is restored before returning.
func parseSectionTable(c *Cursor, offset int64, count uint16) ([]SectionHeader, error) {
	old := c.Pos()
	defer c.Seek(old)

	sections := make([]SectionHeader, 0, count)
	c.Seek(offset)
	for i := 0; i < int(count); i++ {
		s, err := readSectionHeader(c)
		if err != nil {
			return nil, fmt.Errorf("读取第 %d 个节区头失败: %w", i, err)
		}
		sections = append(sections, s)
	}

	return sections, nil
}

func readSectionHeader(c *Cursor) (SectionHeader, error) {
	var s SectionHeader

	name, err := c.ReadFixed(c.Pos(), len(s.Name), false)
	if err != nil {
		return s, err
	}
	copy(s.Name[:], name)

	f := fieldReader{c: c}
	s.VirtualSize = f.u32()
	s.VirtualAddress = f.u32()
	s.SizeOfRawData = f.u32()
	s.PointerToRawData = f.u32()
	s.PointerToRelocations = f.u32()
	s.PointerToLinenumbers = f.u32()
	s.NumberOfRelocations = f.u16()
	s.NumberOfLinenumbers = f.u16()
	s.Characteristics = f.u32()

	return s, f.err
}

// readSectionData returns the raw data of s. SizeOfRawData is not trusted:
// the buffer grows with what the source actually holds, so data running
// past the end is cut short instead of allocated up front.
func readSectionData(r io.ReaderAt, s *SectionHeader) ([]byte, error) {
	return io.ReadAll(io.NewSectionReader(r, int64(s.PointerToRawData), int64(s.SizeOfRawData)))
}
