package pe

import (
	"fmt"
	"io"
)

// CodeCave is a run of padding bytes inside a section's raw data.
type CodeCave struct {
	Section  string // Section name.
	Offset   int64  // File offset.
	RVA      uint32 // Relative Virtual Address.
	Size     uint32 // Length in bytes.
	FillByte byte   // Fill pattern (0x00 or 0xCC).
}

// FindCodeCaves scans the raw data of every section for runs of at least
// minSize identical 0x00 or 0xCC bytes.
func FindCodeCaves(r io.ReaderAt, sections []SectionHeader, minSize uint32) ([]CodeCave, error) {
	var caves []CodeCave

	for i := range sections {
		s := &sections[i]
		sectionCaves, err := findCavesInSection(r, s, minSize)
		if err != nil {
			return nil, fmt.Errorf("扫描节区 %s 失败: %w", s.NameString(), err)
		}
		caves = append(caves, sectionCaves...)
	}

	return caves, nil
}

func findCavesInSection(r io.ReaderAt, s *SectionHeader, minSize uint32) ([]CodeCave, error) {
	data, err := readSectionData(r, s)
	if err != nil {
		return nil, err
	}

	var caves []CodeCave
	caveStart := -1
	var fillByte byte

	emit := func(end int) {
		if caveStart != -1 && uint32(end-caveStart) >= minSize {
			caves = append(caves, newCodeCave(s, caveStart, end, fillByte))
		}
	}

	for i, b := range data {
		switch {
		case b != 0x00 && b != 0xCC:
			emit(i)
			caveStart = -1
		case caveStart == -1:
			caveStart = i
			fillByte = b
		case b != fillByte:
			// The fill pattern changed; the old run ends here.
			emit(i)
			caveStart = i
			fillByte = b
		}
	}
	emit(len(data))

	return caves, nil
}

func newCodeCave(s *SectionHeader, start, end int, fillByte byte) CodeCave {
	return CodeCave{
		Section:  s.NameString(),
		Offset:   int64(s.PointerToRawData) + int64(start),
		RVA:      s.VirtualAddress + uint32(start),
		Size:     uint32(end - start),
		FillByte: fillByte,
	}
}
