package pe

import (
	"debug/pe"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSectionTable(t *testing.T) {
	f := sampleFixture(PE32)
	c := newTestCursor(f.build())
	c.Seek(7)

	sections, err := parseSectionTable(c, int64(f.sectionTableOffset()), 2)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, int64(7), c.Pos(), "cursor must be restored")

	text := sections[0]
	assert.Equal(t, ".text", text.NameString())
	assert.Equal(t, uint32(0x1000), text.VirtualAddress)
	assert.Equal(t, uint32(0x40), text.VirtualSize)
	assert.Equal(t, uint32(fixtureFileAlign), text.SizeOfRawData)
	assert.Equal(t, uint32(fixtureRawStart), text.PointerToRawData)
	assert.True(t, text.IsExecutable())
	assert.Equal(t, "R-X", text.Permissions())

	rdata := sections[1]
	assert.Equal(t, ".rdata", rdata.NameString())
	assert.Equal(t, uint32(0x2000), rdata.VirtualAddress)
	assert.Equal(t, uint32(fixtureRawStart+fixtureFileAlign), rdata.PointerToRawData)
	assert.False(t, rdata.IsExecutable())
	assert.Equal(t, "R--", rdata.Permissions())
}

func TestParseSectionTableEmpty(t *testing.T) {
	c := newTestCursor(nil)

	sections, err := parseSectionTable(c, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, sections)
}

func TestParseSectionTableTruncated(t *testing.T) {
	f := sampleFixture(PE32)
	table := f.sectionTableOffset()
	data := f.build()[:table+sectionHeaderSize+10]

	c := newTestCursor(data)
	c.Seek(3)

	sections, err := parseSectionTable(c, int64(table), 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTruncatedFile), "got %v", err)
	assert.Nil(t, sections)
	assert.Equal(t, int64(3), c.Pos())
}

func TestSectionNameString(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{".text", ".text"},
		{".longnam", ".longnam"},
		{"", ""},
		{"a\x00b", "a"},
	}

	for _, tt := range tests {
		var s SectionHeader
		copy(s.Name[:], tt.raw)
		assert.Equal(t, tt.want, s.NameString())
	}
}

func TestSectionPermissions(t *testing.T) {
	tests := []struct {
		name            string
		characteristics uint32
		want            string
	}{
		{
			name:            "Read only",
			characteristics: pe.IMAGE_SCN_MEM_READ,
			want:            "R--",
		},
		{
			name:            "Read-Write",
			characteristics: pe.IMAGE_SCN_MEM_READ | pe.IMAGE_SCN_MEM_WRITE,
			want:            "RW-",
		},
		{
			name:            "Read-Execute",
			characteristics: pe.IMAGE_SCN_MEM_READ | pe.IMAGE_SCN_MEM_EXECUTE,
			want:            "R-X",
		},
		{
			name:            "All permissions",
			characteristics: pe.IMAGE_SCN_MEM_READ | pe.IMAGE_SCN_MEM_WRITE | pe.IMAGE_SCN_MEM_EXECUTE,
			want:            "RWX",
		},
		{
			name:            "No permissions",
			characteristics: 0,
			want:            "---",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sectionPermissions(tt.characteristics))
		})
	}
}
