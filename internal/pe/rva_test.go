package pe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	res := NewResolver([]SectionHeader{
		{VirtualAddress: 0x1000, VirtualSize: 0x800, SizeOfRawData: 0x200, PointerToRawData: 0x400},
		{VirtualAddress: 0x2000, VirtualSize: 0x100, SizeOfRawData: 0x200, PointerToRawData: 0x600},
	})

	tests := []struct {
		name   string
		rva    uint32
		want   int64
		wantOK bool
	}{
		{name: "zero", rva: 0},
		{name: "section start", rva: 0x1000, want: 0x400, wantOK: true},
		{name: "inside first", rva: 0x1050, want: 0x450, wantOK: true},
		{name: "last raw byte", rva: 0x11FF, want: 0x5FF, wantOK: true},
		// Inside VirtualSize but past SizeOfRawData.
		{name: "virtual tail", rva: 0x1300},
		{name: "second section", rva: 0x2010, want: 0x610, wantOK: true},
		{name: "past every section", rva: 0x3000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := res.Resolve(tt.rva)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestResolveFirstMatchWins(t *testing.T) {
	// The first section's upper bound covers every RVA below it, so an RVA
	// under its VirtualAddress still resolves through it.
	res := NewResolver([]SectionHeader{
		{VirtualAddress: 0x2000, SizeOfRawData: 0x200, PointerToRawData: 0x1800},
		{VirtualAddress: 0x1000, SizeOfRawData: 0x200, PointerToRawData: 0x400},
	})

	got, ok := res.Resolve(0x1010)
	assert.True(t, ok)
	assert.Equal(t, int64(0x810), got)
}

func TestResolveNegativeOffset(t *testing.T) {
	res := NewResolver([]SectionHeader{
		{VirtualAddress: 0x3000, SizeOfRawData: 0x200, PointerToRawData: 0x400},
	})

	_, ok := res.Resolve(0x10)
	assert.False(t, ok)
}

func TestResolveNoSections(t *testing.T) {
	_, ok := NewResolver(nil).Resolve(0x1000)
	assert.False(t, ok)
}

func TestResolveSingleSection(t *testing.T) {
	res := NewResolver([]SectionHeader{
		{VirtualAddress: 0x1000, VirtualSize: 0x800, SizeOfRawData: 0x200, PointerToRawData: 0x400},
	})

	got, ok := res.Resolve(0x1050)
	assert.True(t, ok)
	assert.Equal(t, int64(0x450), got)

	// Mapped by VirtualSize but beyond the raw data.
	_, ok = res.Resolve(0x1300)
	assert.False(t, ok)
}
