package pe

import (
	"debug/pe"
	"encoding/binary"
)

// blob assembles the contents of one section. Positions are handed out as
// RVAs relative to the image base.
type blob struct {
	base uint32
	buf  []byte
}

func newBlob(base uint32) *blob {
	return &blob{base: base}
}

func (b *blob) rva() uint32 { return b.base + uint32(len(b.buf)) }

func (b *blob) put16(v uint16) { b.buf = binary.LittleEndian.AppendUint16(b.buf, v) }
func (b *blob) put32(v uint32) { b.buf = binary.LittleEndian.AppendUint32(b.buf, v) }
func (b *blob) put64(v uint64) { b.buf = binary.LittleEndian.AppendUint64(b.buf, v) }

func (b *blob) set32(rva, v uint32) {
	binary.LittleEndian.PutUint32(b.buf[rva-b.base:], v)
}

func (b *blob) reserve(n int) uint32 {
	r := b.rva()
	b.buf = append(b.buf, make([]byte, n)...)
	return r
}

func (b *blob) cstring(s string) uint32 {
	r := b.rva()
	b.buf = append(b.buf, s...)
	b.buf = append(b.buf, 0)
	return r
}

// fixtureImport describes one imported module. Thunks are emitted as named
// imports, then ordinals, then raw values.
type fixtureImport struct {
	module   string
	names    []string
	ordinals []uint16
	raw      []uint64
}

// writeImports emits a descriptor array followed by names, hint/name entries
// and one thunk array per module, returning the directory RVA.
func (b *blob) writeImports(imports []fixtureImport, wide bool) uint32 {
	dir := b.reserve((len(imports) + 1) * importDescriptorSize)

	flag := uint64(0x80000000)
	if wide {
		flag = 0x8000000000000000
	}

	for i, imp := range imports {
		nameRVA := b.cstring(imp.module)

		var thunks []uint64
		for _, n := range imp.names {
			hint := b.rva()
			b.put16(uint16(len(thunks)))
			b.cstring(n)
			thunks = append(thunks, uint64(hint))
		}
		for _, o := range imp.ordinals {
			thunks = append(thunks, flag|uint64(o))
		}
		thunks = append(thunks, imp.raw...)

		first := b.rva()
		for _, t := range append(thunks, 0) {
			if wide {
				b.put64(t)
			} else {
				b.put32(uint32(t))
			}
		}

		d := dir + uint32(i*importDescriptorSize)
		b.set32(d, first)
		b.set32(d+12, nameRVA)
		b.set32(d+16, first)
	}

	return dir
}

type exportTables struct {
	dir       uint32
	functions uint32
	names     uint32
}

// writeExports emits an export directory with len(functions) address slots
// and len(names) names paired with the first slots.
func (b *blob) writeExports(module string, names []string, functions []uint32) exportTables {
	var t exportTables
	t.dir = b.reserve(40)
	moduleRVA := b.cstring(module)

	t.functions = b.rva()
	for _, f := range functions {
		b.put32(f)
	}

	var nameRVAs []uint32
	for _, n := range names {
		nameRVAs = append(nameRVAs, b.cstring(n))
	}
	t.names = b.rva()
	for _, r := range nameRVAs {
		b.put32(r)
	}
	ordinals := b.rva()
	for i := range names {
		b.put16(uint16(i))
	}

	b.set32(t.dir+12, moduleRVA)
	b.set32(t.dir+16, 1)
	b.set32(t.dir+20, uint32(len(functions)))
	b.set32(t.dir+24, uint32(len(names)))
	b.set32(t.dir+28, t.functions)
	b.set32(t.dir+32, t.names)
	b.set32(t.dir+36, ordinals)
	return t
}

type fixtureSection struct {
	name            string
	va              uint32
	data            []byte
	rawSize         uint32 // 0: len(data) rounded up to the file alignment
	virtualSize     uint32 // 0: len(data)
	characteristics uint32
}

// fixture describes a synthetic PE image.
type fixture struct {
	machine   uint16
	magic     uint16
	numDirs   uint32 // 0: 16
	imageBase uint64
	checksum  uint32
	dirs      [numDataDirectories]DataDirectory
	sections  []fixtureSection
}

const (
	fixtureLfanew    = 0x80
	fixtureFileAlign = 0x200
	fixtureRawStart  = 0x400
)

func alignUp(v, a uint32) uint32 {
	return (v + a - 1) / a * a
}

func (f *fixture) optionalHeaderSize() int {
	if f.magic == magicPE32Plus {
		return 112 + numDataDirectories*8
	}
	return 96 + numDataDirectories*8
}

// sectionTableOffset is where build places the section table.
func (f *fixture) sectionTableOffset() int {
	return fixtureLfanew + 4 + 20 + f.optionalHeaderSize()
}

// build lays the image out with sections placed back to back from
// fixtureRawStart.
func (f *fixture) build() []byte {
	wide := f.magic == magicPE32Plus
	numDirs := f.numDirs
	if numDirs == 0 {
		numDirs = numDataDirectories
	}

	raw := make([]uint32, len(f.sections))
	rawSizes := make([]uint32, len(f.sections))
	end := uint32(fixtureRawStart)
	for i, s := range f.sections {
		raw[i] = end
		rawSizes[i] = s.rawSize
		if rawSizes[i] == 0 {
			rawSizes[i] = alignUp(uint32(len(s.data)), fixtureFileAlign)
		}
		end += alignUp(rawSizes[i], fixtureFileAlign)
	}

	h := newBlob(0)
	h.put16(dosSignature)
	h.reserve(lfanewOffset - 2)
	h.put32(fixtureLfanew)
	h.reserve(fixtureLfanew - len(h.buf))

	h.put32(ntSignature)
	h.put16(f.machine)
	h.put16(uint16(len(f.sections)))
	h.put32(0x5F000000) // TimeDateStamp
	h.put32(0)
	h.put32(0)
	h.put16(uint16(f.optionalHeaderSize()))
	h.put16(pe.IMAGE_FILE_EXECUTABLE_IMAGE)

	h.put16(f.magic)
	h.buf = append(h.buf, 14, 0) // linker version
	h.put32(0x200)               // SizeOfCode
	h.put32(0x400)               // SizeOfInitializedData
	h.put32(0)                   // SizeOfUninitializedData
	h.put32(0x1000)              // AddressOfEntryPoint
	h.put32(0x1000)              // BaseOfCode
	if wide {
		h.put64(f.imageBase)
	} else {
		h.put32(0x2000) // BaseOfData
		h.put32(uint32(f.imageBase))
	}
	h.put32(0x1000) // SectionAlignment
	h.put32(fixtureFileAlign)
	for _, v := range []uint16{6, 0, 0, 0, 6, 0} {
		h.put16(v)
	}
	h.put32(0)      // Win32VersionValue
	h.put32(0x4000) // SizeOfImage
	h.put32(fixtureRawStart)
	h.put32(f.checksum)
	h.put16(pe.IMAGE_SUBSYSTEM_WINDOWS_CUI)
	h.put16(0)
	for _, v := range []uint64{0x100000, 0x1000, 0x100000, 0x1000} {
		if wide {
			h.put64(v)
		} else {
			h.put32(uint32(v))
		}
	}
	h.put32(0) // LoaderFlags
	h.put32(numDirs)
	for _, d := range f.dirs {
		h.put32(d.VirtualAddress)
		h.put32(d.Size)
	}

	for i, s := range f.sections {
		var name [8]byte
		copy(name[:], s.name)
		h.buf = append(h.buf, name[:]...)
		vsize := s.virtualSize
		if vsize == 0 {
			vsize = uint32(len(s.data))
		}
		h.put32(vsize)
		h.put32(s.va)
		h.put32(rawSizes[i])
		h.put32(raw[i])
		h.put32(0)
		h.put32(0)
		h.put16(0)
		h.put16(0)
		h.put32(s.characteristics)
	}

	img := make([]byte, end)
	copy(img, h.buf)
	for i, s := range f.sections {
		copy(img[raw[i]:], s.data)
	}
	return img
}

const (
	textCharacteristics  = pe.IMAGE_SCN_CNT_CODE | pe.IMAGE_SCN_MEM_READ | pe.IMAGE_SCN_MEM_EXECUTE
	rdataCharacteristics = pe.IMAGE_SCN_CNT_INITIALIZED_DATA | pe.IMAGE_SCN_MEM_READ
)

var (
	sampleImports = []fixtureImport{
		{module: "KERNEL32.dll", names: []string{"GetProcAddress", "LoadLibraryA", "ExitProcess"}},
		{module: "USER32.dll", names: []string{"MessageBoxA"}, ordinals: []uint16{42}},
		{module: "ws2_32.dll", ordinals: []uint16{23, 115}},
	}
	sampleExportNames     = []string{"Alpha", "Beta", "Gamma"}
	sampleExportFunctions = []uint32{0x1010, 0x1020, 0x1030, 0x1040, 0x1050}
)

// sampleFixture returns an image with a .text section at RVA 0x1000 and an
// .rdata section at RVA 0x2000 holding sampleImports and the sample exports.
func sampleFixture(kind ImageKind) *fixture {
	f := &fixture{
		machine:   pe.IMAGE_FILE_MACHINE_I386,
		magic:     magicPE32,
		imageBase: 0x400000,
	}
	if kind == PE32Plus {
		f.machine = pe.IMAGE_FILE_MACHINE_AMD64
		f.magic = magicPE32Plus
		f.imageBase = 0x140000000
	}

	rdata := newBlob(0x2000)
	exports := rdata.writeExports("sample.dll", sampleExportNames, sampleExportFunctions)
	exportSize := rdata.rva() - exports.dir
	importDir := rdata.writeImports(sampleImports, kind == PE32Plus)

	f.dirs[DirExport] = DataDirectory{VirtualAddress: exports.dir, Size: exportSize}
	f.dirs[DirImport] = DataDirectory{
		VirtualAddress: importDir,
		Size:           uint32((len(sampleImports) + 1) * importDescriptorSize),
	}

	code := make([]byte, 0x40)
	for i := range code {
		code[i] = 0xC3
	}

	f.sections = []fixtureSection{
		{name: ".text", va: 0x1000, data: code, characteristics: textCharacteristics},
		{name: ".rdata", va: 0x2000, data: rdata.buf, characteristics: rdataCharacteristics},
	}
	return f
}
