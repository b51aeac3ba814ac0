package pe

import "fmt"

const importDescriptorSize = 20

// ImportKind tells how a thunk slot was interpreted.
type ImportKind uint8

const (
	ImportByName ImportKind = iota
	ImportByOrdinal
	ImportUnresolved
)

func (k ImportKind) String() string {
	switch k {
	case ImportByName:
		return "name"
	case ImportByOrdinal:
		return "ordinal"
	default:
		return "unresolved"
	}
}

// ImportedFunction is one slot of a module's thunk array. Offset is the file
// offset of the slot itself. Name is empty for ordinal and unresolved
// imports; the ordinal value is not kept.
type ImportedFunction struct {
	Name   []byte
	Offset int64
	Kind   ImportKind
}

// NameString returns the imported function name as a string.
func (f ImportedFunction) NameString() string {
	return string(f.Name)
}

// ImportDescriptor represents IMAGE_IMPORT_DESCRIPTOR together with the
// module name and thunks it points to.
type ImportDescriptor struct {
	Name      []byte
	Functions []ImportedFunction

	OriginalFirstThunk uint32 // RVA to Import Name Table (INT).
	TimeDateStamp      uint32
	ForwarderChain     uint32
	NameRVA            uint32
	FirstThunk         uint32 // RVA to Import Address Table (IAT).
}

// NameString returns the module name as a string.
func (d ImportDescriptor) NameString() string {
	return string(d.Name)
}

// ordinalFlag returns the thunk bit that marks an import by ordinal.
func ordinalFlag(kind ImageKind) uint64 {
	if kind == PE32Plus {
		return 0x8000000000000000
	}
	return 0x80000000
}

// walkImports reads the import descriptor array up to the entry whose first
// field is zero. A directory RVA of 0 or one that does not resolve yields no
// descriptors.
func walkImports(c *Cursor, res *Resolver, dirRVA uint32, kind ImageKind) ([]ImportDescriptor, error) {
	tracker, ok := res.Resolve(dirRVA)
	if !ok {
		return nil, nil
	}

	old := c.Pos()
	defer c.Seek(old)

	var imports []ImportDescriptor
	for {
		c.Seek(tracker)
		desc, err := readImportDescriptor(c)
		if err != nil {
			return nil, fmt.Errorf("读取第 %d 个导入描述符失败: %w", len(imports), err)
		}
		if desc.OriginalFirstThunk == 0 {
			break
		}
		tracker = c.Pos()

		if nameOffset, ok := res.Resolve(desc.NameRVA); ok {
			name, err := c.ReadCString(nameOffset, false)
			if err != nil {
				return nil, fmt.Errorf("读取导入模块名失败: %w", err)
			}
			desc.Name = name
		}

		if thunkOffset, ok := res.Resolve(desc.FirstThunk); ok {
			desc.Functions, err = readImportThunks(c, res, thunkOffset, kind)
			if err != nil {
				return nil, fmt.Errorf("读取 %s 的导入函数失败: %w", desc.Name, err)
			}
		}

		imports = append(imports, desc)
	}

	return imports, nil
}

func readImportDescriptor(c *Cursor) (ImportDescriptor, error) {
	f := fieldReader{c: c}
	desc := ImportDescriptor{
		OriginalFirstThunk: f.u32(),
		TimeDateStamp:      f.u32(),
		ForwarderChain:     f.u32(),
		NameRVA:            f.u32(),
		FirstThunk:         f.u32(),
	}
	return desc, f.err
}

// readImportThunks walks the thunk array at base until a zero slot.
func readImportThunks(c *Cursor, res *Resolver, base int64, kind ImageKind) ([]ImportedFunction, error) {
	var functions []ImportedFunction
	width := kind.WordSize()
	flag := ordinalFlag(kind)

	for count := int64(0); ; count++ {
		slot := base + count*width
		c.Seek(slot)
		thunk, err := c.ReadWord(kind)
		if err != nil {
			return nil, err
		}
		if thunk == 0 {
			break
		}

		fn, err := parseImportFunction(c, res, thunk, flag)
		if err != nil {
			return nil, err
		}
		fn.Offset = slot
		functions = append(functions, fn)
	}

	return functions, nil
}

// parseImportFunction interprets a non-zero thunk value. A hint/name RVA that
// does not resolve degrades to an unresolved entry instead of failing.
func parseImportFunction(c *Cursor, res *Resolver, thunk, flag uint64) (ImportedFunction, error) {
	if thunk&flag != 0 {
		return ImportedFunction{Kind: ImportByOrdinal}, nil
	}

	hintOffset, ok := res.Resolve(uint32(thunk))
	if !ok {
		return ImportedFunction{Kind: ImportUnresolved}, nil
	}

	// Skip the 2-byte hint in front of the name.
	name, err := c.ReadCString(hintOffset+2, false)
	if err != nil {
		return ImportedFunction{}, err
	}
	return ImportedFunction{Name: name, Kind: ImportByName}, nil
}
