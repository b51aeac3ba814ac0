package pe

import "fmt"

// ExportDirectory holds the counts and table locations read from the
// export directory table.
type ExportDirectory struct {
	OrdinalBase        uint32
	NumberOfFunctions  uint32
	NumberOfNames      uint32
	AddressOfFunctions uint32
	AddressOfNames     uint32
}

// OrdinalOnly is the number of exports that have no name.
func (d *ExportDirectory) OrdinalOnly() uint32 {
	if d.NumberOfFunctions < d.NumberOfNames {
		return 0
	}
	return d.NumberOfFunctions - d.NumberOfNames
}

// ExportEntry is a named export.
//
// Offset is the raw value of the function address table slot paired with the
// name by position. It is an RVA as stored in the image and is not passed
// through the resolver.
type ExportEntry struct {
	Name   []byte
	Offset int64
}

// NameString returns the export name as a string.
func (e ExportEntry) NameString() string {
	return string(e.Name)
}

// exportDirectoryFieldsOffset skips Characteristics, TimeDateStamp,
// MajorVersion, MinorVersion and Name.
const exportDirectoryFieldsOffset = 0x10

// walkExports reads the named exports of the image. A directory RVA of 0 or
// one that does not resolve yields no exports. If any name RVA fails to
// resolve, every export collected so far is discarded.
func walkExports(c *Cursor, res *Resolver, dirRVA uint32) (*ExportDirectory, []ExportEntry, error) {
	dirOffset, ok := res.Resolve(dirRVA)
	if !ok {
		return nil, nil, nil
	}

	old := c.Pos()
	defer c.Seek(old)

	c.Seek(dirOffset + exportDirectoryFieldsOffset)
	f := fieldReader{c: c}
	dir := &ExportDirectory{
		OrdinalBase:        f.u32(),
		NumberOfFunctions:  f.u32(),
		NumberOfNames:      f.u32(),
		AddressOfFunctions: f.u32(),
		AddressOfNames:     f.u32(),
	}
	if f.err != nil {
		return nil, nil, fmt.Errorf("读取导出目录失败: %w", f.err)
	}

	functionsOffset, okFuncs := res.Resolve(dir.AddressOfFunctions)
	namesOffset, okNames := res.Resolve(dir.AddressOfNames)
	if !okFuncs || !okNames {
		return dir, nil, nil
	}

	// Ordinal-only exports occupy the remaining OrdinalOnly() slots of the
	// function table and are not materialized.
	var exports []ExportEntry
	for i := uint32(0); i < dir.NumberOfNames; i++ {
		c.Seek(functionsOffset + int64(i)*4)
		funcRVA, err := c.ReadU32()
		if err != nil {
			return nil, nil, fmt.Errorf("读取导出函数地址失败: %w", err)
		}

		c.Seek(namesOffset + int64(i)*4)
		nameRVA, err := c.ReadU32()
		if err != nil {
			return nil, nil, fmt.Errorf("读取导出名称指针失败: %w", err)
		}

		nameOffset, ok := res.Resolve(nameRVA)
		if !ok {
			return dir, nil, nil
		}

		name, err := c.ReadCString(nameOffset, true)
		if err != nil {
			return nil, nil, fmt.Errorf("读取导出名称失败: %w", err)
		}

		exports = append(exports, ExportEntry{
			Name:   name,
			Offset: int64(funcRVA),
		})
	}

	return dir, exports, nil
}
