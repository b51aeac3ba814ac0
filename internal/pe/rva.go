package pe

// Resolver maps relative virtual addresses to file offsets using the
// section table.
type Resolver struct {
	sections []SectionHeader
}

// NewResolver creates a resolver over sections, which are searched in the
// given order.
func NewResolver(sections []SectionHeader) *Resolver {
	return &Resolver{sections: sections}
}

// Resolve converts rva to an absolute file offset.
//
// The first section whose VirtualAddress+SizeOfRawData lies above rva wins.
// The bound is the raw data size, not the virtual size, so addresses in the
// zero-filled tail of a section do not resolve to it. RVA 0 never resolves.
func (r *Resolver) Resolve(rva uint32) (int64, bool) {
	if rva == 0 {
		return 0, false
	}

	for i := range r.sections {
		s := &r.sections[i]
		if uint64(rva) < uint64(s.VirtualAddress)+uint64(s.SizeOfRawData) {
			offset := int64(s.PointerToRawData) - int64(s.VirtualAddress) + int64(rva)
			if offset < 0 {
				return 0, false
			}
			return offset, true
		}
	}

	return 0, false
}
