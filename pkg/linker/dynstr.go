package linker

import "debug/elf"

// DynstrSection is .dynstr: the string table backing every name the
// dynamic symbol table, .dynamic's DT_NEEDED/DT_RUNPATH entries and
// .gnu.version_r reference (spec §4.8/§4.9).
type DynstrSection struct {
	Chunk
	data    []byte
	offsets map[string]uint32
}

func NewDynstrSection() *DynstrSection {
	d := &DynstrSection{Chunk: NewChunk(), data: []byte{0}, offsets: map[string]uint32{"": 0}}
	d.Name = ".dynstr"
	d.Shdr.Type = uint32(elf.SHT_STRTAB)
	d.Shdr.Flags = uint64(elf.SHF_ALLOC)
	d.Shdr.AddrAlign = 1
	return d
}

// Add interns name, returning its byte offset into .dynstr. Called
// single-threaded while the dynamic symbol table is built (spec §4.8).
func (d *DynstrSection) Add(name string) uint32 {
	if off, ok := d.offsets[name]; ok {
		return off
	}
	off := uint32(len(d.data))
	d.offsets[name] = off
	d.data = append(d.data, []byte(name)...)
	d.data = append(d.data, 0)
	return off
}

func (d *DynstrSection) UpdateShdr(ctx *Context) {
	d.Shdr.Size = uint64(len(d.data))
}

func (d *DynstrSection) CopyBuf(ctx *Context) {
	copy(ctx.Buf[d.Shdr.Offset:], d.data)
}
