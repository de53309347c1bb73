package linker

import "debug/elf"

// PltSection is the Procedure Linkage Table (spec §4.8): one stub per
// symbol flagged NeedsPlt, each stub's size and encoding owned by the
// per-architecture collaborator (Arch.WritePltEntry).
type PltSection struct {
	Chunk
	Entries []*Symbol
}

func NewPltSection() *PltSection {
	p := &PltSection{Chunk: NewChunk()}
	p.Name = ".plt"
	p.Shdr.Type = uint32(elf.SHT_PROGBITS)
	p.Shdr.Flags = uint64(elf.SHF_ALLOC) | uint64(elf.SHF_EXECINSTR)
	p.Shdr.AddrAlign = 16
	return p
}

func (p *PltSection) Add(ctx *Context, sym *Symbol) {
	if sym.PltIdx >= 0 {
		return
	}
	sym.PltIdx = int32(len(p.Entries))
	p.Entries = append(p.Entries, sym)
	// A PLT stub loads its target through the GOT; every PLT entry also
	// needs a GOT slot even if nothing else referenced the symbol by GOT.
	if sym.GotIdx < 0 {
		sym.GotIdx = int32(len(ctx.Got.Entries))
		ctx.Got.Entries = append(ctx.Got.Entries, sym)
	}
}

func (p *PltSection) UpdateShdr(ctx *Context) {
	p.Shdr.Size = uint64(len(p.Entries)) * ctx.Arch.PltEntrySize()
}

func (p *PltSection) CopyBuf(ctx *Context) {
	entSize := ctx.Arch.PltEntrySize()
	buf := ctx.Buf[p.Shdr.Offset:]
	for i, sym := range p.Entries {
		ctx.Arch.WritePltEntry(ctx, buf[uint64(i)*entSize:uint64(i+1)*entSize], sym)
	}
}
