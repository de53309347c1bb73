package linker

import "debug/elf"

// InterpSection is .interp: the dynamic linker path string, present when
// the link isn't --static and either has at least one DSO input or is a
// -pie or --export-dynamic link (spec §3: "PT_INTERP... the requested
// dynamic linker path").
type InterpSection struct {
	Chunk
	path string
}

func NewInterpSection(path string) *InterpSection {
	i := &InterpSection{Chunk: NewChunk(), path: path}
	i.Name = ".interp"
	i.Shdr.Type = uint32(elf.SHT_PROGBITS)
	i.Shdr.Flags = uint64(elf.SHF_ALLOC)
	i.Shdr.AddrAlign = 1
	i.Shdr.Size = uint64(len(path)) + 1
	return i
}

func (i *InterpSection) CopyBuf(ctx *Context) {
	writeString(ctx.Buf[i.Shdr.Offset:], i.path)
}
