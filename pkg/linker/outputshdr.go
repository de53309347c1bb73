package linker

import (
	"debug/elf"

	"github.com/Keruspe/mold/pkg/utils"
)

// OutputShstrtab is the .shstrtab section: every chunk's name, interned
// once layout has finalized the chunk list (spec §4.7).
type OutputShstrtab struct {
	Chunk
	nameOffsets map[string]uint32
}

func NewOutputShstrtab() *OutputShstrtab {
	o := &OutputShstrtab{Chunk: NewChunk()}
	o.Name = ".shstrtab"
	o.Shdr.Type = uint32(elf.SHT_STRTAB)
	o.Shdr.AddrAlign = 1
	return o
}

func (o *OutputShstrtab) UpdateShdr(ctx *Context) {
	o.nameOffsets = map[string]uint32{"": 0}
	size := uint64(1)
	for _, c := range ctx.Chunks {
		name := c.GetName()
		if _, ok := o.nameOffsets[name]; ok {
			continue
		}
		o.nameOffsets[name] = uint32(size)
		size += uint64(len(name)) + 1
	}
	o.Shdr.Size = size
}

func (o *OutputShstrtab) CopyBuf(ctx *Context) {
	buf := ctx.Buf[o.Shdr.Offset:]
	buf[0] = 0
	for _, c := range ctx.Chunks {
		name := c.GetName()
		off := o.nameOffsets[name]
		c.GetShdr().Name = off
		writeString(buf[off:], name)
	}
}

// OutputShdr is the section header table itself, pointed to by
// Ehdr.ShOff/ShNum (spec §4.7). It holds the null entry plus one entry
// per chunk in ctx.Chunks, including the header chunks and itself.
type OutputShdr struct {
	Chunk
	ShstrtabIdx int64
}

func NewOutputShdr() *OutputShdr {
	o := &OutputShdr{Chunk: NewChunk()}
	o.Shdr.AddrAlign = 8
	return o
}

func (o *OutputShdr) Kind() ChunkKind { return ChunkHeader }

func (o *OutputShdr) UpdateShdr(ctx *Context) {
	o.Shdr.Size = uint64(len(ctx.Chunks)+1) * ShdrSize
}

func (o *OutputShdr) CopyBuf(ctx *Context) {
	buf := ctx.Buf[o.Shdr.Offset:]
	utils.Write(buf[0:], Shdr{})
	for i, c := range ctx.Chunks {
		utils.Write(buf[(i+1)*ShdrSize:], *c.GetShdr())
	}
}
