package linker

import (
	"debug/elf"

	"github.com/Keruspe/mold/pkg/utils"
)

// OutputEhdr is the file's ELF header chunk: always the first chunk,
// never alignment-padded (spec §4.7's header special case).
type OutputEhdr struct {
	Chunk
}

func NewOutputEhdr() *OutputEhdr {
	o := &OutputEhdr{Chunk: NewChunk()}
	o.Shdr.Flags = uint64(elf.SHF_ALLOC)
	o.Shdr.Size = EhdrSize
	o.Shdr.AddrAlign = 8
	return o
}

func (o *OutputEhdr) Kind() ChunkKind { return ChunkHeader }

func (o *OutputEhdr) CopyBuf(ctx *Context) {
	var ehdr Ehdr
	copy(ehdr.Ident[:], "\x7fELF")
	ehdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	ehdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	ehdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	if ctx.Config.Pie {
		ehdr.Type = uint16(elf.ET_DYN)
	} else {
		ehdr.Type = uint16(elf.ET_EXEC)
	}
	ehdr.Machine = uint16(ctx.Config.Machine.ElfMachine())
	ehdr.Version = uint32(elf.EV_CURRENT)

	if entry := ctx.GetSymbolByName(entrySymbolName(ctx)); entry.File() != nil {
		ehdr.Entry = entry.GetAddr()
	}

	ehdr.PhOff = ctx.Phdr.Shdr.Offset
	ehdr.ShOff = ctx.Shdr.Shdr.Offset
	ehdr.EhSize = EhdrSize
	ehdr.PhEntSize = PhdrSize
	ehdr.PhNum = uint16(len(ctx.Phdr.Entries))
	ehdr.ShEntSize = ShdrSize
	ehdr.ShNum = uint16(len(ctx.Chunks) + 1)
	ehdr.ShStrndx = uint16(ctx.Shdr.ShstrtabIdx)

	utils.Write(ctx.Buf[o.Shdr.Offset:], ehdr)
}

func entrySymbolName(ctx *Context) string {
	if ctx.Config.Entry != "" {
		return ctx.Config.Entry
	}
	return "_start"
}
