package linker

import (
	"debug/elf"

	"github.com/Keruspe/mold/pkg/utils"
)

// DynsymSection is .dynsym: every symbol flagged NeedsDynsym, in the
// order they were added (spec §4.8/§4.9: "exported and imported symbols
// alike get one row here"). Local-vs-global ordering within the table
// follows sh_info like the regular .symtab, but this linker never emits
// local dynsym rows, so Shdr.Info is always 1 (first global index).
type DynsymSection struct {
	Chunk
	Entries []*Symbol
}

func NewDynsymSection() *DynsymSection {
	d := &DynsymSection{Chunk: NewChunk()}
	d.Name = ".dynsym"
	d.Shdr.Type = uint32(elf.SHT_DYNSYM)
	d.Shdr.Flags = uint64(elf.SHF_ALLOC)
	d.Shdr.AddrAlign = 8
	d.Shdr.EntSize = SymSize
	d.Shdr.Info = 1
	// placeholder null symbol at index 0
	d.Entries = append(d.Entries, nil)
	return d
}

func (d *DynsymSection) Add(ctx *Context, sym *Symbol) {
	if sym.DynsymIdx >= 0 {
		return
	}
	sym.DynsymIdx = int32(len(d.Entries))
	d.Entries = append(d.Entries, sym)
	ctx.Dynstr.Add(sym.Name)
}

func (d *DynsymSection) UpdateShdr(ctx *Context) {
	d.Shdr.Size = uint64(len(d.Entries)) * SymSize
}

func (d *DynsymSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[d.Shdr.Offset:]
	for i, sym := range d.Entries {
		if sym == nil {
			utils.Write(buf[i*SymSize:], Sym{})
			continue
		}
		var esym Sym
		esym.Name = ctx.Dynstr.Add(sym.Name)
		if src := sym.ElfSym(); src != nil {
			esym.Info = src.Info
			esym.Other = src.Other
			esym.Size = src.Size
		}
		if sym.IsImported {
			esym.Shndx = uint16(elf.SHN_UNDEF)
			esym.Val = 0
		} else {
			esym.Shndx = uint16(elf.SHN_ABS)
			esym.Val = sym.GetAddr()
		}
		utils.Write(buf[i*SymSize:], esym)
	}
}
