package linker

import (
	"debug/elf"

	"github.com/Keruspe/mold/pkg/utils"
)

// DynamicSection is .dynamic: the table ld.so reads at process startup
// (spec §4.9). Entries are computed once in UpdateShdr, after every
// other dynamic-linking chunk (.dynsym/.dynstr/.gnu.hash/.gnu.version*)
// has a final address, since most entries are just pointers to those.
type DynamicSection struct {
	Chunk
	entries []Dyn
}

func NewDynamicSection() *DynamicSection {
	d := &DynamicSection{Chunk: NewChunk()}
	d.Name = ".dynamic"
	d.Shdr.Type = uint32(elf.SHT_DYNAMIC)
	d.Shdr.Flags = uint64(elf.SHF_ALLOC) | uint64(elf.SHF_WRITE)
	d.Shdr.AddrAlign = 8
	d.Shdr.EntSize = DynSize
	return d
}

func (d *DynamicSection) add(tag elf.DynTag, val uint64) {
	d.entries = append(d.entries, Dyn{Tag: uint64(tag), Val: val})
}

func (d *DynamicSection) UpdateShdr(ctx *Context) {
	d.entries = d.entries[:0]

	for _, dso := range ctx.Dsos {
		d.add(elf.DT_NEEDED, uint64(ctx.Dynstr.Add(dso.Soname)))
	}
	if ctx.Config.Rpaths != nil {
		rpath := ""
		for i, p := range ctx.Config.Rpaths {
			if i > 0 {
				rpath += ":"
			}
			rpath += p
		}
		if rpath != "" {
			d.add(elf.DT_RUNPATH, uint64(ctx.Dynstr.Add(rpath)))
		}
	}
	if ctx.Config.ExportDynamic || len(ctx.Dsos) > 0 {
		if ctx.Config.Pie {
			d.add(elf.DT_FLAGS_1, 0x8000000 /* DF_1_PIE */)
		}
	}

	d.add(elf.DT_GNU_HASH, ctx.Hash.Shdr.Addr)
	d.add(elf.DT_STRTAB, ctx.Dynstr.Shdr.Addr)
	d.add(elf.DT_SYMTAB, ctx.Dynsym.Shdr.Addr)
	d.add(elf.DT_STRSZ, ctx.Dynstr.Shdr.Size)
	d.add(elf.DT_SYMENT, SymSize)

	if ctx.Got != nil && len(ctx.Got.Entries) > 0 {
		d.add(elf.DT_PLTGOT, ctx.Got.Shdr.Addr)
	}
	if ctx.Plt != nil && len(ctx.Plt.Entries) > 0 {
		d.add(elf.DT_PLTRELSZ, 0)
		d.add(elf.DT_PLTREL, uint64(elf.DT_RELA))
	}
	if len(ctx.VerNeed.Needed) > 0 {
		d.add(elf.DT_VERNEED, ctx.VerNeed.Shdr.Addr)
		d.add(elf.DT_VERNEEDNUM, uint64(len(ctx.VerNeed.Needed)))
	}

	d.add(elf.DT_NULL, 0)

	d.Shdr.Size = uint64(len(d.entries)) * DynSize
}

func (d *DynamicSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[d.Shdr.Offset:]
	for i, e := range d.entries {
		utils.Write(buf[i*DynSize:], e)
	}
}
