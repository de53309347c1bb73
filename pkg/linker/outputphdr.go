package linker

import (
	"debug/elf"

	"github.com/Keruspe/mold/pkg/utils"
)

// OutputPhdr synthesizes the program header table (spec §4.7: "segments
// are derived from the output section list after layout, not read from
// any input"). Entries are computed once addresses are final, during
// UpdateShdr, and serialized in CopyBuf.
type OutputPhdr struct {
	Chunk
	Entries []Phdr
}

func NewOutputPhdr() *OutputPhdr {
	o := &OutputPhdr{Chunk: NewChunk()}
	o.Shdr.Flags = uint64(elf.SHF_ALLOC)
	o.Shdr.AddrAlign = 8
	return o
}

func (o *OutputPhdr) Kind() ChunkKind { return ChunkHeader }

// UpdateShdr derives PT_LOAD segments from contiguous runs of allocated
// chunks that share the same RWX permission set, plus PT_INTERP and
// PT_DYNAMIC when those sections exist (spec §4.7's segment derivation
// rule). No PT_TLS, PT_GNU_RELRO or PT_GNU_STACK entry is emitted.
func (o *OutputPhdr) UpdateShdr(ctx *Context) {
	o.Entries = o.Entries[:0]

	if ctx.Interp != nil {
		shdr := &ctx.Interp.Shdr
		o.Entries = append(o.Entries, Phdr{
			Type:     uint32(elf.PT_INTERP),
			Flags:    uint32(elf.PF_R),
			Offset:   shdr.Offset,
			VAddr:    shdr.Addr,
			PAddr:    shdr.Addr,
			FileSize: shdr.Size,
			MemSize:  shdr.Size,
			Align:    1,
		})
	}

	var cur *Phdr
	flagsFor := func(shdr *Shdr) uint32 {
		f := uint32(elf.PF_R)
		if shdr.Flags&uint64(elf.SHF_WRITE) != 0 {
			f |= uint32(elf.PF_W)
		}
		if shdr.Flags&uint64(elf.SHF_EXECINSTR) != 0 {
			f |= uint32(elf.PF_X)
		}
		return f
	}

	for _, c := range ctx.Chunks {
		shdr := c.GetShdr()
		if shdr.Flags&uint64(elf.SHF_ALLOC) == 0 {
			continue
		}
		flags := flagsFor(shdr)
		end := shdr.Offset + shdr.Size
		vend := shdr.Addr + shdr.Size
		if shdr.Type == uint32(elf.SHT_NOBITS) {
			end = shdr.Offset
		}
		if cur == nil || cur.Flags != flags {
			o.Entries = append(o.Entries, Phdr{
				Type:     uint32(elf.PT_LOAD),
				Flags:    flags,
				Offset:   shdr.Offset,
				VAddr:    shdr.Addr,
				PAddr:    shdr.Addr,
				FileSize: end - shdr.Offset,
				MemSize:  vend - shdr.Addr,
				Align:    PageSize,
			})
			cur = &o.Entries[len(o.Entries)-1]
		} else {
			cur.FileSize = end - cur.Offset
			cur.MemSize = vend - cur.VAddr
		}
	}

	if ctx.Dynamic != nil {
		shdr := &ctx.Dynamic.Shdr
		o.Entries = append(o.Entries, Phdr{
			Type:     uint32(elf.PT_DYNAMIC),
			Flags:    uint32(elf.PF_R) | uint32(elf.PF_W),
			Offset:   shdr.Offset,
			VAddr:    shdr.Addr,
			PAddr:    shdr.Addr,
			FileSize: shdr.Size,
			MemSize:  shdr.Size,
			Align:    8,
		})
	}

	o.Shdr.Size = uint64(len(o.Entries)) * PhdrSize
}

func (o *OutputPhdr) CopyBuf(ctx *Context) {
	buf := ctx.Buf[o.Shdr.Offset:]
	for i, p := range o.Entries {
		utils.Write(buf[i*PhdrSize:], p)
	}
}
