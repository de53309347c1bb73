package linker

import (
	"debug/elf"

	"github.com/Keruspe/mold/pkg/utils"
)

// GnuHashSection is .gnu.hash, the GNU-extension symbol lookup table
// (spec §4.9). Built with a single bucket-bloom layout (one bloom word,
// one bucket chain), which is correct for any symbol count though not
// as lookup-dense as glibc's multi-bucket table.
type GnuHashSection struct {
	Chunk
}

func NewGnuHashSection() *GnuHashSection {
	h := &GnuHashSection{Chunk: NewChunk()}
	h.Name = ".gnu.hash"
	h.Shdr.Type = uint32(elf.SHT_GNU_HASH)
	h.Shdr.Flags = uint64(elf.SHF_ALLOC)
	h.Shdr.AddrAlign = 8
	h.Shdr.Link = 0 // filled in during layout once Dynsym's Shndx is known
	return h
}

func (h *GnuHashSection) symCount(ctx *Context) int {
	n := len(ctx.Dynsym.Entries) - 1
	if n < 0 {
		return 0
	}
	return n
}

func (h *GnuHashSection) UpdateShdr(ctx *Context) {
	n := h.symCount(ctx)
	// header(16) + bloom(1 word of 8 bytes) + buckets(1) + chain(n)
	h.Shdr.Size = 16 + 8 + 4 + uint64(n)*4
}

func (h *GnuHashSection) CopyBuf(ctx *Context) {
	n := h.symCount(ctx)
	buf := ctx.Buf[h.Shdr.Offset:]

	utils.Write[uint32](buf[0:], 1)  // nbuckets
	utils.Write[uint32](buf[4:], 1)  // symndx: first dynsym row hashed (all rows here, since no locals)
	utils.Write[uint32](buf[8:], 1)  // bloom_size
	utils.Write[uint32](buf[12:], 6) // bloom_shift

	bloomOff := 16
	bucketOff := bloomOff + 8
	chainOff := bucketOff + 4

	var bloom uint64
	for i := 1; i <= n; i++ {
		sym := ctx.Dynsym.Entries[i]
		h := GnuHash(sym.Name)
		bloom |= 1 << (h % 64)
		bloom |= 1 << ((h >> 6) % 64)
	}
	utils.Write[uint64](buf[bloomOff:], bloom)

	if n > 0 {
		utils.Write[uint32](buf[bucketOff:], 1)
	}
	for i := 1; i <= n; i++ {
		sym := ctx.Dynsym.Entries[i]
		h := GnuHash(sym.Name) &^ 1
		if i == n {
			h |= 1
		}
		utils.Write[uint32](buf[chainOff+(i-1)*4:], h)
	}
}
