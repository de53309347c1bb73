package linker

import "debug/elf"

// GotSection is the Global Offset Table (spec §4.8): one 8-byte slot for
// each NeedsGot or NeedsGotTp symbol and two for each NeedsTlsGd or
// NeedsTlsLd symbol. Slot
// assignment happens once, single-threaded, after every object's
// relocations have been scanned and every symbol's flags are final.
type GotSection struct {
	Chunk
	Entries []*Symbol // index i holds the symbol owning slot i, nil for a bare TLS slot pair
}

func NewGotSection() *GotSection {
	g := &GotSection{Chunk: NewChunk()}
	g.Name = ".got"
	g.Shdr.Type = uint32(elf.SHT_PROGBITS)
	g.Shdr.Flags = uint64(elf.SHF_ALLOC) | uint64(elf.SHF_WRITE)
	g.Shdr.AddrAlign = 8
	g.Shdr.EntSize = 8
	return g
}

// Add assigns the next slot(s) to sym according to which Needs* flags are
// set, skipping any kind already assigned. TLS GD and LD references
// occupy two consecutive slots; a plain GOT or GOT-TP reference occupies
// one.
func (g *GotSection) Add(sym *Symbol) {
	flags := sym.Flags()

	if flags&NeedsGot != 0 && sym.GotIdx < 0 {
		sym.GotIdx = int32(len(g.Entries))
		g.Entries = append(g.Entries, sym)
	}
	if flags&NeedsGotTp != 0 && sym.GotTpIdx < 0 {
		sym.GotTpIdx = int32(len(g.Entries))
		g.Entries = append(g.Entries, sym)
	}
	if flags&NeedsTlsGd != 0 && sym.GotIdx < 0 {
		sym.GotIdx = int32(len(g.Entries))
		g.Entries = append(g.Entries, sym, sym)
	}
	if flags&NeedsTlsLd != 0 && sym.GotIdx < 0 {
		sym.GotIdx = int32(len(g.Entries))
		g.Entries = append(g.Entries, nil, nil)
	}
}

func (g *GotSection) UpdateShdr(ctx *Context) {
	g.Shdr.Size = uint64(len(g.Entries)) * 8
}

// CopyBuf fills every slot with its symbol's resolved runtime address.
// Slots of imported symbols, and the nil slots of a TLS LD pair, are
// left zero.
func (g *GotSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[g.Shdr.Offset:]
	for i, sym := range g.Entries {
		if sym == nil || sym.IsImported {
			continue
		}
		le64Put(buf[i*8:], sym.GetAddr())
	}
}

func le64Put(buf []byte, v uint64) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
	buf[4] = byte(v >> 32)
	buf[5] = byte(v >> 40)
	buf[6] = byte(v >> 48)
	buf[7] = byte(v >> 56)
}
