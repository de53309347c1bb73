package linker

import (
	"debug/elf"
	"testing"

	"github.com/Keruspe/mold/internal/diag"
)

func newTestAllocChunk(flags uint64, size uint64) *OutputSection {
	o := NewOutputSection("x", uint32(elf.SHT_PROGBITS), flags|uint64(elf.SHF_ALLOC), 0)
	o.Shdr.Size = size
	o.Shdr.AddrAlign = 1
	return o
}

func TestSetOutputSectionOffsets_PageAlignsAtRWXTransition(t *testing.T) {
	ctx := &Context{
		Config: &Config{ImageBase: 0x200000},
		Sink:   diag.NewSink(),
		Phdr:   NewOutputPhdr(),
	}

	ro := newTestAllocChunk(0, 0x10) // read-only, e.g. .rodata
	rx := newTestAllocChunk(uint64(elf.SHF_EXECINSTR), 0x10) // read-exec, e.g. .text
	rw := newTestAllocChunk(uint64(elf.SHF_WRITE), 0x10)     // read-write, e.g. .data

	ctx.Chunks = []Chunker{ro, rx, rw}

	SetOutputSectionOffsets(ctx)

	if ro.Shdr.Addr%PageSize != 0 {
		t.Fatalf("first alloc chunk must start page-aligned, got addr=%#x", ro.Shdr.Addr)
	}
	if rx.Shdr.Addr%PageSize != 0 {
		t.Errorf("RX chunk following an RO chunk must start a new page, got addr=%#x", rx.Shdr.Addr)
	}
	if rw.Shdr.Addr%PageSize != 0 {
		t.Errorf("RW chunk following an RX chunk must start a new page, got addr=%#x", rw.Shdr.Addr)
	}
	// Offsets must stay congruent with addresses, i.e. no extra
	// alignment step is needed in the offset-derivation pass.
	if rx.Shdr.Offset%PageSize != 0 {
		t.Errorf("file offset at a segment boundary must also land on a page, got offset=%#x", rx.Shdr.Offset)
	}
}

func TestSetOutputSectionOffsets_NoPaddingWithinSameSegment(t *testing.T) {
	ctx := &Context{
		Config: &Config{ImageBase: 0x200000},
		Sink:   diag.NewSink(),
		Phdr:   NewOutputPhdr(),
	}

	a := newTestAllocChunk(0, 0x10)
	b := newTestAllocChunk(0, 0x10)
	ctx.Chunks = []Chunker{a, b}

	SetOutputSectionOffsets(ctx)

	if b.Shdr.Addr != a.Shdr.Addr+a.Shdr.Size {
		t.Fatalf("two chunks with identical RWX flags must pack without a page gap, a.end=%#x b.addr=%#x",
			a.Shdr.Addr+a.Shdr.Size, b.Shdr.Addr)
	}
}
