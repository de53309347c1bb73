package linker

import (
	"debug/elf"
	"testing"
)

func TestIsCIdent(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{".init_array", true},
		{".bss", true},
		{"._weird", true},
		{".rodata.str1.1", false}, // dots after the first aren't legal in a C identifier
		{".", false},
		{"notdotprefixed", false},
	}
	for _, c := range cases {
		if got := isCIdent(c.name); got != c.want {
			t.Errorf("isCIdent(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func newTestChunkForSynthetic(flags uint64, size uint64) *OutputSection {
	o := NewOutputSection("x", uint32(elf.SHT_PROGBITS), flags|uint64(elf.SHF_ALLOC), 0)
	o.Shdr.Addr = 0x1000
	o.Shdr.Size = size
	return o
}

func TestBindSyntheticSymbols_BindsEtextToLastExecChunk(t *testing.T) {
	ctx := &Context{}
	initSyntheticSymbols(ctx)

	text := newTestChunkForSynthetic(uint64(elf.SHF_EXECINSTR), 0x20)
	text.Shdr.Addr = 0x1000
	data := newTestChunkForSynthetic(uint64(elf.SHF_WRITE), 0x10)
	data.Shdr.Addr = 0x2000

	ctx.Chunks = []Chunker{text, data}

	bindSyntheticSymbols(ctx)

	if ctx.synthetic.Etext.File() == nil {
		t.Fatal("_etext must be bound once an executable alloc chunk exists")
	}
	if got, want := ctx.synthetic.Etext.Value, text.Shdr.Addr+text.Shdr.Size; got != want {
		t.Errorf("_etext = %#x, want end of last executable chunk %#x", got, want)
	}
	if ctx.synthetic.End.Value != data.Shdr.Addr+data.Shdr.Size {
		t.Errorf("_end must still track the end of the last alloc chunk overall, not just the exec one")
	}
}

func TestBindSyntheticSymbols_InitArrayBounds(t *testing.T) {
	ctx := &Context{}
	initSyntheticSymbols(ctx)

	initArray := NewOutputSection(".init_array", uint32(elf.SHT_INIT_ARRAY), uint64(elf.SHF_ALLOC)|uint64(elf.SHF_WRITE), 0)
	initArray.Shdr.Addr = 0x3000
	initArray.Shdr.Size = 0x18
	initArray.Members = []*InputSection{{}}

	ctx.OutputSections = []*OutputSection{initArray}
	ctx.Chunks = []Chunker{initArray}

	bindSyntheticSymbols(ctx)

	if got, want := ctx.synthetic.InitArrayStart.Value, initArray.Shdr.Addr; got != want {
		t.Errorf("__init_array_start = %#x, want %#x", got, want)
	}
	if got, want := ctx.synthetic.InitArrayEnd.Value, initArray.Shdr.Addr+initArray.Shdr.Size; got != want {
		t.Errorf("__init_array_end = %#x, want %#x", got, want)
	}
}

func TestBindSyntheticSymbols_InitArrayAbsentCollapsesToZero(t *testing.T) {
	ctx := &Context{}
	initSyntheticSymbols(ctx)

	bindSyntheticSymbols(ctx)

	if ctx.synthetic.InitArrayStart.Value != 0 || ctx.synthetic.InitArrayEnd.Value != 0 {
		t.Errorf("with no .init_array in the output, __init_array_start/end must both collapse to 0")
	}
	if ctx.synthetic.InitArrayStart.File() == nil {
		t.Errorf("__init_array_start must still be bound (to 0), not left undefined")
	}
}

func TestBindSyntheticSymbols_SectionMarkersForCIdentSections(t *testing.T) {
	ctx := &Context{}
	initSyntheticSymbols(ctx)

	custom := NewOutputSection(".my_section", uint32(elf.SHT_PROGBITS), uint64(elf.SHF_ALLOC), 0)
	custom.Shdr.Addr = 0x4000
	custom.Shdr.Size = 0x40
	custom.Members = []*InputSection{{}}

	ctx.OutputSections = []*OutputSection{custom}
	ctx.Chunks = []Chunker{custom}

	bindSyntheticSymbols(ctx)

	start := ctx.GetSymbolByName("__start_my_section")
	stop := ctx.GetSymbolByName("__stop_my_section")

	if start.File() == nil || start.Value != custom.Shdr.Addr {
		t.Errorf("__start_my_section must bind to the section's start address")
	}
	if stop.File() == nil || stop.Value != custom.Shdr.Addr+custom.Shdr.Size {
		t.Errorf("__stop_my_section must bind to the section's end address")
	}
}

func TestBindSyntheticSymbols_RelaIpltStartEqualsEnd(t *testing.T) {
	ctx := &Context{}
	initSyntheticSymbols(ctx)

	c := newTestChunkForSynthetic(0, 0x10)
	ctx.Chunks = []Chunker{c}

	bindSyntheticSymbols(ctx)

	if ctx.synthetic.RelaIpltStart.Value != ctx.synthetic.RelaIpltEnd.Value {
		t.Errorf("this linker never emits IFUNC relocations, so __rela_iplt_start/end must collapse to the same empty-range address")
	}
}
