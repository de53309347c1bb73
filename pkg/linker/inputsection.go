package linker

import (
	"debug/elf"
	"math"
	"math/bits"

	"github.com/Keruspe/mold/pkg/utils"
)

// InputSection mirrors one ELF section of one ObjectFile (spec §3/§4.1).
// File-level IsAlive (whether the whole ObjectFile survives garbage
// collection) and section-level IsAlive are independent: a live file can
// still contribute dead sections (an .eh_frame stripped out, or a
// mergeable section split away into fragments and retired here).
type InputSection struct {
	File     *ObjectFile
	Contents []byte
	Shndx    uint32
	ShSize   uint32
	IsAlive  bool
	P2Align  uint8

	Offset        uint32
	OutputSection *OutputSection

	RelsecIdx uint32
	Rels      []Rela
}

// NewInputSection builds the InputSection for ELF section shndx of file
// and registers (or finds) its OutputSection bin (spec §4.5).
func NewInputSection(ctx *Context, name string, file *ObjectFile, shndx uint32) *InputSection {
	s := &InputSection{
		File:      file,
		Shndx:     shndx,
		IsAlive:   true,
		Offset:    math.MaxUint32,
		RelsecIdx: math.MaxUint32,
		ShSize:    math.MaxUint32,
	}

	shdr := s.Shdr()
	s.Contents = file.MF.Bytes[shdr.Offset : shdr.Offset+shdr.Size]

	if shdr.Flags&uint64(elf.SHF_COMPRESSED) != 0 {
		fatalf("%s: compressed sections are not supported", file.Name())
	}
	s.ShSize = uint32(shdr.Size)

	toP2Align := func(align uint64) uint8 {
		if align == 0 {
			return 0
		}
		return uint8(bits.TrailingZeros64(align))
	}
	s.P2Align = toP2Align(shdr.AddrAlign)

	outName := GetOutputName(name, shdr.Flags)
	typ := CanonicalizeType(outName, uint64(shdr.Type))
	s.OutputSection = GetOutputSection(ctx, name, typ, shdr.Flags)

	return s
}

func (i *InputSection) Shdr() *Shdr {
	return &i.File.ElfSections[i.Shndx]
}

func (i *InputSection) Name() string {
	return ElfGetName(i.File.ShStrtab, i.Shdr().Name)
}

func (i *InputSection) WriteTo(ctx *Context, buf []byte) {
	if i.Shdr().Type == uint32(elf.SHT_NOBITS) || i.ShSize == 0 {
		return
	}

	i.CopyContents(buf)

	if i.Shdr().Flags&uint64(elf.SHF_ALLOC) != 0 {
		ctx.Arch.ApplyReloc(ctx, i, buf)
	}
}

func (i *InputSection) CopyContents(buf []byte) {
	copy(buf, i.Contents)
}

// GetRels lazily decodes this section's relocation table. Memoized
// since both the scan phase and the writer ask for it.
func (i *InputSection) GetRels() []Rela {
	if i.RelsecIdx == math.MaxUint32 || i.Rels != nil {
		return i.Rels
	}

	bs := i.File.GetBytesFromShdr(&i.File.ElfSections[i.RelsecIdx])
	i.Rels = utils.ReadSlice[Rela](bs, RelaSize)
	return i.Rels
}

func (i *InputSection) GetAddr() uint64 {
	return i.OutputSection.Shdr.Addr + uint64(i.Offset)
}

// ScanRelocations classifies every relocation in this section against
// its Arch, ORing flag bits into the referenced symbols (spec §4.8).
// Called once per alive, allocated section, in parallel across sections.
func (i *InputSection) ScanRelocations(ctx *Context) {
	for idx := range i.GetRels() {
		rel := &i.Rels[idx]
		sym := i.File.Symbols[rel.Sym]
		if sym.File() == nil {
			continue
		}
		ctx.Arch.ScanReloc(ctx, i, rel, sym)
	}
}
