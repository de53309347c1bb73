package linker

import (
	"debug/elf"

	"github.com/Keruspe/mold/pkg/utils"
)

// archX86_64 is the collaborator for the x86-64 psABI, built fresh
// against the public relocation-type table (debug/elf's R_X86_64_*
// constants) since none of the example repos in the retrieval pack ever
// touch this architecture — the teacher's own relocation kernel is
// RISC-V-only (archRISCV64). Only the non-lazy PLT scheme is
// implemented: every PLT stub jumps straight through the symbol's .got
// slot rather than through a runtime dl_resolve trampoline; there is no
// PLT0 stub and no separate .got.plt section.
type archX86_64 struct{}

func (archX86_64) Name() string { return "x86_64" }

const x86_64PltEntrySize = 16

func (archX86_64) PltEntrySize() uint64 { return x86_64PltEntrySize }

func (archX86_64) ScanReloc(ctx *Context, isec *InputSection, rel *Rela, sym *Symbol) {
	switch elf.R_X86_64(rel.Type) {
	case elf.R_X86_64_GOT32, elf.R_X86_64_GOTPCREL, elf.R_X86_64_GOTPCRELX,
		elf.R_X86_64_REX_GOTPCRELX, elf.R_X86_64_GOTTPOFF:
		if elf.R_X86_64(rel.Type) == elf.R_X86_64_GOTTPOFF {
			sym.OrFlags(NeedsGotTp)
		} else {
			sym.OrFlags(NeedsGot)
		}
	case elf.R_X86_64_PLT32:
		if sym.IsImported {
			sym.OrFlags(NeedsPlt | NeedsDynsym)
		}
	case elf.R_X86_64_TLSGD:
		sym.OrFlags(NeedsTlsGd)
	case elf.R_X86_64_TLSLD:
		sym.OrFlags(NeedsTlsLd)
	case elf.R_X86_64_64, elf.R_X86_64_32, elf.R_X86_64_32S:
		if sym.IsImported {
			sym.OrFlags(NeedsDynsym | NeedsCopyrel)
		}
	}
}

func (archX86_64) ApplyReloc(ctx *Context, isec *InputSection, base []byte) {
	for _, rel := range isec.GetRels() {
		if rel.Type == uint32(elf.R_X86_64_NONE) {
			continue
		}

		sym := isec.File.Symbols[rel.Sym]
		loc := base[rel.Offset:]
		if sym.File() == nil {
			continue
		}

		S := sym.GetAddr()
		A := uint64(rel.Addend)
		P := isec.GetAddr() + rel.Offset

		switch elf.R_X86_64(rel.Type) {
		case elf.R_X86_64_64:
			utils.Write[uint64](loc, S+A)
		case elf.R_X86_64_32, elf.R_X86_64_32S:
			utils.Write[uint32](loc, uint32(S+A))
		case elf.R_X86_64_PC32:
			utils.Write[uint32](loc, uint32(S+A-P))
		case elf.R_X86_64_PLT32:
			addr := S
			if sym.PltIdx >= 0 {
				addr = sym.GetPltAddr(ctx)
			}
			utils.Write[uint32](loc, uint32(addr+A-P))
		case elf.R_X86_64_GOTPCREL, elf.R_X86_64_GOTPCRELX, elf.R_X86_64_REX_GOTPCRELX:
			utils.Write[uint32](loc, uint32(sym.GetGotAddr(ctx)+A-P))
		case elf.R_X86_64_GOTTPOFF:
			utils.Write[uint32](loc, uint32(sym.GetGotTpAddr(ctx)+A-P))
		case elf.R_X86_64_TPOFF32:
			utils.Write[uint32](loc, uint32(S+A-ctx.TpAddr))
		}
	}
}

// WritePltEntry emits: ff 25 <disp32> (jmp *disp(%rip)) then ten nops
// padding the stub to 16 bytes, pointing at the symbol's .got slot.
func (archX86_64) WritePltEntry(ctx *Context, buf []byte, sym *Symbol) {
	pltAddr := sym.GetPltAddr(ctx)
	gotAddr := sym.GetGotAddr(ctx)
	disp := uint32(gotAddr - (pltAddr + 6))

	buf[0] = 0xff
	buf[1] = 0x25
	utils.Write[uint32](buf[2:], disp)
	for i := 6; i < int(x86_64PltEntrySize); i++ {
		buf[i] = 0x90 // nop
	}
}
