package linker

import (
	"debug/elf"

	"github.com/Keruspe/mold/pkg/utils"
)

// archRISCV64 is the RISC-V 64-bit collaborator, carried forward from
// the teacher's single-architecture relocation kernel (its
// InputSection.ScanRelocations/ApplyRelocAlloc), now reshaped behind
// the Arch interface so it sits alongside archX86_64 instead of being
// the only option.
type archRISCV64 struct{}

func (archRISCV64) Name() string { return "riscv64" }

// riscvPltEntrySize: auipc+ld+jalr+nop, four 4-byte instructions.
const riscvPltEntrySize = 16

func (archRISCV64) PltEntrySize() uint64 { return riscvPltEntrySize }

func (archRISCV64) ScanReloc(ctx *Context, isec *InputSection, rel *Rela, sym *Symbol) {
	switch elf.R_RISCV(rel.Type) {
	case elf.R_RISCV_TLS_GOT_HI20:
		sym.OrFlags(NeedsGotTp)
	case elf.R_RISCV_CALL, elf.R_RISCV_CALL_PLT:
		if sym.IsImported {
			sym.OrFlags(NeedsPlt | NeedsDynsym)
		}
	case elf.R_RISCV_GOT_HI20:
		sym.OrFlags(NeedsGot)
	case elf.R_RISCV_64:
		if sym.IsImported {
			sym.OrFlags(NeedsDynsym | NeedsCopyrel)
		}
	}
}

func (archRISCV64) ApplyReloc(ctx *Context, isec *InputSection, base []byte) {
	rels := isec.GetRels()

	for a := 0; a < len(rels); a++ {
		rel := rels[a]
		if rel.Type == uint32(elf.R_RISCV_NONE) || rel.Type == uint32(elf.R_RISCV_RELAX) {
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

		switch elf.R_RISCV(rel.Type) {
		case elf.R_RISCV_32:
			utils.Write[uint32](loc, uint32(S+A))
		case elf.R_RISCV_64:
			utils.Write[uint64](loc, S+A)
		case elf.R_RISCV_BRANCH:
			writeBtype(loc, uint32(S+A-P))
		case elf.R_RISCV_JAL:
			writeJtype(loc, uint32(S+A-P))
		case elf.R_RISCV_CALL, elf.R_RISCV_CALL_PLT:
			addr := S
			if sym.PltIdx >= 0 {
				addr = sym.GetPltAddr(ctx)
			}
			val := uint32(addr + A - P)
			writeUtype(loc, val)
			writeItype(loc[4:], val)
		case elf.R_RISCV_GOT_HI20:
			utils.Write[uint32](loc, uint32(sym.GetGotAddr(ctx)+A-P))
		case elf.R_RISCV_TLS_GOT_HI20:
			utils.Write[uint32](loc, uint32(sym.GetGotTpAddr(ctx)+A-P))
		case elf.R_RISCV_PCREL_HI20:
			utils.Write[uint32](loc, uint32(S+A-P))
		case elf.R_RISCV_HI20:
			writeUtype(loc, uint32(S+A))
		case elf.R_RISCV_LO12_I, elf.R_RISCV_LO12_S:
			val := S + A
			if rel.Type == uint32(elf.R_RISCV_LO12_I) {
				writeItype(loc, uint32(val))
			} else {
				writeStype(loc, uint32(val))
			}
			if utils.SignExtend(val, 11) == val {
				setRs1(loc, 0)
			}
		case elf.R_RISCV_TPREL_LO12_I, elf.R_RISCV_TPREL_LO12_S:
			val := S + A - ctx.TpAddr
			if rel.Type == uint32(elf.R_RISCV_TPREL_LO12_I) {
				writeItype(loc, uint32(val))
			} else {
				writeStype(loc, uint32(val))
			}
			if utils.SignExtend(val, 11) == val {
				setRs1(loc, 4)
			}
		}
	}

	for a := 0; a < len(rels); a++ {
		switch elf.R_RISCV(rels[a].Type) {
		case elf.R_RISCV_PCREL_LO12_I, elf.R_RISCV_PCREL_LO12_S:
			sym := isec.File.Symbols[rels[a].Sym]
			loc := base[rels[a].Offset:]
			val := utils.Read[uint32](base[sym.Value:])

			if rels[a].Type == uint32(elf.R_RISCV_PCREL_LO12_I) {
				writeItype(loc, val)
			} else {
				writeStype(loc, val)
			}
		}
	}

	for a := 0; a < len(rels); a++ {
		switch elf.R_RISCV(rels[a].Type) {
		case elf.R_RISCV_PCREL_HI20, elf.R_RISCV_TLS_GOT_HI20, elf.R_RISCV_GOT_HI20:
			loc := base[rels[a].Offset:]
			val := utils.Read[uint32](loc)
			utils.Write[uint32](loc, utils.Read[uint32](isec.Contents[rels[a].Offset:]))
			writeUtype(loc, val)
		}
	}
}

// WritePltEntry emits auipc t3,%hi(gotoff); ld t3,%lo(gotoff)(t3);
// jalr t1,t3; nop — the standard RISC-V non-lazy PLT stub shape, which
// loads the target from the symbol's GOT slot. There is no PLT0
// resolver stub.
func (archRISCV64) WritePltEntry(ctx *Context, buf []byte, sym *Symbol) {
	gotAddr := sym.GetGotAddr(ctx)
	pltAddr := sym.GetPltAddr(ctx)
	off := uint32(gotAddr - pltAddr)

	utils.Write[uint32](buf[0:], writeUtype(nil, off)|0x00000e17)   // auipc t3, hi20
	utils.Write[uint32](buf[4:], (off&0xfff)<<20|0x000e3e03)        // ld t3, lo12(t3)
	utils.Write[uint32](buf[8:], 0x000e0367)                        // jalr t1, t3
	utils.Write[uint32](buf[12:], 0x00000013)                       // nop
}

func btype(val uint32) uint32 {
	return utils.Bit(val, 12)<<31 | utils.Bits(val, 10, 5)<<25 |
		utils.Bits(val, 4, 1)<<8 | utils.Bit(val, 11)<<7
}

func jtype(val uint32) uint32 {
	return utils.Bit(val, 20)<<31 | utils.Bits(val, 10, 1)<<21 |
		utils.Bit(val, 11)<<20 | utils.Bits(val, 19, 12)<<12
}

func itype(val uint32) uint32 {
	return val << 20
}

func stype(val uint32) uint32 {
	return utils.Bits(val, 11, 5)<<25 | utils.Bits(val, 4, 0)<<7
}

func utype(val uint32) uint32 {
	return (val + 0x800) & 0xffff_f000
}

func writeItype(loc []byte, val uint32) uint32 {
	mask := uint32(0b000000_00000_11111_111_11111_1111111)
	out := (utils.Read[uint32](loc) & mask) | itype(val)
	utils.Write[uint32](loc, out)
	return out
}

func writeStype(loc []byte, val uint32) {
	mask := uint32(0b000000_11111_11111_111_00000_1111111)
	utils.Write[uint32](loc, (utils.Read[uint32](loc)&mask)|stype(val))
}

func writeBtype(loc []byte, val uint32) {
	mask := uint32(0b000000_11111_11111_111_00000_1111111)
	utils.Write[uint32](loc, (utils.Read[uint32](loc)&mask)|btype(val))
}

func writeUtype(loc []byte, val uint32) uint32 {
	out := utype(val)
	if loc != nil {
		mask := uint32(0b000000_00000_00000_000_11111_1111111)
		out = (utils.Read[uint32](loc) & mask) | utype(val)
		utils.Write[uint32](loc, out)
	}
	return out
}

func writeJtype(loc []byte, val uint32) {
	mask := uint32(0b000000_00000_00000_000_11111_1111111)
	utils.Write[uint32](loc, (utils.Read[uint32](loc)&mask)|jtype(val))
}

func setRs1(loc []byte, rs1 uint32) {
	utils.Write[uint32](loc, utils.Read[uint32](loc)&0b111111_11111_00000_111_11111_1111111)
	utils.Write[uint32](loc, utils.Read[uint32](loc)|(rs1<<15))
}
