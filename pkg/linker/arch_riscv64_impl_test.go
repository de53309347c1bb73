package linker

import (
	"debug/elf"
	"testing"
)

func TestArchRISCV64_ScanReloc_CallPltImportedNeedsPltAndDynsym(t *testing.T) {
	sym := NewSymbol("puts")
	sym.IsImported = true

	rel := &Rela{Type: uint32(elf.R_RISCV_CALL_PLT)}
	archRISCV64{}.ScanReloc(nil, nil, rel, sym)

	if sym.Flags()&NeedsPlt == 0 {
		t.Errorf("R_RISCV_CALL_PLT on an imported symbol must set NeedsPlt")
	}
	if sym.Flags()&NeedsDynsym == 0 {
		t.Errorf("R_RISCV_CALL_PLT on an imported symbol must set NeedsDynsym")
	}
}

func TestArchRISCV64_ScanReloc_CallPltLocalSymbolNoPlt(t *testing.T) {
	sym := NewSymbol("local_fn")
	sym.IsImported = false

	rel := &Rela{Type: uint32(elf.R_RISCV_CALL_PLT)}
	archRISCV64{}.ScanReloc(nil, nil, rel, sym)

	if sym.Flags()&NeedsPlt != 0 {
		t.Errorf("a call to a locally-defined symbol must not require a PLT stub")
	}
}

func TestArchRISCV64_ScanReloc_GotHi20NeedsGot(t *testing.T) {
	sym := NewSymbol("extern_var")
	rel := &Rela{Type: uint32(elf.R_RISCV_GOT_HI20)}
	archRISCV64{}.ScanReloc(nil, nil, rel, sym)

	if sym.Flags()&NeedsGot == 0 {
		t.Errorf("R_RISCV_GOT_HI20 must set NeedsGot")
	}
}

func TestArchRISCV64_PltEntrySize(t *testing.T) {
	if got := (archRISCV64{}).PltEntrySize(); got != 16 {
		t.Errorf("RISC-V PLT entry size = %d, want 16 (four 4-byte instructions)", got)
	}
}
