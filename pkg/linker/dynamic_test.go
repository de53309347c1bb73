package linker

import (
	"debug/elf"
	"testing"
)

func newTestDynamicCtx() *Context {
	ctx := &Context{Config: &Config{}}
	ctx.Dynstr = NewDynstrSection()
	ctx.Dynsym = NewDynsymSection()
	ctx.Hash = NewGnuHashSection()
	ctx.Hash.Shdr.Addr = 0x1000
	ctx.Dynstr.Shdr.Addr = 0x2000
	ctx.Dynsym.Shdr.Addr = 0x3000
	ctx.VerNeed = NewVerneedSection()
	return ctx
}

func findDynTag(entries []Dyn, tag elf.DynTag) (Dyn, bool) {
	for _, e := range entries {
		if elf.DynTag(e.Tag) == tag {
			return e, true
		}
	}
	return Dyn{}, false
}

func TestDynamicSection_AdvertisesGnuHashNotSysvHash(t *testing.T) {
	ctx := newTestDynamicCtx()
	d := NewDynamicSection()
	d.UpdateShdr(ctx)

	if _, ok := findDynTag(d.entries, elf.DT_HASH); ok {
		t.Errorf(".dynamic must not contain DT_HASH for a .gnu.hash-only table")
	}
	entry, ok := findDynTag(d.entries, elf.DT_GNU_HASH)
	if !ok {
		t.Fatalf(".dynamic missing DT_GNU_HASH")
	}
	if entry.Val != ctx.Hash.Shdr.Addr {
		t.Errorf("DT_GNU_HASH = %#x, want %#x", entry.Val, ctx.Hash.Shdr.Addr)
	}
}

func TestDynamicSection_NeededOnePerDso(t *testing.T) {
	ctx := newTestDynamicCtx()
	ctx.Dsos = []*SharedFile{
		newTestSharedFile("libc.so.6", 0),
		newTestSharedFile("libm.so.6", 1),
	}

	d := NewDynamicSection()
	d.UpdateShdr(ctx)

	count := 0
	for _, e := range d.entries {
		if elf.DynTag(e.Tag) == elf.DT_NEEDED {
			count++
		}
	}
	if count != 2 {
		t.Errorf("expected 2 DT_NEEDED entries, got %d", count)
	}
}

func TestDynamicSection_TerminatesWithDtNull(t *testing.T) {
	ctx := newTestDynamicCtx()
	d := NewDynamicSection()
	d.UpdateShdr(ctx)

	if len(d.entries) == 0 {
		t.Fatal("expected at least one entry")
	}
	last := d.entries[len(d.entries)-1]
	if elf.DynTag(last.Tag) != elf.DT_NULL {
		t.Errorf("last entry must be DT_NULL, got tag %v", elf.DynTag(last.Tag))
	}
}

func TestDynamicSection_RunpathOnlyWhenConfigured(t *testing.T) {
	ctx := newTestDynamicCtx()
	d := NewDynamicSection()
	d.UpdateShdr(ctx)
	if _, ok := findDynTag(d.entries, elf.DT_RUNPATH); ok {
		t.Errorf("DT_RUNPATH must be absent when no rpaths were configured")
	}

	ctx2 := newTestDynamicCtx()
	ctx2.Config.Rpaths = []string{"/opt/lib", "/usr/local/lib"}
	d2 := NewDynamicSection()
	d2.UpdateShdr(ctx2)
	if _, ok := findDynTag(d2.entries, elf.DT_RUNPATH); !ok {
		t.Errorf("DT_RUNPATH must be present when rpaths were configured")
	}
}
