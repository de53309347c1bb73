package linker

import (
	"debug/elf"
	"testing"

	"github.com/Keruspe/mold/internal/diag"
)

func newTestObjFileForResolver(name string, priority int64) *ObjectFile {
	o := &ObjectFile{}
	o.MF = &MemoryMappedFile{Name: name}
	o.Priority = priority
	o.IsAlive = true
	o.self = o
	return o
}

// newTestDefinition builds a one-global-symbol ObjectFile whose sole
// global is bound (weak iff weak) so ResolveSymbols has something to
// register.
func newTestDefinition(name string, priority int64, symName string, weak bool) *ObjectFile {
	o := newTestObjFileForResolver(name, priority)
	o.FirstGlobal = 0
	o.ElfSyms = []Sym{{Shndx: 1}}
	if weak {
		o.ElfSyms[0].SetBind(uint8(elf.STB_WEAK))
	}
	o.Sections = []*InputSection{nil, {IsAlive: true, OutputSection: &OutputSection{}}}
	o.Symbols = []*Symbol{NewSymbol(symName)}
	return o
}

func TestResolveSymbols_TwoStrongDefinitionsReportDuplicate(t *testing.T) {
	ctx := &Context{Sink: diag.NewSink()}

	a := newTestDefinition("a.o", 0, "foo", false)
	b := newTestDefinition("b.o", 1, "foo", false)

	a.ResolveSymbols(ctx)
	b.ResolveSymbols(ctx)

	if !ctx.Sink.HasErrors() {
		t.Fatal("two strong definitions of the same symbol from different files must report a semantic-link error")
	}
}

func TestResolveSymbols_StrongThenWeakNoDuplicate(t *testing.T) {
	ctx := &Context{Sink: diag.NewSink()}

	strong := newTestDefinition("a.o", 0, "foo", false)
	weak := newTestDefinition("b.o", 1, "foo", true)

	strong.ResolveSymbols(ctx)
	weak.ResolveSymbols(ctx)

	if ctx.Sink.HasErrors() {
		t.Fatal("a strong definition beating a weak one is not a duplicate symbol error")
	}
}

func TestResolveSymbols_SameFileNoDuplicate(t *testing.T) {
	ctx := &Context{Sink: diag.NewSink()}

	o := newTestObjFileForResolver("a.o", 0)
	o.FirstGlobal = 0
	o.ElfSyms = []Sym{{Shndx: 1}, {Shndx: 1}}
	o.Sections = []*InputSection{nil, {IsAlive: true, OutputSection: &OutputSection{}}}
	sym := NewSymbol("foo")
	o.Symbols = []*Symbol{sym, sym}

	o.ResolveSymbols(ctx)

	if ctx.Sink.HasErrors() {
		t.Fatal("a symbol defined twice by the same file's own symbol table must not be reported as a cross-file duplicate")
	}
}

func TestCheckUndefinedReferences_FlagsMissingStrongReference(t *testing.T) {
	ctx := &Context{Sink: diag.NewSink()}

	o := newTestObjFileForResolver("a.o", 0)
	o.FirstGlobal = 0
	o.ElfSyms = []Sym{{Shndx: uint16(elf.SHN_UNDEF)}}
	o.Symbols = []*Symbol{NewSymbol("missing")}
	ctx.Objs = []*ObjectFile{o}

	CheckUndefinedReferences(ctx)

	if !ctx.Sink.HasErrors() {
		t.Fatal("an undefined, non-weak reference with no owning file must report an undefined-reference error")
	}
}

func TestCheckUndefinedReferences_WeakUndefExempt(t *testing.T) {
	ctx := &Context{Sink: diag.NewSink()}

	o := newTestObjFileForResolver("a.o", 0)
	o.FirstGlobal = 0
	weakUndef := Sym{Shndx: uint16(elf.SHN_UNDEF)}
	weakUndef.SetBind(uint8(elf.STB_WEAK))
	o.ElfSyms = []Sym{weakUndef}
	o.Symbols = []*Symbol{NewSymbol("maybe_missing")}
	ctx.Objs = []*ObjectFile{o}

	CheckUndefinedReferences(ctx)

	if ctx.Sink.HasErrors() {
		t.Fatal("an undefined-weak reference must resolve to zero silently, not report an error")
	}
}

func TestCheckUndefinedReferences_ResolvedReferenceExempt(t *testing.T) {
	ctx := &Context{Sink: diag.NewSink()}

	owner := &InputFile{}
	sym := NewSymbol("present")
	sym.SetFileUnsync(owner)

	o := newTestObjFileForResolver("a.o", 0)
	o.FirstGlobal = 0
	o.ElfSyms = []Sym{{Shndx: uint16(elf.SHN_UNDEF)}}
	o.Symbols = []*Symbol{sym}
	ctx.Objs = []*ObjectFile{o}

	CheckUndefinedReferences(ctx)

	if ctx.Sink.HasErrors() {
		t.Fatal("a reference already resolved to an owning file (including a synthetic one) must not be flagged")
	}
}
