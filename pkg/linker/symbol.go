package linker

import (
	"debug/elf"
	"sync/atomic"
)

// Flag bits describing which dynamic-linking table entries a symbol's
// target needs, set by the relocation scanner (spec §3/§4.8).
const (
	NeedsGot uint32 = 1 << iota
	NeedsPlt
	NeedsGotTp
	NeedsTlsGd
	NeedsTlsLd
	NeedsCopyrel
	NeedsDynsym
)

// Symbol is the central interned entity: one instance per distinct name
// across the entire link (spec §3). The only fields mutated concurrently
// during parallel phases are file (via CAS) and flags (via atomic-OR);
// every other field is written once, by whichever task won the CAS, and
// read only after the resolver's barrier (spec §5).
type Symbol struct {
	Name string

	file atomic.Pointer[InputFile]

	Value  uint64
	SymIdx int32

	InputSection    *InputSection
	SectionFragment *SectionFragment

	VerIdx uint16

	flags atomic.Uint32

	IsImported bool
	HasCopyrel bool
	Traced     bool

	// Secondary indices assigned during dynamic-metadata/layout.
	DynsymIdx int32
	GotIdx    int32
	GotTpIdx  int32
	PltIdx    int32
}

func NewSymbol(name string) *Symbol {
	return &Symbol{Name: name, SymIdx: -1, DynsymIdx: -1, GotIdx: -1, GotTpIdx: -1, PltIdx: -1}
}

// File returns the symbol's current owner, or nil if unresolved. The
// owner is either an ObjectFile or a SharedFile; both embed InputFile,
// and InputFile.Self recovers whichever it actually is.
func (s *Symbol) File() *InputFile { return s.file.Load() }

// CASFile attempts to install newFile as the owner, succeeding only if
// the current owner is still oldFile — the resolver's sole locking
// primitive on Symbol.File (spec §5).
func (s *Symbol) CASFile(oldFile, newFile *InputFile) bool {
	return s.file.CompareAndSwap(oldFile, newFile)
}

// SetFileUnsync is used only where no concurrent reader can observe a
// half-updated value: binding an object's own local symbols while it is
// parsed, and binding synthetic symbols after layout.
func (s *Symbol) SetFileUnsync(f *InputFile) { s.file.Store(f) }

func (s *Symbol) Flags() uint32 { return s.flags.Load() }

// OrFlags atomically ORs bits into the symbol's flag set — the
// relocation scanner's only write to shared Symbol state besides File
// (spec §5: "each Symbol.flags OR uses atomic-OR").
func (s *Symbol) OrFlags(bits uint32) {
	for {
		old := s.flags.Load()
		if s.flags.CompareAndSwap(old, old|bits) {
			return
		}
	}
}

func (s *Symbol) ClearFlags() { s.flags.Store(0) }

func (s *Symbol) SetInputSection(isec *InputSection) {
	s.InputSection = isec
	s.SectionFragment = nil
}

func (s *Symbol) SetSectionFragment(frag *SectionFragment) {
	s.InputSection = nil
	s.SectionFragment = frag
}

// ElfSym returns the raw symbol-table entry this Symbol was resolved
// from, in its owning file's symbol table.
func (s *Symbol) ElfSym() *Sym {
	f := s.File()
	if f == nil || s.SymIdx < 0 {
		return nil
	}
	return &f.ElfSyms[s.SymIdx]
}

func (s *Symbol) Clear() {
	s.file.Store(nil)
	s.InputSection = nil
	s.SectionFragment = nil
	s.SymIdx = -1
	s.VerIdx = 0
	s.IsImported = false
}

// GetAddr returns the symbol's final virtual address. Valid only after
// the layout phase has assigned addresses to every chunk.
func (s *Symbol) GetAddr() uint64 {
	if s.SectionFragment != nil {
		if !s.SectionFragment.IsAlive {
			return 0
		}
		return s.SectionFragment.GetAddr() + s.Value
	}
	if s.InputSection != nil {
		if !s.InputSection.IsAlive {
			return 0
		}
		return s.InputSection.GetAddr() + s.Value
	}
	return s.Value
}

func (s *Symbol) GetGotAddr(ctx *Context) uint64 {
	return ctx.Got.Shdr.Addr + uint64(s.GotIdx)*8
}

func (s *Symbol) GetGotTpAddr(ctx *Context) uint64 {
	return ctx.Got.Shdr.Addr + uint64(s.GotTpIdx)*8
}

func (s *Symbol) GetPltAddr(ctx *Context) uint64 {
	if s.PltIdx < 0 {
		return 0
	}
	return ctx.Plt.Shdr.Addr + uint64(s.PltIdx)*ctx.Arch.PltEntrySize()
}

// rank computes the resolver's tie-break order per spec §4.2: strong
// beats weak beats no-definition; lazy (not-yet-pulled archive)
// definitions lose to any live definition; ties within a strength class
// are broken by the offering file's Priority, which is unique so no two
// candidates ever tie outright. Lower rank always wins — the top bits
// encode strength class, the low bits the file priority, mirroring the
// dongAxis-rvld clone's GetRank (see DESIGN.md).
func rank(file *InputFile, esym *Sym, isLazy bool) uint64 {
	if esym.IsCommon() {
		if isLazy {
			return (6 << 32) + uint64(file.Priority)
		}
		return (5 << 32) + uint64(file.Priority)
	}
	isWeak := esym.Bind() == uint8(elf.STB_WEAK)
	if isLazy {
		if isWeak {
			return (4 << 32) + uint64(file.Priority)
		}
		return (3 << 32) + uint64(file.Priority)
	}
	if isWeak {
		return (2 << 32) + uint64(file.Priority)
	}
	return (1 << 32) + uint64(file.Priority)
}

// GetRank returns the symbol's own current rank, or the weakest
// possible rank if the symbol has no definition at all.
func (s *Symbol) GetRank() uint64 {
	f := s.File()
	if f == nil {
		return 7 << 32
	}
	return rank(f, s.ElfSym(), isLazyFile(f))
}
