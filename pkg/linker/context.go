package linker

import (
	"sync"

	"github.com/Keruspe/mold/internal/diag"
)

// Context is the Go restatement of the source linker's process-wide
// singletons (`out.*`, `config`): every phase receives a *Context rather
// than reaching for globals.
// Parallel tasks hold it read-only except for the fields spec §5 calls
// out as lock-free shared mutable state (the symbol map, and each
// Symbol's own File/Flags).
type Context struct {
	Config *Config

	// nextPriority hands out the unique per-file total order (spec
	// Glossary: "Priority"). Allocated single-threaded during the parse
	// phase (§4.1 precedes the first barrier), so no atomic is needed.
	nextPriority int64

	SymbolMap sync.Map // name (string) -> *Symbol

	Objs []*ObjectFile
	Dsos []*SharedFile

	// registry is the input model's process-wide dedup of already-read
	// files, keyed by absolute path (spec §3: "Owned by a process-wide
	// registry so multiple references to the same path share one
	// mapping").
	registry sync.Map // path (string) -> *MemoryMappedFile

	comdats *comdatRegistry

	// sectionsMu guards the linear-scan-then-append registries below.
	// Parsing (ParseInputFiles) looks these up concurrently across worker
	// goroutines, so registration needs mutual exclusion even though the
	// scan itself stays a simple slice walk, same as the teacher's
	// single-threaded GetOutputSection/GetMergedSectionInstance.
	sectionsMu     sync.Mutex
	OutputSections []*OutputSection
	MergedSections []*MergedSection
	Chunks         []Chunker

	Ehdr     *OutputEhdr
	Phdr     *OutputPhdr
	Shdr     *OutputShdr
	Shstrtab *OutputShstrtab
	Got     *GotSection
	Plt     *PltSection
	Dynsym  *DynsymSection
	Dynstr  *DynstrSection
	Hash    *GnuHashSection
	Dynamic *DynamicSection
	VerSym  *VersionSection
	VerNeed *VerneedSection
	Interp  *InterpSection

	TpAddr uint64

	Buf []byte

	Sink   *diag.Sink
	Tracer *diag.Tracer

	Arch Arch

	synthetic syntheticSymbols

	// syntheticFile is the sentinel owner bindSyntheticSymbols installs on
	// a Symbol to mark it as defined without it belonging to any real
	// input file.
	syntheticFile InputFile
}

func NewContext(cfg *Config) *Context {
	ctx := &Context{
		Config:  cfg,
		Sink:    diag.NewSink(),
		Tracer:  diag.NewTracer(cfg.TraceSymbols),
		comdats: newComdatRegistry(),
	}
	switch cfg.Machine {
	case MachineX86_64:
		ctx.Arch = archX86_64{}
	case MachineRISCV64:
		ctx.Arch = archRISCV64{}
	}
	return ctx
}

// AllocPriority hands out the next unique file priority.
func (ctx *Context) AllocPriority() int64 {
	p := ctx.nextPriority
	ctx.nextPriority++
	return p
}

// GetSymbolByName returns the interned Symbol for name, creating it on
// first reference. Concurrent-safe: sync.Map.LoadOrStore is the
// insertion primitive spec §5 calls for ("Insertion uses a concurrent
// string-keyed map").
func (ctx *Context) GetSymbolByName(name string) *Symbol {
	if v, ok := ctx.SymbolMap.Load(name); ok {
		return v.(*Symbol)
	}
	v, _ := ctx.SymbolMap.LoadOrStore(name, NewSymbol(name))
	return v.(*Symbol)
}

// ForEachSymbol calls fn for every interned symbol. Order is
// unspecified; callers that need determinism must not rely on it (the
// dynamic-table builder in ScanRelocations walks each file's symbols in
// file order instead).
func (ctx *Context) ForEachSymbol(fn func(*Symbol)) {
	ctx.SymbolMap.Range(func(_, v any) bool {
		fn(v.(*Symbol))
		return true
	})
}
