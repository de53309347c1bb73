package linker

// Arch is the per-architecture collaborator the relocation scanner and
// the section writer delegate to (spec §4.8: "Architecture-specific
// mapping from reloc type to flag bits is delegated to the
// per-architecture collaborator"). Only the two architectures the
// teacher's family of clones and the pack's example repos actually
// touch are implemented; adding a third means adding one more Arch
// value, nothing else in the pipeline changes.
type Arch interface {
	Name() string

	// PltEntrySize is the byte size of one .plt stub, used both when
	// sizing the section and when computing a symbol's PLT address
	// (Symbol.GetPltAddr).
	PltEntrySize() uint64

	// ScanReloc inspects one relocation against sym and ORs the flag
	// bits its target requires into sym.flags (spec §4.8). It never
	// writes to the output buffer.
	ScanReloc(ctx *Context, isec *InputSection, rel *Rela, sym *Symbol)

	// ApplyReloc performs the actual byte-level relocation fixup,
	// writing into base (spec §1's "external collaborator"; here given
	// a concrete implementation so the writer phase has something real
	// to call).
	ApplyReloc(ctx *Context, isec *InputSection, base []byte)

	// WritePltEntry fills in one .plt stub for sym, whose GOT slot
	// (sym.GotIdx) has already been assigned.
	WritePltEntry(ctx *Context, buf []byte, sym *Symbol)
}
