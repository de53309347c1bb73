package linker

import (
	"debug/elf"
	"math"
	"sort"

	"github.com/Keruspe/mold/pkg/linker/sched"
	"github.com/Keruspe/mold/pkg/utils"
)

// ResolveComdatGroups runs the two-phase COMDAT elimination (spec §4.3):
// every file first claims the signatures it defines, then — once every
// claim is in — kills its own copy of any group it didn't win. Each
// phase is a barrier: a file's elimination decision depends on every
// other file's claim having already landed in the registry.
func ResolveComdatGroups(ctx *Context) error {
	if err := sched.Parallel(ctx.Config.ThreadCount, len(ctx.Objs), func(i int) error {
		ctx.Objs[i].ResolveComdatGroups(ctx)
		return nil
	}); err != nil {
		return err
	}
	return sched.Parallel(ctx.Config.ThreadCount, len(ctx.Objs), func(i int) error {
		ctx.Objs[i].EliminateDuplicateComdatGroups(ctx)
		return nil
	})
}

// RegisterSectionPieces interns every object's mergeable fragments into
// their process-wide pools and binds each mergeable-section symbol to
// its fragment (spec §4.4), in parallel across objects — safe because
// MergedSection.Insert and GetMergedSectionInstance both hold their own
// locks.
func RegisterSectionPieces(ctx *Context) error {
	return sched.Parallel(ctx.Config.ThreadCount, len(ctx.Objs), func(i int) error {
		ctx.Objs[i].RegisterSectionPieces()
		return nil
	})
}

// ComputeMergedSectionSizes assigns every mergeable pool's fragment
// offsets (spec §4.4's final step), one pool per task.
func ComputeMergedSectionSizes(ctx *Context) error {
	return sched.Parallel(ctx.Config.ThreadCount, len(ctx.MergedSections), func(i int) error {
		ctx.MergedSections[i].AssignOffsets()
		return nil
	})
}

// CreateSyntheticSections instantiates every synthetic chunk the output
// might need (spec §4.8/§4.9) and appends them to ctx.Chunks in a fixed
// order; UpdateShdr and layout later decide which of the dynamic-linking
// ones actually end up with nonzero size, but Got/Dynsym/etc. need to
// exist as concrete values before relocation scanning runs, since
// ScanRelocations populates them directly.
func CreateSyntheticSections(ctx *Context) {
	push := func(chunk Chunker) Chunker {
		ctx.Chunks = append(ctx.Chunks, chunk)
		return chunk
	}

	ctx.Ehdr = push(NewOutputEhdr()).(*OutputEhdr)
	ctx.Phdr = push(NewOutputPhdr()).(*OutputPhdr)
	ctx.Shstrtab = push(NewOutputShstrtab()).(*OutputShstrtab)
	ctx.Shdr = push(NewOutputShdr()).(*OutputShdr)

	needsDynamic := len(ctx.Dsos) > 0 || ctx.Config.Pie || ctx.Config.ExportDynamic

	if needsDynamic && !ctx.Config.Static {
		ctx.Interp = push(NewInterpSection(interpPath(ctx))).(*InterpSection)
	}

	ctx.Got = push(NewGotSection()).(*GotSection)
	ctx.Plt = push(NewPltSection()).(*PltSection)

	if needsDynamic {
		ctx.Dynsym = push(NewDynsymSection()).(*DynsymSection)
		ctx.Dynstr = push(NewDynstrSection()).(*DynstrSection)
		ctx.Hash = push(NewGnuHashSection()).(*GnuHashSection)
		ctx.VerSym = push(NewVersionSection()).(*VersionSection)
		ctx.VerNeed = push(NewVerneedSection()).(*VerneedSection)
		ctx.Dynamic = push(NewDynamicSection()).(*DynamicSection)
	}

	initSyntheticSymbols(ctx)
}

func interpPath(ctx *Context) string {
	if ctx.Config.DynamicLinker != "" {
		return ctx.Config.DynamicLinker
	}
	switch ctx.Config.Machine {
	case MachineX86_64:
		return "/lib64/ld-linux-x86-64.so.2"
	case MachineRISCV64:
		return "/lib/ld-linux-riscv64-lp64d.so.1"
	default:
		return "/lib64/ld-linux.so.2"
	}
}

// BinSections groups every alive InputSection into its OutputSection
// bin (spec §4.5). Parallel over slices of 128 object files; each
// OutputSection's Members slice is owned exclusively by a per-slice
// scratch slot during the scatter, then concatenated in file-priority
// order so output byte layout stays deterministic regardless of
// goroutine scheduling.
func BinSections(ctx *Context) error {
	slices := sched.Slices(len(ctx.Objs), 128)
	perSlice := make([][][]*InputSection, len(slices))
	if err := sched.Parallel(ctx.Config.ThreadCount, len(slices), func(s int) error {
		group := make([][]*InputSection, len(ctx.OutputSections))
		for _, obj := range ctx.Objs[slices[s][0]:slices[s][1]] {
			for _, isec := range obj.Sections {
				if isec == nil || !isec.IsAlive {
					continue
				}
				idx := isec.OutputSection.Idx
				group[idx] = append(group[idx], isec)
			}
		}
		perSlice[s] = group
		return nil
	}); err != nil {
		return err
	}

	for _, group := range perSlice {
		for idx, members := range group {
			if len(members) > 0 {
				ctx.OutputSections[idx].Members = append(ctx.OutputSections[idx].Members, members...)
			}
		}
	}
	return nil
}

// CollectOutputSections returns every non-empty OutputSection/MergedSection
// as a Chunker, ready to be appended to ctx.Chunks (spec §4.5/§4.7).
func CollectOutputSections(ctx *Context) []Chunker {
	osecs := make([]Chunker, 0)
	for _, osec := range ctx.OutputSections {
		if len(osec.Members) > 0 {
			osecs = append(osecs, osec)
		}
	}
	for _, osec := range ctx.MergedSections {
		if osec.Shdr.Size > 0 {
			osecs = append(osecs, osec)
		}
	}
	return osecs
}

// ComputeSectionSizes assigns each InputSection's offset within its
// OutputSection bin and derives the bin's total size/alignment (spec
// §4.6), one bin per task. Within a bin the members are walked
// sequentially with a running offset; a bin's members are not split
// into sub-slices with a parallel prefix scan.
func ComputeSectionSizes(ctx *Context) error {
	return sched.Parallel(ctx.Config.ThreadCount, len(ctx.OutputSections), func(i int) error {
		osec := ctx.OutputSections[i]
		offset := uint64(0)
		var p2align uint8

		for _, isec := range osec.Members {
			offset = utils.AlignTo(offset, 1<<isec.P2Align)
			isec.Offset = uint32(offset)
			offset += uint64(isec.ShSize)
			if isec.P2Align > p2align {
				p2align = isec.P2Align
			}
		}

		osec.Shdr.Size = offset
		osec.Shdr.AddrAlign = 1 << p2align
		return nil
	})
}

// ScanRelocations runs the relocation scanner over every live, allocated
// section in parallel (spec §4.8), then single-threaded assigns GOT/PLT/
// dynsym table slots to every symbol whose flags came back nonzero —
// table-slot assignment itself must stay sequential since slot index is
// "the next free row," an inherently serial counter.
func ScanRelocations(ctx *Context) error {
	if err := sched.Parallel(ctx.Config.ThreadCount, len(ctx.Objs), func(i int) error {
		ctx.Objs[i].ScanRelocations(ctx)
		return nil
	}); err != nil {
		return err
	}

	var flagged []*Symbol
	seen := make(map[*Symbol]bool)
	for _, file := range ctx.Objs {
		for _, sym := range file.Symbols {
			if sym.Flags() != 0 && !seen[sym] {
				seen[sym] = true
				flagged = append(flagged, sym)
			}
		}
	}
	for _, dso := range ctx.Dsos {
		for _, sym := range dso.Symbols {
			if sym != nil && sym.Flags() != 0 && !seen[sym] {
				seen[sym] = true
				flagged = append(flagged, sym)
			}
		}
	}

	needsTls := false
	for _, sym := range flagged {
		flags := sym.Flags()

		if flags&(NeedsGot|NeedsGotTp|NeedsTlsGd|NeedsTlsLd) != 0 {
			ctx.Got.Add(sym)
		}
		if flags&NeedsPlt != 0 {
			ctx.Plt.Add(ctx, sym)
		}
		if flags&NeedsDynsym != 0 && ctx.Dynsym != nil {
			ctx.Dynsym.Add(ctx, sym)
		}
		if flags&NeedsCopyrel != 0 {
			sym.HasCopyrel = true
		}
		if flags&(NeedsGotTp|NeedsTlsGd|NeedsTlsLd) != 0 {
			needsTls = true
		}

		sym.ClearFlags()
	}
	_ = needsTls

	if ctx.VerNeed != nil {
		ctx.VerNeed.Build(ctx)
	}

	return nil
}

// SortOutputSections orders every chunk by section rank (spec §4.7):
// headers first, then regular sections ordered by writability/
// executability/TLS-ness/BSS-ness, synthetic dynamic-linking tables
// interleaved by allocatedness, and the section header table last.
func SortOutputSections(ctx *Context) {
	rank := func(chunk Chunker) int32 {
		if chunk.Kind() == ChunkHeader {
			switch chunk {
			case ctx.Ehdr:
				return 0
			case ctx.Phdr:
				return 1
			case ctx.Shdr:
				return math.MaxInt32
			}
		}

		shdr := chunk.GetShdr()
		if shdr.Flags&uint64(elf.SHF_ALLOC) == 0 {
			return math.MaxInt32 - 1
		}
		if shdr.Type == uint32(elf.SHT_NOTE) {
			return 2
		}
		if chunk == ctx.Interp {
			return 3
		}

		b2i := func(b bool) int32 {
			if b {
				return 1
			}
			return 0
		}

		writeable := b2i(shdr.Flags&uint64(elf.SHF_WRITE) != 0)
		exec := b2i(shdr.Flags&uint64(elf.SHF_EXECINSTR) != 0)
		notTls := b2i(shdr.Flags&uint64(elf.SHF_TLS) == 0)
		isBss := b2i(shdr.Type == uint32(elf.SHT_NOBITS))

		return 4 + writeable<<7 + exec<<6 + notTls<<5 + isBss<<4
	}

	sort.SliceStable(ctx.Chunks, func(i, j int) bool {
		return rank(ctx.Chunks[i]) < rank(ctx.Chunks[j])
	})

	for i, chunk := range ctx.Chunks {
		chunk.SetShndx(int64(i) + 1)
	}
	if ctx.Dynsym != nil {
		ctx.Hash.Shdr.Link = uint32(ctx.Dynsym.Shndx)
		ctx.Dynsym.Shdr.Link = uint32(ctx.Dynstr.Shndx)
		ctx.VerSym.Shdr.Link = uint32(ctx.Dynsym.Shndx)
		ctx.VerNeed.Shdr.Link = uint32(ctx.Dynstr.Shndx)
		ctx.Dynamic.Shdr.Link = uint32(ctx.Dynstr.Shndx)
	}
	ctx.Shdr.ShstrtabIdx = ctx.Shstrtab.Shndx
}

func isTbss(chunk Chunker) bool {
	shdr := chunk.GetShdr()
	return shdr.Type == uint32(elf.SHT_NOBITS) && shdr.Flags&uint64(elf.SHF_TLS) != 0
}

// phdrFlagsFor mirrors OutputPhdr.UpdateShdr's own PT_LOAD segment-break
// condition: a chunk starts a new segment whenever its RWX permission
// set differs from the chunk before it.
func phdrFlagsFor(shdr *Shdr) uint32 {
	f := uint32(elf.PF_R)
	if shdr.Flags&uint64(elf.SHF_WRITE) != 0 {
		f |= uint32(elf.PF_W)
	}
	if shdr.Flags&uint64(elf.SHF_EXECINSTR) != 0 {
		f |= uint32(elf.PF_X)
	}
	return f
}

// SetOutputSectionOffsets assigns every chunk's final virtual address and
// file offset (spec §4.7) and returns the total output file size. Not
// parallelized: each chunk's address depends on the running total left
// by every earlier chunk, an inherently sequential prefix sum.
func SetOutputSectionOffsets(ctx *Context) uint64 {
	addr := ctx.Config.effectiveImageBase()
	var prevFlags uint32
	haveFlags := false

	for _, chunk := range ctx.Chunks {
		shdr := chunk.GetShdr()
		if shdr.Flags&uint64(elf.SHF_ALLOC) == 0 {
			continue
		}

		// A chunk that starts a new PT_LOAD segment gets its address
		// aligned up to PageSize first, so the segment boundary falls
		// on a page and file offset (derived below from Addr) stays
		// congruent with it.
		flags := phdrFlagsFor(shdr)
		if haveFlags && flags != prevFlags {
			addr = utils.AlignTo(addr, PageSize)
		}
		prevFlags = flags
		haveFlags = true

		addr = utils.AlignTo(addr, shdr.AddrAlign)
		shdr.Addr = addr

		if !isTbss(chunk) {
			addr += shdr.Size
		}
	}

	i := 0
	first := ctx.Chunks[0]
	for {
		shdr := ctx.Chunks[i].GetShdr()
		shdr.Offset = shdr.Addr - first.GetShdr().Addr
		i++

		if i >= len(ctx.Chunks) || ctx.Chunks[i].GetShdr().Flags&uint64(elf.SHF_ALLOC) == 0 {
			break
		}
	}

	lastShdr := ctx.Chunks[i-1].GetShdr()
	fileoff := lastShdr.Offset + lastShdr.Size

	for ; i < len(ctx.Chunks); i++ {
		shdr := ctx.Chunks[i].GetShdr()
		fileoff = utils.AlignTo(fileoff, shdr.AddrAlign)
		shdr.Offset = fileoff
		fileoff += shdr.Size
	}

	bindSyntheticSymbols(ctx)

	for _, chunk := range ctx.Chunks {
		chunk.UpdateShdr(ctx)
	}
	ctx.Phdr.UpdateShdr(ctx)

	return fileoff
}

// Run drives the entire pipeline end to end (spec §4's phase list),
// checkpointing after every barrier that can raise a semantic-link error.
func Run(ctx *Context) error {
	if err := ParseInputFiles(ctx); err != nil {
		return err
	}
	ctx.Sink.Checkpoint()

	ResolveSymbols(ctx)
	ctx.Sink.Checkpoint()

	if err := ResolveComdatGroups(ctx); err != nil {
		return err
	}

	if err := RegisterSectionPieces(ctx); err != nil {
		return err
	}
	if err := ComputeMergedSectionSizes(ctx); err != nil {
		return err
	}

	CreateSyntheticSections(ctx)

	if err := BinSections(ctx); err != nil {
		return err
	}
	ctx.Chunks = append(ctx.Chunks, CollectOutputSections(ctx)...)

	if err := ComputeSectionSizes(ctx); err != nil {
		return err
	}

	if err := ScanRelocations(ctx); err != nil {
		return err
	}

	SortOutputSections(ctx)

	for _, chunk := range ctx.Chunks {
		chunk.UpdateShdr(ctx)
	}

	fileSize := SetOutputSectionOffsets(ctx)

	CheckUndefinedReferences(ctx)
	ctx.Sink.Checkpoint()

	ctx.Buf = make([]byte, fileSize)

	return WriteOutput(ctx)
}
