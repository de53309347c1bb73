package linker

import (
	"bytes"
	"debug/elf"
	"strconv"

	"github.com/Keruspe/mold/internal/errs"
	"github.com/Keruspe/mold/pkg/utils"
)

// ObjectFile is a parsed relocatable (spec §3 "ObjectFile"): InputFile
// plus the symbol-table split into local/global, the COMDAT groups it
// defines, and the mergeable sections it contributes to the process-wide
// interning pools.
type ObjectFile struct {
	InputFile
	SymtabSec         *Shdr
	SymtabShndxSec    []uint32
	Sections          []*InputSection
	MergeableSections []*MergeableSection
	ComdatGroupDefs   []ComdatGroup

	// pendingComdatSigIdx parallels ComdatGroupDefs: the symbol-table
	// index of each group's signature symbol, resolved into a name by
	// FixupComdatSignatures once the symtab is decoded.
	pendingComdatSigIdx []uint32

	// IsInArchive marks a member pulled from a static archive: per spec
	// §4.2(b), only non-archive objects seed the liveness root set.
	IsInArchive bool
}

func NewObjectFile(mf *MemoryMappedFile, priority int64, isAlive, isInArchive bool) *ObjectFile {
	o := &ObjectFile{InputFile: NewInputFile(mf)}
	o.IsAlive = isAlive
	o.IsInArchive = isInArchive
	o.Priority = priority
	o.self = o
	return o
}

// Parse decodes the symbol table, builds InputSections, splits mergeable
// sections into fragments, and registers any COMDAT groups this file
// defines (spec §4.1). Runs once per file, in parallel across all input
// files, before the resolver's first barrier.
func (o *ObjectFile) Parse(ctx *Context) {
	o.SymtabSec = o.FindSection(uint32(elf.SHT_SYMTAB))
	if o.SymtabSec != nil {
		o.FirstGlobal = int(o.SymtabSec.Info)
		o.FillUpElfSyms(o.SymtabSec)
		o.SymbolStrtab = o.GetBytesFromIdx(int64(o.SymtabSec.Link))
	}

	o.InitializeSections(ctx)
	o.InitializeSymbols(ctx)
	o.InitializeMergeableSections(ctx)
	o.SkipEhframeSections()
}

func (o *ObjectFile) InitializeSections(ctx *Context) {
	o.Sections = make([]*InputSection, len(o.ElfSections))

	for i := range o.ElfSections {
		shdr := &o.ElfSections[i]
		switch elf.SectionType(shdr.Type) {
		case elf.SHT_GROUP:
			o.parseComdatGroup(shdr, uint32(i))
		case elf.SHT_SYMTAB, elf.SHT_STRTAB, elf.SHT_REL, elf.SHT_RELA, elf.SHT_NULL:
		case elf.SHT_SYMTAB_SHNDX:
			o.FillUpSymtabShndxSec(shdr)
		default:
			name := ElfGetName(o.ShStrtab, shdr.Name)
			o.Sections[i] = NewInputSection(ctx, name, o, uint32(i))
		}
	}

	for i := range o.ElfSections {
		shdr := &o.ElfSections[i]
		if shdr.Type != uint32(elf.SHT_RELA) {
			continue
		}
		if target := o.Sections[shdr.Info]; target != nil {
			target.RelsecIdx = uint32(i)
		}
	}
}

// parseComdatGroup decodes one SHT_GROUP section: a GRP_COMDAT flag word
// followed by the member section indices it binds (spec §4.3). The
// signature is the name of the group's signature symbol, a global symbol
// named in Sh.Info.
func (o *ObjectFile) parseComdatGroup(shdr *Shdr, shndx uint32) {
	bs := o.GetBytesFromShdr(shdr)
	words := utils.ReadSlice[uint32](bs, 4)
	if len(words) == 0 || words[0]&grpComdat == 0 {
		return
	}

	// SHT_GROUP sections can precede SHT_SYMTAB in section order, so the
	// signature name is resolved lazily by FixupComdatSignatures once
	// the symbol table has been decoded; until then this is a
	// placeholder, unique per group so two pending groups never collide.
	sigIdx := shdr.Info
	signature := o.Name() + "#group" + strconv.Itoa(int(shndx))

	members := make([]uint32, len(words)-1)
	copy(members, words[1:])
	o.ComdatGroupDefs = append(o.ComdatGroupDefs, ComdatGroup{Signature: signature, Members: members})
	o.pendingComdatSigIdx = append(o.pendingComdatSigIdx, sigIdx)
}

// FixupComdatSignatures replaces each group's placeholder signature with
// the real signature-symbol name, once the symbol table has been
// decoded. Called at the end of InitializeSymbols.
func (o *ObjectFile) FixupComdatSignatures() {
	if o.SymtabSec == nil || len(o.ComdatGroupDefs) == 0 {
		return
	}
	for i, sigIdx := range o.pendingComdatSigIdx {
		if int(sigIdx) < len(o.ElfSyms) {
			esym := &o.ElfSyms[sigIdx]
			o.ComdatGroupDefs[i].Signature = ElfGetName(o.SymbolStrtab, esym.Name)
		}
	}
}

func (o *ObjectFile) FillUpSymtabShndxSec(s *Shdr) {
	bs := o.GetBytesFromShdr(s)
	o.SymtabShndxSec = utils.ReadSlice[uint32](bs, 4)
}

func (o *ObjectFile) InitializeSymbols(ctx *Context) {
	if o.SymtabSec == nil {
		return
	}

	o.LocalSymbols = make([]Symbol, o.FirstGlobal)
	for i := range o.LocalSymbols {
		o.LocalSymbols[i] = *NewSymbol("")
	}
	o.LocalSymbols[0].SetFileUnsync(&o.InputFile)

	for i := 1; i < len(o.LocalSymbols); i++ {
		esym := &o.ElfSyms[i]
		sym := &o.LocalSymbols[i]
		sym.Name = ElfGetName(o.SymbolStrtab, esym.Name)
		sym.SetFileUnsync(&o.InputFile)
		sym.Value = esym.Val
		sym.SymIdx = int32(i)

		if !esym.IsAbs() {
			sym.SetInputSection(o.Sections[o.GetShndx(esym, i)])
		}
	}

	o.Symbols = make([]*Symbol, len(o.ElfSyms))
	for i := range o.LocalSymbols {
		o.Symbols[i] = &o.LocalSymbols[i]
	}
	for i := len(o.LocalSymbols); i < len(o.ElfSyms); i++ {
		esym := &o.ElfSyms[i]
		name := ElfGetName(o.SymbolStrtab, esym.Name)
		o.Symbols[i] = ctx.GetSymbolByName(name)
	}

	o.FixupComdatSignatures()
}

func (o *ObjectFile) GetShndx(esym *Sym, idx int) int64 {
	if esym.Shndx == uint16(elf.SHN_XINDEX) {
		return int64(o.SymtabShndxSec[idx])
	}
	return int64(esym.Shndx)
}

func (o *ObjectFile) GetSection(esym *Sym, idx int) *InputSection {
	shndx := o.GetShndx(esym, idx)
	if shndx < 0 || shndx >= int64(len(o.Sections)) {
		return nil
	}
	return o.Sections[shndx]
}

// ResolveSymbols installs this file as the owner of every global symbol
// it defines and no one else has claimed yet, and atomically replaces
// any owner that ranks worse (spec §4.2(a)).
func (o *ObjectFile) ResolveSymbols(ctx *Context) {
	for i := o.FirstGlobal; i < len(o.ElfSyms); i++ {
		sym := o.Symbols[i]
		esym := &o.ElfSyms[i]

		if esym.IsUndef() {
			continue
		}

		var isec *InputSection
		if !esym.IsAbs() && !esym.IsCommon() {
			isec = o.GetSection(esym, i)
			if isec == nil {
				continue
			}
		}

		myRank := rank(&o.InputFile, esym, o.IsInArchive && !o.IsAlive)

		for {
			cur := sym.File()
			if cur != nil {
				curEsym := sym.ElfSym()
				if curEsym != nil {
					curRank := rank(cur, curEsym, isLazyFile(cur))
					// Two non-weak, non-lazy, non-common definitions of the
					// same symbol from different files is a link error
					// regardless of which one wins the tie-break (spec
					// §4.2: "two strong non-weak non-eliminated
					// definitions" fail with DuplicateSymbol).
					if curRank>>32 == 1 && myRank>>32 == 1 && cur != &o.InputFile {
						ctx.Sink.Report("%s", errs.NewSemanticLink(
							"duplicate symbol: `%s` defined in both %s and %s",
							sym.Name, cur.Name(), o.Name()))
					}
					if curRank <= myRank {
						break
					}
				}
			}
			if sym.CASFile(cur, &o.InputFile) {
				sym.SetInputSection(isec)
				sym.Value = esym.Val
				sym.SymIdx = int32(i)
				break
			}
		}
	}
}

// isLazyFile reports whether f is an archive member that hasn't been
// pulled into the link yet (spec §4.2(a) tie-break rule 4). Only
// ObjectFiles can be lazy; a SharedFile is always either fully present
// or entirely absent from the link.
func isLazyFile(f *InputFile) bool {
	if o, ok := f.Self().(*ObjectFile); ok {
		return o.IsInArchive && !o.IsAlive
	}
	return false
}

// MarkLiveObjects feeds any not-yet-live file that a currently live
// symbol references into feeder, implementing one step of the reachable
// set fixed point (spec §4.2(b)).
func (o *ObjectFile) MarkLiveObjects(feeder func(*InputFile)) {
	for i := o.FirstGlobal; i < len(o.ElfSyms); i++ {
		sym := o.Symbols[i]
		esym := &o.ElfSyms[i]

		f := sym.File()
		if f == nil {
			continue
		}

		if esym.IsUndef() && !f.IsAlive {
			f.IsAlive = true
			feeder(f)
		}
	}
}

// ClearSymbols releases every global symbol this (now-dead) file owns,
// run during pruning (spec §4.2(c)).
func (o *ObjectFile) ClearSymbols() {
	for _, sym := range o.Symbols[o.FirstGlobal:] {
		if sym.File() == &o.InputFile {
			sym.Clear()
		}
	}
}

// InitializeMergeableSections splits every SHF_MERGE input section into
// a MergeableSection of fragments, retiring the original section (spec
// §4.4).
func (o *ObjectFile) InitializeMergeableSections(ctx *Context) {
	o.MergeableSections = make([]*MergeableSection, len(o.Sections))
	for i, isec := range o.Sections {
		if isec != nil && isec.IsAlive && isec.Shdr().Flags&uint64(elf.SHF_MERGE) != 0 {
			o.MergeableSections[i] = splitSection(ctx, isec)
			isec.IsAlive = false
		}
	}
}

func findNull(data []byte, entSize int) int {
	if entSize == 1 {
		return bytes.Index(data, []byte{0})
	}
	for i := 0; i <= len(data)-entSize; i += entSize {
		if utils.AllZeros(data[i : i+entSize]) {
			return i
		}
	}
	return -1
}

func splitSection(ctx *Context, isec *InputSection) *MergeableSection {
	m := &MergeableSection{}
	shdr := isec.Shdr()

	m.Parent = GetMergedSectionInstance(ctx, isec.Name(), shdr.Type, shdr.Flags)
	m.P2Align = isec.P2Align

	data := isec.Contents
	offset := uint64(0)
	if shdr.Flags&uint64(elf.SHF_STRINGS) != 0 {
		for len(data) > 0 {
			end := findNull(data, int(shdr.EntSize))
			if end == -1 {
				fatalf("%s: string is not null terminated", isec.File.Name())
			}
			sz := uint64(end) + shdr.EntSize
			substr := data[:sz]
			data = data[sz:]
			m.Strs = append(m.Strs, string(substr))
			m.FragOffsets = append(m.FragOffsets, uint32(offset))
			offset += sz
		}
	} else {
		if shdr.EntSize == 0 || uint64(len(data))%shdr.EntSize != 0 {
			fatalf("%s: section size is not a multiple of entsize", isec.File.Name())
		}
		for len(data) > 0 {
			substr := data[:shdr.EntSize]
			data = data[shdr.EntSize:]
			m.Strs = append(m.Strs, string(substr))
			m.FragOffsets = append(m.FragOffsets, uint32(offset))
			offset += shdr.EntSize
		}
	}

	return m
}

func (o *ObjectFile) RegisterSectionPieces() {
	for _, m := range o.MergeableSections {
		if m == nil {
			continue
		}
		m.Fragments = make([]*SectionFragment, 0, len(m.Strs))
		for i := range m.Strs {
			m.Fragments = append(m.Fragments, m.Parent.Insert(m.Strs[i], uint32(m.P2Align)))
		}
	}

	for i := 1; i < len(o.ElfSyms); i++ {
		sym := o.Symbols[i]
		esym := &o.ElfSyms[i]

		if esym.IsAbs() || esym.IsUndef() || esym.IsCommon() {
			continue
		}

		shndx := o.GetShndx(esym, i)
		if shndx < 0 || shndx >= int64(len(o.MergeableSections)) {
			continue
		}
		m := o.MergeableSections[shndx]
		if m == nil {
			continue
		}

		frag, fragOffset := m.GetFragment(uint32(esym.Val))
		if frag == nil {
			fatalf("%s: bad symbol value for %s", o.Name(), sym.Name)
		}
		sym.SetSectionFragment(frag)
		sym.Value = uint64(fragOffset)
	}
}

func (o *ObjectFile) SkipEhframeSections() {
	for _, isec := range o.Sections {
		if isec != nil && isec.IsAlive && isec.Name() == ".eh_frame" {
			isec.IsAlive = false
		}
	}
}

// ScanRelocations scans every alive, allocated section's relocations in
// parallel-safe fashion (spec §4.8): each ORs flag bits into the symbols
// it references.
func (o *ObjectFile) ScanRelocations(ctx *Context) {
	for _, isec := range o.Sections {
		if isec != nil && isec.IsAlive && isec.Shdr().Flags&uint64(elf.SHF_ALLOC) != 0 {
			isec.ScanRelocations(ctx)
		}
	}
}
