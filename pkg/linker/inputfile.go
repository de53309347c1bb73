package linker

import (
	"debug/elf"

	"github.com/Keruspe/mold/pkg/utils"
)

// InputFile is the common header shared by ObjectFile and SharedFile
// (spec §3 "InputFile"): the raw bytes, the decoded section-header
// table, and the section-header string table. ObjectFile and SharedFile
// embed it and add their own symbol-table interpretation, since ELF
// relocatables and shared objects use the symtab differently (spec
// §3's split between the two file kinds).
type InputFile struct {
	MF          *MemoryMappedFile
	ElfSections []Shdr
	ShStrtab    []byte

	ElfSyms      []Sym
	FirstGlobal  int
	SymbolStrtab []byte

	IsAlive bool

	Symbols      []*Symbol
	LocalSymbols []Symbol

	// Priority is the unique total order assigned at registration time,
	// used by the resolver's rank() tie-break (spec §4.2, Glossary
	// "Priority").
	Priority int64

	// self lets code holding only a *InputFile (as every Symbol.File()
	// does — a symbol can be owned by either an ObjectFile or a
	// SharedFile) recover the concrete owner when it needs
	// kind-specific behavior, e.g. dynamic-symbol export reading a
	// SharedFile's soname.
	self any
}

// Self returns the concrete *ObjectFile or *SharedFile this header
// belongs to.
func (f *InputFile) Self() any { return f.self }

// NewInputFile decodes the ELF header and section-header table out of
// mf, leaving symbol-table interpretation to the caller (ObjectFile.Parse
// or SharedFile.Parse), since only they know whether FirstGlobal applies.
func NewInputFile(mf *MemoryMappedFile) InputFile {
	f := InputFile{MF: mf}

	if len(mf.Bytes) < EhdrSize {
		fatalf("%s: file too small", mf.Name)
	}
	if !CheckMagic(mf.Bytes) {
		fatalf("%s: not an ELF file", mf.Name)
	}

	ehdr := utils.Read[Ehdr](mf.Bytes)
	contents := mf.Bytes[ehdr.ShOff:]
	shdr := utils.Read[Shdr](contents)

	numSections := int64(ehdr.ShNum)
	if numSections == 0 {
		numSections = int64(shdr.Size)
	}

	f.ElfSections = []Shdr{shdr}
	for numSections > 1 {
		contents = contents[ShdrSize:]
		f.ElfSections = append(f.ElfSections, utils.Read[Shdr](contents))
		numSections--
	}

	shstrndx := int64(ehdr.ShStrndx)
	if ehdr.ShStrndx == uint16(elf.SHN_XINDEX) {
		shstrndx = int64(shdr.Link)
	}
	if shstrndx != 0 {
		f.ShStrtab = f.GetBytesFromIdx(shstrndx)
	}
	return f
}

func (f *InputFile) GetBytesFromShdr(s *Shdr) []byte {
	end := s.Offset + s.Size
	if uint64(len(f.MF.Bytes)) < end {
		fatalf("%s: section is out of range: offset %d", f.MF.Name, s.Offset)
	}
	return f.MF.Bytes[s.Offset:end]
}

func (f *InputFile) GetBytesFromIdx(idx int64) []byte {
	return f.GetBytesFromShdr(&f.ElfSections[idx])
}

func (f *InputFile) FillUpElfSyms(s *Shdr) {
	bs := f.GetBytesFromShdr(s)
	f.ElfSyms = utils.ReadSlice[Sym](bs, SymSize)
}

// FindSection returns the first section header of the given type, or
// nil. Used to locate singleton sections like .symtab, .dynsym,
// .gnu.version, .gnu.version_r (spec §4.1, §4.9).
func (f *InputFile) FindSection(ty uint32) *Shdr {
	for i := range f.ElfSections {
		if f.ElfSections[i].Type == ty {
			return &f.ElfSections[i]
		}
	}
	return nil
}

func (f *InputFile) GetEhdr() Ehdr {
	return utils.Read[Ehdr](f.MF.Bytes)
}

func (f *InputFile) Name() string {
	return f.MF.Name
}
