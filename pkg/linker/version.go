package linker

import (
	"debug/elf"
	"sort"

	"github.com/Keruspe/mold/pkg/utils"
)

// VersionSection is .gnu.version: one uint16 per .dynsym row giving the
// symbol-version index it was resolved against (spec §4.9). Imported
// symbols carry the index assigned to their DSO's version string;
// everything else carries VerNdxGlobal.
type VersionSection struct {
	Chunk
}

func NewVersionSection() *VersionSection {
	v := &VersionSection{Chunk: NewChunk()}
	v.Name = ".gnu.version"
	v.Shdr.Type = uint32(elf.SHT_GNU_VERSYM)
	v.Shdr.Flags = uint64(elf.SHF_ALLOC)
	v.Shdr.AddrAlign = 2
	v.Shdr.EntSize = 2
	return v
}

func (v *VersionSection) UpdateShdr(ctx *Context) {
	v.Shdr.Size = uint64(len(ctx.Dynsym.Entries)) * 2
}

func (v *VersionSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[v.Shdr.Offset:]
	for i, sym := range ctx.Dynsym.Entries {
		idx := VerNdxGlobal
		if sym != nil && sym.IsImported && sym.VerIdx != 0 {
			idx = sym.VerIdx
		}
		utils.Write[uint16](buf[i*2:], idx)
	}
}

// verneedFile groups the version strings needed from one DSO, the unit
// .gnu.version_r's Verneed chain is keyed on (spec §4.9).
type verneedFile struct {
	soname   string
	versions []string
}

// VerneedSection is .gnu.version_r: the Verneed/Vernaux chains recording
// which versioned symbol each imported DSO's symbols came from.
type VerneedSection struct {
	Chunk
	Needed []verneedFile
}

func NewVerneedSection() *VerneedSection {
	v := &VerneedSection{Chunk: NewChunk()}
	v.Name = ".gnu.version_r"
	v.Shdr.Type = uint32(elf.SHT_GNU_VERNEED)
	v.Shdr.Flags = uint64(elf.SHF_ALLOC)
	v.Shdr.AddrAlign = 8
	return v
}

// Build collects, per imported DSO, the distinct version strings any
// resolved symbol actually used. Called once after dynsym/version-index
// assignment (spec §4.9), single-threaded.
func (v *VerneedSection) Build(ctx *Context) {
	byFile := map[string]map[string]bool{}
	for _, dso := range ctx.Dsos {
		for i := dso.FirstGlobal; i < len(dso.Symbols); i++ {
			sym := dso.Symbols[i]
			if sym == nil || sym.File() == nil {
				continue
			}
			if o, ok := sym.File().Self().(*SharedFile); !ok || o != dso {
				continue
			}
			if i >= len(dso.VerIdx) {
				continue
			}
			name, ok := dso.Versions[dso.VerIdx[i]]
			if !ok || name == "" {
				continue
			}
			if byFile[dso.Soname] == nil {
				byFile[dso.Soname] = map[string]bool{}
			}
			byFile[dso.Soname][name] = true
		}
	}

	sonames := make([]string, 0, len(byFile))
	for s := range byFile {
		sonames = append(sonames, s)
	}
	sort.Strings(sonames)

	// assigned maps soname -> version name -> the output .gnu.version
	// index this linker renumbers it to (2 and up, spec §4.9: "named
	// version entries start at 2").
	assigned := map[string]map[string]uint16{}

	v.Needed = v.Needed[:0]
	nextIdx := uint16(2)
	for _, soname := range sonames {
		names := make([]string, 0, len(byFile[soname]))
		for n := range byFile[soname] {
			names = append(names, n)
		}
		sort.Strings(names)
		v.Needed = append(v.Needed, verneedFile{soname: soname, versions: names})

		assigned[soname] = map[string]uint16{}
		for _, n := range names {
			assigned[soname][n] = nextIdx
			nextIdx++
		}
	}

	// Second pass: stamp every resolved dynamic symbol with its output
	// version index, since the DSO's own VerIdx is only meaningful against
	// that DSO's local .gnu.version_d numbering.
	for _, dso := range ctx.Dsos {
		for i := dso.FirstGlobal; i < len(dso.Symbols); i++ {
			sym := dso.Symbols[i]
			if sym == nil || sym.File() == nil || i >= len(dso.VerIdx) {
				continue
			}
			if o, ok := sym.File().Self().(*SharedFile); !ok || o != dso {
				continue
			}
			name := dso.Versions[dso.VerIdx[i]]
			if idx, ok := assigned[dso.Soname][name]; ok {
				sym.VerIdx = idx
			} else {
				sym.VerIdx = VerNdxGlobal
			}
		}
	}
}

func (v *VerneedSection) UpdateShdr(ctx *Context) {
	size := uint64(0)
	for _, f := range v.Needed {
		size += 20 // Verneed
		size += uint64(len(f.versions)) * 16
	}
	v.Shdr.Size = size
	v.Shdr.Info = uint32(len(v.Needed))
}

func (v *VerneedSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[v.Shdr.Offset:]
	off := 0
	nextVerIdx := uint16(2)
	for fi, f := range v.Needed {
		vn := Verneed{
			Version: 1,
			Cnt:     uint16(len(f.versions)),
			File:    ctx.Dynstr.Add(f.soname),
			Aux:     20,
		}
		if fi != len(v.Needed)-1 {
			vn.Next = 20 + uint32(len(f.versions))*16
		}
		utils.Write(buf[off:], vn)
		auxOff := off + 20
		for vi, name := range f.versions {
			va := Vernaux{
				Hash:  ElfHash(name),
				Other: nextVerIdx,
				Name:  ctx.Dynstr.Add(name),
			}
			nextVerIdx++
			if vi != len(f.versions)-1 {
				va.Next = 16
			}
			utils.Write(buf[auxOff+vi*16:], va)
		}
		off += 20 + len(f.versions)*16
	}
}
