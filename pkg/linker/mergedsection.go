package linker

import (
	"debug/elf"
	"sort"
	"sync"

	"github.com/Keruspe/mold/pkg/utils"
)

// MergedSection is one pool of interned mergeable-string/constant
// fragments sharing a name/type/flags triple (spec §4.4 "Mergeable
// string interning"): every ObjectFile's matching SHF_MERGE section
// contributes its pieces into the same Map, keyed by content, so
// identical strings across translation units collapse to one copy.
type MergedSection struct {
	Chunk
	mu  sync.Mutex
	Map map[string]*SectionFragment
}

func NewMergedSection(name string, flags uint64, typ uint32) *MergedSection {
	m := &MergedSection{
		Chunk: NewChunk(),
		Map:   make(map[string]*SectionFragment),
	}
	m.Name = name
	m.Shdr.Flags = flags
	m.Shdr.Type = typ
	return m
}

// GetMergedSectionInstance returns the pool that name/typ/flags maps to,
// registering a new one on first sight (spec §4.4). Concurrent-safe:
// called from every object file's mergeable-section initialization,
// which runs in parallel during the parse phase.
func GetMergedSectionInstance(ctx *Context, name string, typ uint32, flags uint64) *MergedSection {
	name = GetOutputName(name, flags)
	flags = flags & ^uint64(elf.SHF_GROUP) & ^uint64(elf.SHF_MERGE) &
		^uint64(elf.SHF_STRINGS) & ^uint64(elf.SHF_COMPRESSED)

	ctx.sectionsMu.Lock()
	defer ctx.sectionsMu.Unlock()

	for _, osec := range ctx.MergedSections {
		if name == osec.Name && flags == osec.Shdr.Flags && typ == osec.Shdr.Type {
			return osec
		}
	}

	osec := NewMergedSection(name, flags, typ)
	ctx.MergedSections = append(ctx.MergedSections, osec)
	return osec
}

// Insert interns key, widening the fragment's alignment requirement to
// the strictest of any contributor (spec §4.4: dedup by content,
// alignment is the max across all duplicates). Guarded by its own mutex
// since many ObjectFiles intern into the same pool concurrently.
func (m *MergedSection) Insert(key string, p2align uint32) *SectionFragment {
	m.mu.Lock()
	defer m.mu.Unlock()

	frag, ok := m.Map[key]
	if !ok {
		frag = NewSectionFragment(m)
		m.Map[key] = frag
	}
	if frag.P2Align < p2align {
		frag.P2Align = p2align
	}
	return frag
}

func (m *MergedSection) AssignOffsets() {
	type entry struct {
		Key string
		Val *SectionFragment
	}
	fragments := make([]entry, 0, len(m.Map))
	for key, frag := range m.Map {
		fragments = append(fragments, entry{Key: key, Val: frag})
	}

	sort.SliceStable(fragments, func(i, j int) bool {
		x, y := fragments[i], fragments[j]
		if x.Val.P2Align != y.Val.P2Align {
			return x.Val.P2Align < y.Val.P2Align
		}
		if len(x.Key) != len(y.Key) {
			return len(x.Key) < len(y.Key)
		}
		return x.Key < y.Key
	})

	offset := uint64(0)
	p2align := uint64(0)
	for _, frag := range fragments {
		offset = utils.AlignTo(offset, 1<<frag.Val.P2Align)
		frag.Val.Offset = uint32(offset)
		offset += uint64(len(frag.Key))
		if p2align < uint64(frag.Val.P2Align) {
			p2align = uint64(frag.Val.P2Align)
		}
	}

	m.Shdr.Size = utils.AlignTo(offset, 1<<p2align)
	m.Shdr.AddrAlign = 1 << p2align
}

func (m *MergedSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[m.Shdr.Offset:]
	for key, frag := range m.Map {
		if frag.IsAlive {
			copy(buf[frag.Offset:], key)
		}
	}
}
