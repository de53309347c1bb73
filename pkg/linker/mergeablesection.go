package linker

import "sort"

// MergeableSection holds one input section's split view after an
// SHF_MERGE section (spec §4.4) has been chopped into fragments: Strs
// carries each fragment's raw bytes (a NUL-terminated piece for
// SHF_STRINGS sections, a fixed-size record otherwise), FragOffsets the
// matching offset of each piece into the original section, and
// Fragments the process-wide pool entry each piece interned into once
// RegisterSectionPieces ran.
type MergeableSection struct {
	Parent      *MergedSection
	P2Align     uint8
	Strs        []string
	FragOffsets []uint32
	Fragments   []*SectionFragment
}

func (m *MergeableSection) GetFragment(offset uint32) (*SectionFragment, uint32) {
	pos := sort.Search(len(m.FragOffsets), func(i int) bool {
		return offset < m.FragOffsets[i]
	})

	if pos == 0 {
		return nil, 0
	}

	idx := pos - 1
	return m.Fragments[idx], offset - m.FragOffsets[idx]
}
