package linker

import "math"

// SectionFragment is one interned piece of a MergedSection — a single
// deduplicated string or fixed-size constant (spec §4.4). Symbols whose
// value falls inside a mergeable section point here instead of at an
// InputSection.
type SectionFragment struct {
	OutputSection *MergedSection
	Offset        uint32
	P2Align       uint32
	IsAlive       bool
}

func NewSectionFragment(m *MergedSection) *SectionFragment {
	return &SectionFragment{
		OutputSection: m,
		Offset:        math.MaxUint32,
		IsAlive:       true,
	}
}

func (s *SectionFragment) GetAddr() uint64 {
	return s.OutputSection.Shdr.Addr + uint64(s.Offset)
}
