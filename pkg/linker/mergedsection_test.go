package linker

import (
	"debug/elf"
	"testing"
)

func TestMergedSection_Insert_DedupsIdenticalContent(t *testing.T) {
	m := NewMergedSection(".rodata.str1.1", uint64(elf.SHF_ALLOC), uint32(elf.SHT_PROGBITS))

	f1 := m.Insert("hello\x00", 0)
	f2 := m.Insert("hello\x00", 0)
	f3 := m.Insert("world\x00", 0)

	if f1 != f2 {
		t.Errorf("two inserts of identical content must return the same fragment")
	}
	if f1 == f3 {
		t.Errorf("distinct content must not collapse to the same fragment")
	}
	if len(m.Map) != 2 {
		t.Errorf("expected 2 distinct fragments in the pool, got %d", len(m.Map))
	}
}

func TestMergedSection_Insert_WidensAlignmentToStrictest(t *testing.T) {
	m := NewMergedSection(".rodata.cst8", uint64(elf.SHF_ALLOC), uint32(elf.SHT_PROGBITS))

	frag := m.Insert("shared", 1)
	if frag.P2Align != 1 {
		t.Fatalf("P2Align after first insert = %d, want 1", frag.P2Align)
	}
	m.Insert("shared", 3)
	if frag.P2Align != 3 {
		t.Errorf("P2Align must widen to the strictest contributor, got %d, want 3", frag.P2Align)
	}
	m.Insert("shared", 2)
	if frag.P2Align != 3 {
		t.Errorf("P2Align must not narrow once widened, got %d, want 3", frag.P2Align)
	}
}

func TestMergedSection_AssignOffsets_NoOverlapAndAligned(t *testing.T) {
	m := NewMergedSection(".rodata.str1.1", uint64(elf.SHF_ALLOC), uint32(elf.SHT_PROGBITS))
	m.Insert("a", 0)
	m.Insert("bb", 2)
	m.Insert("ccc", 0)

	m.AssignOffsets()

	type span struct{ start, end uint32 }
	var spans []span
	for key, frag := range m.Map {
		spans = append(spans, span{frag.Offset, frag.Offset + uint32(len(key))})
		if frag.Offset%(1<<frag.P2Align) != 0 {
			t.Errorf("fragment %q offset %d not aligned to 1<<%d", key, frag.Offset, frag.P2Align)
		}
	}
	for i := range spans {
		for j := range spans {
			if i == j {
				continue
			}
			if spans[i].start < spans[j].end && spans[j].start < spans[i].end {
				t.Fatalf("fragments overlap: %v and %v", spans[i], spans[j])
			}
		}
	}
}

func TestGetMergedSectionInstance_SamePoolForSameTriple(t *testing.T) {
	ctx := &Context{}
	a := GetMergedSectionInstance(ctx, ".rodata.str1.1", uint32(elf.SHT_PROGBITS), uint64(elf.SHF_ALLOC)|uint64(elf.SHF_MERGE)|uint64(elf.SHF_STRINGS))
	b := GetMergedSectionInstance(ctx, ".rodata.str1.1", uint32(elf.SHT_PROGBITS), uint64(elf.SHF_ALLOC)|uint64(elf.SHF_MERGE)|uint64(elf.SHF_STRINGS))
	if a != b {
		t.Errorf("same name/type/flags triple must return the same MergedSection")
	}
	if len(ctx.MergedSections) != 1 {
		t.Errorf("expected exactly one registered MergedSection, got %d", len(ctx.MergedSections))
	}
}
