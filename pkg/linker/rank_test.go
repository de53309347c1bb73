package linker

import (
	"debug/elf"
	"testing"
)

func newTestObjFileForRank(priority int64, inArchive, alive bool) *ObjectFile {
	o := &ObjectFile{}
	o.Priority = priority
	o.IsInArchive = inArchive
	o.IsAlive = alive
	o.self = o
	return o
}

func TestRank_StrongBeatsWeakBeatsLazy(t *testing.T) {
	strongFile := &newTestObjFileForRank(0, false, true).InputFile
	weakFile := &newTestObjFileForRank(1, false, true).InputFile
	lazyFile := &newTestObjFileForRank(2, true, false).InputFile

	strong := &Sym{}
	weak := &Sym{}
	weak.SetBind(uint8(elf.STB_WEAK))
	lazyStrong := &Sym{}

	strongRank := rank(strongFile, strong, isLazyFile(strongFile))
	weakRank := rank(weakFile, weak, isLazyFile(weakFile))
	lazyRank := rank(lazyFile, lazyStrong, isLazyFile(lazyFile))

	if !(strongRank < weakRank && weakRank < lazyRank) {
		t.Fatalf("expected strong < weak < lazy, got strong=%d weak=%d lazy=%d", strongRank, weakRank, lazyRank)
	}
}

func TestRank_TieBrokenByPriority(t *testing.T) {
	first := &newTestObjFileForRank(0, false, true).InputFile
	second := &newTestObjFileForRank(1, false, true).InputFile

	sym := &Sym{}

	r1 := rank(first, sym, false)
	r2 := rank(second, sym, false)

	if r1 >= r2 {
		t.Fatalf("lower-priority file must rank lower (win), got r1=%d r2=%d", r1, r2)
	}
}

func TestSymbol_GetRank_Unresolved(t *testing.T) {
	s := NewSymbol("undefined_sym")
	if got, want := s.GetRank(), uint64(7)<<32; got != want {
		t.Fatalf("unresolved symbol rank = %d, want %d", got, want)
	}
}

func TestIsLazyFile_OnlyArchiveNotYetPulled(t *testing.T) {
	inArchiveNotAlive := newTestObjFileForRank(0, true, false)
	inArchiveAlive := newTestObjFileForRank(1, true, true)
	notInArchive := newTestObjFileForRank(2, false, false)

	if !isLazyFile(&inArchiveNotAlive.InputFile) {
		t.Errorf("archive member not yet pulled in should be lazy")
	}
	if isLazyFile(&inArchiveAlive.InputFile) {
		t.Errorf("archive member already pulled in must not be lazy")
	}
	if isLazyFile(&notInArchive.InputFile) {
		t.Errorf("non-archive file must never be lazy")
	}
}
