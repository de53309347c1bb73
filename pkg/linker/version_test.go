package linker

import "testing"

func newTestSharedFile(soname string, priority int64) *SharedFile {
	f := &SharedFile{Versions: make(map[uint16]string)}
	f.Soname = soname
	f.Priority = priority
	f.self = f
	return f
}

func TestVerneedSection_Build_RenumbersOutputVersionIndices(t *testing.T) {
	dso := newTestSharedFile("libfoo.so.1", 0)
	dso.Versions[1] = "FOO_2.0"
	dso.Versions[2] = "FOO_1.0"
	dso.VerIdx = []uint16{1, 2}

	sym0 := NewSymbol("new_api")
	sym0.SetFileUnsync(&dso.InputFile)
	sym1 := NewSymbol("old_api")
	sym1.SetFileUnsync(&dso.InputFile)
	dso.Symbols = []*Symbol{sym0, sym1}
	dso.FirstGlobal = 0

	ctx := &Context{Dsos: []*SharedFile{dso}}
	v := NewVerneedSection()
	v.Build(ctx)

	if len(v.Needed) != 1 {
		t.Fatalf("expected one verneed file entry, got %d", len(v.Needed))
	}
	got := v.Needed[0]
	if got.soname != "libfoo.so.1" {
		t.Errorf("soname = %q, want libfoo.so.1", got.soname)
	}
	// Version names are sorted lexically within a soname: FOO_1.0 < FOO_2.0.
	if len(got.versions) != 2 || got.versions[0] != "FOO_1.0" || got.versions[1] != "FOO_2.0" {
		t.Fatalf("versions = %v, want [FOO_1.0 FOO_2.0]", got.versions)
	}

	// sym1 used FOO_1.0 (sorted first -> output index 2), sym0 used FOO_2.0 (index 3).
	if sym1.VerIdx != 2 {
		t.Errorf("sym1 (FOO_1.0) VerIdx = %d, want 2", sym1.VerIdx)
	}
	if sym0.VerIdx != 3 {
		t.Errorf("sym0 (FOO_2.0) VerIdx = %d, want 3", sym0.VerIdx)
	}
}

func TestVerneedSection_Build_MultipleSonamesSortedOrder(t *testing.T) {
	dsoB := newTestSharedFile("libb.so", 0)
	dsoB.Versions[1] = "B_1.0"
	dsoB.VerIdx = []uint16{1}
	symB := NewSymbol("b_sym")
	symB.SetFileUnsync(&dsoB.InputFile)
	dsoB.Symbols = []*Symbol{symB}

	dsoA := newTestSharedFile("liba.so", 1)
	dsoA.Versions[1] = "A_1.0"
	dsoA.VerIdx = []uint16{1}
	symA := NewSymbol("a_sym")
	symA.SetFileUnsync(&dsoA.InputFile)
	dsoA.Symbols = []*Symbol{symA}

	ctx := &Context{Dsos: []*SharedFile{dsoB, dsoA}}
	v := NewVerneedSection()
	v.Build(ctx)

	if len(v.Needed) != 2 {
		t.Fatalf("expected two verneed file entries, got %d", len(v.Needed))
	}
	if v.Needed[0].soname != "liba.so" || v.Needed[1].soname != "libb.so" {
		t.Fatalf("sonames not sorted: %v", v.Needed)
	}
	if symA.VerIdx != 2 {
		t.Errorf("liba.so's symbol should get the first output index (2), got %d", symA.VerIdx)
	}
	if symB.VerIdx != 3 {
		t.Errorf("libb.so's symbol should get the second output index (3), got %d", symB.VerIdx)
	}
}
