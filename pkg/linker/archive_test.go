package linker

import (
	"fmt"
	"testing"
)

// arMember builds one 60-byte ar(5) header plus content, padded to an
// even total length, matching the layout readArchiveMembers parses.
func arMember(name string, content []byte) []byte {
	hdr := make([]byte, arHeaderSize)
	for i := range hdr {
		hdr[i] = ' '
	}
	copy(hdr[0:16], []byte(fmt.Sprintf("%-16s", name)))
	copy(hdr[16:28], []byte(fmt.Sprintf("%-12d", 0)))
	copy(hdr[28:34], []byte(fmt.Sprintf("%-6d", 0)))
	copy(hdr[34:40], []byte(fmt.Sprintf("%-6d", 0)))
	copy(hdr[40:48], []byte(fmt.Sprintf("%-8s", "100644")))
	copy(hdr[48:58], []byte(fmt.Sprintf("%-10d", len(content))))
	hdr[58] = '`'
	hdr[59] = '\n'

	out := append(hdr, content...)
	if len(content)%2 != 0 {
		out = append(out, '\n')
	}
	return out
}

func buildFatArchive(members map[string][]byte, order []string) []byte {
	buf := []byte(archMagic)
	for _, name := range order {
		buf = append(buf, arMember(name+"/", members[name])...)
	}
	return buf
}

func TestReadArchiveMembers_FatArchive(t *testing.T) {
	members := map[string][]byte{
		"foo.o": []byte("OBJECTCONTENTAAA"),
		"bar.o": []byte("OTHERCONTENTBBB"),
	}
	order := []string{"foo.o", "bar.o"}
	raw := buildFatArchive(members, order)

	parent := &MemoryMappedFile{Name: "libtest.a", Bytes: raw}
	got, err := readArchiveMembers(parent)
	if err != nil {
		t.Fatalf("readArchiveMembers: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 members, got %d", len(got))
	}
	for i, name := range order {
		if got[i].Name != name {
			t.Errorf("member %d name = %q, want %q", i, got[i].Name, name)
		}
		if string(got[i].Bytes) != string(members[name]) {
			t.Errorf("member %d content mismatch: got %q want %q", i, got[i].Bytes, members[name])
		}
		if got[i].Parent != parent {
			t.Errorf("member %d Parent not set to the archive's MemoryMappedFile", i)
		}
	}
}

func TestReadArchiveMembers_SkipsSymbolTablePseudoMember(t *testing.T) {
	buf := []byte(archMagic)
	buf = append(buf, arMember("/", []byte("fake-symtab-bytes"))...)
	buf = append(buf, arMember("foo.o/", []byte("REALCONTENT"))...)

	parent := &MemoryMappedFile{Name: "libtest.a", Bytes: buf}
	got, err := readArchiveMembers(parent)
	if err != nil {
		t.Fatalf("readArchiveMembers: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected the symbol-table pseudo-member to be skipped, got %d members", len(got))
	}
	if got[0].Name != "foo.o" {
		t.Errorf("remaining member name = %q, want foo.o", got[0].Name)
	}
}

func TestReadArchiveMembers_GnuLongName(t *testing.T) {
	longName := "a_very_long_object_file_name_that_does_not_fit_in_16_bytes.o"
	longNames := longName + "/\n"

	buf := []byte(archMagic)
	buf = append(buf, arMember("//", []byte(longNames))...)
	buf = append(buf, arMember("/0", []byte("LONGNAMECONTENT"))...)

	parent := &MemoryMappedFile{Name: "libtest.a", Bytes: buf}
	got, err := readArchiveMembers(parent)
	if err != nil {
		t.Fatalf("readArchiveMembers: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 member, got %d", len(got))
	}
	if got[0].Name != longName {
		t.Errorf("long name resolved to %q, want %q", got[0].Name, longName)
	}
}

func TestReadArchiveMembers_RejectsMissingMagic(t *testing.T) {
	parent := &MemoryMappedFile{Name: "notanarchive.a", Bytes: []byte("not an archive at all")}
	if _, err := readArchiveMembers(parent); err == nil {
		t.Fatal("expected an error for data missing the archive magic")
	}
}
