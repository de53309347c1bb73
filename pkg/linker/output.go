package linker

import (
	"debug/elf"
	"strings"
)

var prefixes = []string{
	".text.", ".data.rel.ro.", ".data.", ".rodata.", ".bss.rel.ro.", ".bss.",
	".init_array.", ".fini_array.", ".tbss.", ".tdata.", ".gcc_except_table.",
	".ctors.", ".dtors.",
}

// GetOutputName maps an input section name to the name of the output
// section bin it falls into (spec §4.5): sections sharing one of the
// well-known GCC/LLVM numbered-suffix prefixes (".text.foo",
// ".data.rel.ro.bar", ...) collapse onto their stem, and mergeable
// .rodata splits further by whether it's NUL-terminated strings or
// fixed-size constants.
func GetOutputName(name string, flags uint64) string {
	if (name == ".rodata" || strings.HasPrefix(name, ".rodata.")) &&
		flags&uint64(elf.SHF_MERGE) != 0 {
		if flags&uint64(elf.SHF_STRINGS) != 0 {
			return ".rodata.str"
		} else {
			return ".rodata.cst"
		}
	}

	for _, prefix := range prefixes {
		stem := prefix[:len(prefix)-1]
		if name == stem || strings.HasPrefix(name, prefix) {
			return stem
		}
	}

	return name
}

// CanonicalizeType overrides the section type an input object assigned
// when the output name implies a more specific one than SHT_PROGBITS:
// `.init_array`/`.fini_array` sections are typed SHT_INIT_ARRAY/
// SHT_FINI_ARRAY regardless of what the compiler emitted, so the
// synthetic __init_array_start/end and __fini_array_start/end symbols
// (spec §4.10) can find them by type as well as by name.
func CanonicalizeType(name string, typ uint64) uint64 {
	if typ == uint64(elf.SHT_PROGBITS) {
		if name == ".init_array" || strings.HasPrefix(name, ".init_array.") {
			return uint64(elf.SHT_INIT_ARRAY)
		}
		if name == ".fini_array" || strings.HasPrefix(name, ".fini_array.") {
			return uint64(elf.SHT_FINI_ARRAY)
		}
	}
	return typ
}
