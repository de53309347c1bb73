package linker

import (
	"os"
	"path/filepath"
	"time"

	"github.com/Keruspe/mold/internal/errs"
)

// MemoryMappedFile is an immutable view of a file on disk: spec §3's
// "{ name, mtime, bytes }", deduplicated process-wide so that repeated
// -lfoo resolutions and repeated archive-member references share one
// backing buffer. Despite the name, this implementation reads the file
// into memory with os.ReadFile rather than calling mmap(2) — actual
// memory-mapping is one of the out-of-scope external collaborators
// named in spec §1; the core only needs the immutable-bytes-plus-mtime
// contract, not the syscall that produced it.
type MemoryMappedFile struct {
	Name    string
	Mtime   time.Time
	Bytes   []byte
	Parent  *MemoryMappedFile // set when extracted from an archive
}

// OpenFile reads path through the process-wide registry, returning the
// same *MemoryMappedFile for repeated calls with the same absolute path.
func (ctx *Context) OpenFile(path string) (*MemoryMappedFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errs.NewFatalInput(path, err)
	}
	if v, ok := ctx.registry.Load(abs); ok {
		return v.(*MemoryMappedFile), nil
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, errs.NewFatalInput(path, err)
	}
	bytes, err := os.ReadFile(abs)
	if err != nil {
		return nil, errs.NewFatalInput(path, err)
	}

	mf := &MemoryMappedFile{Name: path, Mtime: info.ModTime(), Bytes: bytes}
	actual, _ := ctx.registry.LoadOrStore(abs, mf)
	return actual.(*MemoryMappedFile), nil
}

// MustOpenFile is OpenFile, aborting the link on failure — used for
// positional command-line arguments, where a missing file is always
// fatal (spec §7 "Fatal input errors").
func (ctx *Context) MustOpenFile(path string) *MemoryMappedFile {
	mf, err := ctx.OpenFile(path)
	if err != nil {
		fatal(err)
	}
	return mf
}

// FindLibrary searches the -L paths, in order, for libNAME.so then
// libNAME.a (only libNAME.a for a --static link). Config.Sysroot is not
// applied and no default system directories are searched. --as-needed
// suppression is the caller's concern (mold.go / resolver).
func (ctx *Context) FindLibrary(name string) (*MemoryMappedFile, error) {
	exts := []string{".so", ".a"}
	if ctx.Config.Static {
		exts = []string{".a"}
	}
	for _, dir := range ctx.Config.LibraryPaths {
		for _, ext := range exts {
			path := filepath.Join(dir, "lib"+name+ext)
			if _, err := os.Stat(path); err == nil {
				return ctx.OpenFile(path)
			}
		}
	}
	return nil, errs.NewFatalInput(name, os.ErrNotExist)
}
