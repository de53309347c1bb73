package linker

// ChunkKind distinguishes the three families of output chunk so the
// layout pass (spec §4.7) can apply header/synthetic placement rules
// that don't follow the ordinary section-rank table.
type ChunkKind int

const (
	ChunkHeader ChunkKind = iota
	ChunkOutputSection
	ChunkSynthetic
)

// Chunker is any piece of the output file: a plain OutputSection bin, a
// MergedSection, or one of the synthetic tables (.got, .plt, .dynsym,
// .dynamic, the ELF/program headers). Go has no base-class pointer, so
// the linker keeps a []Chunker and dispatches through the interface,
// same shape as the teacher's Chunker.
type Chunker interface {
	Kind() ChunkKind
	GetName() string
	GetShdr() *Shdr
	GetShndx() int64
	SetShndx(int64)
	GetExtraAddrAlign() int64
	SetExtraAddrAlign(int64)
	UpdateShdr(ctx *Context)
	CopyBuf(ctx *Context)
}

// Chunk is the common embed every Chunker implementation shares: a
// section header, an assigned section index (filled in during layout),
// and an extra alignment requirement synthetic sections sometimes need
// beyond what Shdr.AddrAlign encodes (e.g. the GOT's TLS-relative slots).
type Chunk struct {
	Name           string
	Shdr           Shdr
	Shndx          int64
	ExtraAddrAlign int64
}

func NewChunk() Chunk {
	return Chunk{Shdr: Shdr{AddrAlign: 1}}
}

func (c *Chunk) Kind() ChunkKind { return ChunkSynthetic }

func (c *Chunk) GetName() string { return c.Name }

func (c *Chunk) GetShdr() *Shdr { return &c.Shdr }

func (c *Chunk) GetShndx() int64 { return c.Shndx }

func (c *Chunk) SetShndx(a int64) { c.Shndx = a }

func (c *Chunk) GetExtraAddrAlign() int64 { return c.ExtraAddrAlign }

func (c *Chunk) SetExtraAddrAlign(a int64) { c.ExtraAddrAlign = a }

func (c *Chunk) UpdateShdr(ctx *Context) {}

func (c *Chunk) CopyBuf(ctx *Context) {}
