package linker

import "debug/elf"

// syntheticSymbols holds the handful of magic symbols this linker binds
// itself rather than resolving from any input file (spec §4.7's layout
// pass: "a handful of section-boundary symbols get their addresses from
// the chunk list directly"). Each is interned whether or not any input
// references it, and bindSyntheticSymbols binds it unless an input file
// already owns it.
type syntheticSymbols struct {
	EhdrStart      *Symbol // __ehdr_start
	BssStart       *Symbol // __bss_start
	End            *Symbol // _end
	Etext          *Symbol // _etext
	Edata          *Symbol // _edata
	DynamicAddr    *Symbol // _DYNAMIC
	GotAddr        *Symbol // _GLOBAL_OFFSET_TABLE_
	RelaIpltStart  *Symbol // __rela_iplt_start
	RelaIpltEnd    *Symbol // __rela_iplt_end
	InitArrayStart *Symbol // __init_array_start
	InitArrayEnd   *Symbol // __init_array_end
	FiniArrayStart *Symbol // __fini_array_start
	FiniArrayEnd   *Symbol // __fini_array_end
}

func initSyntheticSymbols(ctx *Context) {
	ctx.synthetic = syntheticSymbols{
		EhdrStart:      ctx.GetSymbolByName("__ehdr_start"),
		BssStart:       ctx.GetSymbolByName("__bss_start"),
		End:            ctx.GetSymbolByName("_end"),
		Etext:          ctx.GetSymbolByName("_etext"),
		Edata:          ctx.GetSymbolByName("_edata"),
		DynamicAddr:    ctx.GetSymbolByName("_DYNAMIC"),
		GotAddr:        ctx.GetSymbolByName("_GLOBAL_OFFSET_TABLE_"),
		RelaIpltStart:  ctx.GetSymbolByName("__rela_iplt_start"),
		RelaIpltEnd:    ctx.GetSymbolByName("__rela_iplt_end"),
		InitArrayStart: ctx.GetSymbolByName("__init_array_start"),
		InitArrayEnd:   ctx.GetSymbolByName("__init_array_end"),
		FiniArrayStart: ctx.GetSymbolByName("__fini_array_start"),
		FiniArrayEnd:   ctx.GetSymbolByName("__fini_array_end"),
	}
}

// bindSyntheticSymbols assigns final addresses once every chunk has one
// (spec §4.7, last step before the writer runs). A synthetic symbol only
// becomes "defined" here if nothing else in the link already claimed its
// name — an input object providing its own __bss_start wins, same rule
// as any other global.
func bindSyntheticSymbols(ctx *Context) {
	var firstAlloc, lastAlloc *Shdr
	var firstBss *Shdr
	var lastExec *Shdr
	for _, c := range ctx.Chunks {
		shdr := c.GetShdr()
		if shdr.Flags&uint64(elf.SHF_ALLOC) == 0 {
			continue
		}
		if firstAlloc == nil {
			firstAlloc = shdr
		}
		lastAlloc = shdr
		if firstBss == nil && shdr.Type == uint32(elf.SHT_NOBITS) {
			firstBss = shdr
		}
		if shdr.Flags&uint64(elf.SHF_EXECINSTR) != 0 {
			lastExec = shdr
		}
	}

	bind := func(sym *Symbol, addr uint64) {
		if sym == nil || sym.File() != nil {
			return
		}
		sym.SetFileUnsync(&ctx.syntheticFile)
		sym.Value = addr
	}

	if firstAlloc != nil {
		bind(ctx.synthetic.EhdrStart, firstAlloc.Addr)
	}
	if firstBss != nil {
		bind(ctx.synthetic.BssStart, firstBss.Addr)
	}
	if lastAlloc != nil {
		bind(ctx.synthetic.End, lastAlloc.Addr+lastAlloc.Size)
		bind(ctx.synthetic.Edata, lastAlloc.Addr+lastAlloc.Size)
	}
	if lastExec != nil {
		bind(ctx.synthetic.Etext, lastExec.Addr+lastExec.Size)
	}
	if ctx.Dynamic != nil {
		bind(ctx.synthetic.DynamicAddr, ctx.Dynamic.Shdr.Addr)
	}
	if ctx.Got != nil {
		bind(ctx.synthetic.GotAddr, ctx.Got.Shdr.Addr)
	}

	// This linker never emits IFUNC relocations, so .rela.iplt is
	// always empty; both bounds collapse to the same address, the spot
	// right after the last allocated byte, same as an empty section
	// would get if one existed.
	if lastAlloc != nil {
		end := lastAlloc.Addr + lastAlloc.Size
		bind(ctx.synthetic.RelaIpltStart, end)
		bind(ctx.synthetic.RelaIpltEnd, end)
	}

	bindSectionBounds(ctx, ".init_array", ctx.synthetic.InitArrayStart, ctx.synthetic.InitArrayEnd)
	bindSectionBounds(ctx, ".fini_array", ctx.synthetic.FiniArrayStart, ctx.synthetic.FiniArrayEnd)

	bindSectionMarkers(ctx)
}

// bindSectionBounds binds start/end to the named OutputSection's address
// range. If the section has no live members in this link, both bounds
// collapse to 0 rather than staying undefined — an .init_array-less
// binary's __init_array_start/end still resolve, same as a real link
// with an empty array section would produce.
func bindSectionBounds(ctx *Context, name string, start, end *Symbol) {
	for _, osec := range ctx.OutputSections {
		if osec.Name == name && len(osec.Members) > 0 {
			shdr := osec.GetShdr()
			bindSym(ctx, start, shdr.Addr)
			bindSym(ctx, end, shdr.Addr+shdr.Size)
			return
		}
	}
	bindSym(ctx, start, 0)
	bindSym(ctx, end, 0)
}

// bindSectionMarkers binds __start_<name>/__stop_<name> for every output
// section whose name is a valid C identifier (spec §4.10), the
// convention glibc/GCC-generated code relies on to find the bounds of a
// custom linker-collected array without a matching header declaration.
func bindSectionMarkers(ctx *Context) {
	for _, osec := range ctx.OutputSections {
		if len(osec.Members) == 0 || !isCIdent(osec.Name) {
			continue
		}
		shdr := osec.GetShdr()
		ident := osec.Name[1:]
		bindSym(ctx, ctx.GetSymbolByName("__start_"+ident), shdr.Addr)
		bindSym(ctx, ctx.GetSymbolByName("__stop_"+ident), shdr.Addr+shdr.Size)
	}
}

func bindSym(ctx *Context, sym *Symbol, addr uint64) {
	if sym == nil || sym.File() != nil {
		return
	}
	sym.SetFileUnsync(&ctx.syntheticFile)
	sym.Value = addr
}

// isCIdent reports whether an output section name, with its leading dot
// stripped, is a valid C identifier: __start_<name>/__stop_<name> are
// only emitted when the result is itself a legal C identifier.
func isCIdent(name string) bool {
	if len(name) < 2 || name[0] != '.' {
		return false
	}
	name = name[1:]
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
