package linker

import (
	"github.com/Keruspe/mold/internal/errs"
	"github.com/Keruspe/mold/pkg/utils"
)

// ResolveSymbols runs the three-stage resolver (spec §4.2): register
// every definition each file offers, mark the transitively reachable
// subset live by a work-stealing-style queue over the bipartite
// file/symbol reference graph, then prune the symbol table of anything
// owned by a file that didn't make the cut.
func ResolveSymbols(ctx *Context) {
	for _, file := range ctx.Objs {
		file.ResolveSymbols(ctx)
	}
	for _, dso := range ctx.Dsos {
		dso.ResolveSymbols(ctx)
	}

	MarkLiveObjects(ctx)

	for _, file := range ctx.Objs {
		if !file.IsAlive {
			file.ClearSymbols()
		}
	}

	ctx.Objs = utils.RemoveIf(ctx.Objs, func(file *ObjectFile) bool {
		return !file.IsAlive
	})
	ctx.Dsos = utils.RemoveIf(ctx.Dsos, func(dso *SharedFile) bool {
		return dso.AsNeeded && !dso.IsAlive
	})
}

// CheckUndefinedReferences reports every global symbol that's still
// undefined once liveness and synthetic-symbol binding have both
// settled (spec §4.2(c)/§7 "undefined reference"): a live file's
// reference that never found a definition in any surviving object,
// DSO, or synthetic symbol. Called late in the pipeline, after
// bindSyntheticSymbols, so references to `_end`, `__bss_start`, and
// the rest of the synthetic set aren't flagged before they've had a
// chance to resolve. Undefined-weak references are exempt — they
// resolve to 0 without error, same as a regular linker.
func CheckUndefinedReferences(ctx *Context) {
	for _, file := range ctx.Objs {
		for i := file.FirstGlobal; i < len(file.ElfSyms); i++ {
			esym := &file.ElfSyms[i]
			if !esym.IsUndef() || esym.IsUndefWeak() {
				continue
			}
			sym := file.Symbols[i]
			if sym.File() == nil {
				ctx.Sink.Report("%s", errs.NewSemanticLink(
					"undefined reference to `%s`, referenced by %s",
					sym.Name, file.Name()))
			}
		}
	}
}

// MarkLiveObjects computes the reachable-set fixed point (spec §4.2(b)):
// root set is every non-archive ObjectFile plus every DSO not flagged
// --as-needed; archive members and as-needed DSOs are pulled in lazily
// the first time a live reference resolves to one of their definitions.
func MarkLiveObjects(ctx *Context) {
	roots := make([]*ObjectFile, 0, len(ctx.Objs))
	for _, file := range ctx.Objs {
		if file.IsAlive {
			roots = append(roots, file)
		}
	}

	for len(roots) > 0 {
		file := roots[0]
		roots = roots[1:]

		if !file.IsAlive {
			continue
		}

		file.MarkLiveObjects(func(f *InputFile) {
			if o, ok := f.Self().(*ObjectFile); ok {
				roots = append(roots, o)
			}
			// A SharedFile reached this way is already IsAlive=true
			// (ObjectFile.MarkLiveObjects sets it directly); DSOs have
			// no further sections to pull in.
		})
	}
}
