package linker

import "sync"

// grpComdat is the SHF_GROUP header's GRP_COMDAT flag bit (ELF gABI
// §"Section Groups"); debug/elf doesn't expose it as a named constant.
const grpComdat = 0x1

// ComdatGroup is one SHT_GROUP's signature and the section indices it
// binds together (spec §4.3 "each a (signature, member-section-indices)").
type ComdatGroup struct {
	Signature string
	Members   []uint32
}

// comdatRegistry tracks, per signature, the lowest-priority ObjectFile
// that has claimed it — the eventual surviving copy (spec §4.3: ties
// broken the same way symbol resolution breaks them, by file priority).
type comdatRegistry struct {
	mu      sync.Mutex
	winners map[string]*ObjectFile
}

func newComdatRegistry() *comdatRegistry {
	return &comdatRegistry{winners: make(map[string]*ObjectFile)}
}

// claim registers file as a candidate owner of signature, returning the
// current winner (which may be file itself, or another file that beat
// it on priority).
func (r *comdatRegistry) claim(signature string, file *ObjectFile) *ObjectFile {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.winners[signature]
	if !ok || file.Priority < cur.Priority {
		r.winners[signature] = file
		return file
	}
	return cur
}

// ResolveComdatGroups claims every COMDAT signature this file defines
// (spec §4.3, phase one: "resolve_comdat_groups" in the source linker).
func (o *ObjectFile) ResolveComdatGroups(ctx *Context) {
	for _, g := range o.ComdatGroupDefs {
		ctx.comdats.claim(g.Signature, o)
	}
}

// EliminateDuplicateComdatGroups kills the member sections of every
// group this file lost (spec §4.3, phase two): a file that did not win
// a signature marks its own copies of that group's sections dead so
// binning never sees them.
func (o *ObjectFile) EliminateDuplicateComdatGroups(ctx *Context) {
	for _, g := range o.ComdatGroupDefs {
		winner, ok := ctx.comdats.winners[g.Signature]
		if ok && winner == o {
			continue
		}
		for _, idx := range g.Members {
			if int(idx) < len(o.Sections) && o.Sections[idx] != nil {
				o.Sections[idx].IsAlive = false
			}
		}
	}
}
