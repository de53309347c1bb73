package linker

import "testing"

func newTestObjectFileForComdat(priority int64) *ObjectFile {
	o := &ObjectFile{}
	o.Priority = priority
	o.self = o
	return o
}

func TestComdatRegistry_LowestPriorityWins(t *testing.T) {
	r := newComdatRegistry()

	high := newTestObjectFileForComdat(5)
	low := newTestObjectFileForComdat(1)

	if got := r.claim("sig", high); got != high {
		t.Fatalf("first claimant should win uncontested, got %v", got)
	}
	if got := r.claim("sig", low); got != low {
		t.Fatalf("lower-priority file should take over the signature, got %v want %v", got, low)
	}
	// A later, higher-priority claim must not unseat the winner.
	if got := r.claim("sig", high); got != low {
		t.Fatalf("higher-priority file must not unseat an existing lower-priority winner, got %v want %v", got, low)
	}
}

func TestEliminateDuplicateComdatGroups_LoserSectionsDie(t *testing.T) {
	ctx := &Context{comdats: newComdatRegistry()}

	winner := newTestObjectFileForComdat(0)
	loser := newTestObjectFileForComdat(1)

	group := ComdatGroup{Signature: "vtable_for_Foo", Members: []uint32{0, 2}}
	winner.ComdatGroupDefs = []ComdatGroup{group}
	loser.ComdatGroupDefs = []ComdatGroup{group}

	winner.Sections = []*InputSection{{IsAlive: true}, {IsAlive: true}, {IsAlive: true}}
	loser.Sections = []*InputSection{{IsAlive: true}, {IsAlive: true}, {IsAlive: true}}

	winner.ResolveComdatGroups(ctx)
	loser.ResolveComdatGroups(ctx)

	winner.EliminateDuplicateComdatGroups(ctx)
	loser.EliminateDuplicateComdatGroups(ctx)

	for _, idx := range group.Members {
		if !winner.Sections[idx].IsAlive {
			t.Errorf("winner's member section %d should stay alive", idx)
		}
		if loser.Sections[idx].IsAlive {
			t.Errorf("loser's member section %d should be killed", idx)
		}
	}
	// Non-member section on the loser is untouched.
	if !loser.Sections[1].IsAlive {
		t.Errorf("loser's non-member section must stay alive")
	}
}
