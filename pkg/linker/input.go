package linker

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/Keruspe/mold/internal/diag"
	"github.com/Keruspe/mold/pkg/linker/sched"
	"github.com/Keruspe/mold/pkg/utils"
)

// ReadInputFiles walks the positional command-line arguments left after
// option parsing — object files, archives, and -lNAME references — and
// turns each into an ObjectFile or SharedFile registered on ctx (spec
// §3/§4.1). Parsing itself (symbol tables, sections, COMDAT groups) runs
// afterward, in parallel, via ParseInputFiles.
func ReadInputFiles(ctx *Context, args []string) {
	asNeeded := ctx.Config.AsNeeded
	for _, arg := range args {
		switch {
		case arg == "-as-needed":
			asNeeded = true
		case arg == "-no-as-needed":
			asNeeded = false
		default:
			if name, ok := utils.RemovePrefix(arg, "-l"); ok {
				mf, err := ctx.FindLibrary(name)
				if err != nil {
					fatal(err)
				}
				readFile(ctx, mf, asNeeded)
			} else {
				readFile(ctx, ctx.MustOpenFile(arg), asNeeded)
			}
		}
	}
}

func readFile(ctx *Context, mf *MemoryMappedFile, asNeeded bool) {
	switch GetFileKind(mf.Bytes) {
	case FileKindObject:
		ctx.Objs = append(ctx.Objs, NewObjectFile(mf, ctx.AllocPriority(), true, false))
	case FileKindSharedObject:
		ctx.Dsos = append(ctx.Dsos, NewSharedFile(mf, ctx.AllocPriority(), asNeeded))
	case FileKindArchive:
		members, err := readArchiveMembers(mf)
		if err != nil {
			fatal(err)
		}
		for _, member := range members {
			if GetFileKind(member.Bytes) != FileKindObject {
				continue
			}
			ctx.Objs = append(ctx.Objs, NewObjectFile(member, ctx.AllocPriority(), false, true))
		}
	case FileKindThinArchive:
		dir := filepath.Dir(mf.Name)
		members, err := ctx.readThinArchiveMembers(mf, dir)
		if err != nil {
			fatal(err)
		}
		for _, member := range members {
			if GetFileKind(member.Bytes) != FileKindObject {
				continue
			}
			ctx.Objs = append(ctx.Objs, NewObjectFile(member, ctx.AllocPriority(), false, true))
		}
	default:
		diag.Log.Fatal().Str("file", mf.Name).Msg("unknown file type")
	}
}

// ParseInputFiles runs Parse across every ObjectFile and SharedFile in
// parallel (spec §4.1: "Runs once per file, in parallel across all input
// files, before the resolver's first barrier"), then verifies every
// object targets the same machine as ctx.Config.Machine.
func ParseInputFiles(ctx *Context) error {
	if err := sched.Parallel(ctx.Config.ThreadCount, len(ctx.Objs), func(i int) error {
		ctx.Objs[i].Parse(ctx)
		return nil
	}); err != nil {
		return err
	}
	if err := sched.Parallel(ctx.Config.ThreadCount, len(ctx.Dsos), func(i int) error {
		ctx.Dsos[i].Parse(ctx)
		return nil
	}); err != nil {
		return err
	}
	for _, o := range ctx.Objs {
		if m := GetMachine(o.MF.Bytes); m != ctx.Config.Machine {
			fatalf("%s: incompatible machine type: expected %v, got %v", o.Name(), ctx.Config.Machine, m)
		}
	}
	return nil
}

// DetectMachine inspects the first recognized ELF input to pick a target
// architecture when -m wasn't given (spec §6).
func DetectMachine(args []string) Machine {
	for _, arg := range args {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		content, err := os.ReadFile(arg)
		if err != nil {
			continue
		}
		if m := GetMachine(content); m != MachineNone {
			return m
		}
	}
	return MachineNone
}
