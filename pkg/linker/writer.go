package linker

import (
	"os"

	"github.com/Keruspe/mold/internal/diag"
	"github.com/Keruspe/mold/internal/errs"
	"github.com/Keruspe/mold/pkg/linker/sched"
)

// WriteOutput copies every chunk's bytes into ctx.Buf in parallel (spec
// §4.10's writer phase: "each chunk's CopyBuf runs independently, writing
// into its own non-overlapping byte range"), then persists the buffer to
// the configured output path via a temp-file-plus-rename so a crash
// mid-write never leaves a half-built executable at the final name.
func WriteOutput(ctx *Context) error {
	if err := sched.Parallel(ctx.Config.ThreadCount, len(ctx.Chunks), func(i int) error {
		ctx.Chunks[i].CopyBuf(ctx)
		return nil
	}); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dirOf(ctx.Config.Output), ".mold-tmp-*")
	if err != nil {
		return errs.NewResource("create temp output", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(ctx.Buf); err != nil {
		tmp.Close()
		return errs.NewResource("write output", err)
	}
	if err := tmp.Chmod(0777); err != nil {
		tmp.Close()
		return errs.NewResource("chmod output", err)
	}
	if err := tmp.Close(); err != nil {
		return errs.NewResource("close output", err)
	}
	if err := os.Rename(tmp.Name(), ctx.Config.Output); err != nil {
		return errs.NewResource("rename output into place", err)
	}

	diag.Log.Info().Str("output", ctx.Config.Output).Int("bytes", len(ctx.Buf)).Msg("link complete")
	return nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
