package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Keruspe/mold/internal/diag"
	"github.com/Keruspe/mold/pkg/linker"
)

var version = "dev"

func main() {
	cfg := linker.DefaultConfig()
	remaining := parseArgs(cfg, expandResponseFiles(os.Args[1:]))

	if cfg.Output == "" {
		diag.Log.Fatal().Msg("option -o: argument missing")
	}

	if cfg.Machine == linker.MachineNone {
		cfg.Machine = linker.DetectMachine(remaining)
	}
	if cfg.Machine == linker.MachineNone {
		diag.Log.Fatal().Msg("unknown emulation type")
	}

	ctx := linker.NewContext(cfg)

	linker.ReadInputFiles(ctx, remaining)

	if err := linker.Run(ctx); err != nil {
		diag.Log.Fatal().Err(err).Send()
	}
}

// expandResponseFiles substitutes any @FILE argument inline with the
// whitespace-separated (quote-aware) tokens it names, recursively (spec
// §6: "tokens substituted inline, with quoting").
func expandResponseFiles(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		path, ok := strings.CutPrefix(a, "@")
		if !ok {
			out = append(out, a)
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			diag.Log.Fatal().Err(err).Str("file", path).Msg("cannot read response file")
		}
		out = append(out, expandResponseFiles(tokenizeResponseFile(string(content)))...)
	}
	return out
}

func tokenizeResponseFile(content string) []string {
	var tokens []string
	var cur strings.Builder
	inQuote := byte(0)
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(content); i++ {
		c := content[i]
		switch {
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			} else {
				cur.WriteByte(c)
			}
		case c == '\'' || c == '"':
			inQuote = c
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return tokens
}

// parseArgs walks args, applying every recognized option from spec §6 to
// cfg and returning the remaining positional inputs (object files,
// archives, -lNAME references) in order, same shape as the teacher's
// parseArgs.
func parseArgs(cfg *linker.Config, args []string) []string {
	dashes := func(name string) []string {
		if len(name) == 1 {
			return []string{"-" + name}
		}
		return []string{"-" + name, "--" + name}
	}

	arg := ""
	readArg := func(name string) bool {
		for _, opt := range dashes(name) {
			if args[0] == opt {
				if len(args) == 1 {
					diag.Log.Fatal().Msgf("option -%s: argument missing", name)
				}
				arg = args[1]
				args = args[2:]
				return true
			}
			prefix := opt
			if len(name) > 1 {
				prefix += "="
			}
			if strings.HasPrefix(args[0], prefix) {
				arg = args[0][len(prefix):]
				args = args[1:]
				return true
			}
		}
		return false
	}

	readFlag := func(name string) bool {
		for _, opt := range dashes(name) {
			if args[0] == opt {
				args = args[1:]
				return true
			}
		}
		return false
	}

	remaining := make([]string, 0)
	for len(args) > 0 {
		if readFlag("help") {
			fmt.Printf("usage: %s [options] file...\n", os.Args[0])
			os.Exit(0)
		}

		switch {
		case readArg("o") || readArg("output"):
			cfg.Output = arg
		case readFlag("v") || readFlag("version"):
			fmt.Printf("mold %s\n", version)
			os.Exit(0)
		case readArg("e") || readArg("entry"):
			cfg.Entry = arg
		case readArg("L") || readArg("library-path"):
			cfg.LibraryPaths = append(cfg.LibraryPaths, filepath.Clean(arg))
		case readArg("l"):
			remaining = append(remaining, "-l"+arg)
		case readFlag("static"):
			cfg.Static = true
		case readFlag("pie"):
			cfg.Pie = true
		case readFlag("no-pie"):
			cfg.Pie = false
		case readArg("dynamic-linker"):
			cfg.DynamicLinker = arg
		case readFlag("export-dynamic"):
			cfg.ExportDynamic = true
		case readFlag("as-needed"):
			cfg.AsNeeded = true
			remaining = append(remaining, "-as-needed")
		case readFlag("no-as-needed"):
			cfg.AsNeeded = false
			remaining = append(remaining, "-no-as-needed")
		case readArg("rpath"):
			cfg.Rpaths = append(cfg.Rpaths, arg)
		case readArg("version-script"):
			cfg.VersionScript = arg
		case readArg("y") || readArg("trace-symbol"):
			cfg.TraceSymbols = append(cfg.TraceSymbols, arg)
		case readArg("thread-count"):
			n, err := strconv.Atoi(arg)
			if err != nil {
				diag.Log.Fatal().Str("value", arg).Msg("option --thread-count: malformed integer")
			}
			cfg.ThreadCount = n
		case readArg("filler"):
			n, err := strconv.ParseUint(strings.TrimPrefix(arg, "0x"), 16, 8)
			if err != nil {
				diag.Log.Fatal().Str("value", arg).Msg("option --filler: malformed byte")
			}
			cfg.Filler = byte(n)
		case readFlag("preload"):
			cfg.Preload = true
		case readArg("sysroot"):
			cfg.Sysroot = arg
		case readArg("m"):
			switch arg {
			case "elf_x86_64":
				cfg.Machine = linker.MachineX86_64
			case "elf64lriscv":
				cfg.Machine = linker.MachineRISCV64
			case "aarch64linux":
				cfg.Machine = linker.MachineARM64
			case "elf_i386":
				cfg.Machine = linker.MachineI386
			default:
				diag.Log.Fatal().Str("value", arg).Msg("unknown -m argument")
			}
		case readArg("plugin") || readArg("plugin-opt") || readArg("hash-style") || readArg("build-id"):
			// Accepted and ignored: plugin-LTO and build-id are outside scope.
		case readFlag("start-group") || readFlag("end-group") || readFlag("s") || readFlag("no-relax"):
			// Accepted and ignored.
		default:
			if args[0][0] == '-' {
				diag.Log.Fatal().Str("option", args[0]).Msg("unknown command line option")
			}
			remaining = append(remaining, args[0])
			args = args[1:]
		}
	}

	return remaining
}
