package linker

import "github.com/Keruspe/mold/internal/diag"

// fatal reports a fatal-input/configuration/resource-class error and
// terminates the process, matching spec §7: "Reported immediately and
// abort the link."
func fatal(err error) {
	diag.Log.Fatal().Err(err).Send()
}

// fatalf is fatal for errors constructed inline from a format string.
func fatalf(format string, args ...any) {
	diag.Log.Fatal().Msgf(format, args...)
}
