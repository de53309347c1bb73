// Package errs gives each of the four error classes from the linker's
// error-handling design (fatal input, semantic link, configuration,
// resource) a distinct type so callers can tell them apart with
// errors.As, while still carrying a wrapped cause and stack via
// github.com/pkg/errors.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// FatalInputError covers unknown file type, malformed ELF/archive, and
// unreadable paths. Reported immediately; aborts the link.
type FatalInputError struct {
	File string
	Err  error
}

func (e *FatalInputError) Error() string {
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *FatalInputError) Unwrap() error { return e.Err }

func NewFatalInput(file string, cause error) *FatalInputError {
	return &FatalInputError{File: file, Err: errors.WithStack(cause)}
}

// SemanticLinkError covers duplicate symbol, undefined reference,
// unsupported relocation, and unresolvable version. These accumulate in
// a diag.Sink rather than aborting on first occurrence.
type SemanticLinkError struct {
	Msg string
}

func (e *SemanticLinkError) Error() string { return e.Msg }

func NewSemanticLink(format string, args ...any) *SemanticLinkError {
	return &SemanticLinkError{Msg: fmt.Sprintf(format, args...)}
}

// ConfigError covers missing required options and malformed numeric
// flags. Reported and aborts before any file is opened.
type ConfigError struct {
	Option string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("option %s: %v", e.Option, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func NewConfig(option string, cause error) *ConfigError {
	return &ConfigError{Option: option, Err: errors.WithStack(cause)}
}

// ResourceError covers mmap/ftruncate/rename-class OS failures. Reported
// with the underlying errno; the temp output file is unlinked before
// exit by the caller.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

func NewResource(op string, cause error) *ResourceError {
	return &ResourceError{Op: op, Err: errors.WithStack(cause)}
}
