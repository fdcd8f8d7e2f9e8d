// SPDX-License-Identifier: MPL-2.0

// Package entrypoint renders the small Python launcher that imports an
// application's console entry function, and manages its lifetime on disk.
package entrypoint

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"text/template"
)

//go:embed launcher.py.tmpl
var launcherTemplate string

var (
	launcherTmpl = template.Must(template.New("launcher").Parse(launcherTemplate))

	// identifierPattern matches dotted Python identifiers (e.g. "spotdl.console.entry_point").
	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

	// appNamePattern keeps the name safe to embed in the launcher's strings.
	appNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

	// ErrInvalidEntryPoint is wrapped by InvalidEntryPointError.
	ErrInvalidEntryPoint = errors.New("invalid entry point")
)

type (
	// Spec describes the launcher to render.
	Spec struct {
		AppName  string
		Module   string // dotted module path
		Function string // callable inside Module
		// ForceUTF8 reconfigures stdout and stderr to UTF-8 before importing.
		ForceUTF8 bool
	}

	// InvalidEntryPointError reports an app name, module or function that
	// cannot be rendered into the launcher.
	InvalidEntryPointError struct {
		Field string
		Value string
	}
)

// Error implements the error interface.
func (e *InvalidEntryPointError) Error() string {
	if e.Field == "app name" {
		return fmt.Sprintf("invalid entry point %s %q (letters, digits, '.', '_' and '-' only)", e.Field, e.Value)
	}
	return fmt.Sprintf("invalid entry point %s %q (must be a dotted Python identifier)", e.Field, e.Value)
}

// Unwrap returns ErrInvalidEntryPoint so callers can use errors.Is.
func (e *InvalidEntryPointError) Unwrap() error { return ErrInvalidEntryPoint }

// Validate checks that AppName is a plain name and that Module and Function
// are importable names.
func (s Spec) Validate() error {
	if !appNamePattern.MatchString(s.AppName) {
		return &InvalidEntryPointError{Field: "app name", Value: s.AppName}
	}
	if !identifierPattern.MatchString(s.Module) {
		return &InvalidEntryPointError{Field: "module", Value: s.Module}
	}
	if !identifierPattern.MatchString(s.Function) || bytes.ContainsRune([]byte(s.Function), '.') {
		return &InvalidEntryPointError{Field: "function", Value: s.Function}
	}
	return nil
}

// Render produces the launcher source.
func Render(s Spec) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := launcherTmpl.Execute(&buf, s); err != nil {
		return nil, fmt.Errorf("rendering launcher: %w", err)
	}
	return buf.Bytes(), nil
}

// WithScript writes content to path, runs fn, and removes the file again on
// every exit path, including when fn fails.
func WithScript(path string, content []byte, fn func(path string) error) (err error) {
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("writing entry script: %w", err)
	}
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = fmt.Errorf("removing entry script: %w", rmErr)
		}
	}()
	return fn(path)
}
