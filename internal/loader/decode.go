// Package loader decodes snapshot and definition documents from YAML, JSON
// or CUE files into Go structs.
//
// All three formats decode into the same struct tags: yaml tags for YAML,
// json tags for JSON and CUE. Unknown fields are rejected for YAML and JSON.
package loader

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Format identifies a document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCUE  Format = "cue"
)

// DecodeError reports a document that could not be read or decoded.
type DecodeError struct {
	Path   string
	Format Format
	Pos    token.Pos // CUE position if available
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: decoding %s: %v", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Format, e.Err)
	}
	if e.Format == "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("%s: decoding %s: %v", e.Path, e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// FormatOf infers the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("unsupported document extension %q (want .yaml, .yml, .json or .cue)", filepath.Ext(path))
	}
}

// DecodeFile reads path and decodes it into out according to its extension.
func DecodeFile(path string, out any) error {
	format, err := FormatOf(path)
	if err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	return Decode(path, format, data, out)
}

// Decode decodes data in the given format into out. name is used in error
// messages and CUE positions.
func Decode(name string, format Format, data []byte, out any) error {
	var err error
	switch format {
	case FormatYAML:
		err = decodeYAML(data, out)
	case FormatJSON:
		err = decodeJSON(data, out)
	case FormatCUE:
		return decodeCUE(name, data, out)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return &DecodeError{Path: name, Format: format, Err: err}
	}
	return nil
}

func decodeYAML(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func decodeJSON(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// decodeCUE compiles a single CUE file and decodes its concrete value.
// Uses the CUE SDK's Go API directly (not a CLI subprocess).
func decodeCUE(name string, data []byte, out any) error {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return formatCUEError(name, err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(name, err)
	}
	if err := v.Decode(out); err != nil {
		return formatCUEError(name, err)
	}
	return nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(name string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &DecodeError{Path: name, Format: FormatCUE, Err: err}
	}

	// Return first error with position info
	first := errs[0]
	de := &DecodeError{Path: name, Format: FormatCUE, Err: first}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		de.Pos = positions[0]
	}
	return de
}
