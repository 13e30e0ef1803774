// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package output emits the machine-readable side of the RIE CLI. Every
// --json code path routes through here so indentation and error shape
// stay uniform across commands.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// JSON pretty-prints v to stdout with two-space indentation, the
// format every --json command emits.
func JSON(v any) error {
	return JSONTo(os.Stdout, v)
}

// JSONTo pretty-prints v to w.
func JSONTo(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

// ErrorJSON is the shape of an error rendered in --json mode.
type ErrorJSON struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSONError writes err to stderr as an {"error": ...} object, keeping
// failures parseable for scripted callers.
func JSONError(err error) error {
	return JSONErrorTo(os.Stderr, err)
}

// JSONErrorTo writes err to w as an error object.
func JSONErrorTo(w io.Writer, err error) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(ErrorJSON{Error: err.Error()}); encErr != nil {
		return fmt.Errorf("encode JSON error: %w", encErr)
	}
	return nil
}
