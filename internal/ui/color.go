// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui renders the human-readable side of the RIE CLI: headers,
// status lines, and inline labels for run and status summaries. Output
// honors --no-color and the NO_COLOR environment variable; fatih/color
// also disables itself when stdout is not a TTY.
package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

var (
	warn  = color.New(color.FgYellow)
	note  = color.New(color.FgCyan)
	bold  = color.New(color.Bold)
	faint = color.New(color.Faint)
)

// InitColors applies the --no-color flag globally. Called once in main
// after flag parsing.
func InitColors(noColor bool) {
	color.NoColor = noColor
}

// Warning prints a yellow warning line.
func Warning(msg string) {
	_, _ = warn.Println("⚠ " + msg)
}

// Warningf prints a formatted yellow warning line.
func Warningf(format string, args ...any) {
	_, _ = warn.Printf("⚠ "+format+"\n", args...)
}

// Infof prints a formatted cyan status line.
func Infof(format string, args ...any) {
	_, _ = note.Printf("ℹ "+format+"\n", args...)
}

// Header prints a bold title over an = underline sized to the text.
func Header(text string) {
	_, _ = bold.Println(text)
	fmt.Println(strings.Repeat("=", len(text)))
}

// SubHeader prints a bold section label.
func SubHeader(text string) {
	_, _ = bold.Println(text)
}

// Label returns text bolded for inline use next to a value.
func Label(text string) string {
	return bold.Sprint(text)
}

// DimText returns text dimmed, used for paths and other detail.
func DimText(text string) string {
	return faint.Sprint(text)
}

// CountText returns a count rendered in cyan for stat lines.
func CountText(count int) string {
	return note.Sprint(count)
}
