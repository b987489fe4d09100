// Copyright (C) 2026 OpenMobility contributors (dev@openmobility.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the dcatlens CLI.
//
// Styling degrades to plain text automatically when stdout is not a
// terminal, so report output stays pipe- and grep-friendly.
package ux

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// dcatlens palette.
var (
	ColorHeading = lipgloss.Color("#5FAFFF") // section headings
	ColorPass    = lipgloss.Color("#2CD75F") // compliant
	ColorWarn    = lipgloss.Color("#F4D03F") // partially compliant
	ColorFail    = lipgloss.Color("#E74C3C") // non-compliant
	ColorMuted   = lipgloss.Color("#6C7A89") // legends, secondary text
)

// Styles provides pre-configured lipgloss styles for report rendering.
var Styles = struct {
	Heading lipgloss.Style
	Pass    lipgloss.Style
	Warn    lipgloss.Style
	Fail    lipgloss.Style
	Muted   lipgloss.Style
}{
	Heading: lipgloss.NewStyle().Bold(true).Foreground(ColorHeading),
	Pass:    lipgloss.NewStyle().Bold(true).Foreground(ColorPass),
	Warn:    lipgloss.NewStyle().Bold(true).Foreground(ColorWarn),
	Fail:    lipgloss.NewStyle().Bold(true).Foreground(ColorFail),
	Muted:   lipgloss.NewStyle().Foreground(ColorMuted),
}

// plain disables styling when stdout is not a terminal. Overridable for
// tests and via SetPlain for --no-color.
var plain = !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd())

// SetPlain forces plain (unstyled) output on or off.
func SetPlain(v bool) { plain = v }

// Plain reports whether styling is disabled.
func Plain() bool { return plain }

// Heading renders a section heading.
func Heading(s string) string {
	if plain {
		return s
	}
	return Styles.Heading.Render(s)
}

// Status renders a PASS/WARN/FAIL label with the matching color.
func Status(label string) string {
	if plain {
		return label
	}
	switch label {
	case "PASS":
		return Styles.Pass.Render(label)
	case "WARN":
		return Styles.Warn.Render(label)
	case "FAIL":
		return Styles.Fail.Render(label)
	default:
		return label
	}
}

// Muted renders secondary text such as legends.
func Muted(s string) string {
	if plain {
		return s
	}
	return Styles.Muted.Render(s)
}
