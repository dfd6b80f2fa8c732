// Package output renders a finished command snapshot for a human: a table
// summary to stderr alongside the command's own stdout/stderr streams, or
// a JSON/YAML dump of the whole snapshot when a host asks for one.
package output

import (
	"fmt"
	"io"
)

// Format selects how a Printer renders data passed to Print.
type Format string

const (
	// FormatTable renders data that implements TableRenderer as a table,
	// falling back to JSON for anything that doesn't.
	FormatTable Format = "table"
	// FormatJSON renders data as indented JSON.
	FormatJSON Format = "json"
	// FormatYAML renders data as YAML.
	FormatYAML Format = "yaml"
)

// Printer writes status output to a single writer in a chosen Format.
type Printer struct {
	out    io.Writer
	format Format
	color  bool
}

// NewPrinter creates a Printer writing to out in the given format.
func NewPrinter(out io.Writer, format Format, color bool) *Printer {
	return &Printer{out: out, format: format, color: color}
}

// Print renders data in the printer's configured format. For FormatTable,
// data must implement TableRenderer or Print falls back to JSON.
func (p *Printer) Print(data any) error {
	switch p.format {
	case FormatTable:
		if renderer, ok := data.(TableRenderer); ok {
			return PrintTable(p.out, renderer)
		}
		return PrintJSON(p.out, data)
	case FormatJSON:
		return PrintJSON(p.out, data)
	case FormatYAML:
		return PrintYAML(p.out, data)
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// Println prints a line of plain text, uncolored regardless of p.color.
func (p *Printer) Println(args ...any) {
	_, _ = fmt.Fprintln(p.out, args...)
}

// Success prints msg, in green when color is enabled.
func (p *Printer) Success(msg string) {
	if p.color {
		_, _ = fmt.Fprintf(p.out, "\033[32m%s\033[0m\n", msg)
		return
	}
	_, _ = fmt.Fprintln(p.out, msg)
}

// Error prints msg, in red when color is enabled.
func (p *Printer) Error(msg string) {
	if p.color {
		_, _ = fmt.Fprintf(p.out, "\033[31m%s\033[0m\n", msg)
		return
	}
	_, _ = fmt.Fprintln(p.out, msg)
}
