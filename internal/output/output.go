// Package output provides formatters for display history records.
package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/bigsnackbar/internal/history"
)

// Formatter writes history records.
type Formatter interface {
	Format(w io.Writer, records []history.Record) error
}

// FormatType names an output format.
type FormatType string

const (
	FormatPlain FormatType = "plain"
	FormatJSON  FormatType = "json"
	FormatIDs   FormatType = "ids"
)

// ValidFormats returns the built-in format names.
func ValidFormats() []FormatType {
	return []FormatType{FormatPlain, FormatJSON, FormatIDs}
}

// Options configures formatter behavior.
type Options struct {
	Template   string // Custom text/template, one execution per record
	ShowIndex  bool   // Show 1-based index prefix
	MessageMax int    // Maximum message length (0 = unlimited)
	// Now is the reference time for relative timestamps. Zero means time.Now.
	Now time.Time
}

// DefaultOptions returns the defaults for plain output.
func DefaultOptions() Options {
	return Options{
		ShowIndex:  true,
		MessageMax: 80,
	}
}

// NewFormatter creates a formatter. A non-empty Template takes precedence
// over format.
func NewFormatter(format FormatType, opts Options) (Formatter, error) {
	if opts.Template != "" {
		return NewTemplateFormatter(opts)
	}
	switch format {
	case FormatPlain, "":
		return NewPlainFormatter(opts), nil
	case FormatJSON:
		return NewJSONFormatter(), nil
	case FormatIDs:
		return NewIDsFormatter(), nil
	default:
		return nil, fmt.Errorf("unknown format %q, must be one of: %v", format, ValidFormats())
	}
}

// templateData is passed to custom templates.
type templateData struct {
	Index int
	history.Record
	RelativeTime string
	Duration     string
}

func newTemplateData(index int, r history.Record, now time.Time) templateData {
	return templateData{
		Index:        index,
		Record:       r,
		RelativeTime: relativeTime(r.ShownAt, now),
		Duration:     displayDuration(r),
	}
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"truncate": truncate,
		"join":     strings.Join,
		"upper":    strings.ToUpper,
	}
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// displayDuration is how long the record was on screen, or "" while visible.
func displayDuration(r history.Record) string {
	if !r.Dismissed() {
		return ""
	}
	return r.DismissedAt.Sub(r.ShownAt).Round(time.Millisecond).String()
}

func reference(opts Options) time.Time {
	if opts.Now.IsZero() {
		return time.Now()
	}
	return opts.Now
}
