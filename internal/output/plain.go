package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/jmylchreest/bigsnackbar/internal/history"
)

// PlainFormatter writes one line per record.
type PlainFormatter struct {
	opts Options
}

// NewPlainFormatter creates a plain text formatter.
func NewPlainFormatter(opts Options) *PlainFormatter {
	return &PlainFormatter{opts: opts}
}

// Format writes records as "[index] message (time, reason after duration)".
func (f *PlainFormatter) Format(w io.Writer, records []history.Record) error {
	now := reference(f.opts)
	for i, r := range records {
		var sb strings.Builder
		if f.opts.ShowIndex {
			fmt.Fprintf(&sb, "[%d] ", i+1)
		}

		sb.WriteString(truncate(strings.ReplaceAll(r.Message, "\n", " "), f.opts.MessageMax))
		if len(r.Actions) > 0 {
			fmt.Fprintf(&sb, " {%s}", strings.Join(r.Actions, ", "))
		}

		fmt.Fprintf(&sb, " (%s", relativeTime(r.ShownAt, now))
		if r.Dismissed() {
			fmt.Fprintf(&sb, ", %s after %s", r.Reason, displayDuration(r))
		} else {
			sb.WriteString(", visible")
		}
		sb.WriteString(")")

		if _, err := fmt.Fprintln(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}

// TemplateFormatter executes a user template per record.
type TemplateFormatter struct {
	opts     Options
	template *template.Template
}

// NewTemplateFormatter parses opts.Template.
func NewTemplateFormatter(opts Options) (*TemplateFormatter, error) {
	tmpl, err := template.New("record").Funcs(templateFuncs()).Parse(opts.Template)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &TemplateFormatter{opts: opts, template: tmpl}, nil
}

// Format executes the template once per record, each followed by a newline.
func (f *TemplateFormatter) Format(w io.Writer, records []history.Record) error {
	now := reference(f.opts)
	for i, r := range records {
		if err := f.template.Execute(w, newTemplateData(i+1, r, now)); err != nil {
			return fmt.Errorf("failed to execute template: %w", err)
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}
