package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jmylchreest/bigsnackbar/internal/history"
)

// jsonRecord is the JSON shape of a history record.
type jsonRecord struct {
	ID          string     `json:"id"`
	Message     string     `json:"message"`
	Actions     []string   `json:"actions"`
	ShownAt     time.Time  `json:"shown_at"`
	DismissedAt *time.Time `json:"dismissed_at,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

// JSONFormatter writes records as a JSON array.
type JSONFormatter struct{}

// NewJSONFormatter creates a JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

func (f *JSONFormatter) Format(w io.Writer, records []history.Record) error {
	out := make([]jsonRecord, 0, len(records))
	for _, r := range records {
		jr := jsonRecord{
			ID:      r.ID,
			Message: r.Message,
			Actions: r.Actions,
			ShownAt: r.ShownAt,
			Reason:  r.Reason,
		}
		if jr.Actions == nil {
			jr.Actions = []string{}
		}
		if r.Dismissed() {
			at := r.DismissedAt
			jr.DismissedAt = &at
		}
		out = append(out, jr)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	return nil
}

// IDsFormatter writes request IDs, one per line.
type IDsFormatter struct{}

// NewIDsFormatter creates an IDs formatter.
func NewIDsFormatter() *IDsFormatter {
	return &IDsFormatter{}
}

func (f *IDsFormatter) Format(w io.Writer, records []history.Record) error {
	for _, r := range records {
		if _, err := fmt.Fprintln(w, r.ID); err != nil {
			return err
		}
	}
	return nil
}
