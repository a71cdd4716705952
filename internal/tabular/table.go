// Package tabular reads bulk prediction input and writes result tables.
//
// Input is delimited text with the message column chosen by name (header
// mode) or by index (header-less mode), or pasted text with one message per
// line. Output is the input table with Label and Prediction_Value columns
// appended; rows whose prediction failed have both cells empty.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"msgclf/internal/common"
	"msgclf/internal/ml"
)

// InputFormatError means the bulk input could not be read as a table.
type InputFormatError struct {
	Reason string
	Err    error
}

func (e *InputFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unreadable input: %s: %v", e.Reason, e.Err)
	}
	return "unreadable input: " + e.Reason
}

func (e *InputFormatError) Unwrap() error {
	return e.Err
}

func formatError(reason string, err error) error {
	return &InputFormatError{Reason: reason, Err: err}
}

// IsInputFormatError reports whether err is an InputFormatError.
func IsInputFormatError(err error) bool {
	var ife *InputFormatError
	return errors.As(err, &ife)
}

// Options selects the message column.
type Options struct {
	// Column is a header name in header mode, or a zero-based index in
	// header-less mode. Empty picks a likely text column, or the first one.
	Column string
	// NoHeader treats the first record as data.
	NoHeader bool
	// MaxRows bounds the number of data rows; zero means common.MaxBatchMessages.
	MaxRows int
}

// Table is parsed bulk input.
type Table struct {
	Header []string
	Rows   [][]string
	Column int
}

var textColumnNames = []string{"message", "msg", "text", "review", "content", "comment", "feedback", "sms"}

// Sniff rejects content that is not text.
func Sniff(data []byte) error {
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "text/") {
			return nil
		}
	}
	return formatError("expected delimited text, got "+mt.String(), nil)
}

// ParseCSV reads delimited text from r.
func ParseCSV(r io.Reader, opts Options) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, formatError("read failed", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, formatError("input is empty", nil)
	}
	if err := Sniff(data); err != nil {
		return nil, err
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, formatError("malformed delimited text", err)
	}

	maxRows := opts.MaxRows
	if maxRows <= 0 {
		maxRows = common.MaxBatchMessages
	}

	t := &Table{}
	if opts.NoHeader {
		t.Rows = records
		if len(t.Rows) == 0 {
			return nil, formatError("no rows", nil)
		}
		idx := 0
		if opts.Column != "" {
			idx, err = strconv.Atoi(opts.Column)
			if err != nil {
				return nil, formatError(fmt.Sprintf("column %q is not an index", opts.Column), err)
			}
		}
		width := len(t.Rows[0])
		if idx < 0 || idx >= width {
			return nil, formatError(fmt.Sprintf("column index %d outside [0,%d)", idx, width), nil)
		}
		t.Header = make([]string, width)
		for i := range t.Header {
			t.Header[i] = fmt.Sprintf("Column%d", i+1)
		}
		t.Header[idx] = common.DefaultHeaderlessColumn
		t.Column = idx
	} else {
		if len(records) < 2 {
			return nil, formatError("no data rows below the header", nil)
		}
		t.Header = records[0]
		t.Rows = records[1:]
		idx, err := findColumn(t.Header, opts.Column)
		if err != nil {
			return nil, err
		}
		t.Column = idx
	}

	if len(t.Rows) > maxRows {
		return nil, formatError(fmt.Sprintf("%d rows exceed the limit of %d", len(t.Rows), maxRows), nil)
	}
	return t, nil
}

func findColumn(header []string, name string) (int, error) {
	if name == "" {
		for _, want := range textColumnNames {
			for i, h := range header {
				if strings.EqualFold(strings.TrimSpace(h), want) {
					return i, nil
				}
			}
		}
		return 0, nil
	}
	for i, h := range header {
		if h == name {
			return i, nil
		}
	}
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(name)) {
			return i, nil
		}
	}
	return 0, formatError(fmt.Sprintf("column %q not found (have %s)", name, strings.Join(header, ", ")), nil)
}

// FromLines builds a single-column table from pasted text. Lines are trimmed
// and blank lines are dropped.
func FromLines(text string) *Table {
	t := &Table{Header: []string{common.DefaultHeaderlessColumn}}
	for _, line := range ParseLines(text) {
		t.Rows = append(t.Rows, []string{line})
	}
	return t
}

// FromMessages builds a single-column table from a list of messages.
func FromMessages(messages []string) *Table {
	t := &Table{Header: []string{common.DefaultHeaderlessColumn}}
	for _, m := range messages {
		t.Rows = append(t.Rows, []string{m})
	}
	return t
}

// ParseLines splits pasted text into messages, one per non-blank line.
func ParseLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Messages returns the selected column of every row.
func (t *Table) Messages() []string {
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[t.Column]
	}
	return out
}

// ColumnName returns the header of the selected column.
func (t *Table) ColumnName() string {
	return t.Header[t.Column]
}

// WriteResults writes the table with Label and Prediction_Value appended.
// results must be aligned with t.Rows.
func WriteResults(w io.Writer, t *Table, results []ml.PredictionResult) error {
	if len(results) != len(t.Rows) {
		return fmt.Errorf("%d results for %d rows", len(results), len(t.Rows))
	}

	cw := csv.NewWriter(w)
	header := append(append([]string{}, t.Header...), common.ColumnLabel, common.ColumnPrediction)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range t.Rows {
		out := append([]string{}, row...)
		if results[i].OK() {
			out = append(out, results[i].Label, ml.FormatRaw(results[i].Raw))
		} else {
			out = append(out, "", "")
		}
		if err := cw.Write(out); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
