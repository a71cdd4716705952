package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msgclf/internal/ml"
)

func TestParseCSV_HeaderMode(t *testing.T) {
	input := "id,review,stars\n1,The food was amazing!,5\n2,\"Cold, bland soup\",1\n"

	tests := []struct {
		name   string
		column string
		want   []string
	}{
		{"by name", "review", []string{"The food was amazing!", "Cold, bland soup"}},
		{"case insensitive", "REVIEW", []string{"The food was amazing!", "Cold, bland soup"}},
		{"auto detects text column", "", []string{"The food was amazing!", "Cold, bland soup"}},
		{"other column", "stars", []string{"5", "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ParseCSV(strings.NewReader(input), Options{Column: tt.column})
			require.NoError(t, err)
			assert.Equal(t, tt.want, table.Messages())
			assert.Equal(t, []string{"id", "review", "stars"}, table.Header)
		})
	}
}

func TestParseCSV_HeaderlessMode(t *testing.T) {
	input := "WINNER!! Claim your prize now\nOk lar... Joking wif u oni\n"

	table, err := ParseCSV(strings.NewReader(input), Options{NoHeader: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Msg"}, table.Header)
	assert.Equal(t, "Msg", table.ColumnName())
	assert.Equal(t, []string{"WINNER!! Claim your prize now", "Ok lar... Joking wif u oni"}, table.Messages())

	multi := "ham,See you later\nspam,Free entry in 2 a wkly comp\n"
	table, err = ParseCSV(strings.NewReader(multi), Options{NoHeader: true, Column: "1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Column1", "Msg"}, table.Header)
	assert.Equal(t, []string{"See you later", "Free entry in 2 a wkly comp"}, table.Messages())
}

func TestParseCSV_StripsBOM(t *testing.T) {
	table, err := ParseCSV(strings.NewReader("\ufefftext\nhello\n"), Options{Column: "text"})
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, table.Messages())
}

func TestParseCSV_InputFormatErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  Options
	}{
		{"empty", "", Options{}},
		{"whitespace only", "  \n\n", Options{}},
		{"header only", "message\n", Options{}},
		{"unknown column", "message\nhi\n", Options{Column: "body"}},
		{"ragged rows", "a,b\n1,2\n3\n", Options{}},
		{"bad index", "hi\n", Options{NoHeader: true, Column: "first"}},
		{"index out of range", "hi\n", Options{NoHeader: true, Column: "3"}},
		{"binary", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00", Options{}},
		{"too many rows", "m\na\nb\nc\n", Options{MaxRows: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.input), tt.opts)
			require.Error(t, err)
			assert.True(t, IsInputFormatError(err), "expected InputFormatError, got %T: %v", err, err)
		})
	}
}

func TestParseLines(t *testing.T) {
	got := ParseLines("  first message \n\n\t\nsecond\r\n   \nthird")
	assert.Equal(t, []string{"first message", "second", "third"}, got)
	assert.Empty(t, ParseLines("\n \n"))

	table := FromLines("a\n\nb")
	assert.Equal(t, []string{"a", "b"}, table.Messages())
}

func TestWriteResults(t *testing.T) {
	table, err := ParseCSV(strings.NewReader("id,message\n1,great food\n2,broken\n3,awful\n"), Options{Column: "message"})
	require.NoError(t, err)

	results := []ml.PredictionResult{
		{Input: "great food", Label: "Positive", Raw: int64(1)},
		{Input: "broken", Err: &ml.PredictionError{Input: "broken", Err: errors.New("no output")}},
		{Input: "awful", Label: "Negative", Raw: 0.0},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, table, results))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"id", "message", "Label", "Prediction_Value"},
		{"1", "great food", "Positive", "1"},
		{"2", "broken", "", ""},
		{"3", "awful", "Negative", "0"},
	}, records)

	// The input table is not modified.
	assert.Equal(t, []string{"id", "message"}, table.Header)
	assert.Len(t, table.Rows[0], 2)
}

func TestWriteResults_LengthMismatch(t *testing.T) {
	table := FromMessages([]string{"a", "b"})
	var buf bytes.Buffer
	if err := WriteResults(&buf, table, nil); err == nil {
		t.Error("expected an error for misaligned results")
	}
}

func TestSniff(t *testing.T) {
	assert.NoError(t, Sniff([]byte("message\nhello there\n")))
	assert.NoError(t, Sniff([]byte("café,crème brûlée\n")))
	assert.Error(t, Sniff([]byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")))
}
