package ml

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"msgclf/internal/common"
)

// LabelMap turns raw model outputs into one of two profile labels.
// The convention must match the one used when the artifact was produced;
// it cannot be verified from the artifact itself.
type LabelMap struct {
	Flagged       string
	Unflagged     string
	FlaggedValues []string
}

// SentimentLabels maps raw 1 to Positive and everything else to Negative.
func SentimentLabels() LabelMap {
	return LabelMap{
		Flagged:       common.LabelPositive,
		Unflagged:     common.LabelNegative,
		FlaggedValues: []string{"1"},
	}
}

// SpamLabels maps raw "spam" to Spam and everything else to Ham.
func SpamLabels() LabelMap {
	return LabelMap{
		Flagged:       common.LabelSpam,
		Unflagged:     common.LabelHam,
		FlaggedValues: []string{"spam"},
	}
}

// LabelsForProfile returns the label map of a dashboard profile. A non-empty
// flagged list overrides the profile's flagged values.
func LabelsForProfile(profile string, flagged []string) (LabelMap, error) {
	var lm LabelMap
	switch profile {
	case common.ProfileSentiment:
		lm = SentimentLabels()
	case common.ProfileSpam:
		lm = SpamLabels()
	default:
		return LabelMap{}, fmt.Errorf("unknown profile %q", profile)
	}
	if len(flagged) > 0 {
		lm.FlaggedValues = flagged
	}
	return lm, nil
}

// Map returns the label for a raw output. Matching is looser than an exact
// comparison: both sides are trimmed and lower-cased, and numbers are compared
// in their FormatRaw form. Int 1, float 1.0 and string "1" all match a flagged
// value of "1", and "SPAM" matches "spam".
func (lm LabelMap) Map(raw any) string {
	v := NormalizeRaw(raw)
	for _, f := range lm.FlaggedValues {
		if v == strings.ToLower(strings.TrimSpace(f)) {
			return lm.Flagged
		}
	}
	return lm.Unflagged
}

// IsFlagged reports whether label is the flagged label of the map.
func (lm LabelMap) IsFlagged(label string) bool {
	return label == lm.Flagged
}

// NormalizeRaw renders a raw output in the canonical form used for label
// matching: FormatRaw, lower-cased.
func NormalizeRaw(raw any) string {
	return strings.ToLower(FormatRaw(raw))
}

// FormatRaw renders a raw output for display and export: trimmed, integral
// floats without a fractional part, booleans as 1 or 0.
func FormatRaw(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []byte:
		return strings.TrimSpace(string(v))
	case bool:
		if v {
			return "1"
		}
		return "0"
	case float32:
		return formatFloat(float64(v))
	case float64:
		return formatFloat(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
