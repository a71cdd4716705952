package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msgclf/internal/common"
)

func TestLabelMap_Map(t *testing.T) {
	sentiment := SentimentLabels()
	spam := SpamLabels()

	tests := []struct {
		name   string
		labels LabelMap
		raw    any
		want   string
	}{
		{"int64 one", sentiment, int64(1), common.LabelPositive},
		{"int zero", sentiment, 0, common.LabelNegative},
		{"float one", sentiment, 1.0, common.LabelPositive},
		{"float fraction", sentiment, 0.5, common.LabelNegative},
		{"string one", sentiment, " 1 ", common.LabelPositive},
		{"bool true", sentiment, true, common.LabelPositive},
		{"nil", sentiment, nil, common.LabelNegative},
		{"spam", spam, "spam", common.LabelSpam},
		{"spam upper", spam, "SPAM", common.LabelSpam},
		{"ham", spam, "ham", common.LabelHam},
		{"spam bytes", spam, []byte("spam\n"), common.LabelSpam},
		{"unexpected", spam, int64(1), common.LabelHam},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.labels.Map(tt.raw); got != tt.want {
				t.Errorf("Map(%v) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestLabelsForProfile(t *testing.T) {
	lm, err := LabelsForProfile(common.ProfileSpam, nil)
	require.NoError(t, err)
	assert.Equal(t, SpamLabels(), lm)

	lm, err = LabelsForProfile(common.ProfileSpam, []string{"1", "Spam"})
	require.NoError(t, err)
	assert.Equal(t, common.LabelSpam, lm.Map(int64(1)))
	assert.Equal(t, common.LabelSpam, lm.Map("spam"))
	assert.True(t, lm.IsFlagged(common.LabelSpam))
	assert.False(t, lm.IsFlagged(common.LabelHam))

	_, err = LabelsForProfile("weather", nil)
	assert.Error(t, err)
}

func TestNormalizeRaw(t *testing.T) {
	assert.Equal(t, "", NormalizeRaw(nil))
	assert.Equal(t, "1", NormalizeRaw(float32(1)))
	assert.Equal(t, "0.25", NormalizeRaw(0.25))
	assert.Equal(t, "0", NormalizeRaw(false))
	assert.Equal(t, "42", NormalizeRaw(int64(42)))
	assert.Equal(t, "ham", NormalizeRaw(" Ham "))
}
