package textmodel

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizer_Tokenize(t *testing.T) {
	tests := []struct {
		name string
		tok  Tokenizer
		text string
		want []string
	}{
		{
			name: "lowercase drops short words and punctuation",
			tok:  Tokenizer{Lowercase: true},
			text: "The food was AMAZING! A+",
			want: []string{"the", "food", "was", "amazing"},
		},
		{
			name: "accents stripped",
			tok:  Tokenizer{Lowercase: true, StripAccents: true},
			text: "Crème brûlée",
			want: []string{"creme", "brulee"},
		},
		{
			name: "stop words removed",
			tok:  Tokenizer{Lowercase: true, StopWords: []string{"the", "was"}},
			text: "the pizza was cold",
			want: []string{"pizza", "cold"},
		},
		{
			name: "bigrams appended after unigrams",
			tok:  Tokenizer{NGramMax: 2},
			text: "not good food",
			want: []string{"not", "good", "food", "not good", "good food"},
		},
		{
			name: "empty text",
			tok:  Tokenizer{},
			text: "",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.tok.Tokenize(tt.text)
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestVectorizer_TransformNormalizes(t *testing.T) {
	v := &Vectorizer{
		Vocabulary: map[string]int{"good": 0, "food": 1},
		IDF:        []float64{2, 1},
		Normalize:  true,
	}

	x := v.Transform([]string{"good", "food", "unknown"})
	require.Len(t, x, 2)

	var sum float64
	for _, val := range x {
		sum += val * val
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, x[0], x[1], "idf weight should favour 'good'")
}

func TestVectorizer_EmptyIDFIsTermFrequency(t *testing.T) {
	v := &Vectorizer{
		Vocabulary: map[string]int{"good": 0, "food": 1},
		IDF:        []float64{},
	}

	assert.Equal(t, 2, v.Features())
	require.NoError(t, v.validate())
	assert.Equal(t, map[int]float64{0: 2, 1: 1}, v.Transform([]string{"good", "good", "food"}))
}

func TestDemoModel_Sentiment(t *testing.T) {
	m, err := DemoModel("sentiment")
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	out, err := m.Predict([]string{"great food", "awful service", "meh"})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(0), int64(0)}, out)
}

func TestDemoModel_Spam(t *testing.T) {
	m, err := DemoModel("spam")
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	out, err := m.Predict([]string{"WINNER! Claim your FREE prize now", "see you at lunch tomorrow"})
	require.NoError(t, err)
	assert.Equal(t, []any{"spam", "ham"}, out)
}

func TestDemoModel_UnknownProfile(t *testing.T) {
	_, err := DemoModel("fraud")
	assert.Error(t, err)
}

func TestModel_PredictMissingComponents(t *testing.T) {
	m, err := DemoModel("sentiment")
	require.NoError(t, err)

	noClf := *m
	noClf.Classifier = nil
	_, err = noClf.Predict([]string{"x"})
	assert.True(t, errors.Is(err, ErrNoClassifier))

	noVec := *m
	noVec.Vectorizer = nil
	_, err = noVec.Predict([]string{"x"})
	assert.True(t, errors.Is(err, ErrNoVectorizer))

	noTok := *m
	noTok.Tokenizer = nil
	out, err := noTok.Predict([]string{"Great food"})
	require.NoError(t, err, "missing tokenizer falls back to whitespace splitting")
	assert.Equal(t, []any{int64(1)}, out)

	var nilModel *Model
	_, err = nilModel.Predict([]string{"x"})
	assert.True(t, errors.Is(err, ErrNilModel))
}

func TestModel_ValidateRejectsInvalidUTF8(t *testing.T) {
	m, err := DemoModel("sentiment")
	require.NoError(t, err)

	m.Vectorizer.Vocabulary["caf\xe9"] = 0
	err = m.Validate()
	assert.True(t, errors.Is(err, ErrInvalidText), "got %v", err)
}

func TestModel_ValidateShape(t *testing.T) {
	m, err := DemoModel("spam")
	require.NoError(t, err)

	m.Classifier.Intercept = []float64{0, 0, 0}
	err = m.Validate()
	assert.True(t, errors.Is(err, ErrShapeMismatch), "got %v", err)
}

func TestModel_TransformText(t *testing.T) {
	m, err := DemoModel("spam")
	require.NoError(t, err)

	require.NoError(t, m.TransformText(func(s string) (string, error) {
		return strings.ToUpper(s), nil
	}))
	assert.Equal(t, "SPAM-DEMO", m.Name)
	assert.Equal(t, []string{"HAM", "SPAM"}, m.Classifier.Classes)
	_, ok := m.Vectorizer.Vocabulary["FREE"]
	assert.True(t, ok)
}

func TestModel_CloneIsDeep(t *testing.T) {
	m, err := DemoModel("sentiment")
	require.NoError(t, err)

	c := m.Clone()
	c.Vectorizer.Vocabulary["extra"] = 99
	c.Classifier.Coef[0][0] = 42
	c.Classifier.Classes[0] = "zero"

	_, leaked := m.Vectorizer.Vocabulary["extra"]
	assert.False(t, leaked)
	assert.NotEqual(t, 42.0, m.Classifier.Coef[0][0])
	assert.Equal(t, "0", m.Classifier.Classes[0])
}

func TestLinearClassifier_Multiclass(t *testing.T) {
	c := &LinearClassifier{
		Coef:      [][]float64{{1, 0}, {0, 1}, {-1, -1}},
		Intercept: []float64{0, 0, 0.5},
		Classes:   []string{"a", "b", "c"},
	}
	require.NoError(t, c.validate(2))

	got, err := c.Predict(map[int]float64{1: 2})
	require.NoError(t, err)
	assert.Equal(t, "b", got)

	got, err = c.Predict(map[int]float64{})
	require.NoError(t, err)
	assert.Equal(t, "c", got)
}
