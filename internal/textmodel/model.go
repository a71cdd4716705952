// Package textmodel implements the Go-native text classifier carried inside
// model artifacts: a tokenizer, a tf-idf vectorizer and a linear classifier.
//
// A Model exposes the single capability the rest of the system relies on,
// Predict([]string) ([]any, error). Raw outputs are int64 for numeric class
// labels and string otherwise.
package textmodel

import (
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"
)

var (
	ErrNilModel       = errors.New("textmodel: nil model")
	ErrNoVectorizer   = errors.New("textmodel: vectorizer unavailable")
	ErrNoClassifier   = errors.New("textmodel: classifier unavailable")
	ErrInvalidText    = errors.New("textmodel: text field is not valid UTF-8")
	ErrShapeMismatch  = errors.New("textmodel: inconsistent model shape")
	ErrMissingSection = errors.New("textmodel: missing model component")
)

// Component names used in artifacts and placeholder records.
const (
	ComponentTokenizer  = "tokenizer"
	ComponentVectorizer = "tfidf"
	ComponentClassifier = "linear"
)

// Model is a tokenizer -> vectorizer -> classifier pipeline.
type Model struct {
	Name       string
	Tokenizer  *Tokenizer
	Vectorizer *Vectorizer
	Classifier *LinearClassifier

	// Placeholders lists components that could not be resolved when the
	// model was loaded and were substituted by empty stand-ins.
	Placeholders []string
}

// Predict classifies every text independently and returns one raw label per
// input, in input order.
func (m *Model) Predict(texts []string) ([]any, error) {
	if m == nil {
		return nil, ErrNilModel
	}
	if m.Vectorizer == nil {
		return nil, ErrNoVectorizer
	}
	if m.Classifier == nil {
		return nil, ErrNoClassifier
	}

	tok := m.Tokenizer
	if tok == nil {
		tok = &fallbackTokenizer
	}

	out := make([]any, len(texts))
	for i, text := range texts {
		x := m.Vectorizer.Transform(tok.Tokenize(text))
		label, err := m.Classifier.Predict(x)
		if err != nil {
			return nil, fmt.Errorf("predict input %d: %w", i, err)
		}
		out[i] = label
	}
	return out, nil
}

// Substitutions returns the components replaced by placeholders at load time.
func (m *Model) Substitutions() []string {
	return m.Placeholders
}

// Clone returns a deep copy of m.
func (m *Model) Clone() *Model {
	if m == nil {
		return nil
	}
	c := &Model{Name: m.Name, Placeholders: append([]string(nil), m.Placeholders...)}
	if m.Tokenizer != nil {
		tok := *m.Tokenizer
		tok.StopWords = append([]string(nil), m.Tokenizer.StopWords...)
		c.Tokenizer = &tok
	}
	if m.Vectorizer != nil {
		vec := *m.Vectorizer
		vec.Vocabulary = make(map[string]int, len(m.Vectorizer.Vocabulary))
		for k, v := range m.Vectorizer.Vocabulary {
			vec.Vocabulary[k] = v
		}
		if m.Vectorizer.IDF != nil {
			vec.IDF = append([]float64(nil), m.Vectorizer.IDF...)
		}
		c.Vectorizer = &vec
	}
	if m.Classifier != nil {
		clf := *m.Classifier
		clf.Coef = make([][]float64, len(m.Classifier.Coef))
		for i, row := range m.Classifier.Coef {
			clf.Coef[i] = append([]float64(nil), row...)
		}
		clf.Intercept = append([]float64(nil), m.Classifier.Intercept...)
		clf.Classes = append([]string(nil), m.Classifier.Classes...)
		c.Classifier = &clf
	}
	return c
}

// Validate checks that the model is complete and internally consistent and
// that every text field is valid UTF-8.
func (m *Model) Validate() error {
	if m == nil {
		return ErrNilModel
	}
	if m.Vectorizer == nil {
		return fmt.Errorf("%w: %s", ErrMissingSection, ComponentVectorizer)
	}
	if m.Classifier == nil {
		return fmt.Errorf("%w: %s", ErrMissingSection, ComponentClassifier)
	}
	return m.validatePresent()
}

// ValidatePartial is Validate for models with placeholder components: absent
// components are accepted and only the present ones are checked.
func (m *Model) ValidatePartial() error {
	if m == nil {
		return ErrNilModel
	}
	return m.validatePresent()
}

func (m *Model) validatePresent() error {
	if !utf8.ValidString(m.Name) {
		return fmt.Errorf("%w: model name", ErrInvalidText)
	}
	if m.Tokenizer != nil {
		for _, w := range m.Tokenizer.StopWords {
			if !utf8.ValidString(w) {
				return fmt.Errorf("%w: stop word %q", ErrInvalidText, w)
			}
		}
	}
	if m.Vectorizer != nil {
		if err := m.Vectorizer.validate(); err != nil {
			return err
		}
	}
	if m.Classifier != nil {
		features := -1
		if m.Vectorizer != nil {
			features = m.Vectorizer.Features()
		}
		return m.Classifier.validate(features)
	}
	return nil
}

// TransformText rewrites every text field of the model with fn. It is used
// to re-decode strings written under a different character encoding.
func (m *Model) TransformText(fn func(string) (string, error)) error {
	if m == nil {
		return ErrNilModel
	}

	name, err := fn(m.Name)
	if err != nil {
		return fmt.Errorf("transform name: %w", err)
	}
	m.Name = name

	if m.Tokenizer != nil {
		for i, w := range m.Tokenizer.StopWords {
			if m.Tokenizer.StopWords[i], err = fn(w); err != nil {
				return fmt.Errorf("transform stop word: %w", err)
			}
		}
	}

	if m.Vectorizer != nil {
		vocab := make(map[string]int, len(m.Vectorizer.Vocabulary))
		for term, idx := range m.Vectorizer.Vocabulary {
			t, err := fn(term)
			if err != nil {
				return fmt.Errorf("transform term: %w", err)
			}
			vocab[t] = idx
		}
		m.Vectorizer.Vocabulary = vocab
	}

	if m.Classifier != nil {
		for i, c := range m.Classifier.Classes {
			if m.Classifier.Classes[i], err = fn(c); err != nil {
				return fmt.Errorf("transform class: %w", err)
			}
		}
	}
	return nil
}

// LinearClassifier is a one-vs-rest linear model over sparse features.
// Binary models may carry a single coefficient row scoring Classes[1].
type LinearClassifier struct {
	Coef           [][]float64
	Intercept      []float64
	Classes        []string
	NumericClasses bool
}

// Decision returns the per-row decision values for x.
func (c *LinearClassifier) Decision(x map[int]float64) []float64 {
	scores := make([]float64, len(c.Coef))
	for row, w := range c.Coef {
		s := c.Intercept[row]
		for idx, v := range x {
			if idx < len(w) {
				s += w[idx] * v
			}
		}
		scores[row] = s
	}
	return scores
}

// Predict returns the raw class label for x.
func (c *LinearClassifier) Predict(x map[int]float64) (any, error) {
	if len(c.Coef) == 0 || len(c.Classes) < 2 {
		return nil, fmt.Errorf("%w: classifier has no classes", ErrShapeMismatch)
	}

	scores := c.Decision(x)
	best := 0
	if len(scores) == 1 {
		if scores[0] > 0 {
			best = 1
		}
	} else {
		for i := range scores {
			if scores[i] > scores[best] {
				best = i
			}
		}
	}
	return c.label(best)
}

func (c *LinearClassifier) label(i int) (any, error) {
	if !c.NumericClasses {
		return c.Classes[i], nil
	}
	v, err := strconv.ParseInt(c.Classes[i], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("numeric class %q: %w", c.Classes[i], err)
	}
	return v, nil
}

// validate checks the classifier against a vectorizer of the given
// dimensionality; a negative value skips the width check.
func (c *LinearClassifier) validate(features int) error {
	if len(c.Classes) < 2 {
		return fmt.Errorf("%w: need at least 2 classes, got %d", ErrShapeMismatch, len(c.Classes))
	}
	for _, cl := range c.Classes {
		if !utf8.ValidString(cl) {
			return fmt.Errorf("%w: class label", ErrInvalidText)
		}
		if c.NumericClasses {
			if _, err := strconv.ParseInt(cl, 10, 64); err != nil {
				return fmt.Errorf("%w: class %q is not numeric", ErrShapeMismatch, cl)
			}
		}
	}

	rows := len(c.Classes)
	if rows == 2 && len(c.Coef) == 1 {
		rows = 1
	}
	if len(c.Coef) != rows {
		return fmt.Errorf("%w: %d coefficient rows for %d classes", ErrShapeMismatch, len(c.Coef), len(c.Classes))
	}
	if len(c.Intercept) != rows {
		return fmt.Errorf("%w: %d intercepts for %d rows", ErrShapeMismatch, len(c.Intercept), rows)
	}
	for i, w := range c.Coef {
		if features >= 0 && len(w) != features {
			return fmt.Errorf("%w: row %d has %d weights, vectorizer has %d features", ErrShapeMismatch, i, len(w), features)
		}
	}
	return nil
}
