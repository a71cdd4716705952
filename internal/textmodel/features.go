package textmodel

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// fallbackTokenizer is used when an artifact carries no tokenizer or its
// tokenizer could not be resolved.
var fallbackTokenizer = Tokenizer{Lowercase: true}

// Tokenizer splits text into word n-grams.
type Tokenizer struct {
	Lowercase    bool
	StripAccents bool
	NGramMax     int
	StopWords    []string
}

// Tokenize returns the terms of text. Words shorter than two runes are dropped.
func (t *Tokenizer) Tokenize(text string) []string {
	if t.Lowercase {
		text = strings.ToLower(text)
	}
	if t.StripAccents {
		text = stripAccents(text)
	}

	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '_'
	})

	stop := make(map[string]struct{}, len(t.StopWords))
	for _, w := range t.StopWords {
		stop[w] = struct{}{}
	}

	kept := words[:0]
	for _, w := range words {
		if utf8.RuneCountInString(w) < 2 {
			continue
		}
		if _, ok := stop[w]; ok {
			continue
		}
		kept = append(kept, w)
	}

	n := t.NGramMax
	if n <= 1 {
		return kept
	}

	terms := make([]string, 0, len(kept)*n)
	terms = append(terms, kept...)
	for size := 2; size <= n; size++ {
		for i := 0; i+size <= len(kept); i++ {
			terms = append(terms, strings.Join(kept[i:i+size], " "))
		}
	}
	return terms
}

func stripAccents(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range norm.NFD.String(text) {
		if unicode.In(r, unicode.Mn) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Vectorizer maps terms to a sparse tf or tf-idf vector.
type Vectorizer struct {
	Vocabulary map[string]int
	// IDF holds one weight per feature; empty means plain term frequency.
	IDF       []float64
	Sublinear bool
	Normalize bool
}

// Features returns the dimensionality of the produced vectors.
func (v *Vectorizer) Features() int {
	if len(v.IDF) > 0 {
		return len(v.IDF)
	}
	max := -1
	for _, idx := range v.Vocabulary {
		if idx > max {
			max = idx
		}
	}
	return max + 1
}

// Transform converts tokens into a sparse feature vector. Unknown terms are ignored.
func (v *Vectorizer) Transform(tokens []string) map[int]float64 {
	x := make(map[int]float64)
	for _, tok := range tokens {
		if idx, ok := v.Vocabulary[tok]; ok {
			x[idx]++
		}
	}

	for idx, tf := range x {
		if v.Sublinear {
			tf = 1 + math.Log(tf)
		}
		if idx < len(v.IDF) {
			tf *= v.IDF[idx]
		}
		x[idx] = tf
	}

	if v.Normalize {
		var sum float64
		for _, val := range x {
			sum += val * val
		}
		if sum > 0 {
			norm := math.Sqrt(sum)
			for idx := range x {
				x[idx] /= norm
			}
		}
	}
	return x
}

func (v *Vectorizer) validate() error {
	if len(v.Vocabulary) == 0 {
		return fmt.Errorf("%w: empty vocabulary", ErrShapeMismatch)
	}
	features := v.Features()
	for term, idx := range v.Vocabulary {
		if !utf8.ValidString(term) {
			return fmt.Errorf("%w: vocabulary term", ErrInvalidText)
		}
		if idx < 0 || idx >= features {
			return fmt.Errorf("%w: term %q index %d outside [0,%d)", ErrShapeMismatch, term, idx, features)
		}
	}
	for i, w := range v.IDF {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: idf[%d] is not finite", ErrShapeMismatch, i)
		}
	}
	return nil
}
