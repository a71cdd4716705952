package textmodel

import (
	"fmt"
	"sort"
)

// lexicon weights for the demo models. These are fixed, not learned.
var (
	sentimentPositive = []string{
		"amazing", "awesome", "best", "love", "loved", "delicious", "excellent", "fantastic",
		"fresh", "friendly", "good", "great", "perfect", "tasty", "wonderful", "yummy",
	}
	sentimentNegative = []string{
		"awful", "bad", "bland", "cold", "disappointed", "disgusting", "horrible", "rude",
		"slow", "stale", "tasteless", "terrible", "worst", "overpriced", "soggy", "raw",
	}
	spamIndicators = []string{
		"claim", "click", "congratulations", "free", "prize", "winner", "win", "won",
		"cash", "urgent", "offer", "txt", "reply", "call", "guaranteed", "award",
	}
	hamIndicators = []string{
		"home", "later", "lunch", "meeting", "tomorrow", "thanks", "sorry", "love",
	}
)

// DemoModel builds a small lexicon-weighted model for a dashboard profile.
// It lets operators produce a loadable artifact without a training pipeline.
func DemoModel(profile string) (*Model, error) {
	switch profile {
	case "sentiment":
		return lexiconModel("food-sentiment-demo", sentimentPositive, sentimentNegative,
			[]string{"0", "1"}, true), nil
	case "spam":
		return lexiconModel("spam-demo", spamIndicators, hamIndicators,
			[]string{"ham", "spam"}, false), nil
	default:
		return nil, fmt.Errorf("textmodel: unknown profile %q", profile)
	}
}

// lexiconModel scores flagged terms +1.5 and counter terms -1.5 on a single
// decision row for Classes[1], with a slightly negative bias so texts with
// no known term fall into Classes[0].
func lexiconModel(name string, flagged, counter []string, classes []string, numeric bool) *Model {
	weights := make(map[string]float64, len(flagged)+len(counter))
	for _, w := range flagged {
		weights[w] = 1.5
	}
	for _, w := range counter {
		weights[w] = -1.5
	}

	terms := make([]string, 0, len(weights))
	for t := range weights {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	vocab := make(map[string]int, len(terms))
	row := make([]float64, len(terms))
	for i, t := range terms {
		vocab[t] = i
		row[i] = weights[t]
	}

	return &Model{
		Name:      name,
		Tokenizer: &Tokenizer{Lowercase: true, StripAccents: true, NGramMax: 1},
		Vectorizer: &Vectorizer{
			Vocabulary: vocab,
			Normalize:  true,
		},
		Classifier: &LinearClassifier{
			Coef:           [][]float64{row},
			Intercept:      []float64{-0.1},
			Classes:        classes,
			NumericClasses: numeric,
		},
	}
}
