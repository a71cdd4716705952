package artifact

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"msgclf/internal/ml"
	"msgclf/internal/textmodel"
)

const (
	manifestFormat   = "msgclf/manifest"
	maxManifestBytes = 64 << 20
)

var errNotManifest = errors.New("not a msgclf manifest")

// manifest is a YAML description of a model as a list of typed components.
// Components of unknown type are replaced by placeholders instead of failing
// the load. A placeholder in the tokenizer role falls back to the default
// tokenizer; one in the vectorizer or classifier role leaves the model unable
// to predict, which surfaces per input at prediction time.
type manifest struct {
	Format     string              `yaml:"format"`
	Name       string              `yaml:"name"`
	Components []manifestComponent `yaml:"components"`
}

type manifestComponent struct {
	Role string    `yaml:"role"`
	Type string    `yaml:"type"`
	Spec yaml.Node `yaml:"spec"`
}

type tokenizerSpec struct {
	Lowercase    bool     `yaml:"lowercase"`
	StripAccents bool     `yaml:"strip_accents"`
	NGramMax     int      `yaml:"ngram_max"`
	StopWords    []string `yaml:"stop_words"`
}

type tfidfSpec struct {
	Vocabulary map[string]int `yaml:"vocabulary"`
	IDF        []float64      `yaml:"idf"`
	Sublinear  bool           `yaml:"sublinear"`
	Normalize  bool           `yaml:"normalize"`
}

type linearSpec struct {
	Coef           [][]float64 `yaml:"coef"`
	Intercept      []float64   `yaml:"intercept"`
	Classes        []string    `yaml:"classes"`
	NumericClasses bool        `yaml:"numeric_classes"`
}

// PermissiveManifestStrategy decodes a YAML component manifest, substituting
// placeholders for component types it does not know.
func PermissiveManifestStrategy() Strategy {
	return Strategy{
		Name: StrategyPermissiveManifest,
		Decode: func(r io.Reader) (ml.PredictorInterface, error) {
			m, err := decodeManifest(r)
			if err != nil {
				return nil, err
			}
			if err := m.ValidatePartial(); err != nil {
				return nil, err
			}
			return m, nil
		},
	}
}

func decodeManifest(r io.Reader) (*textmodel.Model, error) {
	var doc manifest
	if err := yaml.NewDecoder(io.LimitReader(r, maxManifestBytes)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("yaml decode: %w", err)
	}
	if doc.Format != manifestFormat {
		return nil, errNotManifest
	}

	if len(doc.Components) == 0 {
		return nil, fmt.Errorf("%w: manifest lists no components", textmodel.ErrMissingSection)
	}

	m := &textmodel.Model{Name: doc.Name}
	// Only resolved component types are unique; unknown ones may repeat.
	seen := make(map[string]bool, 3)
	for i, c := range doc.Components {
		if seen[c.Type] {
			return nil, fmt.Errorf("component %d: duplicate %s component", i, c.Type)
		}

		var err error
		known := true
		switch c.Type {
		case textmodel.ComponentTokenizer:
			m.Tokenizer, err = decodeTokenizer(&c.Spec)
		case textmodel.ComponentVectorizer:
			m.Vectorizer, err = decodeVectorizer(&c.Spec)
		case textmodel.ComponentClassifier:
			m.Classifier, err = decodeClassifier(&c.Spec)
		default:
			known = false
			m.Placeholders = append(m.Placeholders, placeholderName(i, c))
			log.Warn().
				Str("role", c.Role).
				Str("type", c.Type).
				Msg("manifest component type unknown, substituted by placeholder")
		}
		if err != nil {
			return nil, fmt.Errorf("component %d (%s): %w", i, c.Type, err)
		}
		if known {
			seen[c.Type] = true
		}
	}
	return m, nil
}

func placeholderName(i int, c manifestComponent) string {
	switch {
	case c.Role != "" && c.Type != "":
		return c.Role + ":" + c.Type
	case c.Type != "":
		return c.Type
	case c.Role != "":
		return c.Role
	default:
		return fmt.Sprintf("component[%d]", i)
	}
}

// decodeSpec decodes a component spec; an absent spec leaves v zero.
func decodeSpec(n *yaml.Node, v any) error {
	if n.Kind == 0 {
		return nil
	}
	return n.Decode(v)
}

func decodeTokenizer(n *yaml.Node) (*textmodel.Tokenizer, error) {
	var s tokenizerSpec
	if err := decodeSpec(n, &s); err != nil {
		return nil, err
	}
	return &textmodel.Tokenizer{
		Lowercase:    s.Lowercase,
		StripAccents: s.StripAccents,
		NGramMax:     s.NGramMax,
		StopWords:    s.StopWords,
	}, nil
}

func decodeVectorizer(n *yaml.Node) (*textmodel.Vectorizer, error) {
	var s tfidfSpec
	if err := decodeSpec(n, &s); err != nil {
		return nil, err
	}
	if len(s.IDF) == 0 {
		s.IDF = nil
	}
	return &textmodel.Vectorizer{
		Vocabulary: s.Vocabulary,
		IDF:        s.IDF,
		Sublinear:  s.Sublinear,
		Normalize:  s.Normalize,
	}, nil
}

func decodeClassifier(n *yaml.Node) (*textmodel.LinearClassifier, error) {
	var s linearSpec
	if err := decodeSpec(n, &s); err != nil {
		return nil, err
	}
	return &textmodel.LinearClassifier{
		Coef:           s.Coef,
		Intercept:      s.Intercept,
		Classes:        s.Classes,
		NumericClasses: s.NumericClasses,
	}, nil
}

// EncodeManifest writes m as a YAML component manifest.
func EncodeManifest(w io.Writer, m *textmodel.Model) error {
	if err := m.Validate(); err != nil {
		return err
	}

	doc := struct {
		Format     string `yaml:"format"`
		Name       string `yaml:"name"`
		Components []any  `yaml:"components"`
	}{Format: manifestFormat, Name: m.Name}

	type component struct {
		Type string `yaml:"type"`
		Spec any    `yaml:"spec"`
	}
	if t := m.Tokenizer; t != nil {
		doc.Components = append(doc.Components, component{
			Type: textmodel.ComponentTokenizer,
			Spec: tokenizerSpec{Lowercase: t.Lowercase, StripAccents: t.StripAccents, NGramMax: t.NGramMax, StopWords: t.StopWords},
		})
	}
	doc.Components = append(doc.Components,
		component{
			Type: textmodel.ComponentVectorizer,
			Spec: tfidfSpec{
				Vocabulary: m.Vectorizer.Vocabulary,
				IDF:        m.Vectorizer.IDF,
				Sublinear:  m.Vectorizer.Sublinear,
				Normalize:  m.Vectorizer.Normalize,
			},
		},
		component{
			Type: textmodel.ComponentClassifier,
			Spec: linearSpec{
				Coef:           m.Classifier.Coef,
				Intercept:      m.Classifier.Intercept,
				Classes:        m.Classifier.Classes,
				NumericClasses: m.Classifier.NumericClasses,
			},
		},
	)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("yaml encode: %w", err)
	}
	return enc.Close()
}
