package artifact

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"msgclf/internal/ml"
	"msgclf/internal/textmodel"
)

// Strategy names, in chain order.
const (
	StrategyGob                = "gob"
	StrategyGobLatin1          = "gob-latin1"
	StrategyArrayContainer     = "array-container"
	StrategyPermissiveManifest = "permissive-manifest"
)

const (
	gobMagic   = "msgclf/gob"
	gobVersion = 1
)

var errNotGobArtifact = errors.New("not a msgclf gob artifact")

// gobEnvelope is the on-disk form of a gob artifact. It holds no maps; the
// vocabulary map is rebuilt after decoding.
type gobEnvelope struct {
	Magic   string
	Version int
	Model   *gobModel
}

type gobModel struct {
	Name         string
	Tokenizer    *textmodel.Tokenizer
	Vectorizer   *gobVectorizer
	Classifier   *textmodel.LinearClassifier
	Placeholders []string
}

// gobVectorizer stores the vocabulary as terms in index order. Unused
// indexes hold the empty term.
type gobVectorizer struct {
	Terms     []string
	IDF       []float64
	Sublinear bool
	Normalize bool
}

func toGobModel(m *textmodel.Model) *gobModel {
	g := &gobModel{
		Name:         m.Name,
		Tokenizer:    m.Tokenizer,
		Classifier:   m.Classifier,
		Placeholders: m.Placeholders,
	}
	if v := m.Vectorizer; v != nil {
		terms := make([]string, v.Features())
		for t, idx := range v.Vocabulary {
			if idx >= 0 && idx < len(terms) {
				terms[idx] = t
			}
		}
		g.Vectorizer = &gobVectorizer{Terms: terms, IDF: v.IDF, Sublinear: v.Sublinear, Normalize: v.Normalize}
	}
	return g
}

func (g *gobModel) model() (*textmodel.Model, error) {
	m := &textmodel.Model{
		Name:         g.Name,
		Tokenizer:    g.Tokenizer,
		Classifier:   g.Classifier,
		Placeholders: g.Placeholders,
	}
	if v := g.Vectorizer; v != nil {
		vocab := make(map[string]int, len(v.Terms))
		for i, t := range v.Terms {
			if t == "" {
				continue
			}
			if _, dup := vocab[t]; dup {
				return nil, fmt.Errorf("%w: duplicate term %q", textmodel.ErrShapeMismatch, t)
			}
			vocab[t] = i
		}
		m.Vectorizer = &textmodel.Vectorizer{
			Vocabulary: vocab,
			IDF:        v.IDF,
			Sublinear:  v.Sublinear,
			Normalize:  v.Normalize,
		}
	}
	return m, nil
}

// GobStrategy decodes a gob artifact whose text fields are UTF-8.
func GobStrategy() Strategy {
	return Strategy{
		Name: StrategyGob,
		Decode: func(r io.Reader) (ml.PredictorInterface, error) {
			m, err := decodeGob(r)
			if err != nil {
				return nil, err
			}
			if err := m.Validate(); err != nil {
				return nil, err
			}
			return m, nil
		},
	}
}

// GobLatin1Strategy decodes a gob artifact whose text fields were written as
// ISO-8859-1 bytes and re-decodes them to UTF-8.
func GobLatin1Strategy() Strategy {
	return Strategy{
		Name: StrategyGobLatin1,
		Decode: func(r io.Reader) (ml.PredictorInterface, error) {
			m, err := decodeGob(r)
			if err != nil {
				return nil, err
			}
			dec := charmap.ISO8859_1.NewDecoder()
			err = m.TransformText(func(s string) (string, error) {
				out, _, err := transform.String(dec, s)
				return out, err
			})
			if err != nil {
				return nil, fmt.Errorf("latin-1 decode: %w", err)
			}
			if err := m.Validate(); err != nil {
				return nil, err
			}
			return m, nil
		},
	}
}

func decodeGob(r io.Reader) (*textmodel.Model, error) {
	var env gobEnvelope
	if err := gob.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("gob decode: %w", err)
	}
	if env.Magic != gobMagic {
		return nil, errNotGobArtifact
	}
	if env.Version != gobVersion {
		return nil, fmt.Errorf("unsupported gob artifact version %d", env.Version)
	}
	if env.Model == nil {
		return nil, textmodel.ErrNilModel
	}
	return env.Model.model()
}

// EncodeGob writes m as a UTF-8 gob artifact.
func EncodeGob(w io.Writer, m *textmodel.Model) error {
	if m == nil {
		return textmodel.ErrNilModel
	}
	env := gobEnvelope{Magic: gobMagic, Version: gobVersion, Model: toGobModel(m)}
	if err := gob.NewEncoder(w).Encode(&env); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

// EncodeGobLatin1 writes m as a gob artifact with text fields encoded as
// ISO-8859-1. Runes outside Latin-1 cannot be represented and fail the encode.
func EncodeGobLatin1(w io.Writer, m *textmodel.Model) error {
	if m == nil {
		return textmodel.ErrNilModel
	}
	c := m.Clone()
	enc := charmap.ISO8859_1.NewEncoder()
	err := c.TransformText(func(s string) (string, error) {
		out, _, err := transform.String(enc, s)
		return out, err
	})
	if err != nil {
		return fmt.Errorf("latin-1 encode: %w", err)
	}
	return EncodeGob(w, c)
}
