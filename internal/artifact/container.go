package artifact

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"msgclf/internal/ml"
	"msgclf/internal/textmodel"
)

// The array container is a zstd stream holding:
//
//	magic "MSGCARR1" | uint32 LE descriptor length | JSON descriptor |
//	idf float64[] | coef float64[rows*cols] | intercept float64[rows]
//
// Arrays are little-endian and sized by the descriptor.
const (
	containerMagic         = "MSGCARR1"
	maxDescriptorBytes     = 16 << 20
	maxContainerFeatures   = 1 << 22
	maxContainerRows       = 1024
	maxContainerCoefs      = 1 << 23
	maxContainerDecodedMem = 512 << 20

	// readFloats grows its result this many values at a time, so memory
	// follows the payload actually present rather than the descriptor.
	floatChunk = 1 << 14
)

var errNotContainer = errors.New("not a msgclf array container")

type containerDescriptor struct {
	Name           string               `json:"name"`
	Tokenizer      *textmodel.Tokenizer `json:"tokenizer,omitempty"`
	Terms          []string             `json:"terms"`
	Classes        []string             `json:"classes"`
	NumericClasses bool                 `json:"numeric_classes"`
	Sublinear      bool                 `json:"sublinear"`
	Normalize      bool                 `json:"normalize"`
	IDFLen         int                  `json:"idf_len"`
	CoefRows       int                  `json:"coef_rows"`
	CoefCols       int                  `json:"coef_cols"`
	Placeholders   []string             `json:"placeholders,omitempty"`
}

// ArrayContainerStrategy decodes a compressed numeric-array container.
func ArrayContainerStrategy() Strategy {
	return Strategy{
		Name: StrategyArrayContainer,
		Decode: func(r io.Reader) (ml.PredictorInterface, error) {
			m, err := decodeContainer(r)
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

func decodeContainer(r io.Reader) (*textmodel.Model, error) {
	zr, err := zstd.NewReader(r, zstd.WithDecoderMaxMemory(maxContainerDecodedMem), zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer zr.Close()

	magic := make([]byte, len(containerMagic))
	if _, err := io.ReadFull(zr, magic); err != nil {
		return nil, fmt.Errorf("read container header: %w", err)
	}
	if string(magic) != containerMagic {
		return nil, errNotContainer
	}

	var descLen uint32
	if err := binary.Read(zr, binary.LittleEndian, &descLen); err != nil {
		return nil, fmt.Errorf("read descriptor length: %w", err)
	}
	if descLen == 0 || descLen > maxDescriptorBytes {
		return nil, fmt.Errorf("descriptor length %d out of range", descLen)
	}

	raw := make([]byte, descLen)
	if _, err := io.ReadFull(zr, raw); err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	var desc containerDescriptor
	if err := json.Unmarshal(raw, &desc); err != nil {
		return nil, fmt.Errorf("parse descriptor: %w", err)
	}

	if desc.IDFLen < 0 || desc.IDFLen > maxContainerFeatures ||
		desc.CoefCols < 0 || desc.CoefCols > maxContainerFeatures ||
		desc.CoefRows <= 0 || desc.CoefRows > maxContainerRows ||
		desc.CoefRows*desc.CoefCols > maxContainerCoefs {
		return nil, fmt.Errorf("%w: array sizes out of range", textmodel.ErrShapeMismatch)
	}
	if len(desc.Terms) > maxContainerFeatures {
		return nil, fmt.Errorf("%w: %d terms exceed %d", textmodel.ErrShapeMismatch, len(desc.Terms), maxContainerFeatures)
	}

	idf, err := readFloats(zr, desc.IDFLen)
	if err != nil {
		return nil, fmt.Errorf("read idf: %w", err)
	}
	flat, err := readFloats(zr, desc.CoefRows*desc.CoefCols)
	if err != nil {
		return nil, fmt.Errorf("read coefficients: %w", err)
	}
	intercept, err := readFloats(zr, desc.CoefRows)
	if err != nil {
		return nil, fmt.Errorf("read intercept: %w", err)
	}

	vocab := make(map[string]int, len(desc.Terms))
	for i, t := range desc.Terms {
		if _, dup := vocab[t]; dup {
			return nil, fmt.Errorf("%w: duplicate term %q", textmodel.ErrShapeMismatch, t)
		}
		vocab[t] = i
	}

	coef := make([][]float64, desc.CoefRows)
	for i := range coef {
		coef[i] = flat[i*desc.CoefCols : (i+1)*desc.CoefCols]
	}

	m := &textmodel.Model{
		Name:      desc.Name,
		Tokenizer: desc.Tokenizer,
		Vectorizer: &textmodel.Vectorizer{
			Vocabulary: vocab,
			Sublinear:  desc.Sublinear,
			Normalize:  desc.Normalize,
		},
		Classifier: &textmodel.LinearClassifier{
			Coef:           coef,
			Intercept:      intercept,
			Classes:        desc.Classes,
			NumericClasses: desc.NumericClasses,
		},
		Placeholders: desc.Placeholders,
	}
	if desc.IDFLen > 0 {
		m.Vectorizer.IDF = idf
	}
	return m, nil
}

// readFloats reads n little-endian float64 values. A short payload fails
// with io.ErrUnexpectedEOF.
func readFloats(r io.Reader, n int) ([]float64, error) {
	out := make([]float64, 0, min(n, floatChunk))
	for len(out) < n {
		chunk := make([]float64, min(n-len(out), floatChunk))
		if err := binary.Read(r, binary.LittleEndian, chunk); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

// EncodeArrayContainer writes m as a compressed numeric-array container.
func EncodeArrayContainer(w io.Writer, m *textmodel.Model) error {
	if err := m.Validate(); err != nil {
		return err
	}

	features := m.Vectorizer.Features()
	terms := make([]string, features)
	for t, idx := range m.Vectorizer.Vocabulary {
		terms[idx] = t
	}

	rows := len(m.Classifier.Coef)
	desc := containerDescriptor{
		Name:           m.Name,
		Tokenizer:      m.Tokenizer,
		Terms:          terms,
		Classes:        m.Classifier.Classes,
		NumericClasses: m.Classifier.NumericClasses,
		Sublinear:      m.Vectorizer.Sublinear,
		Normalize:      m.Vectorizer.Normalize,
		IDFLen:         len(m.Vectorizer.IDF),
		CoefRows:       rows,
		CoefCols:       features,
		Placeholders:   m.Placeholders,
	}
	raw, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("encode descriptor: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(containerMagic)
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(raw))); err != nil {
		return err
	}
	buf.Write(raw)
	if len(m.Vectorizer.IDF) > 0 {
		if err := binary.Write(&buf, binary.LittleEndian, m.Vectorizer.IDF); err != nil {
			return err
		}
	}
	for _, row := range m.Classifier.Coef {
		padded := make([]float64, features)
		copy(padded, row)
		if err := binary.Write(&buf, binary.LittleEndian, padded); err != nil {
			return err
		}
	}
	if err := binary.Write(&buf, binary.LittleEndian, m.Classifier.Intercept); err != nil {
		return err
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	if _, err := zw.Write(buf.Bytes()); err != nil {
		zw.Close()
		return fmt.Errorf("compress container: %w", err)
	}
	return zw.Close()
}
