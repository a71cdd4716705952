package artifact

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msgclf/internal/ml"
)

func failing(msg string) func(io.Reader) (ml.PredictorInterface, error) {
	return func(io.Reader) (ml.PredictorInterface, error) {
		return nil, errors.New(msg)
	}
}

func succeeding(label string) func(io.Reader) (ml.PredictorInterface, error) {
	return func(io.Reader) (ml.PredictorInterface, error) {
		return fakeModel{label: label}, nil
	}
}

func TestLoader_ShortCircuits(t *testing.T) {
	var first, second, third int
	metrics := NewMockMetrics()
	loader := NewLoader(
		WithMetrics(metrics),
		WithStrategies(
			countingStrategy("first", &first, failing("nope")),
			countingStrategy("second", &second, succeeding("ok")),
			countingStrategy("third", &third, succeeding("never")),
		),
	)

	out := loader.LoadFromStream(bytes.NewReader([]byte("artifact")))
	require.True(t, out.OK(), "load failed: %v", out.Err())

	assert.Equal(t, "second", out.Strategy)
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
	assert.Equal(t, 0, third, "strategies after the first success must not run")
	require.Len(t, out.Attempts, 1)
	assert.Equal(t, "first", out.Attempts[0].Strategy)
	assert.NoError(t, out.Err())

	assert.Equal(t, 1, metrics.successes["second"])
	assert.Equal(t, 1, metrics.failures["first"])
	assert.Equal(t, 0, metrics.attempts["third"])
	assert.Equal(t, 0, metrics.exhausted)
	assert.Equal(t, 1, metrics.latencies)
}

func TestLoader_AllFail(t *testing.T) {
	metrics := NewMockMetrics()
	loader := NewLoader(
		WithMetrics(metrics),
		WithStrategies(
			Strategy{Name: "a", Decode: failing("bad a")},
			Strategy{Name: "b", Decode: func(io.Reader) (ml.PredictorInterface, error) {
				panic("corrupt payload")
			}},
			Strategy{Name: "c", Decode: func(io.Reader) (ml.PredictorInterface, error) {
				return nil, nil
			}},
		),
	)

	var out Outcome
	require.NotPanics(t, func() {
		out = loader.LoadFromStream(bytes.NewReader([]byte{0x80, 0x03}))
	})

	assert.False(t, out.OK())
	assert.Nil(t, out.Model)
	assert.Empty(t, out.Strategy)
	require.Len(t, out.Attempts, 3)
	assert.Contains(t, out.Attempts[1].Err.Error(), "corrupt payload")

	err := out.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoadExhausted))
	assert.Equal(t, 1, metrics.exhausted)
}

func TestLoader_StreamPositionRestored(t *testing.T) {
	data := []byte("0123456789abcdef")
	r := bytes.NewReader(data)
	_, err := r.Seek(4, io.SeekStart)
	require.NoError(t, err)

	var seen [][]byte
	greedy := func(fail bool) func(io.Reader) (ml.PredictorInterface, error) {
		return func(r io.Reader) (ml.PredictorInterface, error) {
			b, err := io.ReadAll(r)
			if err != nil {
				return nil, err
			}
			seen = append(seen, b)
			if fail {
				return nil, errors.New("consumed and failed")
			}
			return fakeModel{label: "ok"}, nil
		}
	}

	loader := NewLoader(WithStrategies(
		Strategy{Name: "one", Decode: greedy(true)},
		Strategy{Name: "two", Decode: greedy(true)},
		Strategy{Name: "three", Decode: greedy(false)},
	))
	out := loader.LoadFromStream(r)
	require.True(t, out.OK())
	assert.Equal(t, "three", out.Strategy)

	require.Len(t, seen, 3)
	for i, b := range seen {
		assert.Equal(t, data[4:], b, "strategy %d saw a different stream", i)
	}
}

type brokenSeeker struct {
	*bytes.Reader
	seeks int
}

func (b *brokenSeeker) Seek(offset int64, whence int) (int64, error) {
	b.seeks++
	if b.seeks > 1 {
		return 0, errors.New("seek not supported")
	}
	return b.Reader.Seek(offset, whence)
}

func TestLoader_RewindFailureStopsChain(t *testing.T) {
	var second int
	loader := NewLoader(WithStrategies(
		Strategy{Name: "first", Decode: failing("nope")},
		countingStrategy("second", &second, succeeding("ok")),
	))

	out := loader.LoadFromStream(&brokenSeeker{Reader: bytes.NewReader([]byte("data"))})
	assert.False(t, out.OK())
	assert.Equal(t, 0, second)
	require.Len(t, out.Attempts, 2)
	assert.Equal(t, "rewind", out.Attempts[1].Strategy)
}

func TestLoader_MissingPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "food_sentiment_reg.pkl")

	out := NewLoader().LoadFromPath(path)
	assert.False(t, out.OK())
	assert.Equal(t, path, out.Source)
	require.Len(t, out.Attempts, 4)
	for _, a := range out.Attempts {
		assert.True(t, errors.Is(a, fs.ErrNotExist), "%s: %v", a.Strategy, a.Err)
	}
	assert.True(t, errors.Is(out.Err(), ErrLoadExhausted))
	assert.True(t, errors.Is(out.Err(), fs.ErrNotExist))

	holder := ml.NewHolder()
	holder.MarkPathFailed(out.Err())
	assert.False(t, holder.PredictionEnabled())
	assert.Equal(t, ml.StateAwaitingArtifact, holder.State())
}

func TestLoader_DefaultPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spam_clf.pkl")
	require.NoError(t, os.WriteFile(path, encodeModel(t, EncodeGob, demoModel(t, "spam")), 0o600))

	out := NewLoader(WithDefaultPath(path)).LoadFromPath("")
	require.True(t, out.OK(), "load failed: %v", out.Err())
	assert.Equal(t, StrategyGob, out.Strategy)
	assert.Equal(t, path, out.Source)
	assert.Empty(t, out.Attempts)
}

func TestLoader_PathReopenedPerStrategy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.msgc")
	require.NoError(t, os.WriteFile(path, encodeModel(t, EncodeArrayContainer, demoModel(t, "sentiment")), 0o600))

	out := NewLoader().LoadFromPath(path)
	require.True(t, out.OK(), "load failed: %v", out.Err())
	assert.Equal(t, StrategyArrayContainer, out.Strategy)
	require.Len(t, out.Attempts, 2)
	assert.Equal(t, StrategyGob, out.Attempts[0].Strategy)
	assert.Equal(t, StrategyGobLatin1, out.Attempts[1].Strategy)
}

func TestLoader_DefaultStrategyOrder(t *testing.T) {
	want := []string{StrategyGob, StrategyGobLatin1, StrategyArrayContainer, StrategyPermissiveManifest}
	assert.Equal(t, want, NewLoader().Strategies())
}

func TestLoader_GarbageExhaustsEveryStrategy(t *testing.T) {
	metrics := NewMockMetrics()
	loader := NewLoader(WithMetrics(metrics))

	out := loader.LoadFromStream(bytes.NewReader([]byte("\x80\x04\x95this is not a model")))
	assert.False(t, out.OK())
	assert.Len(t, out.Attempts, 4)
	for _, name := range loader.Strategies() {
		if metrics.attempts[name] != 1 {
			t.Errorf("expected one attempt for %s, got %d", name, metrics.attempts[name])
		}
	}
}
