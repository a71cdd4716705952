package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_DemoThenInspect(t *testing.T) {
	tests := []struct {
		format   string
		strategy string
	}{
		{"gob", "gob"},
		{"gob-latin1", "gob"},
		{"container", "array-container"},
		{"manifest", "permissive-manifest"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "spam_clf.pkl")

			var out bytes.Buffer
			err := run([]string{"demo", "-profile", "spam", "-format", tt.format, "-out", path}, &out)
			require.NoError(t, err)
			assert.Contains(t, out.String(), "loads with "+tt.strategy)

			out.Reset()
			err = run([]string{"inspect", "-profile", "spam", "-text", "Congratulations you won a free prize", path}, &out)
			require.NoError(t, err)
			assert.Contains(t, out.String(), "loaded")
			assert.Contains(t, out.String(), "prediction: Spam")
		})
	}
}

func TestRun_InspectGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pkl")
	require.NoError(t, os.WriteFile(path, []byte("not a model at all"), 0o600))

	var out bytes.Buffer
	err := run([]string{"inspect", path}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all load strategies failed")
	for _, name := range []string{"gob", "gob-latin1", "array-container", "permissive-manifest"} {
		assert.Contains(t, out.String(), name)
	}
	assert.NotContains(t, out.String(), "loaded")
	assert.NotContains(t, out.String(), "not tried")
}

func TestRun_Usage(t *testing.T) {
	var out bytes.Buffer
	assert.ErrorIs(t, run(nil, &out), errUsage)
	assert.Error(t, run([]string{"train"}, &out))
	assert.Error(t, run([]string{"demo", "-format", "onnx", "-out", filepath.Join(t.TempDir(), "x")}, &out))
	assert.Error(t, run([]string{"inspect"}, &out))
}
