package jsonfile

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestLoadMissing(t *testing.T) {
	var v sample
	found, err := Load(afero.NewMemMapFs(), "/cache/missing.json", &v)
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, sample{}, v)
}

func TestSaveLoad(t *testing.T) {
	fs := afero.NewMemMapFs()

	require.NoError(t, Save(fs, "/cache/sample.json", &sample{Name: "a", Count: 2}))

	var v sample
	found, err := Load(fs, "/cache/sample.json", &v)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, sample{Name: "a", Count: 2}, v)

	ok, err := afero.Exists(fs, "/cache/sample.json"+tempSuffix)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLoadCorrupt(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cache/bad.json", []byte("{"), 0o644))

	var v sample
	_, err := Load(fs, "/cache/bad.json", &v)
	require.Error(t, err)
}
