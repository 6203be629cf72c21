package terms

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeParquet(t *testing.T, path string, rows []parquetEntry) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	w := parquet.NewGenericWriter[parquetEntry](f)
	_, err = w.Write(rows)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

func TestLoadParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glossary.parquet")
	writeParquet(t, path, []parquetEntry{
		{Source: "Haus", Target: "house"},
		{Source: "Baum", Target: "tree"},
		{Source: "Welt", Target: "world"},
	})

	d, err := LoadParquet(path)
	require.NoError(t, err)
	assert.Equal(t, Dictionary{"Haus": "house", "Baum": "tree", "Welt": "world"}, d)
}

func TestLoadParquetDuplicateKeysLastWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glossary.parquet")
	writeParquet(t, path, []parquetEntry{
		{Source: "Haus", Target: "home"},
		{Source: "Haus", Target: "house"},
	})

	d, err := LoadParquet(path)
	require.NoError(t, err)
	assert.Equal(t, Dictionary{"Haus": "house"}, d)
}

func TestLoadParquetMissingFile(t *testing.T) {
	_, err := LoadParquet(filepath.Join(t.TempDir(), "absent.parquet"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(errors.Cause(err)), "want a not-exist error, got %v", err)
}

func TestLoadParquetMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.parquet")
	require.NoError(t, os.WriteFile(path, []byte("these bytes are not a parquet file"), 0644))

	_, err := LoadParquet(path)
	var fe *FormatError
	require.True(t, errors.As(err, &fe), "want FormatError, got %v", err)
	assert.Equal(t, path, fe.Path)
}
