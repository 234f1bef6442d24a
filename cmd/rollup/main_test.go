package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteBundleToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.js")

	require.NoError(t, writeBundle(path, "var a = 1;\n"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "var a = 1;\n", string(data))
}

func TestWriteBundleBadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no", "such", "dir", "bundle.js")
	assert.Error(t, writeBundle(path, "var a = 1;\n"))
}
