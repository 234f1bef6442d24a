package fileproc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curran/rollup/pkg/parser"
)

func writeFiles(t *testing.T, count int) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, count)
	for i := 0; i < count; i++ {
		path := filepath.Join(dir, fmt.Sprintf("mod%d.js", i))
		source := fmt.Sprintf("var v%d = %d;\n", i, i)
		require.NoError(t, os.WriteFile(path, []byte(source), 0644))
		paths = append(paths, path)
	}
	return paths
}

func TestMapFiles(t *testing.T) {
	paths := writeFiles(t, 8)

	results := MapFiles(paths, func(p *parser.Parser, path string) (string, error) {
		result, err := p.ParseFile(path)
		if err != nil {
			return "", err
		}
		return result.Path, nil
	})

	sort.Strings(results)
	expected := append([]string(nil), paths...)
	sort.Strings(expected)
	assert.Equal(t, expected, results)
}

func TestMapFilesEmpty(t *testing.T) {
	results := MapFiles(nil, func(p *parser.Parser, path string) (int, error) {
		return 0, nil
	})
	assert.Nil(t, results)
}

func TestMapFilesSkipsErrors(t *testing.T) {
	paths := writeFiles(t, 3)
	paths = append(paths, filepath.Join(t.TempDir(), "missing.js"))

	results := MapFiles(paths, func(p *parser.Parser, path string) (string, error) {
		if _, err := os.Stat(path); err != nil {
			return "", err
		}
		return path, nil
	})

	assert.Len(t, results, 3, "failed files are skipped")
}

func TestMapFilesWithErrors(t *testing.T) {
	paths := writeFiles(t, 2)
	missing := filepath.Join(t.TempDir(), "missing.js")
	paths = append(paths, missing)

	var mu sync.Mutex
	var failed []string
	results := MapFilesWithErrors(paths,
		func(p *parser.Parser, path string) (*parser.ParseResult, error) {
			return p.ParseFile(path)
		},
		func(path string, err error) {
			mu.Lock()
			defer mu.Unlock()
			failed = append(failed, path)
		})

	assert.Len(t, results, 2)
	assert.Equal(t, []string{missing}, failed)
}

func TestMapFilesNWorkerCount(t *testing.T) {
	paths := writeFiles(t, 10)

	var mu sync.Mutex
	progress := 0
	results := MapFilesN(paths, 2,
		func(p *parser.Parser, path string) (bool, error) {
			return true, nil
		},
		func() {
			mu.Lock()
			defer mu.Unlock()
			progress++
		},
		nil)

	assert.Len(t, results, 10)
	assert.Equal(t, 10, progress, "progress fires once per file")
}

func TestProcessingError(t *testing.T) {
	inner := errors.New("parse failed")
	err := ProcessingError{Path: "a.js", Err: inner}

	assert.Equal(t, "a.js: parse failed", err.Error())
	assert.ErrorIs(t, err, inner)
}
