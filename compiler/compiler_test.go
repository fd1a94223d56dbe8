package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJack(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0666))
	return path
}

func TestCompileFile(t *testing.T) {
	dir := t.TempDir()
	path := writeJack(t, dir, "Main.jack", `
class Main {
	function void main() {
		return;
	}
}
`)
	require.NoError(t, CompileFile(path))
	out, err := os.ReadFile(filepath.Join(dir, "Main.vm"))
	require.NoError(t, err)
	assert.Equal(t, "function Main.main 0\npush constant 0\nreturn\n", string(out))

	assert.Error(t, CompileFile(filepath.Join(dir, "Main.vm")))
	assert.Error(t, CompileFile(filepath.Join(dir, "missing.jack")))
}

// A failed compilation leaves no output file behind.
func TestCompileFileNoPartialOutput(t *testing.T) {
	dir := t.TempDir()
	path := writeJack(t, dir, "Bad.jack", "class Bad {")
	require.Error(t, CompileFile(path))
	_, err := os.Stat(filepath.Join(dir, "Bad.vm"))
	assert.True(t, os.IsNotExist(err))
}

func TestCompileDir(t *testing.T) {
	dir := t.TempDir()
	writeJack(t, dir, "Alpha.jack", "class Alpha { function void main() { return; } }")
	writeJack(t, dir, "Beta.jack", "class Beta { function void main() { return; } }")
	writeJack(t, dir, "notes.txt", "not jack")
	require.NoError(t, CompileDir(dir))
	for _, stem := range []string{"Alpha", "Beta"} {
		_, err := os.Stat(filepath.Join(dir, stem+".vm"))
		assert.NoError(t, err, stem)
	}

	assert.Error(t, CompileDir(t.TempDir()), "no .jack files")
}
