package compiler

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/exp/slices"
)

// Compile runs all three stages over one class source and returns its VM
// code.
func Compile(src io.Reader) ([]byte, error) {
	tokens, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	class, err := Parse(tokens)
	if err != nil {
		return nil, err
	}
	return GenerateClass(class)
}

// CompileFile compiles foo.jack into a sibling foo.vm. The output file is
// written in one piece after the whole compilation succeeded.
func CompileFile(path string) error {
	if filepath.Ext(path) != ".jack" {
		return fmt.Errorf("compiler: %s is not a .jack file", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("compiler: %w", err)
	}
	defer f.Close()
	code, err := Compile(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	out := strings.TrimSuffix(path, ".jack") + ".vm"
	return os.WriteFile(out, code, 0666)
}

// CompileDir compiles every .jack file directly under dir, each into its
// own .vm sibling. Files are processed in name order and the first
// failing file aborts the run.
func CompileDir(dir string) error {
	matches, err := doublestar.Glob(os.DirFS(dir), "*.jack")
	if err != nil {
		return fmt.Errorf("compiler: %w", err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("compiler: no .jack files in %s", dir)
	}
	slices.Sort(matches)
	for _, name := range matches {
		if err := CompileFile(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}
