package ghci

import (
	"os"
	"path/filepath"
)

// ProjectKind is the build tool a source file belongs to.
type ProjectKind int

const (
	// KindBare is a file outside any project, loaded with plain ghci.
	KindBare ProjectKind = iota
	// KindStack is a stack project (stack.yaml).
	KindStack
	// KindCabal is a cabal project (cabal.project or a .cabal file).
	KindCabal
)

// String returns the build tool name.
func (k ProjectKind) String() string {
	switch k {
	case KindStack:
		return "stack"
	case KindCabal:
		return "cabal"
	default:
		return "bare"
	}
}

// Project is the build context of a source file.
type Project struct {
	Kind ProjectKind
	// Root is the project directory, or the file's directory for KindBare.
	Root string
}

// FindProject walks up from file to the nearest directory that looks like a
// stack or cabal project. Within one directory stack.yaml wins over cabal
// files. A file outside any project is KindBare, rooted at its own directory.
func FindProject(file string) Project {
	abs, err := filepath.Abs(file)
	if err != nil {
		abs = file
	}

	start := filepath.Dir(abs)

	for dir := start; ; {
		if kind, ok := projectKindOf(dir); ok {
			return Project{Kind: kind, Root: dir}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Project{Kind: KindBare, Root: start}
		}

		dir = parent
	}
}

func projectKindOf(dir string) (ProjectKind, bool) {
	if exists(filepath.Join(dir, "stack.yaml")) {
		return KindStack, true
	}

	if exists(filepath.Join(dir, "cabal.project")) {
		return KindCabal, true
	}

	if matches, _ := filepath.Glob(filepath.Join(dir, "*.cabal")); len(matches) > 0 {
		return KindCabal, true
	}

	// hpack without stack.yaml is still built with stack by convention.
	if exists(filepath.Join(dir, "package.yaml")) {
		return KindStack, true
	}

	return KindBare, false
}

func exists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}

// DefaultCommand returns the GHCi command line for the project.
func (p Project) DefaultCommand() []string {
	switch p.Kind {
	case KindStack:
		return []string{"stack", "repl", "--no-load"}
	case KindCabal:
		return []string{"cabal", "repl"}
	default:
		return []string{"ghci"}
	}
}
