package packages

import (
	"sort"
	"strconv"
	"strings"
)

// Set is a deduplicated collection of Python package names. Insertion order
// carries no meaning; Sorted gives a deterministic view for statement
// construction and logging.
type Set struct {
	names map[string]struct{}
}

// NewSet creates a Set seeded with the given names.
func NewSet(names ...string) *Set {
	s := &Set{names: make(map[string]struct{})}
	s.Union(names)
	return s
}

// Add inserts a single package name. Empty names are ignored.
func (s *Set) Add(name string) {
	if name == "" {
		return
	}
	s.names[name] = struct{}{}
}

// Union inserts all given names.
func (s *Set) Union(names []string) {
	for _, name := range names {
		s.Add(name)
	}
}

// Len returns the number of distinct packages.
func (s *Set) Len() int {
	return len(s.names)
}

// Sorted returns the package names in lexical order.
func (s *Set) Sorted() []string {
	out := make([]string, 0, len(s.names))
	for name := range s.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// InstallStatement builds the Python snippet that pip-installs the given
// packages inside the session interpreter. The install runs in the same
// session as the model code so the packages are importable by it.
func InstallStatement(pkgs []string) string {
	quoted := make([]string, len(pkgs))
	for i, pkg := range pkgs {
		quoted[i] = strconv.Quote(pkg)
	}
	return "import subprocess, sys\n" +
		"subprocess.check_call([sys.executable, '-m', 'pip', 'install', " +
		strings.Join(quoted, ", ") + ", '-q'])"
}
