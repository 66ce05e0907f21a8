package cpp

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// builtinHeaders are the C library headers the translator provides; they
// declare what the runtime implements and nothing more.
//
//go:embed include/*.h
var builtinHeaders embed.FS

// builtinPrefix marks resolved paths that name a builtin header.
const builtinPrefix = "<builtin>/"

// MaxIncludeDepth bounds #include nesting.
const MaxIncludeDepth = 200

// IncludeResolver finds included files and tracks the files being read.
type IncludeResolver struct {
	// Dirs is the search path: the -I directories, then the -isystem ones.
	Dirs       []string
	NoBuiltins bool

	stack   []string
	once    map[string]bool
	foundIn map[string]int // resolved path -> index in Dirs
}

// NewIncludeResolver returns a resolver searching user, then system.
func NewIncludeResolver(user, system []string) *IncludeResolver {
	dirs := append(append([]string{}, user...), system...)
	return &IncludeResolver{Dirs: dirs, once: make(map[string]bool), foundIn: make(map[string]int)}
}

// Resolve finds name as included from the file from. The quoted form
// first looks next to from; both forms then search Dirs and finally the
// builtin headers.
func (r *IncludeResolver) Resolve(name string, angled bool, from string) (string, error) {
	if filepath.IsAbs(name) {
		if exists(name) {
			return filepath.Clean(name), nil
		}
		return "", &NotFoundError{Name: name, Angled: angled}
	}
	if !angled && from != "" && !strings.HasPrefix(from, builtinPrefix) {
		if p := filepath.Join(filepath.Dir(from), name); exists(p) {
			return canonical(p), nil
		}
	}
	return r.search(name, angled, 0)
}

// ResolveNext implements #include_next: the search resumes after the
// directory from was found in.
func (r *IncludeResolver) ResolveNext(name string, from string) (string, error) {
	start := 0
	if i, ok := r.foundIn[canonical(from)]; ok {
		start = i + 1
	}
	if strings.HasPrefix(from, builtinPrefix) {
		return "", &NotFoundError{Name: name, Angled: true}
	}
	return r.search(name, true, start)
}

func (r *IncludeResolver) search(name string, angled bool, start int) (string, error) {
	for i := start; i < len(r.Dirs); i++ {
		if p := filepath.Join(r.Dirs[i], name); exists(p) {
			p = canonical(p)
			r.foundIn[p] = i
			return p, nil
		}
	}
	if !r.NoBuiltins {
		if _, err := fs.Stat(builtinHeaders, path.Join("include", name)); err == nil {
			return builtinPrefix + name, nil
		}
	}
	return "", &NotFoundError{Name: name, Angled: angled}
}

// ReadFile returns the contents of a resolved path.
func (r *IncludeResolver) ReadFile(resolved string) ([]byte, error) {
	if name, ok := strings.CutPrefix(resolved, builtinPrefix); ok {
		return builtinHeaders.ReadFile(path.Join("include", name))
	}
	return os.ReadFile(resolved)
}

// Enter pushes a file onto the stack of files being read. Entering a
// file that is already being read is an error.
func (r *IncludeResolver) Enter(file string) error {
	p := canonical(file)
	for _, f := range r.stack {
		if f == p {
			return &CycleError{Path: p, Stack: append([]string{}, r.stack...)}
		}
	}
	if len(r.stack) >= MaxIncludeDepth {
		return fmt.Errorf("#include nested depth %d exceeds maximum of %d", len(r.stack), MaxIncludeDepth)
	}
	r.stack = append(r.stack, p)
	return nil
}

// Leave pops the innermost file.
func (r *IncludeResolver) Leave() {
	if len(r.stack) > 0 {
		r.stack = r.stack[:len(r.stack)-1]
	}
}

// Depth is the number of files being read; 1 while in the main file.
func (r *IncludeResolver) Depth() int {
	return len(r.stack)
}

// MarkOnce records a #pragma once in file.
func (r *IncludeResolver) MarkOnce(file string) {
	r.once[canonical(file)] = true
}

// Once reports whether file had #pragma once.
func (r *IncludeResolver) Once(file string) bool {
	return r.once[canonical(file)]
}

func exists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

func canonical(p string) string {
	if strings.HasPrefix(p, builtinPrefix) {
		return p
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// NotFoundError is returned when no search directory holds a file.
type NotFoundError struct {
	Name   string
	Angled bool
}

func (e *NotFoundError) Error() string {
	if e.Angled {
		return fmt.Sprintf("include file not found: %s (angled)", e.Name)
	}
	return fmt.Sprintf("include file not found: %s (quoted)", e.Name)
}

// CycleError is returned when a file includes itself.
type CycleError struct {
	Path  string
	Stack []string
}

func (e *CycleError) Error() string {
	names := make([]string, len(e.Stack))
	for i, f := range e.Stack {
		names[i] = filepath.Base(f)
	}
	return fmt.Sprintf("circular include of %s: %s -> %s", filepath.Base(e.Path), strings.Join(names, " -> "), filepath.Base(e.Path))
}
