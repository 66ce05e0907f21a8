// Package fixture loads and checks translation fixtures. A fixture is a C
// file ending in a comment block that names the fixture kind, optional
// key=value settings and, for translate fixtures, the expected output:
//
//	int x = 1;
//
//	// translate
//	// target=x86_64-linux
//	//
//	// pub export var x: c_int = 1;
//
// Expected text is split into chunks at blank lines. Each chunk must occur
// in the translated output after whitespace normalization. A run fixture
// passes when the translated program exits with status zero.
package fixture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// ErrNoHeader is returned for files without a trailing fixture block.
var ErrNoHeader = errors.New("missing '// translate' or '// run' block")

// Kind says what a fixture checks
type Kind int

const (
	Translate Kind = iota
	Run
)

func (k Kind) String() string {
	if k == Run {
		return "run"
	}
	return "translate"
}

// Fixture is one parsed case
type Fixture struct {
	Name       string
	Path       string
	Kind       Kind
	Source     string
	Target     string            // triple, empty for the default target
	ExpectFail bool              // failures are reported but tolerated
	Settings   map[string]string // every key=value line, including the above
	Chunks     []string          // expected output chunks, translate only
}

// Skips returns the features named by skip_<feature>=true settings.
func (f *Fixture) Skips() []string {
	var out []string
	for k, v := range f.Settings {
		if feature, ok := strings.CutPrefix(k, "skip_"); ok && v == "true" {
			out = append(out, feature)
		}
	}
	sort.Strings(out)
	return out
}

// Parse splits a fixture file into its source and its trailing block.
func Parse(name string, data []byte) (*Fixture, error) {
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	start := -1
	var kind Kind
scan:
	for i := len(lines) - 1; i >= 0; i-- {
		switch strings.TrimSpace(lines[i]) {
		case "// translate":
			start, kind = i, Translate
			break scan
		case "// run":
			start, kind = i, Run
			break scan
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNoHeader)
	}
	f := &Fixture{
		Name:     name,
		Kind:     kind,
		Source:   strings.TrimRight(strings.Join(lines[:start], "\n"), "\n") + "\n",
		Settings: make(map[string]string),
	}

	var body []string
	inHeader := true
	for _, raw := range lines[start+1:] {
		line := strings.TrimRight(raw, " \t")
		if line == "" {
			continue
		}
		text, ok := strings.CutPrefix(line, "//")
		if !ok {
			return nil, fmt.Errorf("%s: line %q in the fixture block is not a comment", name, line)
		}
		text = strings.TrimPrefix(text, " ")
		if inHeader {
			if strings.TrimSpace(text) == "" {
				inHeader = false
				continue
			}
			if k, v, ok := strings.Cut(text, "="); ok && !strings.ContainsAny(k, " \t") {
				f.Settings[k] = v
				continue
			}
			inHeader = false
		}
		body = append(body, text)
	}
	f.Target = f.Settings["target"]
	f.ExpectFail = f.Settings["expect"] == "fail"
	if kind == Translate {
		f.Chunks = chunks(body)
	}
	return f, nil
}

// chunks splits expected lines at blank lines.
func chunks(lines []string) []string {
	var out []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, "\n"))
			cur = nil
		}
	}
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			flush()
			continue
		}
		cur = append(cur, l)
	}
	flush()
	return out
}

// ParseFile reads and parses one fixture. The fixture name is the file
// name without its extension.
func ParseFile(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	f, err := Parse(name, data)
	if err != nil {
		return nil, err
	}
	f.Path = path
	return f, nil
}

// Load parses every .c file below dir whose name matches pattern, in
// path order. An empty pattern selects everything. Names are matched as
// "<kind>/<name>", so "run/*" selects run fixtures.
func Load(dir, pattern string) ([]*Fixture, error) {
	var match glob.Glob
	if pattern != "" {
		var err error
		if match, err = glob.Compile(pattern, '/'); err != nil {
			return nil, fmt.Errorf("bad fixture pattern %q: %w", pattern, err)
		}
	}
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".c" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var out []*Fixture
	for _, p := range paths {
		f, err := ParseFile(p)
		if err != nil {
			return nil, err
		}
		if match != nil && !match.Match(f.Kind.String()+"/"+f.Name) {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// Normalize collapses every run of whitespace to one space and trims the
// ends.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Missing returns the expected chunks that do not occur in output.
func (f *Fixture) Missing(output string) []string {
	norm := Normalize(output)
	var out []string
	for _, c := range f.Chunks {
		if !strings.Contains(norm, Normalize(c)) {
			out = append(out, c)
		}
	}
	return out
}
