package cpp

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/raymyers/ralph-translate-c/pkg/cabs"
)

func preprocess(t *testing.T, opts PreprocessorOptions, src string) (string, *Preprocessor) {
	t.Helper()
	pp := NewPreprocessor(opts)
	out, err := pp.PreprocessString(src, "test.c")
	require.NoError(t, err)
	return out, pp
}

// PreprocessSpec is one case of cpp.yaml. Output lists the non-empty
// output lines with runs of white space collapsed.
type PreprocessSpec struct {
	Name    string   `yaml:"name"`
	Input   string   `yaml:"input"`
	Defines []string `yaml:"defines"`
	Output  []string `yaml:"output"`
	Error   string   `yaml:"error"`
}

func TestPreprocessYAML(t *testing.T) {
	data, err := os.ReadFile("../../testdata/cpp.yaml")
	require.NoError(t, err)
	var file struct {
		Tests []PreprocessSpec `yaml:"tests"`
	}
	require.NoError(t, yaml.Unmarshal(data, &file))
	require.NotEmpty(t, file.Tests)

	for _, tc := range file.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			pp := NewPreprocessor(PreprocessorOptions{Defines: tc.Defines})
			out, err := pp.PreprocessString(tc.Input, "test.c")
			if tc.Error != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.Error)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.Output, codeLines(out))
		})
	}
}

func codeLines(out string) []string {
	var lines []string
	for _, l := range strings.Split(out, "\n") {
		if f := strings.Fields(l); len(f) > 0 {
			lines = append(lines, strings.Join(f, " "))
		}
	}
	return lines
}

func TestPreprocessKeepsLines(t *testing.T) {
	src := "#define VALUE 123\n" +
		"#define ADD(a, b) \\\n" +
		"  ((a) + (b))\n" +
		"/* one\n   two */\n" +
		"int x = ADD(VALUE, 1);\n"
	out, _ := preprocess(t, PreprocessorOptions{}, src)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "int x = ((123) + (1));", strings.TrimSpace(lines[5]))
}

func TestPreprocessConditionals(t *testing.T) {
	src := `#define FEATURE 2
#if FEATURE > 1 && defined(FEATURE)
int enabled;
#elif 1
int elif_branch;
#else
int disabled;
#endif
#ifdef __x86_64__
int x86;
#endif
`
	out, _ := preprocess(t, PreprocessorOptions{Defines: []string{"__x86_64__"}}, src)
	assert.Contains(t, out, "int enabled;")
	assert.NotContains(t, out, "elif_branch")
	assert.NotContains(t, out, "disabled")
	assert.Contains(t, out, "int x86;")
}

func TestPreprocessErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"error directive", "#error stop here\n", "#error stop here"},
		{"unbalanced", "#if 1\nint x;\n", ""},
		{"missing include", "#include \"nope.h\"\n", "include file not found: nope.h"},
		{"defined as name", "#define defined 1\n", "cannot be used as a macro name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pp := NewPreprocessor(PreprocessorOptions{})
			_, err := pp.PreprocessString(tt.src, "test.c")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPreprocessBuiltinHeaders(t *testing.T) {
	src := `#include <stdint.h>
#include <stdbool.h>
#include <stddef.h>
#include <limits.h>
bool b = true;
int m = INT_MAX;
uint8_t u = UINT8_MAX;
void *p = NULL;
`
	opts := PreprocessorOptions{Defines: []string{"__INT_MAX__=2147483647"}}
	out, _ := preprocess(t, opts, src)
	assert.Contains(t, out, "_Bool b = 1;")
	assert.Contains(t, out, "int m = 2147483647;")
	assert.Contains(t, out, "uint8_t u = 255;")
	assert.Contains(t, out, "void *p = ((void*)0);")
	assert.Len(t, strings.Split(out, "\n"), 9)
}

func TestPreprocessAssertMacro(t *testing.T) {
	out, _ := preprocess(t, PreprocessorOptions{}, "#include <assert.h>\nvoid f(int x) { assert(x > 1); }\n")
	assert.Contains(t, out, `__assert_fail("x > 1", "test.c", 2, __func__)`)

	out, _ = preprocess(t, PreprocessorOptions{Defines: []string{"NDEBUG"}}, "#include <assert.h>\nvoid f(int x) { assert(x > 1); }\n")
	assert.NotContains(t, out, "__assert_fail(\"")
}

func TestPreprocessRecordsMainFileDefines(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "inc.h"), "#define FROM_HEADER 1\n")
	src := `#include "inc.h"
#define A 1
#define B(x, y) ((x) * (y))
#define LOG(fmt, ...) printf(fmt, __VA_ARGS__)
#define NAMED(args...) g(args)
#define GONE 0
#undef GONE
#define A 2
`
	pp := NewPreprocessor(PreprocessorOptions{})
	_, err := pp.PreprocessString(src, filepath.Join(dir, "main.c"))
	require.NoError(t, err)

	want := []cabs.MacroDef{
		{Name: "B", Params: []string{"x", "y"}, FuncLike: true, Body: "((x) * (y))", Pos: cabs.Pos{File: "main.c", Line: 3}},
		{Name: "LOG", Params: []string{"fmt", "__VA_ARGS__"}, FuncLike: true, Variadic: true,
			Body: "printf(fmt, __VA_ARGS__)", Pos: cabs.Pos{File: "main.c", Line: 4}},
		{Name: "NAMED", Params: []string{"args"}, FuncLike: true, Variadic: true, Body: "g(args)", Pos: cabs.Pos{File: "main.c", Line: 5}},
		{Name: "A", Body: "2", Pos: cabs.Pos{File: "main.c", Line: 8}},
	}
	assert.Equal(t, want, pp.Defines())
	assert.True(t, pp.Macros().IsDefined("FROM_HEADER"))
}

func TestPreprocessIncludeGuardAndPragmaOnce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "guard.h"), "#ifndef GUARD_H\n#define GUARD_H\nint guarded;\n#endif\n")
	writeFile(t, filepath.Join(dir, "once.h"), "#pragma once\nint once;\n")
	src := "#include \"guard.h\"\n#include \"guard.h\"\n#include \"once.h\"\n#include \"once.h\"\n"
	pp := NewPreprocessor(PreprocessorOptions{})
	out, err := pp.PreprocessString(src, filepath.Join(dir, "main.c"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "int guarded;"))
	assert.Equal(t, 1, strings.Count(out, "int once;"))
}

func TestPreprocessCircularInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.h"), "#include \"b.h\"\n")
	writeFile(t, filepath.Join(dir, "b.h"), "#include \"a.h\"\n")
	pp := NewPreprocessor(PreprocessorOptions{})
	_, err := pp.PreprocessString("#include \"a.h\"\n", filepath.Join(dir, "main.c"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular include")
}

func TestPreprocessCallAcrossLinesKeepsLines(t *testing.T) {
	src := "#define ADD(a, b) ((a) + (b))\nint s = ADD(1,\n  2);\nint t;\n"
	out, _ := preprocess(t, PreprocessorOptions{}, src)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "int s = ((1) + (2));", lines[1])
	assert.Empty(t, lines[2])
	assert.Equal(t, "int t;", lines[3])
}

func TestPreprocessIncludeNext(t *testing.T) {
	user, sys := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(user, "wrap.h"), "#include_next <wrap.h>\nint user_wrap;\n")
	writeFile(t, filepath.Join(sys, "wrap.h"), "int sys_wrap;\n")
	opts := PreprocessorOptions{IncludePaths: []string{user}, SystemPaths: []string{sys}}
	out, _ := preprocess(t, opts, "#include <wrap.h>\nint main_file;\n")
	assert.Contains(t, out, "int sys_wrap;")
	assert.Contains(t, out, "int user_wrap;")
	assert.Equal(t, "int main_file;", strings.Split(out, "\n")[1])
}

func TestPreprocessFeatureQueries(t *testing.T) {
	opts := PreprocessorOptions{
		HasBuiltin:   func(name string) bool { return name == "__builtin_expect" },
		HasAttribute: func(name string) bool { return name == "packed" },
	}
	src := `#if __has_builtin(__builtin_expect) && !__has_builtin(__builtin_nope)
int builtin;
#endif
#if __has_attribute(packed) && __has_c_attribute(gnu::packed) && !__has_feature(modules)
int attribute;
#endif
`
	out, _ := preprocess(t, opts, src)
	assert.Contains(t, out, "int builtin;")
	assert.Contains(t, out, "int attribute;")

	out, _ = preprocess(t, PreprocessorOptions{}, src)
	assert.NotContains(t, out, "int builtin;")
	assert.NotContains(t, out, "int attribute;")
}

func TestPreprocessLogsWarnings(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	src := "#define A 1\n#define A 2\n#define A  2\n#warning careful\n"
	_, err := NewPreprocessor(PreprocessorOptions{Logger: logger}).PreprocessString(src, "test.c")
	require.NoError(t, err)

	require.Len(t, hook.Entries, 2)
	assert.Equal(t, "macro redefined", hook.Entries[0].Message)
	assert.Equal(t, "A", hook.Entries[0].Data["macro"])
	assert.Equal(t, "test.c:2:1", hook.Entries[0].Data["pos"])
	assert.Equal(t, "careful", hook.Entries[1].Message)
}

func TestPreprocessUndefines(t *testing.T) {
	src := "#ifdef GONE\nint gone;\n#endif\n#ifdef KEPT\nint kept;\n#endif\n"
	out, _ := preprocess(t, PreprocessorOptions{Defines: []string{"GONE", "KEPT=1"}, Undefines: []string{"GONE"}}, src)
	assert.NotContains(t, out, "int gone;")
	assert.Contains(t, out, "int kept;")
}
