package lirgen

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/raymyers/ralph-translate-c/pkg/ctarget"
	"github.com/raymyers/ralph-translate-c/pkg/diag"
	"github.com/raymyers/ralph-translate-c/pkg/lir"
	"github.com/raymyers/ralph-translate-c/pkg/preproc"
)

// lowerCase is one case of lower.yaml
type lowerCase struct {
	Name     string   `yaml:"name"`
	Target   string   `yaml:"target"`
	Input    string   `yaml:"input"`
	Contains []string `yaml:"contains"`
	Absent   []string `yaml:"absent"`
	Diags    []string `yaml:"diags"`
}

type lowerFile struct {
	Tests []lowerCase `yaml:"tests"`
}

// lower preprocesses, parses and lowers src, returning the printed Zig.
func lower(t *testing.T, triple, src string) (string, diag.List) {
	t.Helper()
	if triple == "" {
		triple = "x86_64-linux-gnu"
	}
	tgt := ctarget.MustParse(triple)
	prog, err := preproc.Unit("test.c", src, tgt, nil)
	require.NoError(t, err)
	f, diags, err := TranslateUnit(prog, Options{Target: tgt})
	require.NoError(t, err)
	var b strings.Builder
	lir.NewPrinter(&b).PrintFile(f)
	return b.String(), diags
}

func TestLowerYAML(t *testing.T) {
	data, err := os.ReadFile("../../testdata/lower.yaml")
	require.NoError(t, err)
	var file lowerFile
	require.NoError(t, yaml.Unmarshal(data, &file))
	require.NotEmpty(t, file.Tests)

	for _, tc := range file.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			out, diags := lower(t, tc.Target, tc.Input)
			for _, want := range tc.Contains {
				assert.Contains(t, out, want)
			}
			for _, unwanted := range tc.Absent {
				assert.NotContains(t, out, unwanted)
			}
			var msgs []string
			for _, d := range diags {
				msgs = append(msgs, d.Msg)
			}
			joined := strings.Join(msgs, "\n")
			for _, want := range tc.Diags {
				assert.Contains(t, joined, want)
			}
			if len(tc.Diags) == 0 {
				assert.Empty(t, msgs)
			}
		})
	}
}

func TestPrelude(t *testing.T) {
	out, _ := lower(t, "", "")
	assert.True(t, strings.HasPrefix(out, "const __root = @This();\n"))
	assert.Contains(t, out, "pub const __builtins = @import(\"std\").zig.c_builtins;\n")
	assert.Contains(t, out, "pub const __helpers = @import(\"std\").zig.c_translation;\n")
}

func TestMacroDiagnosticsCarryPosition(t *testing.T) {
	_, diags := lower(t, "", "int x;\n#define PASTE(a, b) a ## b\n")
	require.Len(t, diags, 1)
	d := diags[0]
	assert.Equal(t, diag.UnsupportedConstruct, d.Kind)
	assert.Equal(t, "PASTE", d.Decl)
	assert.Equal(t, 2, d.Pos.Line)
}
