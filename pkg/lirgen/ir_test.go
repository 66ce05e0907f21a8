package lirgen

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/raymyers/ralph-translate-c/pkg/ctarget"
	"github.com/raymyers/ralph-translate-c/pkg/lir"
	"github.com/raymyers/ralph-translate-c/pkg/preproc"
)

// fnBody lowers src and returns the body of the function called name.
func fnBody(t *testing.T, src, name string) *lir.Block {
	t.Helper()
	tgt := ctarget.MustParse("x86_64-linux-gnu")
	prog, err := preproc.Unit("test.c", src, tgt, nil)
	require.NoError(t, err)
	f, _, err := TranslateUnit(prog, Options{Target: tgt})
	require.NoError(t, err)
	for _, d := range f.Decls {
		if fn, ok := d.(lir.FnDecl); ok && fn.Name == name {
			require.NotNil(t, fn.Body)
			return fn.Body
		}
	}
	t.Fatalf("no function %s in output", name)
	return nil
}

func TestEquivalentSpellingsLowerAlike(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{
			name: "anonymous member promotion",
			a: `struct S { int k; struct { int a; }; } s;
int f(void) { return s.a; }`,
			b: `struct S { int k; struct { int a; } unnamed_0; } s;
int f(void) { return s.unnamed_0.a; }`,
		},
		{
			name: "commuted subscript",
			a: `int arr[4];
int f(int i) { return arr[i]; }`,
			b: `int arr[4];
int f(int i) { return i[arr]; }`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := fnBody(t, tc.a, "f")
			b := fnBody(t, tc.b, "f")
			if diff := cmp.Diff(a, b); diff != "" {
				t.Errorf("IR mismatch (-a +b):\n%s", diff)
			}
		})
	}
}
