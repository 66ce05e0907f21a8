package lirinterp

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raymyers/ralph-translate-c/pkg/ctarget"
	"github.com/raymyers/ralph-translate-c/pkg/lir"
	"github.com/raymyers/ralph-translate-c/pkg/lirgen"
	"github.com/raymyers/ralph-translate-c/pkg/preproc"
)

// runC translates src and runs its main function.
func runC(t *testing.T, src string) (int, string, error) {
	t.Helper()
	tgt := ctarget.MustParse("x86_64-linux-gnu")
	prog, err := preproc.Unit("test.c", src, tgt, nil)
	require.NoError(t, err)
	f, _, err := lirgen.TranslateUnit(prog, lirgen.Options{Target: tgt})
	require.NoError(t, err)
	var out bytes.Buffer
	m, err := New(f, Options{Target: tgt, Stdout: &out, MaxSteps: 1_000_000})
	require.NoError(t, err)
	code, err := m.Run(context.Background(), "main", nil)
	return code, out.String(), err
}

func TestRunHandBuiltMain(t *testing.T) {
	f := &lir.File{Decls: []lir.Stmt{
		lir.FnDecl{
			Name:   "main",
			Pub:    true,
			Export: true,
			Return: lir.Named("c_int"),
			Body:   &lir.Block{Stmts: []lir.Stmt{lir.Return{X: lir.Int("7")}}},
		},
	}}
	m, err := New(f, Options{})
	require.NoError(t, err)
	code, err := m.Run(context.Background(), "main", nil)
	require.NoError(t, err)
	assert.Equal(t, 7, code)
}

func TestRunMissingEntry(t *testing.T) {
	m, err := New(&lir.File{}, Options{})
	require.NoError(t, err)
	_, err = m.Run(context.Background(), "main", nil)
	assert.Error(t, err)
}

func TestRunPrograms(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code int
	}{
		{
			name: "return constant",
			src:  "int main(void) { return 3; }",
			code: 3,
		},
		{
			name: "compound assignment in operand",
			src:  "int main(void) { int a = 0; a += (a += 1); return a; }",
			code: 2,
		},
		{
			name: "loop sum",
			src: `int main(void) {
	int s = 0;
	for (int i = 1; i <= 10; i++) s += i;
	return s;
}`,
			code: 55,
		},
		{
			name: "switch with fallthrough",
			src: `static int classify(int i) {
	int r = 0;
	switch (i) {
	case 0: r = 1; break;
	case 1: r = 2;
	case 2: r += 3; break;
	case 42: r = 43; break;
	default: r = 7;
	}
	return r;
}
int main(void) {
	if (classify(0) != 1) return 1;
	if (classify(1) != 5) return 2;
	if (classify(2) != 3) return 3;
	if (classify(42) != 43) return 4;
	if (classify(9) != 7) return 5;
	return 0;
}`,
			code: 0,
		},
		{
			name: "pointer difference",
			src: `int main(void) {
	int a[8];
	int *p = &a[1];
	int *q = &a[6];
	return (int)(q - p);
}`,
			code: 5,
		},
		{
			name: "static local keeps its value",
			src: `static int counter(void) {
	static int n = 0;
	n += 1;
	return n;
}
int main(void) {
	counter();
	counter();
	return counter();
}`,
			code: 3,
		},
		{
			name: "struct members",
			src: `struct point { int x; int y; };
int main(void) {
	struct point p;
	p.x = 4;
	p.y = 6;
	struct point *q = &p;
	return q->x * q->y;
}`,
			code: 24,
		},
		{
			name: "recursion",
			src: `static int fib(int n) { return n < 2 ? n : fib(n - 1) + fib(n - 2); }
int main(void) { return fib(10); }`,
			code: 55,
		},
		{
			name: "flexible array member through a typedef",
			src: `#include <stdlib.h>
typedef int MARKER[0];
typedef struct { int x; MARKER y; } Flexible;
int main(void) {
	Flexible *flex = malloc(sizeof(Flexible) + 10 * sizeof(int));
	for (int i = 0; i < 10; i++) flex->y[i] = i;
	int s = 0;
	for (int i = 0; i < 10; i++) s += flex->y[i];
	free(flex);
	return s;
}`,
			code: 45,
		},
		{
			name: "nan payloads",
			src: `#include <stdint.h>
union uf { uint32_t u; float f; };
int main(void) {
	union uf a = {.f = __builtin_nanf("")};
	if (a.u != 0x7FC00000) return 1;
	union uf b = {.f = __builtin_nanf("0x7FC0F000")};
	if (b.u != 0x7FC0F000) return 2;
	union uf c = {.f = __builtin_nanf("0xFFFFFFFF")};
	if (c.u != 0x7FFFFFFF) return 3;
	return 0;
}`,
			code: 0,
		},
		{
			name: "128-bit integers",
			src: `int main(void) {
	int arr[] = {40, 41, 42, 43};
	int *ptr = arr + 3;
	__int128 x = -1;
	unsigned __int128 y = 2;
	if (ptr[x] != 42) return 1;
	if (arr[y] != 42) return 2;
	if (x * 3 + 1 != -2) return 3;
	return 0;
}`,
			code: 0,
		},
		{
			name: "wide strings",
			src: `#include <wchar.h>
int main(void) {
	const wchar_t hello[] = L"hello";
	if (wcscmp(hello, L"hello") != 0) return 1;
	if (wcscmp(hello, L"help") >= 0) return 2;
	return (int)wcslen(L"abc");
}`,
			code: 3,
		},
		{
			name: "unsigned wraparound",
			src: `int main(void) {
	unsigned int u = 0;
	u -= 1;
	return u == 4294967295u ? 0 : 1;
}`,
			code: 0,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, _, err := runC(t, tc.src)
			require.NoError(t, err)
			assert.Equal(t, tc.code, code)
		})
	}
}

func TestRunPrintf(t *testing.T) {
	code, out, err := runC(t, `#include <stdio.h>
int main(void) {
	printf("%d %s|%5d|%-3x|\n", 42, "hi", 7, 255);
	puts("done");
	return 0;
}`)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "42 hi|    7|ff |\ndone\n", out)
}

func TestRunExit(t *testing.T) {
	code, _, err := runC(t, `#include <stdlib.h>
int main(void) {
	exit(9);
	return 0;
}`)
	require.NoError(t, err)
	assert.Equal(t, 9, code)
}

func TestRunAbort(t *testing.T) {
	_, _, err := runC(t, `#include <stdlib.h>
int main(void) {
	abort();
	return 0;
}`)
	assert.True(t, errors.Is(err, ErrAbort))
}

func TestRunSignedOverflowPanics(t *testing.T) {
	_, _, err := runC(t, `static int inc(int v) { return v + 1; }
int main(void) { return inc(2147483647); }`)
	var p *Panic
	require.True(t, errors.As(err, &p), "got %v", err)
	assert.Contains(t, p.Msg, "overflow")
}

func TestRunDivisionByZeroPanics(t *testing.T) {
	_, _, err := runC(t, `static int quo(int a, int b) { return a / b; }
int main(void) { return quo(1, 0); }`)
	var p *Panic
	require.True(t, errors.As(err, &p), "got %v", err)
	assert.Contains(t, p.Msg, "division by zero")
}

func TestRunStepLimit(t *testing.T) {
	tgt := ctarget.MustParse("x86_64-linux-gnu")
	prog, err := preproc.Unit("test.c", "int main(void) { for (;;) {} }", tgt, nil)
	require.NoError(t, err)
	f, _, err := lirgen.TranslateUnit(prog, lirgen.Options{Target: tgt})
	require.NoError(t, err)
	m, err := New(f, Options{Target: tgt, MaxSteps: 500})
	require.NoError(t, err)
	_, err = m.Run(context.Background(), "main", nil)
	assert.True(t, errors.Is(err, ErrStepLimit))
}

func TestRunCancelled(t *testing.T) {
	tgt := ctarget.MustParse("x86_64-linux-gnu")
	prog, err := preproc.Unit("test.c", "int main(void) { for (;;) {} }", tgt, nil)
	require.NoError(t, err)
	f, _, err := lirgen.TranslateUnit(prog, lirgen.Options{Target: tgt})
	require.NoError(t, err)
	m, err := New(f, Options{Target: tgt})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Run(ctx, "main", nil)
	assert.True(t, errors.Is(err, context.Canceled))
}
