package cpp

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestIncludeResolverSearchOrder(t *testing.T) {
	cur, user, sys := t.TempDir(), t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(cur, "a.h"), "// cur")
	writeFile(t, filepath.Join(user, "a.h"), "// user")
	writeFile(t, filepath.Join(user, "sub", "b.h"), "// sub")
	writeFile(t, filepath.Join(sys, "stdint.h"), "// sys")

	r := NewIncludeResolver([]string{user}, []string{sys})
	from := filepath.Join(cur, "main.c")

	got, err := r.Resolve("a.h", false, from)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cur, "a.h"), got)

	got, err = r.Resolve("a.h", true, from)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(user, "a.h"), got)

	got, err = r.Resolve("sub/b.h", true, from)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(user, "sub", "b.h"), got)

	// a system directory shadows the builtin header
	got, err = r.Resolve("stdint.h", true, from)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(sys, "stdint.h"), got)
}

func TestIncludeResolverNext(t *testing.T) {
	user, sys := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(user, "wrap.h"), "// user")
	writeFile(t, filepath.Join(sys, "wrap.h"), "// sys")

	r := NewIncludeResolver([]string{user}, []string{sys})
	first, err := r.Resolve("wrap.h", true, "main.c")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(user, "wrap.h"), first)

	next, err := r.ResolveNext("wrap.h", first)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(sys, "wrap.h"), next)

	_, err = r.ResolveNext("wrap.h", next)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "wrap.h", nf.Name)
}

func TestIncludeResolverBuiltinHeaders(t *testing.T) {
	r := NewIncludeResolver(nil, nil)
	for _, name := range []string{"assert.h", "limits.h", "math.h", "stdbool.h", "stddef.h",
		"stdint.h", "stdio.h", "stdlib.h", "string.h", "wchar.h"} {
		got, err := r.Resolve(name, true, "main.c")
		require.NoError(t, err, name)
		assert.Equal(t, builtinPrefix+name, got)
		content, err := r.ReadFile(got)
		require.NoError(t, err, name)
		assert.NotEmpty(t, content, name)
	}

	r.NoBuiltins = true
	_, err := r.Resolve("stdio.h", true, "main.c")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "stdio.h", nf.Name)
	assert.EqualError(t, err, "include file not found: stdio.h (angled)")
}

func TestIncludeResolverStack(t *testing.T) {
	r := NewIncludeResolver(nil, nil)
	require.NoError(t, r.Enter("/a.h"))
	require.NoError(t, r.Enter("/b.h"))
	assert.Equal(t, 2, r.Depth())

	err := r.Enter("/a.h")
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.EqualError(t, err, "circular include of a.h: a.h -> b.h -> a.h")

	r.Leave()
	r.Leave()
	assert.Equal(t, 0, r.Depth())

	assert.False(t, r.Once("/a.h"))
	r.MarkOnce("/a.h")
	assert.True(t, r.Once("/a.h"))
}

func TestIncludeResolverDepthLimit(t *testing.T) {
	r := NewIncludeResolver(nil, nil)
	for i := range MaxIncludeDepth {
		require.NoError(t, r.Enter(fmt.Sprintf("/h%d.h", i)))
	}
	err := r.Enter("/deep.h")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum")
}
