package cpp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMacroTablePredefined(t *testing.T) {
	tbl := NewMacroTable()
	for _, name := range []string{"__FILE__", "__LINE__", "__COUNTER__", "__STDC__", "__STDC_VERSION__", "__STDC_HOSTED__"} {
		assert.True(t, tbl.IsDefined(name), name)
	}
	assert.Equal(t, "201710L", Join(tbl.Lookup("__STDC_VERSION__").Body))
	assert.Nil(t, tbl.Lookup("__GNUC__"))
}

func TestMacroTableDefineCmdline(t *testing.T) {
	tbl := NewMacroTable()
	tbl.DefineCmdline("FLAG", "<command line>")
	tbl.DefineCmdline("F(a, b)=a+b", "<command line>")
	tbl.DefineCmdline("EMPTY=", "<command line>")

	assert.Equal(t, "1", Join(tbl.Lookup("FLAG").Body))
	f := tbl.Lookup("F")
	require.NotNil(t, f)
	assert.True(t, f.FuncLike)
	assert.Equal(t, []string{"a", "b"}, f.Params)
	assert.Equal(t, "a+b", Join(f.Body))
	assert.Empty(t, tbl.Lookup("EMPTY").Body)
}

func TestMacroTableDefineErrors(t *testing.T) {
	tbl := NewMacroTable()
	assert.EqualError(t, tbl.Define(&Macro{Name: "defined"}), `"defined" cannot be used as a macro name`)
	assert.EqualError(t, tbl.Define(&Macro{Name: "__VA_OPT__"}), `"__VA_OPT__" cannot be used as a macro name`)
	assert.EqualError(t, tbl.Define(&Macro{Name: "__FILE__"}), "redefining builtin macro __FILE__")
	assert.EqualError(t, tbl.Undefine("__LINE__"), "undefining builtin macro __LINE__")
	assert.NoError(t, tbl.Undefine("NEVER_DEFINED"))
}

func TestMacroTableRedefined(t *testing.T) {
	tbl := NewMacroTable()
	var redefined []string
	tbl.Redefined = func(old, m *Macro) {
		redefined = append(redefined, Join(old.Body)+" -> "+Join(m.Body))
	}
	tbl.DefineCmdline("A=1 + 2", "<test>")
	tbl.DefineCmdline("A=1 +  2", "<test>")
	tbl.DefineCmdline("A=3", "<test>")
	tbl.DefineCmdline("A(x)=3", "<test>")
	assert.Equal(t, []string{"1 +  2 -> 3", "3 -> 3"}, redefined)
}

func TestExpandString(t *testing.T) {
	tbl := NewMacroTable()
	tbl.DefineCmdline("TWO=2", "<test>")
	tbl.DefineCmdline("DOUBLE(x)=((x) * TWO)", "<test>")
	x := NewExpander(tbl)

	got, err := x.ExpandString("DOUBLE(TWO) + __STDC_VERSION__ + __LINE__")
	require.NoError(t, err)
	assert.Equal(t, "((2) * 2) + 201710L + 1", got)

	_, err = x.ExpandString("DOUBLE(1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errIncompleteCall)
}

func TestExpandRecordsHidesets(t *testing.T) {
	tbl := NewMacroTable()
	tbl.DefineCmdline("SELF=SELF + 1", "<test>")
	out, err := NewExpander(tbl).Expand(lexFragment("SELF", Pos{File: "t.c", Line: 4}))
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, "SELF", out[0].Text)
	assert.Equal(t, hideset{"SELF"}, out[0].hide)
	assert.Equal(t, Pos{File: "t.c", Line: 4}, out[0].Pos)
}
