package diag

import (
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raymyers/ralph-translate-c/pkg/cabs"
)

func TestDiagnosticError(t *testing.T) {
	d := New(UnsupportedConstruct, cabs.Pos{File: "a.c", Line: 3, Col: 7}, "cannot translate %s", "goto")
	assert.Equal(t, "a.c:3:7: cannot translate goto", d.Error())

	d = New(IncompleteType, cabs.Pos{Line: 2}, "incomplete")
	assert.Equal(t, "<input>:2: incomplete", d.Error())

	assert.Equal(t, "plain", Errorf("plain").Error())
}

func TestAtKeepsInnermostPosition(t *testing.T) {
	inner := New(AmbiguousConversion, cabs.Pos{Line: 9}, "x")
	outer := inner.At(cabs.Pos{Line: 1}, "f")
	assert.Equal(t, 9, outer.Pos.Line)
	assert.Equal(t, "f", outer.Decl)
	assert.Equal(t, "", inner.Decl, "At must not modify the receiver")

	unplaced := Errorf("y").At(cabs.Pos{Line: 4}, "g")
	assert.Equal(t, 4, unplaced.Pos.Line)
}

func TestAsRecoversWrappedDiagnostic(t *testing.T) {
	d := New(IncompleteType, cabs.Pos{}, "opaque")
	err := fmt.Errorf("lowering f: %w", d)
	assert.Same(t, d, As(err))

	other := As(fmt.Errorf("boom"))
	assert.Equal(t, UnsupportedConstruct, other.Kind)
	assert.Equal(t, "boom", other.Msg)
}

func TestListErrOnlyFatal(t *testing.T) {
	var l List
	l.Add(Errorf("soft"))
	require.NoError(t, l.Err())

	l.Add(New(MalformedAST, cabs.Pos{}, "untyped expression"))
	err := l.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "untyped expression")
	assert.Equal(t, 1, l.Count(MalformedAST))
	assert.Equal(t, []string{"warning: soft", "error: untyped expression"}, l.Strings())
}

func TestListLog(t *testing.T) {
	logger, hook := test.NewNullLogger()
	l := List{
		{Kind: TargetUnsupportedAttribute, Decl: "arr", Msg: "linksection"},
		{Kind: MalformedAST, Msg: "bad"},
	}
	l.Log(logger)
	require.Len(t, hook.Entries, 2)
	assert.Equal(t, logrus.WarnLevel, hook.Entries[0].Level)
	assert.Equal(t, "arr", hook.Entries[0].Data["decl"])
	assert.Equal(t, "unsupported attribute", hook.Entries[0].Data["kind"])
	assert.Equal(t, logrus.ErrorLevel, hook.Entries[1].Level)
}
