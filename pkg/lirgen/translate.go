// Package lirgen lowers a typed C translation unit into the lir tree that
// the printer renders as Zig. Every implicit C conversion becomes an
// explicit node, control flow is restructured into Zig's loops and
// switches, and static storage is given explicit owners.
package lirgen

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/ctarget"
	"github.com/raymyers/ralph-translate-c/pkg/ctyper"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
	"github.com/raymyers/ralph-translate-c/pkg/diag"
	"github.com/raymyers/ralph-translate-c/pkg/lir"
)

// Options configures TranslateUnit
type Options struct {
	// Logger receives pass progress and demotions at debug level. Nil
	// discards.
	Logger logrus.FieldLogger
	// Target overrides the triple recorded in the program.
	Target *ctarget.Target
}

// translator holds the state of lowering one unit
type translator struct {
	log   logrus.FieldLogger
	model *ctypes.Model
	sema  *ctyper.Typer
	diags diag.List
	out   []lir.Stmt

	global *scope
	scope  *scope
	mangle int

	records  map[*ctypes.Record]*recordInfo
	enums    map[*ctypes.Enum]string
	unnamed  int
	members  map[*ctypes.Record][]memberAlias
	declared map[string]bool // file-scope functions already emitted
	demoted  map[string]bool // definitions lowered as extern prototypes
	bodies   map[string]bool // functions defined in the unit
	globals  map[string]int  // index of the emitted declaration of each file-scope object
	aliases  []alias

	memberSlots []memberSlot

	fn *function
}

// TranslateUnit lowers prog to a lir file. Declarations that cannot be
// lowered are demoted and reported in the returned list; the error is
// non-nil only when the input violates the front-end contract.
func TranslateUnit(prog *cabs.Program, opts Options) (*lir.File, diag.List, error) {
	tgt := opts.Target
	if tgt == nil {
		var err error
		if tgt, err = ctarget.Parse(prog.Target); err != nil {
			return nil, nil, fmt.Errorf("translate unit: %w", err)
		}
	}
	t := newTranslator(tgt, opts.Logger)
	t.log.WithField("target", tgt.Triple).Debug("lowering unit")

	t.prelude()
	t.collectGlobals(prog)
	t.collectDefinitions(prog.Definitions)
	t.nameRecords(prog.Definitions)
	t.collectMembers(prog.Definitions)
	t.log.WithField("records", len(t.records)).Debug("types registered")

	for i, d := range prog.Definitions {
		t.topLevel(i, d)
	}
	t.flushRecords()
	t.placeMembers()
	t.log.WithField("decls", len(t.out)).Debug("declarations lowered")

	t.lowerMacros(prog.Macros)
	t.emitAliases()
	return &lir.File{Decls: t.out}, t.diags, t.diags.Err()
}

func newTranslator(tgt *ctarget.Target, logger logrus.FieldLogger) *translator {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	model := ctypes.NewModel(tgt)
	t := &translator{
		log:      logger,
		model:    model,
		sema:     ctyper.New(model),
		records:  make(map[*ctypes.Record]*recordInfo),
		enums:    make(map[*ctypes.Enum]string),
		members:  make(map[*ctypes.Record][]memberAlias),
		declared: make(map[string]bool),
		demoted:  make(map[string]bool),
		bodies:   make(map[string]bool),
		globals:  make(map[string]int),
	}
	t.global = newScope(nil)
	t.scope = t.global
	return t
}

// prelude emits the declarations every translated file starts with.
func (t *translator) prelude() {
	t.emit(lir.VarDecl{Const: true, Name: "__root", Value: lir.Builtin{Name: "This"}})
	t.emit(lir.VarDecl{Pub: true, Const: true, Name: "__builtins", Value: stdPath("zig", "c_builtins")})
	t.emit(lir.VarDecl{Pub: true, Const: true, Name: "__helpers", Value: stdPath("zig", "c_translation")})
}

// stdPath returns @import("std").a.b...
func stdPath(names ...string) lir.Expr {
	var x lir.Expr = lir.Builtin{Name: "import", Args: []lir.Expr{lir.StringLit{Value: "std"}}}
	for _, n := range names {
		x = lir.Member{X: x, Name: n}
	}
	return x
}

// helper returns __helpers.name
func helper(name string) lir.Expr {
	return lir.Member{X: lir.Id("__helpers"), Name: name}
}

func (t *translator) emit(s lir.Stmt) {
	t.out = append(t.out, s)
}

// report records a diagnostic that does not stop lowering.
func (t *translator) report(d *diag.Diagnostic) {
	t.diags.Add(d)
	t.log.WithFields(logrus.Fields{"kind": d.Kind.String(), "decl": d.Decl}).Debug(d.Msg)
}

// fail builds the diagnostic a lowering step returns when it cannot
// continue; the enclosing declaration demotes itself.
func fail(kind diag.Kind, format string, args ...any) error {
	return diag.New(kind, cabs.Pos{}, format, args...)
}

// unsupported is fail(UnsupportedConstruct, ...)
func unsupported(format string, args ...any) error {
	return fail(diag.UnsupportedConstruct, format, args...)
}

// malformed reports a front-end contract violation; it aborts the unit.
func malformed(format string, args ...any) error {
	return fail(diag.MalformedAST, format, args...)
}

// isMalformed reports whether err must abort rather than demote.
func isMalformed(err error) bool {
	var d *diag.Diagnostic
	return errors.As(err, &d) && d.Kind.Fatal()
}
