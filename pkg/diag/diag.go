// Package diag defines the diagnostics reported while lowering a
// translation unit.
package diag

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/raymyers/ralph-translate-c/pkg/cabs"
)

// Kind classifies a diagnostic
type Kind int

const (
	UnsupportedConstruct Kind = iota
	AmbiguousConversion
	IncompleteType
	TargetUnsupportedAttribute
	MalformedAST
)

func (k Kind) String() string {
	names := []string{"unsupported construct", "ambiguous conversion", "incomplete type",
		"unsupported attribute", "malformed AST"}
	if int(k) < len(names) {
		return names[k]
	}
	return "?"
}

// Fatal reports whether a diagnostic of this kind aborts the unit.
func (k Kind) Fatal() bool {
	return k == MalformedAST
}

// Diagnostic is one problem found while lowering. It is also an error, so
// lowering code can return it and the declaration boundary can recover it
// with errors.As.
type Diagnostic struct {
	Kind Kind
	Pos  cabs.Pos
	Decl string // enclosing declaration, empty at file scope
	Msg  string
}

// New creates a diagnostic.
func New(kind Kind, pos cabs.Pos, format string, args ...any) *Diagnostic {
	return &Diagnostic{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// Errorf creates an UnsupportedConstruct diagnostic without a position.
func Errorf(format string, args ...any) *Diagnostic {
	return New(UnsupportedConstruct, cabs.Pos{}, format, args...)
}

func (d *Diagnostic) Error() string {
	var b strings.Builder
	if loc := d.Location(); loc != "" {
		b.WriteString(loc)
		b.WriteString(": ")
	}
	b.WriteString(d.Msg)
	return b.String()
}

// Location renders the position as file:line:col, leaving out unknown
// parts.
func (d *Diagnostic) Location() string {
	if d.Pos.Line == 0 {
		return d.Pos.File
	}
	file := d.Pos.File
	if file == "" {
		file = "<input>"
	}
	if d.Pos.Col == 0 {
		return fmt.Sprintf("%s:%d", file, d.Pos.Line)
	}
	return fmt.Sprintf("%s:%d:%d", file, d.Pos.Line, d.Pos.Col)
}

// At returns a copy of d positioned at pos and attributed to decl, keeping
// whatever was already set.
func (d *Diagnostic) At(pos cabs.Pos, decl string) *Diagnostic {
	c := *d
	if c.Pos.Line == 0 {
		c.Pos = pos
	}
	if c.Decl == "" {
		c.Decl = decl
	}
	return &c
}

// As extracts a diagnostic from err. Other errors become
// UnsupportedConstruct diagnostics carrying the error text.
func As(err error) *Diagnostic {
	var d *Diagnostic
	if errors.As(err, &d) {
		return d
	}
	return &Diagnostic{Kind: UnsupportedConstruct, Msg: err.Error()}
}

// List collects the diagnostics of one unit in report order
type List []*Diagnostic

// Add appends d.
func (l *List) Add(d *Diagnostic) {
	*l = append(*l, d)
}

// Err joins the fatal diagnostics into one error, or returns nil.
func (l List) Err() error {
	var errs []error
	for _, d := range l {
		if d.Kind.Fatal() {
			errs = append(errs, d)
		}
	}
	return errors.Join(errs...)
}

// Count returns the number of diagnostics of the given kind.
func (l List) Count(kind Kind) int {
	n := 0
	for _, d := range l {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// Log writes every diagnostic to logger as a warning, or an error for the
// fatal ones.
func (l List) Log(logger logrus.FieldLogger) {
	for _, d := range l {
		entry := logger.WithFields(logrus.Fields{"kind": d.Kind.String()})
		if d.Decl != "" {
			entry = entry.WithField("decl", d.Decl)
		}
		if d.Kind.Fatal() {
			entry.Error(d.Error())
		} else {
			entry.Warn(d.Error())
		}
	}
}

// Strings renders the list one diagnostic per line, prefixed the way the
// compiler prints warnings.
func (l List) Strings() []string {
	out := make([]string, len(l))
	for i, d := range l {
		level := "warning"
		if d.Kind.Fatal() {
			level = "error"
		}
		out[i] = fmt.Sprintf("%s: %s", level, d.Error())
	}
	return out
}
