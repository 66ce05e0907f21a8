package lirgen

import (
	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
	"github.com/raymyers/ralph-translate-c/pkg/lir"
)

// caseGroup is a run of case labels followed by the statements up to the
// next label
type caseGroup struct {
	labels []cabs.Stmt // Case or Default, without their bodies
	stmts  []cabs.Stmt
}

// groupCases splits a switch body at its labels. Labels directly nested in
// one another share a group.
func groupCases(body cabs.Stmt) ([]caseGroup, error) {
	var items []cabs.Stmt
	if b, ok := body.(*cabs.Block); ok {
		items = b.Items
	} else {
		items = []cabs.Stmt{body}
	}
	var groups []caseGroup
	for _, it := range items {
		var labels []cabs.Stmt
		for {
			if c, ok := it.(cabs.Case); ok {
				labels = append(labels, cabs.Case{Expr: c.Expr, Hi: c.Hi})
				it = c.Body
				continue
			}
			if d, ok := it.(cabs.Default); ok {
				labels = append(labels, cabs.Default{})
				it = d.Body
				continue
			}
			break
		}
		switch {
		case len(labels) > 0:
			groups = append(groups, caseGroup{labels: labels})
		case len(groups) == 0:
			if _, ok := it.(cabs.DeclStmt); ok {
				return nil, unsupported("declaration before the first case label")
			}
			// unreachable
			continue
		}
		if it != nil {
			g := &groups[len(groups)-1]
			g.stmts = append(g.stmts, it)
		}
	}
	for i, g := range groups[:max(len(groups)-1, 0)] {
		for _, s := range g.stmts {
			if _, ok := s.(cabs.DeclStmt); ok {
				return nil, unsupported("declaration in case %d is visible to the following labels", i)
			}
		}
	}
	return groups, nil
}

// switchStmt lowers a C switch to a Zig switch inside an endless loop
// left after the switch; break in a prong leaves the loop. Falling
// through is expressed by repeating the statements of the following
// groups up to the first jump.
func (t *translator) switchStmt(x cabs.Switch) ([]lir.Stmt, error) {
	v, err := t.expr(x.Expr)
	if err != nil {
		return nil, err
	}
	ct := t.model.Promote(x.Expr.Type())
	control := t.typed(t.convert(v, ct))

	groups, err := groupCases(x.Body)
	if err != nil {
		return nil, err
	}
	leave := t.enter(&loop{kind: loopSwitch})
	defer leave()

	sw := lir.Switch{X: control}
	hasElse := false
	for gi, g := range groups {
		prong := lir.Prong{}
		for _, l := range g.labels {
			c, ok := l.(cabs.Case)
			if !ok {
				prong.Else = true
				continue
			}
			item, err := t.caseItem(c, ct)
			if err != nil {
				return nil, err
			}
			prong.Items = append(prong.Items, item)
		}
		body, err := t.prongBody(groups[gi:], prong.Else)
		if err != nil {
			return nil, err
		}
		prong.Body = body
		if prong.Else {
			hasElse = true
			if len(prong.Items) > 0 {
				// the else prong takes the body; the listed cases share it
				sw.Prongs = append(sw.Prongs, lir.Prong{Items: prong.Items, Body: body})
				prong.Items = nil
			}
		}
		sw.Prongs = append(sw.Prongs, prong)
	}
	if !hasElse {
		sw.Prongs = append(sw.Prongs, lir.Prong{Else: true, Body: lir.Block{}})
	}
	return []lir.Stmt{lir.While{Cond: lir.Id("true"), Body: lir.Block{Stmts: []lir.Stmt{sw, lir.Break{}}}}}, nil
}

// caseItem converts a case label to the promoted type of the control
// expression.
func (t *translator) caseItem(c cabs.Case, ct ctypes.Type) (lir.Expr, error) {
	lo, err := t.expr(c.Expr)
	if err != nil {
		return nil, err
	}
	if _, ok := t.sema.ConstInt(c.Expr); !ok {
		return nil, malformed("case label is not an integer constant expression")
	}
	item := t.typed(t.convert(lo, ct))
	if c.Hi == nil {
		return item, nil
	}
	hi, err := t.expr(c.Hi)
	if err != nil {
		return nil, err
	}
	return lir.Range{Lo: item, Hi: t.typed(t.convert(hi, ct))}, nil
}

// prongBody lowers the statements of groups[0] and falls through the
// following groups until a statement jumps.
func (t *translator) prongBody(groups []caseGroup, isElse bool) (lir.Stmt, error) {
	t.pushScope()
	defer t.popScope()
	var out []lir.Stmt
	for _, g := range groups {
		for _, s := range g.stmts {
			ss, err := t.hoisting(s)
			if err != nil {
				return nil, err
			}
			out = append(out, ss...)
			if endsInJump(out) {
				return prongStmt(out, isElse), nil
			}
		}
	}
	return prongStmt(out, isElse), nil
}

// prongStmt is the body of a prong; a case prong that only breaks is the
// bare break.
func prongStmt(out []lir.Stmt, isElse bool) lir.Stmt {
	if len(out) == 1 && !isElse {
		if b, ok := out[0].(lir.Break); ok && b.Label == "" {
			return b
		}
	}
	return lir.Block{Stmts: out}
}
