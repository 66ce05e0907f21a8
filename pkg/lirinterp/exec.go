package lirinterp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raymyers/ralph-translate-c/pkg/lir"
)

type ctlKind int

const (
	ctlNone ctlKind = iota
	ctlBreak
	ctlContinue
	ctlReturn
)

// ctl is how a statement finished
type ctl struct {
	kind  ctlKind
	label string
	val   Value
}

// exec runs one statement. Control transfers raised inside expressions
// resume here as ordinary statement outcomes.
func (m *Machine) exec(s lir.Stmt, e *env) (ctl, error) {
	c, err := m.exec0(s, e)
	var j *jump
	if errors.As(err, &j) {
		return j.c, nil
	}
	return c, err
}

func (m *Machine) execStmts(stmts []lir.Stmt, e *env) (ctl, error) {
	for _, s := range stmts {
		c, err := m.exec(s, e)
		if err != nil || c.kind != ctlNone {
			return c, err
		}
	}
	return ctl{}, nil
}

func (m *Machine) exec0(s lir.Stmt, e *env) (ctl, error) {
	switch s := s.(type) {
	case lir.VarDecl:
		return ctl{}, m.local(s, e)
	case lir.ExprStmt:
		_, err := m.eval(s.X, e, nil)
		return ctl{}, err
	case lir.Assign:
		return ctl{}, m.assign(s, e)
	case lir.Block:
		return m.block(s, e)
	case *lir.Block:
		return m.block(*s, e)
	case lir.Return:
		if s.X == nil {
			return ctl{kind: ctlReturn, val: m.voidValue()}, nil
		}
		var want *rtype
		if e.fn != nil {
			want = e.fn.ret
		}
		v, err := m.eval(s.X, e, want)
		if err != nil {
			return ctl{}, err
		}
		return ctl{kind: ctlReturn, val: v}, nil
	case lir.Break:
		c := ctl{kind: ctlBreak, label: s.Label, val: m.voidValue()}
		if s.Value != nil {
			var want *rtype
			for t := e; t != nil; t = t.parent {
				if t.isExpr && t.label == s.Label {
					want = t.want
					break
				}
			}
			v, err := m.eval(s.Value, e, want)
			if err != nil {
				return ctl{}, err
			}
			c.val = v
		}
		return c, nil
	case lir.Continue:
		return ctl{kind: ctlContinue, label: s.Label}, nil
	case lir.If:
		cv, err := m.eval(s.Cond, e, nil)
		if err != nil {
			return ctl{}, err
		}
		if truthy(cv) {
			return m.exec(s.Then, e)
		}
		if s.Else != nil {
			return m.exec(s.Else, e)
		}
		return ctl{}, nil
	case lir.While:
		return m.loop(s, e)
	case lir.Switch:
		return m.switchStmt(s, e)
	case lir.Comptime:
		if s.Body == nil {
			return ctl{}, nil
		}
		return m.block(*s.Body, e)
	case lir.Comment:
		return ctl{}, nil
	}
	return ctl{}, unsupported("statement %T", s)
}

func (m *Machine) block(b lir.Block, e *env) (ctl, error) {
	s := e.child()
	s.label = b.Label
	defer m.release(s)
	c, err := m.execStmts(b.Stmts, s)
	if err != nil {
		return ctl{}, err
	}
	if c.kind == ctlBreak && b.Label != "" && c.label == b.Label {
		return ctl{}, nil
	}
	return c, nil
}

func (m *Machine) loop(w lir.While, e *env) (ctl, error) {
	for {
		if err := m.tick(); err != nil {
			return ctl{}, err
		}
		cv, err := m.eval(w.Cond, e, nil)
		if err != nil {
			return ctl{}, err
		}
		if !truthy(cv) {
			return ctl{}, nil
		}
		c, err := m.exec(w.Body, e)
		if err != nil {
			return ctl{}, err
		}
		mine := c.label == "" || c.label == w.Label
		switch {
		case c.kind == ctlBreak && mine:
			return ctl{}, nil
		case c.kind == ctlContinue && mine, c.kind == ctlNone:
		default:
			return c, nil
		}
		if w.Cont != nil {
			if _, err := m.exec(w.Cont, e); err != nil {
				return ctl{}, err
			}
		}
	}
}

func (m *Machine) switchStmt(s lir.Switch, e *env) (ctl, error) {
	v, err := m.eval(s.X, e, nil)
	if err != nil {
		return ctl{}, err
	}
	var want *rtype
	if !v.T.isComptime() {
		want = v.T
	}
	var body, fallback lir.Stmt
	for _, p := range s.Prongs {
		if p.Else {
			fallback = p.Body
			continue
		}
		for _, item := range p.Items {
			ok, err := m.matches(item, v, want, e)
			if err != nil {
				return ctl{}, err
			}
			if ok {
				body = p.Body
				break
			}
		}
		if body != nil {
			break
		}
	}
	if body == nil {
		body = fallback
	}
	if body == nil {
		return ctl{}, nil
	}
	return m.exec(body, e)
}

func (m *Machine) matches(item lir.Expr, v Value, want *rtype, e *env) (bool, error) {
	if r, ok := item.(lir.Range); ok {
		lo, err := m.eval(r.Lo, e, want)
		if err != nil {
			return false, err
		}
		hi, err := m.eval(r.Hi, e, want)
		if err != nil {
			return false, err
		}
		a, err := m.compare(v, lo)
		if err != nil {
			return false, err
		}
		b, err := m.compare(v, hi)
		if err != nil {
			return false, err
		}
		return a >= 0 && a != 2 && b <= 0, nil
	}
	x, err := m.eval(item, e, want)
	if err != nil {
		return false, err
	}
	c, err := m.compare(v, x)
	return c == 0, err
}

// local declares a block-scope variable or constant.
func (m *Machine) local(d lir.VarDecl, e *env) error {
	if d.Extern {
		b, err := m.root.lookup(m, d.Name)
		if err != nil {
			return err
		}
		e.bind(d.Name, b)
		return nil
	}
	if d.Type != nil {
		t, err := m.resolveType(d.Type, e)
		if err != nil {
			return err
		}
		var v Value
		init := d.Value != nil && !isUndefined(d.Value)
		if init {
			if v, err = m.eval(d.Value, e, t); err != nil {
				return err
			}
		}
		if d.Const && t.isComptime() {
			e.bind(d.Name, &binding{val: v})
			return nil
		}
		p, err := m.allocPlace(t, d.Name, e)
		if err != nil {
			return err
		}
		if init {
			if err := m.store(p, v); err != nil {
				return err
			}
		}
		e.bind(d.Name, &binding{place: &p})
		return nil
	}
	v, err := m.eval(d.Value, e, nil)
	if err != nil {
		return err
	}
	if d.Const || v.T.isComptime() {
		e.bind(d.Name, &binding{val: v})
		return nil
	}
	p, err := m.allocPlace(v.T, d.Name, e)
	if err != nil {
		return err
	}
	if err := m.store(p, v); err != nil {
		return err
	}
	e.bind(d.Name, &binding{place: &p})
	return nil
}

func (m *Machine) assign(a lir.Assign, e *env) error {
	if id, ok := a.L.(lir.Ident); ok && id.Name == "_" {
		if u, ok := a.R.(lir.Unary); ok && u.Op == "&" {
			if id, ok := u.X.(lir.Ident); ok {
				_, err := e.lookup(m, id.Name)
				return err
			}
		}
		_, err := m.eval(a.R, e, nil)
		return err
	}
	r, err := m.ref(a.L, e)
	if err != nil {
		return err
	}
	if !r.ok {
		return fmt.Errorf("cannot assign to constant '%s'", lir.ExprString(a.L))
	}
	if a.Op == "=" {
		v, err := m.eval(a.R, e, r.p.typ)
		if err != nil {
			return err
		}
		return m.store(r.p, v)
	}
	op := strings.TrimSuffix(a.Op, "=")
	var rw *rtype
	if op != "<<" && op != ">>" && r.p.typ.kind != kPointer {
		rw = r.p.typ
	}
	rv, err := m.eval(a.R, e, rw)
	if err != nil {
		return err
	}
	cur, err := m.load(r.p)
	if err != nil {
		return err
	}
	res, err := m.arith(op, cur, rv)
	if err != nil {
		return err
	}
	return m.store(r.p, res)
}

// call evaluates a call expression.
func (m *Machine) call(x lir.Call, e *env) (Value, error) {
	fv, err := m.eval(x.Fn, e, nil)
	if err != nil {
		return Value{}, err
	}
	var fn *function
	switch fv.T.kind {
	case kFunc:
		fn = fv.Fn
	case kPointer:
		if fv.N == 0 {
			return Value{}, &Panic{Msg: "attempt to use null value"}
		}
		if fn = m.fnAddrs[fv.N]; fn == nil {
			return Value{}, &Panic{Msg: fmt.Sprintf("call through invalid function pointer 0x%x", fv.N)}
		}
	default:
		return Value{}, fmt.Errorf("type '%s' is not callable", fv.T)
	}
	ft, err := m.funcType(fn)
	if err != nil {
		return Value{}, err
	}
	var args []Value
	if fv.Self != nil {
		args = append(args, *fv.Self)
	}
	for _, a := range x.Args {
		var want *rtype
		if k := len(args); k < len(ft.params) {
			want = ft.params[k]
		}
		v, err := m.eval(a, e, want)
		if err != nil {
			return Value{}, err
		}
		args = append(args, v)
	}
	return m.invoke(fn, args)
}

// invoke calls fn with evaluated arguments.
func (m *Machine) invoke(fn *function, args []Value) (Value, error) {
	if err := m.tick(); err != nil {
		return Value{}, err
	}
	m.depth++
	defer func() { m.depth-- }()
	if m.depth > m.maxDepth {
		return Value{}, &Panic{Msg: "stack overflow"}
	}
	ft, err := m.funcType(fn)
	if err != nil {
		return Value{}, err
	}
	if fn.native != nil {
		v, err := fn.native(m, args)
		if err != nil {
			return Value{}, err
		}
		if ft.ret != nil {
			return m.coerce(v, ft.ret)
		}
		return v, nil
	}
	d := fn.decl
	if len(args) < len(d.Params) || len(args) > len(d.Params) && !d.VarArg {
		return Value{}, fmt.Errorf("'%s' expects %d arguments, found %d", fn.name, len(d.Params), len(args))
	}
	s := &env{parent: fn.env, fn: &frame{name: fn.name}}
	defer m.release(s)
	for i, p := range d.Params {
		v, err := m.coerce(args[i], ft.params[i])
		if err != nil {
			return Value{}, err
		}
		if p.Name != "" && p.Name != "_" {
			s.bind(p.Name, &binding{val: v})
		}
	}
	ret := ft.ret
	if ret == nil && d.Return != nil {
		if ret, err = m.resolveType(d.Return, s); err != nil {
			return Value{}, err
		}
	}
	s.fn.ret = ret
	c, err := m.block(*d.Body, s)
	if err != nil {
		return Value{}, err
	}
	if c.kind == ctlReturn {
		return m.coerce(c.val, ret)
	}
	if ret != nil && ret.kind == kNoreturn {
		return Value{}, &Panic{Msg: fmt.Sprintf("noreturn function '%s' returned", fn.name)}
	}
	return m.voidValue(), nil
}
