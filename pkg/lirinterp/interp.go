// Package lirinterp executes lowered translation units directly, without
// a Zig toolchain. It gives the IR the semantics of safe Zig: integer
// overflow, invalid casts, null unwraps and out of bounds accesses stop
// the program with a Panic. Memory is a flat byte-addressed space laid
// out for the translation target, so pointer arithmetic, bit casts and
// record layouts behave as they do in compiled code.
package lirinterp

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/raymyers/ralph-translate-c/pkg/ctarget"
	"github.com/raymyers/ralph-translate-c/pkg/lir"
)

var (
	// ErrAbort is returned when the program calls abort
	ErrAbort = errors.New("program aborted")
	// ErrUnsupported marks constructs the interpreter does not implement
	ErrUnsupported = errors.New("unsupported")
	// ErrStepLimit is returned when a program runs past Options.MaxSteps
	ErrStepLimit = errors.New("step limit exceeded")
)

// Panic is a safety-checked illegal behavior detected at run time
type Panic struct {
	Msg string
}

func (p *Panic) Error() string { return "panic: " + p.Msg }

// CompileError is reached when execution evaluates @compileError or a
// coercion the language rejects
type CompileError struct {
	Msg string
}

func (c *CompileError) Error() string { return "compile error: " + c.Msg }

// exitError carries the status passed to exit
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit(%d)", e.code) }

func unsupported(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, fmt.Sprintf(format, args...))
}

// Options configures a Machine
type Options struct {
	Target   *ctarget.Target
	Stdout   io.Writer
	Logger   logrus.FieldLogger
	MaxSteps int64 // 0 means unlimited
	MaxDepth int   // call depth; 0 means 1000
}

// Machine holds the state of one program
type Machine struct {
	target     *ctarget.Target
	out        io.Writer
	log        logrus.FieldLogger
	maxSteps   int64
	maxDepth   int
	ptrSize    int64
	prims      map[string]*rtype
	containers map[any]*rtype
	mem        *memory
	root       *namespace
	std        *namespace
	strings    map[string]uint64
	fnAddrs    map[uint64]*function
	nextFn     uint64
	steps      int64
	depth      int
	ctx        context.Context
}

// New prepares f for execution.
func New(f *lir.File, opts Options) (*Machine, error) {
	if f == nil {
		return nil, errors.New("lirinterp: nil file")
	}
	tgt := opts.Target
	if tgt == nil {
		tgt = ctarget.Native()
	}
	m := &Machine{
		target:     tgt,
		out:        opts.Stdout,
		log:        opts.Logger,
		maxSteps:   opts.MaxSteps,
		maxDepth:   opts.MaxDepth,
		ptrSize:    ctarget.SizeBytes(tgt.PointerBits),
		containers: make(map[any]*rtype),
		mem:        newMemory(tgt.PointerBits),
		strings:    make(map[string]uint64),
		fnAddrs:    make(map[uint64]*function),
		nextFn:     0x70000000,
		ctx:        context.Background(),
	}
	if m.out == nil {
		m.out = io.Discard
	}
	if m.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		m.log = l
	}
	if m.maxDepth == 0 {
		m.maxDepth = 1000
	}
	if tgt.PointerBits <= 16 {
		m.nextFn = 0xF000
	}
	m.initPrimitives(tgt)
	m.std = m.stdNamespace()
	m.root = newNamespace("root", f.Decls, nil)
	m.root.env = &env{ns: m.root}
	return m, nil
}

// Run calls entry with the given command line arguments and returns the
// exit status of the program.
func (m *Machine) Run(ctx context.Context, entry string, args []string) (code int, err error) {
	m.ctx = ctx
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lirinterp: internal error: %v", r)
		}
	}()
	log := m.log.WithField("entry", entry)
	log.Debug("starting program")
	code, err = m.run(entry, args)
	var exit *exitError
	if errors.As(err, &exit) {
		code, err = exit.code, nil
	}
	log.WithField("status", code).Debug("program finished")
	return code, err
}

func (m *Machine) run(entry string, args []string) (int, error) {
	for _, d := range m.root.order {
		if c, ok := d.(lir.Comptime); ok {
			if _, err := m.exec(*c.Body, m.root.env); err != nil {
				return 0, err
			}
		}
	}
	b, err := m.root.lookup(m, entry)
	if err != nil {
		return 0, err
	}
	if b == nil || b.place != nil || b.val.Fn == nil {
		return 0, fmt.Errorf("entry point '%s' is not a function", entry)
	}
	fn := b.val.Fn
	var argv []Value
	if fn.decl != nil && len(fn.decl.Params) == 2 {
		argv, err = m.argv(fn, append([]string{entry}, args...))
		if err != nil {
			return 0, err
		}
	}
	ret, err := m.invoke(fn, argv)
	if err != nil {
		return 0, err
	}
	if ret.T.kind == kInt {
		return int(asInt64(ret)), nil
	}
	return 0, nil
}

// argv lays out argc and a NULL-terminated argv array.
func (m *Machine) argv(fn *function, args []string) ([]Value, error) {
	ft, err := m.funcType(fn)
	if err != nil {
		return nil, err
	}
	ptrs := make([]byte, 0, int64(len(args)+1)*m.ptrSize)
	for _, a := range args {
		addr, err := m.mem.alloc(int64(len(a)+1), 1, "argv")
		if err != nil {
			return nil, err
		}
		if err := m.mem.write(addr, append([]byte(a), 0)); err != nil {
			return nil, err
		}
		ptrs = append(ptrs, encodeUint(addr, m.ptrSize)...)
	}
	ptrs = append(ptrs, make([]byte, m.ptrSize)...)
	base, err := m.mem.alloc(int64(len(ptrs)), m.ptrSize, "argv")
	if err != nil {
		return nil, err
	}
	if err := m.mem.write(base, ptrs); err != nil {
		return nil, err
	}
	argc := m.sintValue(m.prims["c_int"], int64(len(args)))
	if ft.params[0] != nil {
		argc = m.sintValue(ft.params[0], int64(len(args)))
	}
	ptr := Value{T: ft.params[1], N: base}
	if ptr.T == nil {
		ptr.T = m.pointerTo(m.pointerTo(m.prims["c_char"], lir.PtrC, false), lir.PtrC, false)
	}
	return []Value{argc, ptr}, nil
}

// tick counts one step of execution.
func (m *Machine) tick() error {
	m.steps++
	if m.maxSteps > 0 && m.steps > m.maxSteps {
		return ErrStepLimit
	}
	if m.steps%1024 == 0 {
		if err := m.ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// binding is a name in scope: an addressable variable or a constant value
type binding struct {
	place *place
	val   Value
}

// env is a lexical scope
type env struct {
	parent *env
	vars   map[string]*binding
	ns     *namespace
	fn     *frame
	label  string
	want   *rtype
	isExpr bool     // a labeled block expression
	locals []uint64 // allocations released when the scope ends
}

// frame is the state of one function call
type frame struct {
	name string
	ret  *rtype
}

func (e *env) child() *env {
	return &env{parent: e, fn: e.fn}
}

func (e *env) bind(name string, b *binding) {
	if e.vars == nil {
		e.vars = make(map[string]*binding)
	}
	e.vars[name] = b
}

// lookup resolves a name through the enclosing scopes and namespaces.
func (e *env) lookup(m *Machine, name string) (*binding, error) {
	for s := e; s != nil; s = s.parent {
		if b, ok := s.vars[name]; ok {
			return b, nil
		}
		if s.ns != nil && s.ns.has(name) {
			return s.ns.lookup(m, name)
		}
	}
	return nil, fmt.Errorf("use of undeclared identifier '%s'", name)
}

// release frees the locals of a scope.
func (m *Machine) release(e *env) {
	for _, a := range e.locals {
		_ = m.mem.free(a)
	}
	e.locals = nil
}

// namespace is a set of lazily evaluated declarations: the file itself,
// a container, or a native library
type namespace struct {
	name  string
	decls map[string]lir.Stmt
	order []lir.Stmt
	cache map[string]*binding
	busy  map[string]bool
	env   *env
	typ   *rtype // the container, for container namespaces
}

func newNamespace(name string, decls []lir.Stmt, e *env) *namespace {
	ns := &namespace{name: name, decls: make(map[string]lir.Stmt), order: decls,
		cache: make(map[string]*binding), busy: make(map[string]bool), env: e}
	for _, d := range decls {
		switch d := d.(type) {
		case lir.VarDecl:
			ns.decls[d.Name] = d
		case lir.FnDecl:
			ns.decls[d.Name] = d
		}
	}
	return ns
}

func (ns *namespace) has(name string) bool {
	if _, ok := ns.cache[name]; ok {
		return true
	}
	_, ok := ns.decls[name]
	return ok
}

// lookup evaluates a declaration on first use.
func (ns *namespace) lookup(m *Machine, name string) (*binding, error) {
	if b, ok := ns.cache[name]; ok {
		return b, nil
	}
	d, ok := ns.decls[name]
	if !ok {
		return nil, fmt.Errorf("'%s' has no member named '%s'", ns.name, name)
	}
	if ns.busy[name] {
		return nil, fmt.Errorf("dependency loop detected for '%s'", name)
	}
	ns.busy[name] = true
	defer delete(ns.busy, name)
	scope := &env{parent: ns.env, ns: ns}
	switch d := d.(type) {
	case lir.FnDecl:
		b, err := m.declareFn(d, ns, scope)
		if err != nil {
			return nil, err
		}
		ns.cache[name] = b
		return b, nil
	case lir.VarDecl:
		return m.declareGlobal(d, ns, scope)
	}
	return nil, fmt.Errorf("'%s' is not a declaration", name)
}

// function is a callable: a defined function, or a native implementation
// of an external one
type function struct {
	name   string
	decl   *lir.FnDecl
	env    *env
	typ    *rtype
	native nativeFn
	addr   uint64
}

type nativeFn func(m *Machine, args []Value) (Value, error)

// fnAddr gives a function a stable address the first time one is needed.
func (m *Machine) fnAddr(fn *function) uint64 {
	if fn.addr == 0 {
		fn.addr = m.nextFn
		m.nextFn += 16
		m.fnAddrs[fn.addr] = fn
	}
	return fn.addr
}

func (m *Machine) funcType(fn *function) (*rtype, error) {
	if fn.typ != nil {
		return fn.typ, nil
	}
	if fn.decl == nil {
		fn.typ = &rtype{kind: kFunc, name: "fn", varArg: true, align: 1}
		return fn.typ, nil
	}
	ft, err := m.fnType(fn.decl.Params, fn.decl.Return, fn.decl.VarArg, fn.env)
	if err != nil {
		return nil, err
	}
	fn.typ = ft
	return ft, nil
}

func (m *Machine) fnValue(fn *function) Value {
	return Value{T: m.prims["fn"], Fn: fn}
}

// declareFn binds a function declaration. Declarations without a body
// resolve to a definition in the file, or to a native implementation.
func (m *Machine) declareFn(d lir.FnDecl, ns *namespace, scope *env) (*binding, error) {
	fn := &function{name: d.Name, decl: &d, env: scope}
	if d.Body == nil {
		if ns != m.root && m.root.has(d.Name) {
			if def, ok := m.root.decls[d.Name].(lir.FnDecl); !ok || def.Body != nil {
				return m.root.lookup(m, d.Name)
			}
		}
		native, ok := libc[d.Name]
		if !ok {
			native = func(m *Machine, args []Value) (Value, error) {
				return Value{}, unsupported("call to external function '%s'", d.Name)
			}
		}
		fn.native = native
	}
	return &binding{val: m.fnValue(fn)}, nil
}

// declareGlobal allocates a container-level variable and evaluates its
// initializer. The binding exists before the initializer runs so that
// initializers may take the address of the variable being defined.
func (m *Machine) declareGlobal(d lir.VarDecl, ns *namespace, scope *env) (*binding, error) {
	if d.Extern {
		if ns != m.root && m.root.has(d.Name) {
			return m.root.lookup(m, d.Name)
		}
		return nil, unsupported("external variable '%s'", d.Name)
	}
	if d.Type == nil {
		v, err := m.eval(d.Value, scope, nil)
		if err != nil {
			return nil, err
		}
		b := &binding{val: v}
		if !d.Const && !v.T.isComptime() {
			p, err := m.allocPlace(v.T, d.Name, nil)
			if err != nil {
				return nil, err
			}
			if err := m.store(p, v); err != nil {
				return nil, err
			}
			b = &binding{place: &p}
		}
		ns.cache[d.Name] = b
		return b, nil
	}
	t, err := m.resolveType(d.Type, scope)
	if err != nil {
		return nil, err
	}
	p, err := m.allocPlace(t, d.Name, nil)
	if err != nil {
		return nil, err
	}
	b := &binding{place: &p}
	ns.cache[d.Name] = b
	if d.Value != nil && !isUndefined(d.Value) {
		v, err := m.eval(d.Value, scope, t)
		if err != nil {
			delete(ns.cache, d.Name)
			return nil, err
		}
		if err := m.store(p, v); err != nil {
			return nil, err
		}
	}
	if d.Const {
		if blk := m.mem.find(p.addr); blk != nil && blk.base == p.addr {
			blk.readonly = true
		}
	}
	return b, nil
}

// allocPlace reserves storage for a variable of type t, registering it
// with the scope e when e is not nil.
func (m *Machine) allocPlace(t *rtype, name string, e *env) (place, error) {
	if t.kind == kOpaque || t.kind == kNoreturn || t.isComptime() {
		return place{}, fmt.Errorf("variable '%s' of type '%s' has no runtime storage", name, t)
	}
	addr, err := m.mem.alloc(t.size, t.align, name)
	if err != nil {
		return place{}, err
	}
	if e != nil {
		e.locals = append(e.locals, addr)
	}
	return place{addr: addr, typ: t}, nil
}

func isUndefined(x lir.Expr) bool {
	id, ok := x.(lir.Ident)
	return ok && id.Name == "undefined"
}
