package lirinterp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/raymyers/ralph-translate-c/pkg/ctarget"
	"github.com/raymyers/ralph-translate-c/pkg/lir"
)

// kind classifies runtime types
type kind int

const (
	kVoid kind = iota
	kBool
	kInt
	kComptimeInt
	kFloat
	kComptimeFloat
	kNull
	kUndefined
	kPointer
	kArray
	kVector
	kStruct
	kUnion
	kOpaque
	kFunc
	kType
	kNamespace
	kNoreturn
	kEnumLiteral
)

// rtype is a resolved type with its layout on the target
type rtype struct {
	kind   kind
	name   string
	bits   int // integer width, or the arithmetic width of a float
	signed bool
	size   int64
	align  int64

	// pointers
	ptr      lir.PtrKind
	optional bool
	isConst  bool
	elemT    *rtype
	elemFn   func() (*rtype, error)

	// arrays and vectors
	length   int64
	sentinel bool

	// containers
	fields []field
	packed bool
	ns     *namespace

	// functions
	params []*rtype
	ret    *rtype
	varArg bool
}

// field is a container field placed in its container
type field struct {
	name   string
	typ    *rtype
	offset int64
	bitOff int // first bit inside a packed container
	def    lir.Expr
}

func (t *rtype) String() string {
	if t == nil {
		return "anytype"
	}
	return t.name
}

// elem returns the element type of a pointer, array or vector. Pointer
// element types resolve on first use so records can point to themselves.
func (t *rtype) elem() (*rtype, error) {
	if t.elemT == nil && t.elemFn != nil {
		e, err := t.elemFn()
		if err != nil {
			return nil, err
		}
		t.elemT = e
	}
	if t.elemT == nil {
		return nil, fmt.Errorf("type '%s' has no element type", t)
	}
	return t.elemT, nil
}

func (t *rtype) field(name string) (field, bool) {
	for _, f := range t.fields {
		if f.name == name {
			return f, true
		}
	}
	return field{}, false
}

func (t *rtype) isNumeric() bool {
	switch t.kind {
	case kInt, kComptimeInt, kFloat, kComptimeFloat:
		return true
	}
	return false
}

// isComptime reports whether values of t only exist at compile time.
func (t *rtype) isComptime() bool {
	switch t.kind {
	case kComptimeInt, kComptimeFloat, kNull, kUndefined, kType, kNamespace, kEnumLiteral, kFunc:
		return true
	}
	return false
}

// fieldBits is the width a field of type t takes in a packed container.
func fieldBits(t *rtype) int {
	if t.kind == kBool {
		return 1
	}
	return t.bits
}

func alignUp(n, a int64) int64 {
	if a <= 1 {
		return n
	}
	return (n + a - 1) / a * a
}

func pow2Bytes(bits int) int64 {
	n := int64(1)
	for n*8 < int64(bits) {
		n *= 2
	}
	return n
}

// initPrimitives builds the named types of the target.
func (m *Machine) initPrimitives(tgt *ctarget.Target) {
	m.prims = make(map[string]*rtype)
	cint := func(name string, bits int, signed bool) {
		m.prims[name] = &rtype{kind: kInt, name: name, bits: bits, signed: signed,
			size: ctarget.SizeBytes(bits), align: tgt.IntAlign(bits)}
	}
	cint("c_char", 8, tgt.CharSigned)
	cint("c_short", tgt.ShortBits, true)
	cint("c_ushort", tgt.ShortBits, false)
	cint("c_int", tgt.IntBits, true)
	cint("c_uint", tgt.IntBits, false)
	cint("c_long", tgt.LongBits, true)
	cint("c_ulong", tgt.LongBits, false)
	cint("c_longlong", tgt.LongLongBits, true)
	cint("c_ulonglong", tgt.LongLongBits, false)
	cint("usize", tgt.PointerBits, false)
	cint("isize", tgt.PointerBits, true)

	float := func(name string, bits int, size, align int64) {
		m.prims[name] = &rtype{kind: kFloat, name: name, bits: bits, size: size, align: align}
	}
	float("f32", 32, 4, 4)
	float("f64", 64, 8, tgt.IntAlign(64))
	float("c_longdouble", 64, ctarget.SizeBytes(tgt.LongDoubleBits), tgt.LongDoubleAlign())
	float("f128", 64, 16, 16)

	m.prims["bool"] = &rtype{kind: kBool, name: "bool", bits: 1, size: 1, align: 1}
	m.prims["void"] = &rtype{kind: kVoid, name: "void", align: 1}
	m.prims["anyopaque"] = &rtype{kind: kOpaque, name: "anyopaque", align: 1}
	m.prims["noreturn"] = &rtype{kind: kNoreturn, name: "noreturn", align: 1}
	m.prims["type"] = &rtype{kind: kType, name: "type", align: 1}
	m.prims["comptime_int"] = &rtype{kind: kComptimeInt, name: "comptime_int", align: 1}
	m.prims["comptime_float"] = &rtype{kind: kComptimeFloat, name: "comptime_float", align: 1}
	m.prims["@TypeOf(null)"] = &rtype{kind: kNull, name: "@TypeOf(null)", align: 1}
	m.prims["@TypeOf(undefined)"] = &rtype{kind: kUndefined, name: "@TypeOf(undefined)", align: 1}
	m.prims["@Type(.enum_literal)"] = &rtype{kind: kEnumLiteral, name: "@Type(.enum_literal)", align: 1}
	m.prims["namespace"] = &rtype{kind: kNamespace, name: "namespace", align: 1}
	m.prims["fn"] = &rtype{kind: kFunc, name: "fn", align: 1}
}

// prim returns a named primitive type; fixed-width integers are built on
// demand.
func (m *Machine) prim(name string) (*rtype, bool) {
	if t, ok := m.prims[name]; ok {
		return t, true
	}
	if len(name) > 1 && (name[0] == 'u' || name[0] == 'i') {
		bits, err := strconv.Atoi(name[1:])
		if err != nil || bits <= 0 || bits > 128 || strings.HasPrefix(name[1:], "0") {
			return nil, false
		}
		size := pow2Bytes(bits)
		t := &rtype{kind: kInt, name: name, bits: bits, signed: name[0] == 'i', size: size,
			align: min(size, int64(m.target.MaxAlign))}
		m.prims[name] = t
		return t, true
	}
	return nil, false
}

// mustPrim returns a primitive known to exist.
func (m *Machine) mustPrim(name string) *rtype {
	t, ok := m.prim(name)
	if !ok {
		panic("lirinterp: unknown primitive " + name)
	}
	return t
}

// pointerTo builds a single pointer to an already resolved type.
func (m *Machine) pointerTo(elem *rtype, kind lir.PtrKind, optional bool) *rtype {
	prefix := "*"
	switch kind {
	case lir.PtrC:
		prefix = "[*c]"
	case lir.PtrMany:
		prefix = "[*]"
	}
	if optional {
		prefix = "?" + prefix
	}
	return &rtype{kind: kPointer, name: prefix + elem.name, ptr: kind, optional: optional,
		elemT: elem, size: m.ptrSize, align: m.ptrSize}
}

// resolveType resolves a lir type in the scope e.
func (m *Machine) resolveType(t lir.Type, e *env) (*rtype, error) {
	switch ty := t.(type) {
	case lir.Name:
		return m.namedType(ty.Name, e)
	case lir.Pointer:
		elem := ty.Elem
		p := &rtype{kind: kPointer, name: lir.TypeString(ty), ptr: ty.Kind, optional: ty.Optional,
			isConst: ty.Const, size: m.ptrSize, align: m.ptrSize}
		p.elemFn = func() (*rtype, error) { return m.resolveType(elem, e) }
		return p, nil
	case lir.Array:
		el, err := m.resolveType(ty.Elem, e)
		if err != nil {
			return nil, err
		}
		size := ty.Len * el.size
		if ty.Sentinel {
			size += el.size
		}
		return &rtype{kind: kArray, name: lir.TypeString(ty), elemT: el, length: ty.Len,
			sentinel: ty.Sentinel, size: size, align: el.align}, nil
	case lir.Vector:
		el, err := m.resolveType(ty.Elem, e)
		if err != nil {
			return nil, err
		}
		size := alignUp(ty.Len*el.size, el.align)
		align := pow2Bytes(int(size * 8))
		if align > 16 {
			align = 16
		}
		return &rtype{kind: kVector, name: lir.TypeString(ty), elemT: el, length: ty.Len,
			size: alignUp(size, align), align: align}, nil
	case lir.FnType:
		return m.fnType(ty.Params, ty.Return, ty.VarArg, e)
	case lir.Container:
		return m.containerType(ty, e)
	case lir.TypeOf:
		return m.typeOfExpr(ty.X, e)
	case lir.Computed:
		v, err := m.eval(ty.X, e, nil)
		if err != nil {
			return nil, err
		}
		if v.T.kind != kType {
			return nil, fmt.Errorf("expected a type, found '%s'", v.T)
		}
		return v.Ty, nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("unexpected type %T", t)
}

// namedType resolves a type name: a primitive or a declared constant
// holding a type.
func (m *Machine) namedType(name string, e *env) (*rtype, error) {
	if name == "anytype" {
		return nil, nil
	}
	if t, ok := m.prim(name); ok {
		return t, nil
	}
	b, err := e.lookup(m, name)
	if err != nil {
		return nil, err
	}
	if b.place != nil || b.val.T.kind != kType {
		return nil, fmt.Errorf("'%s' is not a type", name)
	}
	return b.val.Ty, nil
}

func (m *Machine) fnType(params []lir.Param, ret lir.Type, varArg bool, e *env) (*rtype, error) {
	ft := &rtype{kind: kFunc, name: "fn", varArg: varArg, align: 1}
	for _, p := range params {
		pt, err := m.resolveType(p.Type, e)
		if err != nil {
			return nil, err
		}
		ft.params = append(ft.params, pt)
	}
	switch ret.(type) {
	case lir.TypeOf, lir.Computed:
		// depends on the arguments; resolved per call
	default:
		rt, err := m.resolveType(ret, e)
		if err != nil {
			return nil, err
		}
		ft.ret = rt
	}
	return ft, nil
}

// containerKey identifies a container by the backing arrays of its
// declarations and fields, which every evaluation of the same source
// shares.
func containerKey(c lir.Container) any {
	switch {
	case len(c.Decls) > 0:
		return &c.Decls[0]
	case len(c.Fields) > 0:
		return &c.Fields[0]
	}
	return nil
}

// containerType lays out a struct, union or opaque container the way C
// lays out the record it stands for.
func (m *Machine) containerType(c lir.Container, e *env) (*rtype, error) {
	key := containerKey(c)
	if key != nil {
		if t, ok := m.containers[key]; ok {
			return t, nil
		}
	}
	t := &rtype{kind: kStruct, name: "struct", align: 1, packed: c.Layout == lir.LayoutPacked}
	switch c.Kind {
	case lir.KindUnion:
		t.kind, t.name = kUnion, "union"
	case lir.KindOpaque:
		t.kind, t.name = kOpaque, "opaque"
	}
	t.ns = newNamespace(t.name, c.Decls, e)
	t.ns.typ = t
	if key != nil {
		m.containers[key] = t
	}
	if t.kind == kOpaque {
		return t, nil
	}
	if t.packed {
		return t, m.packedLayout(t, c, e)
	}
	var off int64
	for _, f := range c.Fields {
		ft, err := m.resolveType(f.Type, e)
		if err != nil {
			return nil, err
		}
		align := ft.align
		if f.Align > 0 {
			align = f.Align
		}
		fl := field{name: f.Name, typ: ft, def: f.Default}
		if t.kind == kStruct {
			off = alignUp(off, align)
			fl.offset = off
			off += ft.size
		} else {
			off = max(off, ft.size)
		}
		t.align = max(t.align, align)
		t.fields = append(t.fields, fl)
	}
	t.size = alignUp(off, t.align)
	return t, nil
}

func (m *Machine) packedLayout(t *rtype, c lir.Container, e *env) error {
	pos := 0
	for _, f := range c.Fields {
		ft, err := m.resolveType(f.Type, e)
		if err != nil {
			return err
		}
		if ft.kind != kInt && ft.kind != kBool {
			return unsupported("packed field '%s' of type '%s'", f.Name, ft)
		}
		t.fields = append(t.fields, field{name: f.Name, typ: ft, bitOff: pos, def: f.Default})
		pos += fieldBits(ft)
	}
	if pos > 64 {
		return unsupported("packed container wider than 64 bits")
	}
	t.bits = pos
	t.size = pow2Bytes(pos)
	if c.Backing != nil {
		bt, err := m.resolveType(c.Backing, e)
		if err != nil {
			return err
		}
		t.bits, t.size = bt.bits, bt.size
	}
	t.align = min(t.size, int64(m.target.MaxAlign))
	return nil
}

// typeOfExpr is @TypeOf(x). Names and casts are typed without evaluating
// anything; other expressions are evaluated.
func (m *Machine) typeOfExpr(x lir.Expr, e *env) (*rtype, error) {
	switch x := x.(type) {
	case lir.Paren:
		return m.typeOfExpr(x.X, e)
	case lir.As:
		return m.resolveType(x.T, e)
	case lir.Ident, lir.Member, lir.Index, lir.Deref:
		r, err := m.ref(x, e)
		if err != nil {
			return nil, err
		}
		if r.ok {
			return r.p.typ, nil
		}
		return r.v.T, nil
	}
	v, err := m.eval(x, e, nil)
	if err != nil {
		return nil, err
	}
	return v.T, nil
}
