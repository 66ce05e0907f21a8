package lirgen

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
	"github.com/raymyers/ralph-translate-c/pkg/diag"
	"github.com/raymyers/ralph-translate-c/pkg/lir"
)

// recordInfo tracks the Zig name of a record and where it is emitted
type recordInfo struct {
	name    string
	pub     bool
	local   bool // declared inside a function body
	emitted bool
	// remaining counts the declarations of the record not lowered yet; the
	// record is emitted at the last one
	remaining int
	// typedefs are file-scope typedefs naming the record before it is
	// emitted
	typedefs []cabs.TypedefDef
	shape    *recordShape
	pos      cabs.Pos
}

// fieldShape is how a C field is reached in the lowered record
type fieldShape struct {
	name     string // Zig field or accessor name
	group    string // bit-field storage unit holding the field
	bits     int    // bit-field width
	flexible bool   // reached through the accessor function
}

// groupMember is a bit-field placed in a storage unit
type groupMember struct {
	index int // field index
	pos   int // first bit inside the unit
}

// bitGroup is a run of bit-fields sharing one storage unit
type bitGroup struct {
	name    string
	offset  int64 // byte offset of the unit
	unit    int   // unit width in bits
	next    int   // first free bit
	members []groupMember
}

// recordShape maps C fields onto Zig fields. items holds, in layout
// order, either a field index or a *bitGroup.
type recordShape struct {
	fields []fieldShape
	items  []any
	bad    string // why the record cannot be laid out in Zig
}

func (t *translator) info(r *ctypes.Record) *recordInfo {
	info, ok := t.records[r]
	if !ok {
		info = &recordInfo{}
		t.records[r] = info
	}
	return info
}

// nameRecords counts the declarations of every record and names the
// file-scope ones: typedef names first, then the remaining anonymous
// records in creation order.
func (t *translator) nameRecords(defs []cabs.Definition) {
	var anon []*ctypes.Record
	for _, d := range defs {
		switch def := d.(type) {
		case cabs.RecordDef:
			info := t.info(def.Rec)
			info.remaining++
			info.pos = def.Pos
			if def.Nested && def.Rec.Tag != "" && info.name == "" {
				info.name, info.pub = t.fresh(def.Rec.Kind.String()+"_"+def.Rec.Tag), true
			}
			if def.Rec.Tag == "" && info.remaining == 1 {
				anon = append(anon, def.Rec)
			}
		case cabs.TypedefDef:
			rec, ok := def.Typ.(ctypes.Trecord)
			if !ok || rec.Rec.Tag != "" {
				continue
			}
			if info := t.info(rec.Rec); info.name == "" {
				info.name, info.pub = escape(def.Name), true
			}
		case cabs.FunDef:
			if def.Body != nil {
				t.countLocalRecords(def.Body.Items)
			}
		}
	}
	sort.Slice(anon, func(i, j int) bool { return anon[i].ID < anon[j].ID })
	for _, r := range anon {
		if info := t.info(r); info.name == "" {
			t.unnamed++
			info.name = fmt.Sprintf("%s_unnamed_%d", r.Kind, t.unnamed)
		}
	}
}

// countLocalRecords counts record declarations inside a function body.
func (t *translator) countLocalRecords(items []cabs.Stmt) {
	for _, s := range items {
		t.countLocalStmt(s)
	}
}

func (t *translator) countLocalStmt(s cabs.Stmt) {
	switch st := s.(type) {
	case cabs.DeclStmt:
		for _, d := range st.Decls {
			if rd, ok := d.(cabs.RecordDef); ok {
				info := t.info(rd.Rec)
				info.remaining++
				info.local = true
				info.pos = rd.Pos
			}
		}
	case *cabs.Block:
		t.countLocalRecords(st.Items)
	case cabs.If:
		t.countLocalStmt(st.Then)
		if st.Else != nil {
			t.countLocalStmt(st.Else)
		}
	case cabs.While:
		t.countLocalStmt(st.Body)
	case cabs.DoWhile:
		t.countLocalStmt(st.Body)
	case cabs.For:
		if st.Init != nil {
			t.countLocalStmt(st.Init)
		}
		t.countLocalStmt(st.Body)
	case cabs.Switch:
		t.countLocalStmt(st.Body)
	case cabs.Case:
		t.countLocalStmt(st.Body)
	case cabs.Default:
		t.countLocalStmt(st.Body)
	case cabs.Labeled:
		t.countLocalStmt(st.Body)
	}
}

// recordName returns the Zig name of a record. A file-scope record that
// has no declaration left to lower is emitted on first use; an anonymous
// record first met inside a function is declared in front of the current
// statement.
func (t *translator) recordName(r *ctypes.Record) string {
	info := t.info(r)
	if info.name != "" {
		return info.name
	}
	if info.local || r.Tag == "" && t.fn != nil {
		t.localName(r)
		if !info.emitted && (info.remaining <= 0 || r.Tag == "") {
			info.emitted = true
			t.hoist(t.localRecord(r)...)
		}
		return info.name
	}
	info.name, info.pub = r.Kind.String()+"_"+r.Tag, true
	if r.Tag == "" {
		t.unnamed++
		info.name, info.pub = fmt.Sprintf("%s_unnamed_%d", r.Kind, t.unnamed), false
	}
	if info.remaining <= 0 {
		t.emitRecord(r)
	}
	return info.name
}

// localName names a record declared inside a function body.
func (t *translator) localName(r *ctypes.Record) string {
	info := t.info(r)
	if info.name == "" {
		info.local = true
		base := r.Kind.String() + "_" + r.Tag
		if r.Tag == "" {
			t.unnamed++
			base = fmt.Sprintf("%s_unnamed_%d", r.Kind, t.unnamed)
		}
		info.name = t.fresh(base)
	}
	return info.name
}

// recordDef lowers a file-scope struct or union declaration.
func (t *translator) recordDef(def cabs.RecordDef) {
	t.sema.AddRecord(def.Rec)
	info := t.info(def.Rec)
	info.remaining--
	if info.emitted || info.remaining > 0 {
		return
	}
	t.emitRecord(def.Rec)
}

// localRecordDef lowers a struct or union declaration inside a block.
func (t *translator) localRecordDef(def cabs.RecordDef) []lir.Stmt {
	t.sema.AddRecord(def.Rec)
	info := t.info(def.Rec)
	t.localName(def.Rec)
	info.remaining--
	if info.emitted || info.remaining > 0 {
		return nil
	}
	info.emitted = true
	return t.localRecord(def.Rec)
}

// emitRecord appends the file-scope declaration of r, followed by the
// typedefs that were waiting for it.
func (t *translator) emitRecord(r *ctypes.Record) {
	info := t.info(r)
	if info.emitted {
		return
	}
	info.emitted = true
	name := t.recordName(r)
	typ := t.recordType(r, name)
	t.emit(lir.VarDecl{Pub: info.pub, Const: true, Name: name, Value: lir.TypeExpr{T: typ}})
	if len(t.members[r]) > 0 {
		t.memberSlots = append(t.memberSlots, memberSlot{rec: r, at: len(t.out) - 1})
	}
	if r.Tag != "" {
		t.aliases = append(t.aliases, alias{name: escape(r.Tag), target: name})
	}
	waiting := info.typedefs
	info.typedefs = nil
	for _, td := range waiting {
		t.emitTypedef(td)
	}
}

// localRecord declares r as a constant of the enclosing block.
func (t *translator) localRecord(r *ctypes.Record) []lir.Stmt {
	name := t.info(r).name
	return []lir.Stmt{
		lir.VarDecl{Const: true, Name: name, Value: lir.TypeExpr{T: t.recordType(r, name)}},
		lir.Touch(name),
	}
}

// flushRecords emits the file-scope records that were referenced but
// never reached their last declaration.
func (t *translator) flushRecords() {
	var pending []*ctypes.Record
	for r, info := range t.records {
		if !info.emitted && !info.local && info.name != "" {
			pending = append(pending, r)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	for _, r := range pending {
		t.emitRecord(r)
	}
}

// opaqueReason explains why a complete record is lowered as opaque; it is
// empty when the record keeps its fields.
func (t *translator) opaqueReason(r *ctypes.Record) string {
	if r.Opaque != "" {
		return r.Opaque
	}
	for _, f := range r.Fields {
		if ctypes.QualsOf(f.Type)&ctypes.Atomic != 0 {
			return "has atomic field"
		}
	}
	return t.shape(r).bad
}

// recordType builds the container of r.
func (t *translator) recordType(r *ctypes.Record, name string) lir.Container {
	if !r.Complete {
		return lir.Container{Kind: lir.KindOpaque}
	}
	if reason := t.opaqueReason(r); reason != "" {
		info := t.info(r)
		t.report(diag.New(diag.UnsupportedConstruct, info.pos, "%s demoted to opaque type - %s", r.Kind, reason).At(info.pos, name))
		return lir.Container{Kind: lir.KindOpaque}
	}
	s := t.shape(r)
	layout := t.model.Layout(r)
	c := lir.Container{Kind: lir.KindStruct, Layout: lir.LayoutExtern}
	if r.Kind == ctypes.Union {
		c.Kind = lir.KindUnion
	}
	var accessors []lir.Stmt
	for n, item := range s.items {
		switch it := item.(type) {
		case int:
			f := r.Fields[it]
			if s.fields[it].flexible {
				elem := ctypes.Canonical(f.Type).(ctypes.Tarray).Elem
				marker := lir.Array{Len: 0, Elem: t.zigType(elem)}
				c.Fields = append(c.Fields, lir.Field{Name: escape("_" + f.Name), Type: marker,
					Default: lir.Call{Fn: stdPath("mem", "zeroes"), Args: []lir.Expr{lir.TypeExpr{T: marker}}}})
				accessors = append(accessors, t.flexibleAccessor(s.fields[it].name, elem, layout.Fields[it].Offset))
				continue
			}
			lf := lir.Field{Name: s.fields[it].name, Type: t.zigType(f.Type)}
			lf.Align = t.alignAttr(r, layout, t.model.Alignof(f.Type), f.Aligned, n == 0)
			if r.Kind == ctypes.Struct {
				lf.Default = t.zeroValue(f.Type)
			}
			c.Fields = append(c.Fields, lf)
		case *bitGroup:
			c.Fields = append(c.Fields, t.groupField(r, layout, it, n == 0))
		}
	}
	if len(r.Fields) == 0 && t.model.Target.MSVCRecords() {
		pad := lir.Field{Name: "_padding", Type: lir.Named("u32"), Align: 1}
		if r.Kind == ctypes.Struct {
			pad.Default = lir.Int("0")
		}
		c.Fields = append(c.Fields, pad)
	}
	c.Decls = accessors
	return c
}

// alignAttr returns the align(N) a field needs, 0 when its natural
// alignment already matches the C layout. When the record or one of its
// fields carries an aligned attribute the first field also takes the
// record alignment.
func (t *translator) alignAttr(r *ctypes.Record, layout *ctypes.RecordLayout, natural, aligned int64, first bool) int64 {
	var attr int64
	switch {
	case aligned > natural:
		attr = aligned
	case r.Packed:
		attr = 1
	}
	eff := natural
	if attr > 0 {
		eff = attr
	}
	if first && layout.Align > eff && hasAlignedAttr(r) {
		attr = layout.Align
	}
	return attr
}

func hasAlignedAttr(r *ctypes.Record) bool {
	if r.Aligned > 0 {
		return true
	}
	return lo.SomeBy(r.Fields, func(f ctypes.Field) bool { return f.Aligned > 0 })
}

// groupField lowers a bit-field storage unit to a packed struct field.
func (t *translator) groupField(r *ctypes.Record, layout *ctypes.RecordLayout, g *bitGroup, first bool) lir.Field {
	c := lir.Container{Kind: lir.KindStruct, Layout: lir.LayoutPacked, Backing: lir.Named("u" + strconv.Itoa(g.unit))}
	pads := 0
	pad := func(width int) {
		c.Fields = append(c.Fields, lir.Field{Name: "_pad" + strconv.Itoa(pads), Type: lir.Named("u" + strconv.Itoa(width)), Default: lir.Int("0")})
		pads++
	}
	pos := 0
	for _, m := range g.members {
		f := r.Fields[m.index]
		if m.pos > pos {
			pad(m.pos - pos)
		}
		if f.Name == "" {
			pad(f.BitWidth)
		} else {
			typ, zero := t.bitFieldType(f)
			c.Fields = append(c.Fields, lir.Field{Name: escape(f.Name), Type: typ, Default: zero})
		}
		pos = m.pos + f.BitWidth
	}
	if pos < g.unit {
		pad(g.unit - pos)
	}
	lf := lir.Field{Name: g.name, Type: c}
	lf.Align = t.alignAttr(r, layout, int64(g.unit/8), 0, first)
	if r.Kind == ctypes.Struct {
		lf.Default = lir.StructInit{}
	}
	return lf
}

// bitFieldType is the Zig integer holding a bit-field of the declared
// signedness and width.
func (t *translator) bitFieldType(f ctypes.Field) (lir.Type, lir.Expr) {
	k := ctypes.Int
	switch ft := ctypes.Canonical(f.Type).(type) {
	case ctypes.Tint:
		k = ft.Kind
	case ctypes.Tenum:
		k = t.model.EnumKind(ft.Enum)
	}
	if k == ctypes.Bool {
		return lir.Named("bool"), lir.Id("false")
	}
	prefix := "u"
	if t.zigSigned(k) {
		prefix = "i"
	}
	return lir.Named(prefix + strconv.Itoa(f.BitWidth)), lir.Int("0")
}

// flexibleAccessor returns the method reaching a flexible array member
// through a pointer to its record.
func (t *translator) flexibleAccessor(name string, elem ctypes.Type, offset int64) lir.Stmt {
	self := lir.Id("self")
	arrayType := func(of lir.Type) lir.Type {
		return lir.Computed{X: lir.Call{Fn: helper("FlexibleArrayType"),
			Args: []lir.Expr{lir.Builtin{Name: "TypeOf", Args: []lir.Expr{self}}, lir.TypeExpr{T: of}}}}
	}
	base := lir.As{T: lir.Named("Intermediate"), X: lir.Conv{Op: lir.PtrCast, X: self}}
	ptr := lir.Binary{Op: "+", L: base, R: lir.Int(strconv.FormatInt(offset, 10))}
	body := &lir.Block{Stmts: []lir.Stmt{
		lir.VarDecl{Const: true, Name: "Intermediate", Value: lir.TypeExpr{T: arrayType(lir.Named("u8"))}},
		lir.VarDecl{Const: true, Name: "ReturnType", Value: lir.TypeExpr{T: arrayType(t.zigType(elem))}},
		lir.Return{X: lir.As{T: lir.Named("ReturnType"), X: lir.Conv{Op: lir.PtrCast, X: lir.Conv{Op: lir.AlignCast, X: ptr}}}},
	}}
	return lir.FnDecl{Pub: true, Name: name, Params: []lir.Param{{Name: "self", Type: lir.Named("anytype")}},
		Return: arrayType(t.zigType(elem)), Body: body}
}

// shape computes how the fields of r map onto Zig fields.
func (t *translator) shape(r *ctypes.Record) *recordShape {
	info := t.info(r)
	if info.shape != nil {
		return info.shape
	}
	s := &recordShape{fields: make([]fieldShape, len(r.Fields))}
	info.shape = s
	if !r.Complete {
		return s
	}
	layout := t.model.Layout(r)
	unnamed := 0
	var group *bitGroup
	groups := 0
	for i, f := range r.Fields {
		fl := layout.Fields[i]
		fs := &s.fields[i]
		if !f.BitField {
			group = nil
			if f.Anonymous() {
				fs.name = "unnamed_" + strconv.Itoa(unnamed)
				unnamed++
			} else {
				fs.name = escape(f.Name)
			}
			fs.flexible = fl.Flexible
			s.items = append(s.items, i)
			continue
		}
		if f.BitWidth == 0 {
			group = nil
			continue
		}
		if fl.BitOffset+f.BitWidth > fl.UnitBits {
			s.bad = "bit-field straddles its storage unit"
			return s
		}
		at := fl.BitOffset
		if group != nil {
			at += int(fl.Offset-group.offset) * 8
		}
		if group == nil || fl.Offset < group.offset || at < group.next || at+f.BitWidth > group.unit {
			group = &bitGroup{name: "bitfield_" + strconv.Itoa(groups), offset: fl.Offset, unit: fl.UnitBits}
			groups++
			at = fl.BitOffset
			s.items = append(s.items, group)
		}
		group.members = append(group.members, groupMember{index: i, pos: at})
		group.next = at + f.BitWidth
		fs.name, fs.group, fs.bits = escape(f.Name), group.name, f.BitWidth
	}
	s.bad = t.checkLayout(r, layout, s)
	return s
}

// checkLayout places the shaped fields the way a Zig extern container
// does and reports a mismatch with the C layout.
func (t *translator) checkLayout(r *ctypes.Record, layout *ctypes.RecordLayout, s *recordShape) string {
	var cur, maxAlign int64 = 0, 1
	for n, item := range s.items {
		var off, size, align int64
		switch it := item.(type) {
		case int:
			fl := layout.Fields[it]
			f := r.Fields[it]
			natural := t.model.Alignof(f.Type)
			if fl.Flexible {
				natural = t.model.Alignof(ctypes.Canonical(f.Type).(ctypes.Tarray).Elem)
			}
			off, size, align = fl.Offset, fl.Size, natural
			if attr := t.alignAttr(r, layout, natural, f.Aligned, n == 0); attr > 0 {
				align = attr
			}
		case *bitGroup:
			off, size, align = it.offset, int64(it.unit/8), int64(it.unit/8)
			if attr := t.alignAttr(r, layout, align, 0, n == 0); attr > 0 {
				align = attr
			}
		}
		if r.Kind == ctypes.Struct {
			at := alignTo(cur, align)
			if at != off {
				return fmt.Sprintf("field at offset %d cannot be placed", off)
			}
			cur = at + size
		} else if size > cur {
			cur = size
		}
		maxAlign = max(maxAlign, align)
	}
	if alignTo(cur, maxAlign) != layout.Size {
		return "record padding cannot be expressed"
	}
	return ""
}

func alignTo(n, a int64) int64 {
	if a <= 1 {
		return n
	}
	return (n + a - 1) / a * a
}

// memberAlias is a container-level name for a function taking the record
type memberAlias struct {
	name string
	fn   string
	root bool // refer through __root
}

// memberSlot is the index in out of a record carrying member aliases
type memberSlot struct {
	rec *ctypes.Record
	at  int
}

// collectMembers gives records aliases for the file-scope functions whose
// first parameter is the record or a pointer to it.
func (t *translator) collectMembers(defs []cabs.Definition) {
	seen := make(map[string]bool)
	for _, d := range defs {
		fd, ok := d.(cabs.FunDef)
		if !ok || seen[fd.Name] || len(fd.Typ.Params) == 0 {
			continue
		}
		seen[fd.Name] = true
		first := fd.Typ.Params[0]
		if p, ok := ctypes.Canonical(first).(ctypes.Tpointer); ok {
			first = p.Elem
		}
		if rec, ok := ctypes.Canonical(first).(ctypes.Trecord); ok {
			t.addMember(rec.Rec, fd.Name, fd.Body != nil || t.bodies[fd.Name], len(fd.Typ.Params) == 1)
		}
	}
}

// addMember aliases fn inside r. A definition is reachable under its own
// name and under the part after its last underscore, both through
// __root. A prototype gets the suffix alias only, or its own name when it
// has no underscore, takes nothing but the record and the record has a
// tag.
func (t *translator) addMember(r *ctypes.Record, fn string, defined, sole bool) {
	suffix := ""
	if i := strings.LastIndex(fn, "_"); i >= 0 && i < len(fn)-1 {
		suffix = fn[i+1:]
	}
	if defined || suffix == "" && sole && r.Tag != "" {
		if !t.memberTaken(r, fn) {
			t.members[r] = append(t.members[r], memberAlias{name: fn, fn: fn, root: true})
		}
	}
	if suffix == "" {
		return
	}
	name := suffix
	for n := 1; t.memberTaken(r, name); n++ {
		name = suffix + strconv.Itoa(n)
	}
	t.members[r] = append(t.members[r], memberAlias{name: name, fn: fn, root: defined})
}

func (t *translator) memberTaken(r *ctypes.Record, name string) bool {
	if lo.ContainsBy(t.members[r], func(a memberAlias) bool { return a.name == name }) {
		return true
	}
	_, _, field := ctypes.FindField(r, name)
	return field
}

// memberDecls returns the alias declarations placed inside a record,
// leaving out functions that were demoted.
func (t *translator) memberDecls(r *ctypes.Record) []lir.Stmt {
	var out []lir.Stmt
	for _, a := range t.members[r] {
		if t.demoted[a.fn] {
			continue
		}
		var ref lir.Expr = lir.Id(escape(a.fn))
		if a.root {
			ref = lir.Member{X: lir.Id("__root"), Name: escape(a.fn)}
		}
		out = append(out, lir.VarDecl{Pub: true, Const: true, Name: escape(a.name), Value: ref})
	}
	return out
}

// placeMembers appends the member aliases to the emitted records once
// every function is lowered.
func (t *translator) placeMembers() {
	for _, slot := range t.memberSlots {
		decl, ok := t.out[slot.at].(lir.VarDecl)
		if !ok {
			continue
		}
		te, ok := decl.Value.(lir.TypeExpr)
		if !ok {
			continue
		}
		c, ok := te.T.(lir.Container)
		if !ok {
			continue
		}
		c.Decls = append(c.Decls, t.memberDecls(slot.rec)...)
		decl.Value = lir.TypeExpr{T: c}
		t.out[slot.at] = decl
	}
}

// alias is a trailing `pub const Tag = struct_Tag;`
type alias struct {
	name   string
	target string
}

// emitAliases makes tags usable without their struct_, union_ or enum_
// prefix unless the bare name is already declared.
func (t *translator) emitAliases() {
	for _, a := range t.aliases {
		if t.global.taken[a.name] {
			continue
		}
		t.global.taken[a.name] = true
		t.emit(lir.VarDecl{Pub: true, Const: true, Name: a.name, Value: lir.Id(a.target)})
	}
}
