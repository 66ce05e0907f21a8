package lirgen

import (
	"strconv"

	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
	"github.com/raymyers/ralph-translate-c/pkg/lir"
)

// initValue lowers the initializer of an object of type typ. The returned
// type replaces the declared one: a character array filled exactly by a
// string literal becomes sentinel-terminated.
func (t *translator) initValue(init cabs.Expr, typ ctypes.Type) (lir.Type, lir.Expr, error) {
	if s, ok := init.(cabs.StringLiteral); ok {
		if arr, ok := ctypes.Canonical(typ).(ctypes.Tarray); ok && arr.Size >= 0 {
			lt, x := t.stringInit(s, arr)
			return lt, x, nil
		}
	}
	x, err := t.element(init, typ)
	if err != nil {
		return nil, nil, err
	}
	return t.zigType(typ), x, nil
}

// element lowers the value stored in one object or subobject.
func (t *translator) element(init cabs.Expr, typ ctypes.Type) (lir.Expr, error) {
	switch x := init.(type) {
	case *cabs.InitList:
		return t.initializer(x, typ)
	case cabs.StringLiteral:
		if arr, ok := ctypes.Canonical(typ).(ctypes.Tarray); ok && arr.Size >= 0 {
			lt, v := t.stringInit(x, arr)
			if a, ok := lt.(lir.Array); ok && a.Sentinel {
				// a nested array has no room for the sentinel type
				elem := t.zigType(arr.Elem)
				nul := lir.ArrayInit{T: lir.Array{Len: 1, Elem: elem}, Elems: []lir.Expr{lir.Int("0")}, Inline: true}
				return lir.Binary{Op: "++", L: v, R: nul}, nil
			}
			return v, nil
		}
	}
	v, err := t.expr(init)
	if err != nil {
		return nil, err
	}
	return t.result(v, ctypes.Unqualified(typ)), nil
}

// initializer lowers a normalized brace initializer: every item carries
// one designator and aggregate subobjects have nested lists.
func (t *translator) initializer(il *cabs.InitList, typ ctypes.Type) (lir.Expr, error) {
	if il == nil || len(il.Items) == 0 {
		return t.zeroValue(typ), nil
	}
	switch c := ctypes.Canonical(typ).(type) {
	case ctypes.Tarray:
		if c.Size < 0 {
			if done, ok := ctypes.Canonical(il.Typ).(ctypes.Tarray); ok {
				c = done
			}
		}
		return t.arrayInit(il, c)
	case ctypes.Tvector:
		return t.vectorInit(il, c)
	case ctypes.Trecord:
		return t.recordInit(il, typ, c.Rec)
	}
	// braces around a scalar
	return t.element(il.Items[0].Value, typ)
}

// positions indexes the items of a normalized list by element or field
// position.
func positions(il *cabs.InitList) map[int64]cabs.Expr {
	out := make(map[int64]cabs.Expr, len(il.Items))
	for _, it := range il.Items {
		pos := int64(len(out))
		if len(it.Designators) > 0 {
			pos = it.Designators[0].Index
		}
		out[pos] = it.Value
	}
	return out
}

// arrayInit lists the elements up to the last initialized one and pads
// the rest with zeroes: [k]T{...} ++ [1]T{0} ** (n - k).
func (t *translator) arrayInit(il *cabs.InitList, arr ctypes.Tarray) (lir.Expr, error) {
	items := positions(il)
	var k int64
	for pos := range items {
		if pos+1 > k {
			k = pos + 1
		}
	}
	elem := t.zigType(arr.Elem)
	init := lir.ArrayInit{T: lir.Array{Len: k, Elem: elem}}
	for i := int64(0); i < k; i++ {
		v, ok := items[i]
		if !ok {
			init.Elems = append(init.Elems, t.zeroValue(arr.Elem))
			continue
		}
		x, err := t.element(v, arr.Elem)
		if err != nil {
			return nil, err
		}
		init.Elems = append(init.Elems, x)
	}
	if k >= arr.Size {
		return init, nil
	}
	fill := lir.ArrayInit{T: lir.Array{Len: 1, Elem: elem}, Elems: []lir.Expr{t.zeroValue(arr.Elem)}, Inline: true}
	return lir.Binary{Op: "++", L: init, R: lir.Binary{Op: "**", L: fill, R: lir.Int(strconv.FormatInt(arr.Size-k, 10))}}, nil
}

func (t *translator) vectorInit(il *cabs.InitList, v ctypes.Tvector) (lir.Expr, error) {
	items := positions(il)
	init := lir.ArrayInit{T: t.zigType(v), Inline: true}
	for i := int64(0); i < v.Len; i++ {
		e, ok := items[i]
		if !ok {
			init.Elems = append(init.Elems, t.zeroValue(v.Elem))
			continue
		}
		x, err := t.element(e, v.Elem)
		if err != nil {
			return nil, err
		}
		init.Elems = append(init.Elems, x)
	}
	return init, nil
}

// recordInit names every field of a struct, zero-filling the ones the
// list leaves out; a union names its one initialized member. Bit-fields
// are set through their storage unit.
func (t *translator) recordInit(il *cabs.InitList, typ ctypes.Type, r *ctypes.Record) (lir.Expr, error) {
	if t.isOpaque(r) {
		return nil, unsupported("initializer of opaque type '%s'", typ)
	}
	items := positions(il)
	s := t.shape(r)
	out := lir.StructInit{T: t.zigType(ctypes.Unqualified(typ))}
	for _, item := range s.items {
		switch it := item.(type) {
		case int:
			fs := s.fields[it]
			f := r.Fields[it]
			v, ok := items[int64(it)]
			if fs.flexible || !ok && r.Kind == ctypes.Union {
				continue
			}
			if !ok {
				out.Fields = append(out.Fields, lir.FieldInit{Name: fs.name, Value: t.zeroValue(f.Type)})
				continue
			}
			x, err := t.element(v, f.Type)
			if err != nil {
				return nil, err
			}
			out.Fields = append(out.Fields, lir.FieldInit{Name: fs.name, Value: x})
		case *bitGroup:
			group := lir.StructInit{}
			for _, m := range it.members {
				f := r.Fields[m.index]
				v, ok := items[int64(m.index)]
				if !ok || f.Name == "" {
					continue
				}
				bv, err := t.expr(v)
				if err != nil {
					return nil, err
				}
				bits := f.BitWidth
				if ctypes.IsBool(f.Type) {
					bits = 0
				}
				group.Fields = append(group.Fields, lir.FieldInit{Name: escape(f.Name), Value: t.store(bv, ctypes.Unqualified(f.Type), bits)})
			}
			if len(group.Fields) > 0 || r.Kind == ctypes.Struct {
				out.Fields = append(out.Fields, lir.FieldInit{Name: it.name, Value: group})
			}
		}
	}
	return out, nil
}
