package ctyper

import (
	"fmt"
	"sort"

	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
)

// initNode is one subobject being initialized
type initNode struct {
	typ      ctypes.Type
	value    cabs.Expr // whole-object or scalar value
	children map[int64]*initNode
}

func (n *initNode) child(pos int64, typ ctypes.Type) *initNode {
	if n.children == nil {
		n.children = make(map[int64]*initNode)
	}
	n.value = nil
	if c, ok := n.children[pos]; ok {
		return c
	}
	if r := ctypes.RecordOf(n.typ); r != nil && r.Kind == ctypes.Union {
		// a union holds one member at a time
		n.children = make(map[int64]*initNode)
	}
	c := &initNode{typ: typ}
	n.children[pos] = c
	return c
}

// Init types a brace initializer for an object of type typ and returns it
// in normalized form: every aggregate subobject gets its own nested list,
// every item carries exactly one designator naming its field or element,
// items are sorted by position and later initializers override earlier
// ones. The returned list's type is typ, with an incomplete array type
// completed from the initializer.
func (t *Typer) Init(il *cabs.InitList, typ ctypes.Type) (*cabs.InitList, error) {
	root := &initNode{typ: typ}
	if _, err := t.fillList(root, il.Items, true); err != nil {
		return nil, err
	}
	out, ok := t.emit(root).(*cabs.InitList)
	if !ok {
		return nil, fmt.Errorf("invalid initializer for type '%s'", typ)
	}
	return out, nil
}

func isInitAggregate(typ ctypes.Type) bool {
	switch ctypes.Canonical(typ).(type) {
	case ctypes.Tarray, ctypes.Trecord, ctypes.Tvector:
		return true
	}
	return false
}

// positions returns the element type at pos, and whether pos is inside the
// aggregate.
func positionType(typ ctypes.Type, pos int64) (ctypes.Type, bool) {
	switch ty := ctypes.Canonical(typ).(type) {
	case ctypes.Tarray:
		return ty.Elem, ty.Size < 0 || pos < ty.Size
	case ctypes.Tvector:
		return ty.Elem, pos < ty.Len
	case ctypes.Trecord:
		if pos < 0 || pos >= int64(len(ty.Rec.Fields)) {
			return nil, false
		}
		return ty.Rec.Fields[pos].Type, true
	}
	return nil, false
}

// nextField returns the first positionally initializable field at or after
// pos, or -1.
func nextField(r *ctypes.Record, pos int64) int64 {
	for i := pos; i < int64(len(r.Fields)); i++ {
		f := r.Fields[i]
		if f.BitField && f.Name == "" {
			continue
		}
		if ctypes.IsFlexible(r, int(i)) {
			return -1
		}
		return i
	}
	return -1
}

// fillList initializes an aggregate or scalar from a sequence of items.
// A braced list consumes all its items; an elided one stops at the first
// designator or when the aggregate is full. It returns the number of
// items consumed.
func (t *Typer) fillList(n *initNode, items []cabs.InitItem, braced bool) (int, error) {
	if !isInitAggregate(n.typ) {
		if len(items) == 0 {
			n.value = &cabs.InitList{Typ: n.typ}
			return 0, nil
		}
		_, err := t.fillOne(n, items[:1])
		return len(items), err
	}
	r := ctypes.RecordOf(n.typ)
	pos := int64(0)
	if r != nil {
		pos = nextField(r, 0)
	}
	i := 0
	for i < len(items) {
		it := items[i]
		if len(it.Designators) > 0 {
			if !braced {
				break
			}
			top, target, err := t.designate(n, it.Designators)
			if err != nil {
				return 0, err
			}
			rest := append([]cabs.InitItem{{Value: it.Value}}, items[i+1:]...)
			used, err := t.fillOne(target, rest)
			if err != nil {
				return 0, err
			}
			i += used
			pos = top + 1
			if r != nil {
				pos = nextField(r, pos)
			}
			continue
		}
		if pos < 0 {
			break
		}
		elem, ok := positionType(n.typ, pos)
		if !ok {
			break
		}
		used, err := t.fillOne(n.child(pos, elem), items[i:])
		if err != nil {
			return 0, err
		}
		i += used
		pos++
		if r != nil {
			if r.Kind == ctypes.Union {
				pos = -1
			} else {
				pos = nextField(r, pos)
			}
		}
	}
	if braced {
		// excess initializers are dropped
		return len(items), nil
	}
	return i, nil
}

// fillOne initializes n from items[0], eliding braces when a scalar meets
// an aggregate subobject.
func (t *Typer) fillOne(n *initNode, items []cabs.InitItem) (int, error) {
	it := items[0]
	if list, ok := it.Value.(*cabs.InitList); ok {
		n.children, n.value = nil, nil
		_, err := t.fillList(n, list.Items, true)
		return 1, err
	}
	v, err := t.Expr(it.Value)
	if err != nil {
		return 0, err
	}
	if !isInitAggregate(n.typ) || initializesWhole(n.typ, v) {
		n.children, n.value = nil, v
		return 1, nil
	}
	stripped := append([]cabs.InitItem{{Value: v}}, items[1:]...)
	used, err := t.fillList(n, stripped, false)
	if err != nil {
		return 0, err
	}
	if used == 0 {
		return 0, fmt.Errorf("cannot initialize '%s' with '%s'", n.typ, v.Type())
	}
	return used, nil
}

// initializesWhole reports whether v initializes an aggregate of type typ
// by itself: a compatible record or vector, or a string literal for a
// character array.
func initializesWhole(typ ctypes.Type, v cabs.Expr) bool {
	switch ty := ctypes.Canonical(typ).(type) {
	case ctypes.Trecord, ctypes.Tvector:
		return ctypes.Compatible(typ, v.Type())
	case ctypes.Tarray:
		if _, ok := cabs.Unparen(v).(cabs.StringLiteral); ok {
			return ctypes.IsInteger(ty.Elem)
		}
	}
	return false
}

// designate walks a designator chain from n, creating subobjects, and
// returns the top-level position and the designated subobject.
func (t *Typer) designate(n *initNode, ds []cabs.Designator) (int64, *initNode, error) {
	top := int64(-1)
	cur := n
	for _, d := range ds {
		var path []int64
		if d.IsIndex {
			if _, ok := ctypes.Canonical(cur.typ).(ctypes.Tarray); !ok {
				return 0, nil, fmt.Errorf("array designator cannot initialize non-array type '%s'", cur.typ)
			}
			if _, ok := positionType(cur.typ, d.Index); !ok || d.Index < 0 {
				return 0, nil, fmt.Errorf("array designator index (%d) exceeds array bounds", d.Index)
			}
			path = []int64{d.Index}
		} else {
			r := ctypes.RecordOf(cur.typ)
			if r == nil {
				return 0, nil, fmt.Errorf("field designator '%s' does not refer to any field in type '%s'", d.Field, cur.typ)
			}
			idx, _, ok := ctypes.FindField(r, d.Field)
			if !ok {
				return 0, nil, fmt.Errorf("field designator '%s' does not refer to any field in type '%s'", d.Field, cur.typ)
			}
			for _, i := range idx {
				path = append(path, int64(i))
			}
		}
		for _, p := range path {
			elem, _ := positionType(cur.typ, p)
			if top < 0 {
				top = p
			}
			cur = cur.child(p, elem)
		}
	}
	return top, cur, nil
}

func (t *Typer) emit(n *initNode) cabs.Expr {
	if n.value != nil {
		return n.value
	}
	typ := n.typ
	if arr, ok := ctypes.Canonical(typ).(ctypes.Tarray); ok && arr.Size < 0 {
		size := int64(0)
		for pos := range n.children {
			if pos+1 > size {
				size = pos + 1
			}
		}
		typ = ctypes.Tarray{Elem: arr.Elem, Size: size}
	}
	out := &cabs.InitList{Typ: typ}
	positions := make([]int64, 0, len(n.children))
	for pos := range n.children {
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })
	r := ctypes.RecordOf(typ)
	for _, pos := range positions {
		d := cabs.Designator{Index: pos, IsIndex: true}
		if r != nil {
			d = cabs.Designator{Field: r.Fields[pos].Name, Index: pos}
		}
		out.Items = append(out.Items, cabs.InitItem{
			Designators: []cabs.Designator{d},
			Value:       t.emit(n.children[pos]),
		})
	}
	return out
}

// CompleteArray completes an incomplete array type from its initializer.
func CompleteArray(typ ctypes.Type, init cabs.Expr) ctypes.Type {
	arr, ok := ctypes.Canonical(typ).(ctypes.Tarray)
	if !ok || arr.Size >= 0 || init == nil {
		return typ
	}
	return init.Type()
}
