package ctypes

// FieldLayout is the placement of one field within its record
type FieldLayout struct {
	Offset    int64 // byte offset of the field, or of its storage unit for bit-fields
	Size      int64
	Align     int64
	BitOffset int // bit position inside the storage unit
	UnitBits  int // storage unit width for bit-fields
	Flexible  bool
}

// RecordLayout is the computed layout of a record
type RecordLayout struct {
	Size   int64
	Align  int64
	Fields []FieldLayout
}

func alignUp(n, a int64) int64 {
	if a <= 1 {
		return n
	}
	return (n + a - 1) / a * a
}

// IsFlexible reports whether field i of r is a trailing flexible array
// member: an incomplete array, or a zero-length array, in last position.
func IsFlexible(r *Record, i int) bool {
	if r.Kind != Struct || i != len(r.Fields)-1 || r.Fields[i].BitField {
		return false
	}
	arr, ok := Canonical(r.Fields[i].Type).(Tarray)
	return ok && arr.Size <= 0
}

// Layout computes field offsets, size and alignment of r using the
// System V rules: bit-fields are allocated in storage units of their
// declared type and may not straddle a unit boundary unless the record is
// packed; zero-width bit-fields only advance to the next unit.
func (m *Model) Layout(r *Record) *RecordLayout {
	out := &RecordLayout{Align: 1, Fields: make([]FieldLayout, len(r.Fields))}
	if len(r.Fields) == 0 && m.Target != nil && m.Target.MSVCRecords() {
		// an empty record still occupies an int
		out.Size = 4
		return out
	}
	var bits int64 // next free bit
	for i, f := range r.Fields {
		fl := &out.Fields[i]
		if f.BitField {
			size := m.Sizeof(f.Type)
			unitBits := size * 8
			falign := m.Alignof(f.Type)
			if r.Packed {
				falign = 1
			}
			if r.Kind == Union {
				bits = 0
			}
			if f.BitWidth == 0 {
				bits = alignUp(bits, falign*8)
				fl.Offset, fl.UnitBits, fl.Size, fl.Align = bits/8, int(unitBits), size, falign
				continue
			}
			unitAlign := falign * 8
			if r.Packed {
				unitAlign = 8
			}
			if !r.Packed && bits%unitAlign+int64(f.BitWidth) > unitBits {
				bits = alignUp(bits, unitAlign)
			}
			start := bits / unitAlign * unitAlign
			if r.Packed {
				start = bits / 8 * 8
			}
			fl.Offset = start / 8
			fl.BitOffset = int(bits - start)
			fl.UnitBits = int(unitBits)
			fl.Size, fl.Align = size, falign
			bits += int64(f.BitWidth)
			if f.Name != "" && falign > out.Align {
				out.Align = falign
			}
			if r.Kind == Union && int64(f.BitWidth) > out.Size*8 {
				out.Size = (int64(f.BitWidth) + 7) / 8
			}
			continue
		}

		falign := m.Alignof(f.Type)
		if r.Packed {
			falign = 1
		}
		if f.Aligned > falign {
			falign = f.Aligned
		}
		size := m.Sizeof(f.Type)
		if IsFlexible(r, i) || size < 0 {
			size = 0
			fl.Flexible = IsFlexible(r, i)
		}
		if r.Kind == Union {
			fl.Offset = 0
			if size > out.Size {
				out.Size = size
			}
		} else {
			fl.Offset = alignUp((bits+7)/8, falign)
			bits = (fl.Offset + size) * 8
		}
		fl.Size, fl.Align = size, falign
		if falign > out.Align {
			out.Align = falign
		}
	}
	if r.Aligned > out.Align {
		out.Align = r.Aligned
	}
	if r.Kind == Struct {
		out.Size = (bits + 7) / 8
	}
	out.Size = alignUp(out.Size, out.Align)
	return out
}

// Offsetof returns the byte offset of the named member, following anonymous
// members.
func (m *Model) Offsetof(r *Record, name string) (int64, bool) {
	path, _, ok := FindField(r, name)
	if !ok {
		return 0, false
	}
	var off int64
	rec := r
	for _, idx := range path {
		l := m.Layout(rec)
		off += l.Fields[idx].Offset
		rec = RecordOf(rec.Fields[idx].Type)
	}
	return off, true
}
