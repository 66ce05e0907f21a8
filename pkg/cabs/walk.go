package cabs

// Inspect traverses e depth-first, calling f on every subexpression. When
// f returns false the children of that node are skipped. Statement
// expression bodies are not entered.
func Inspect(e Expr, f func(Expr) bool) {
	if e == nil || !f(e) {
		return
	}
	switch x := e.(type) {
	case Unary:
		Inspect(x.Expr, f)
	case Binary:
		Inspect(x.Left, f)
		Inspect(x.Right, f)
	case Paren:
		Inspect(x.Expr, f)
	case Conditional:
		Inspect(x.Cond, f)
		Inspect(x.Then, f)
		Inspect(x.Else, f)
	case Call:
		Inspect(x.Func, f)
		for _, a := range x.Args {
			Inspect(a, f)
		}
	case Index:
		Inspect(x.Array, f)
		Inspect(x.Index, f)
	case Member:
		Inspect(x.Expr, f)
	case Cast:
		Inspect(x.Expr, f)
	case SizeofExpr:
		Inspect(x.Expr, f)
	case Generic:
		Inspect(x.Control, f)
		for _, a := range x.Assocs {
			Inspect(a.Expr, f)
		}
	case *InitList:
		for _, it := range x.Items {
			Inspect(it.Value, f)
		}
	case CompoundLiteral:
		if x.Init != nil {
			Inspect(x.Init, f)
		}
	case ConvertVector:
		Inspect(x.Expr, f)
	case ShuffleVector:
		Inspect(x.A, f)
		Inspect(x.B, f)
	}
}

// Refers reports whether e mentions the identifier name.
func Refers(e Expr, name string) bool {
	found := false
	Inspect(e, func(x Expr) bool {
		if v, ok := x.(Variable); ok && v.Name == name {
			found = true
		}
		return !found
	})
	return found
}
