package resource

// Typed gives type-safe access to one kind of object in a Table.
type Typed[T any] struct {
	table *Table
	kind  Kind
}

// NewTyped returns a view of table restricted to kind.
func NewTyped[T any](table *Table, kind Kind) Typed[T] {
	return Typed[T]{table: table, kind: kind}
}

func (v Typed[T]) Insert(value T) (Handle, error) {
	return v.table.Insert(v.kind, value)
}

func (v Typed[T]) Get(h Handle) (T, bool) {
	val, ok := v.table.Get(h, v.kind)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := val.(T)
	return typed, ok
}

func (v Typed[T]) Remove(h Handle) (T, bool) {
	val, ok := v.table.Remove(h, v.kind)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := val.(T)
	return typed, ok
}

// Len returns the number of live objects of this kind.
func (v Typed[T]) Len() int {
	return v.table.Count(v.kind)
}

func (v Typed[T]) Kind() Kind {
	return v.kind
}
