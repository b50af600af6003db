package models

// ServiceUpdate is an ordered set of column assignments. Only assigned
// columns are written. Values use the Go types of the Service fields:
// pointers for nullable scalars, decimal.NullDecimal for money,
// json.RawMessage for JSON documents and slices for arrays.
type ServiceUpdate struct {
	cols []string
	vals map[string]any
}

// Set assigns v to col. A later Set of the same column replaces the value
// but keeps its original position.
func (u *ServiceUpdate) Set(col string, v any) *ServiceUpdate {
	if u.vals == nil {
		u.vals = make(map[string]any)
	}
	if _, ok := u.vals[col]; !ok {
		u.cols = append(u.cols, col)
	}
	u.vals[col] = v
	return u
}

// Columns returns the assigned columns in assignment order.
func (u *ServiceUpdate) Columns() []string {
	if u == nil {
		return nil
	}
	return append([]string(nil), u.cols...)
}

// Value returns the value assigned to col.
func (u *ServiceUpdate) Value(col string) (any, bool) {
	if u == nil {
		return nil, false
	}
	v, ok := u.vals[col]
	return v, ok
}

// Has reports whether col is assigned.
func (u *ServiceUpdate) Has(col string) bool {
	_, ok := u.Value(col)
	return ok
}

// IsEmpty reports whether no column is assigned.
func (u *ServiceUpdate) IsEmpty() bool {
	return u == nil || len(u.cols) == 0
}
