// Package value implements Sakura's typed value model and the scoped
// environment that is threaded through a (sub)tree's execution: scalars,
// arrays, and objects; declared value items with input/output/compare
// kinds; and ordered maps with three override-merge policies.
package value

import "fmt"

// Kind tags the shape of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindArray
	KindObject
)

// Value is one of scalar (string, integer, float, boolean, null), array, or
// object (ordered mapping of name to Value).
type Value struct {
	kind   Kind
	str    string
	i64    int64
	f64    float64
	b      bool
	arr    []Value
	obj    *Object
}

// Object is an ordered mapping from name to Value. Insertion order is
// preserved and iterated by Keys/Range.
type Object struct {
	keys   []string
	values map[string]Value
}

// NewObject returns an empty ordered object.
func NewObject() *Object {
	return &Object{values: make(map[string]Value)}
}

// Set inserts or overwrites a key, preserving first-insertion order.
func (o *Object) Set(key string, v Value) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Get returns the value for key and whether it was present.
func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Keys returns keys in insertion order.
func (o *Object) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of entries.
func (o *Object) Len() int { return len(o.keys) }

// Clone deep-copies the object.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	out := NewObject()
	for _, k := range o.keys {
		out.Set(k, o.values[k].Clone())
	}
	return out
}

// Null, String, Int, Float, Bool, Array, ObjectValue are Value constructors.
func Null() Value               { return Value{kind: KindNull} }
func String(s string) Value     { return Value{kind: KindString, str: s} }
func Int(i int64) Value         { return Value{kind: KindInt, i64: i} }
func Float(f float64) Value     { return Value{kind: KindFloat, f64: f} }
func Bool(b bool) Value         { return Value{kind: KindBool, b: b} }
func Array(items []Value) Value { return Value{kind: KindArray, arr: items} }
func ObjectValue(o *Object) Value {
	if o == nil {
		o = NewObject()
	}
	return Value{kind: KindObject, obj: o}
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}
func (v Value) AsInt() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i64, true
	case KindFloat:
		return int64(v.f64), true
	}
	return 0, false
}
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f64, true
	case KindInt:
		return float64(v.i64), true
	}
	return 0, false
}
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.arr, true
}
func (v Value) AsObject() (*Object, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	return v.obj, true
}

// Clone deep-copies a value (arrays and objects recursively; scalars are
// copied by value already).
func (v Value) Clone() Value {
	switch v.kind {
	case KindArray:
		out := make([]Value, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Clone()
		}
		return Array(out)
	case KindObject:
		return ObjectValue(v.obj.Clone())
	default:
		return v
	}
}

// String renders the value's string form, used by template substitution
// and diagnostics.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindString:
		return v.str
	case KindInt:
		return fmt.Sprintf("%d", v.i64)
	case KindFloat:
		return fmt.Sprintf("%g", v.f64)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindArray:
		return fmt.Sprintf("%v", toInterfaceSlice(v.arr))
	case KindObject:
		return fmt.Sprintf("%v", ToInterface(v))
	}
	return ""
}

func toInterfaceSlice(vs []Value) []interface{} {
	out := make([]interface{}, len(vs))
	for i, v := range vs {
		out[i] = ToInterface(v)
	}
	return out
}

// ToInterface converts a Value into plain interface{} (map[string]any,
// []any, or scalar), for handlers and JSON-shaped expression evaluation.
func ToInterface(v Value) interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindString:
		return v.str
	case KindInt:
		return v.i64
	case KindFloat:
		return v.f64
	case KindBool:
		return v.b
	case KindArray:
		return toInterfaceSlice(v.arr)
	case KindObject:
		m := make(map[string]interface{}, v.obj.Len())
		for _, k := range v.obj.Keys() {
			val, _ := v.obj.Get(k)
			m[k] = ToInterface(val)
		}
		return m
	}
	return nil
}

// FromInterface converts a plain Go value (as produced by a handler, or
// decoded from JSON) into a Value.
func FromInterface(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float64:
		return Float(t)
	case float32:
		return Float(float64(t))
	case []interface{}:
		items := make([]Value, len(t))
		for i, e := range t {
			items[i] = FromInterface(e)
		}
		return Array(items)
	case map[string]interface{}:
		o := NewObject()
		for _, k := range orderedKeys(t) {
			o.Set(k, FromInterface(t[k]))
		}
		return ObjectValue(o)
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

// orderedKeys provides a deterministic (sorted) key order for maps whose
// insertion order Go does not preserve (handler outputs are plain Go maps).
func orderedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// simple insertion sort; these maps are small (handler output schemas)
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
