package httpapi

import (
	"fmt"

	"github.com/sakura-lang/sakura/pkg/value"
)

// valueFromJSON converts a JSON-decoded Go value (string/float64/bool/nil/
// []interface{}/map[string]interface{}, as produced by encoding/json into
// interface{}) into a value.Value.
func valueFromJSON(v interface{}) (value.Value, error) {
	switch t := v.(type) {
	case nil:
		return value.Null(), nil
	case string:
		return value.String(t), nil
	case bool:
		return value.Bool(t), nil
	case float64:
		if t == float64(int64(t)) {
			return value.Int(int64(t)), nil
		}
		return value.Float(t), nil
	case []interface{}:
		items := make([]value.Value, len(t))
		for i, elem := range t {
			converted, err := valueFromJSON(elem)
			if err != nil {
				return value.Value{}, err
			}
			items[i] = converted
		}
		return value.Array(items), nil
	case map[string]interface{}:
		obj := value.NewObject()
		for k, elem := range t {
			converted, err := valueFromJSON(elem)
			if err != nil {
				return value.Value{}, err
			}
			obj.Set(k, converted)
		}
		return value.ObjectValue(obj), nil
	default:
		return value.Value{}, fmt.Errorf("unsupported JSON value type %T", v)
	}
}

// inputsFromJSON converts a decoded JSON object's fields into a Sakura
// input map, as RunTree/TriggerTree expect.
func inputsFromJSON(raw map[string]interface{}) (map[string]value.Value, error) {
	out := make(map[string]value.Value, len(raw))
	for k, v := range raw {
		converted, err := valueFromJSON(v)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", k, err)
		}
		out[k] = converted
	}
	return out, nil
}

// valueToJSON converts a value.Value back to a plain Go value suitable for
// encoding/json, mirroring valueFromJSON's scalar/array/object mapping.
func valueToJSON(v value.Value) interface{} {
	switch v.Kind() {
	case value.KindNull:
		return nil
	case value.KindString:
		s, _ := v.AsString()
		return s
	case value.KindInt:
		i, _ := v.AsInt()
		return i
	case value.KindFloat:
		f, _ := v.AsFloat()
		return f
	case value.KindBool:
		b, _ := v.AsBool()
		return b
	case value.KindArray:
		arr, _ := v.AsArray()
		out := make([]interface{}, len(arr))
		for i, elem := range arr {
			out[i] = valueToJSON(elem)
		}
		return out
	case value.KindObject:
		obj, _ := v.AsObject()
		out := make(map[string]interface{}, obj.Len())
		for _, k := range obj.Keys() {
			elem, _ := obj.Get(k)
			out[k] = valueToJSON(elem)
		}
		return out
	default:
		return nil
	}
}

// outputsToJSON converts an output map into a JSON-friendly map.
func outputsToJSON(outputs map[string]value.Value) map[string]interface{} {
	out := make(map[string]interface{}, len(outputs))
	for k, v := range outputs {
		out[k] = valueToJSON(v)
	}
	return out
}
