package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Filter keeps the records of a list matching an expr expression such as
//
//	needs_processing && location_kind == "quarantine"
//	len(paths) > 1
//	date(created_at) > date("2025-01-01")
//
// Fields are addressed by their json names. Unknown fields evaluate to nil.
type Filter struct {
	expression string
	program    *vm.Program
}

// NewFilter compiles expression. An empty expression keeps everything.
func NewFilter(expression string) (*Filter, error) {
	f := &Filter{expression: expression}
	if expression == "" {
		return f, nil
	}

	program, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", expression, err)
	}
	f.program = program
	return f, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	return f.expression
}

// Match evaluates the filter against one record.
func (f *Filter) Match(record interface{}) (bool, error) {
	if f == nil || f.program == nil {
		return true, nil
	}

	env, err := toEnv(record)
	if err != nil {
		return false, err
	}

	out, err := expr.Run(f.program, env)
	if err != nil {
		return false, fmt.Errorf("filter %q: %w", f.expression, err)
	}
	matched, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("filter %q: expected a boolean result, got %T", f.expression, out)
	}
	return matched, nil
}

// Apply returns the elements of the slice items matching the filter, in a
// slice of the same type. Non-slice values are returned unchanged.
func (f *Filter) Apply(items interface{}) (interface{}, error) {
	if f == nil || f.program == nil || items == nil {
		return items, nil
	}

	v := reflect.ValueOf(items)
	if v.Kind() != reflect.Slice {
		return items, nil
	}

	out := reflect.MakeSlice(v.Type(), 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		elem := v.Index(i)
		ok, err := f.Match(elem.Interface())
		if err != nil {
			return nil, err
		}
		if ok {
			out = reflect.Append(out, elem)
		}
	}
	return out.Interface(), nil
}

// toGeneric converts data into maps and slices through its JSON form.
// Integers stay int64 so that large counts are not rendered in exponent
// form; other numbers become float64.
func toGeneric(data interface{}) (interface{}, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to convert output: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var out interface{}
	if err := decoder.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to convert output: %w", err)
	}
	return convertNumbers(out), nil
}

func convertNumbers(value interface{}) interface{} {
	switch val := value.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case []interface{}:
		for i, item := range val {
			val[i] = convertNumbers(item)
		}
		return val
	case map[string]interface{}:
		for k, item := range val {
			val[k] = convertNumbers(item)
		}
		return val
	default:
		return value
	}
}

// toEnv converts a record into an expression environment with float64 numbers.
func toEnv(record interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to convert record: %w", err)
	}

	var env map[string]interface{}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("record is not an object: %w", err)
	}
	return env, nil
}
