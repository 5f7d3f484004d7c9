/*
Copyright 2025 The Modulewise Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package values maps JSON values to Component Model values and back. JSON
// values are the shapes produced by encoding/json into any: nil, bool,
// json.Number (or float64), string, []any, and map[string]any.
package values

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/modulewise/composable-runtime/pkg/engine"
)

// ErrMarshalFailed reports a JSON value that does not match the expected
// Component Model type.
var ErrMarshalFailed = errors.New("marshal failed")

// ToVal converts a JSON value to a Component Model value of the given type.
func ToVal(j any, t engine.Type) (engine.Val, error) {
	switch t.Kind() {
	case engine.KindOption:
		if j == nil {
			return engine.NoneVal(), nil
		}
		inner, err := ToVal(j, t.Elem())
		if err != nil {
			return engine.Val{}, err
		}
		return engine.SomeVal(inner), nil

	case engine.KindBool:
		if b, ok := j.(bool); ok {
			return engine.BoolVal(b), nil
		}

	case engine.KindString:
		if s, ok := j.(string); ok {
			return engine.StringVal(s), nil
		}

	case engine.KindChar:
		if s, ok := j.(string); ok {
			runes := []rune(s)
			if len(runes) != 1 {
				return engine.Val{}, fmt.Errorf("%w: expected single character, got: %q", ErrMarshalFailed, s)
			}
			return engine.CharVal(runes[0]), nil
		}

	case engine.KindU8, engine.KindU16, engine.KindU32, engine.KindU64:
		if n, ok := asNumber(j); ok {
			return unsignedVal(n, t.Kind())
		}

	case engine.KindS8, engine.KindS16, engine.KindS32, engine.KindS64:
		if n, ok := asNumber(j); ok {
			return signedVal(n, t.Kind())
		}

	case engine.KindF32, engine.KindF64:
		if n, ok := asNumber(j); ok {
			f, err := strconv.ParseFloat(n.String(), 64)
			if err != nil {
				return engine.Val{}, fmt.Errorf("%w: invalid number for %s: %s", ErrMarshalFailed, t.Kind(), n)
			}
			if t.Kind() == engine.KindF32 {
				return engine.F32Val(float32(f)), nil
			}
			return engine.F64Val(f), nil
		}

	case engine.KindList:
		if arr, ok := j.([]any); ok {
			elems := make([]engine.Val, 0, len(arr))
			for i, item := range arr {
				v, err := ToVal(item, t.Elem())
				if err != nil {
					return engine.Val{}, fmt.Errorf("error converting list item at index %d: %w", i, err)
				}
				elems = append(elems, v)
			}
			return engine.ListVal(elems...), nil
		}

	case engine.KindTuple:
		if arr, ok := j.([]any); ok {
			members := t.Types()
			if len(arr) != len(members) {
				return engine.Val{}, fmt.Errorf("%w: tuple length mismatch: expected %d, got %d",
					ErrMarshalFailed, len(members), len(arr))
			}
			vals := make([]engine.Val, 0, len(arr))
			for i, item := range arr {
				v, err := ToVal(item, members[i])
				if err != nil {
					return engine.Val{}, fmt.Errorf("error converting tuple item at index %d: %w", i, err)
				}
				vals = append(vals, v)
			}
			return engine.TupleVal(vals...), nil
		}

	case engine.KindRecord:
		if obj, ok := j.(map[string]any); ok {
			return recordVal(obj, t)
		}
	}

	return engine.Val{}, fmt.Errorf("%w: cannot convert JSON %v to type %s", ErrMarshalFailed, j, t.Kind())
}

func recordVal(obj map[string]any, t engine.Type) (engine.Val, error) {
	fields := make([]engine.FieldVal, 0, len(t.Fields()))
	for _, field := range t.Fields() {
		if j, present := obj[field.Name]; present {
			v, err := ToVal(j, field.Type)
			if err != nil {
				return engine.Val{}, err
			}
			fields = append(fields, engine.FieldVal{Name: field.Name, Value: v})
			continue
		}
		if field.Type.Kind() == engine.KindOption {
			fields = append(fields, engine.FieldVal{Name: field.Name, Value: engine.NoneVal()})
			continue
		}
		return engine.Val{}, fmt.Errorf("%w: missing required field %q in record", ErrMarshalFailed, field.Name)
	}
	for key := range obj {
		known := false
		for _, field := range t.Fields() {
			if field.Name == key {
				known = true
				break
			}
		}
		if !known {
			return engine.Val{}, fmt.Errorf("%w: unexpected field %q in record", ErrMarshalFailed, key)
		}
	}
	return engine.RecordVal(fields...), nil
}

func unsignedVal(n json.Number, kind engine.Kind) (engine.Val, error) {
	bits := map[engine.Kind]int{engine.KindU8: 8, engine.KindU16: 16, engine.KindU32: 32, engine.KindU64: 64}[kind]
	v, err := strconv.ParseUint(n.String(), 10, bits)
	if err != nil {
		return engine.Val{}, fmt.Errorf("%w: invalid number for %s: %s", ErrMarshalFailed, kind, n)
	}
	switch kind {
	case engine.KindU8:
		return engine.U8Val(uint8(v)), nil
	case engine.KindU16:
		return engine.U16Val(uint16(v)), nil
	case engine.KindU32:
		return engine.U32Val(uint32(v)), nil
	default:
		return engine.U64Val(v), nil
	}
}

func signedVal(n json.Number, kind engine.Kind) (engine.Val, error) {
	bits := map[engine.Kind]int{engine.KindS8: 8, engine.KindS16: 16, engine.KindS32: 32, engine.KindS64: 64}[kind]
	v, err := strconv.ParseInt(n.String(), 10, bits)
	if err != nil {
		return engine.Val{}, fmt.Errorf("%w: invalid number for %s: %s", ErrMarshalFailed, kind, n)
	}
	switch kind {
	case engine.KindS8:
		return engine.S8Val(int8(v)), nil
	case engine.KindS16:
		return engine.S16Val(int16(v)), nil
	case engine.KindS32:
		return engine.S32Val(int32(v)), nil
	default:
		return engine.S64Val(v), nil
	}
}

func asNumber(j any) (json.Number, bool) {
	switch n := j.(type) {
	case json.Number:
		return n, true
	case float64:
		return json.Number(strconv.FormatFloat(n, 'f', -1, 64)), true
	case int:
		return json.Number(strconv.FormatInt(int64(n), 10)), true
	case int64:
		return json.Number(strconv.FormatInt(n, 10)), true
	case uint64:
		return json.Number(strconv.FormatUint(n, 10)), true
	}
	return "", false
}

// FromVal converts a Component Model value to a JSON value. Resources,
// futures, streams, and error-contexts never reach this boundary; function
// enumeration rejects them up front.
func FromVal(v engine.Val) any {
	switch v.Kind() {
	case engine.KindBool:
		return v.Bool()
	case engine.KindString:
		return v.Str()
	case engine.KindChar:
		return string(v.Char())
	case engine.KindU8:
		return uint64(v.U8())
	case engine.KindU16:
		return uint64(v.U16())
	case engine.KindU32:
		return uint64(v.U32())
	case engine.KindU64:
		return v.U64()
	case engine.KindS8:
		return int64(v.S8())
	case engine.KindS16:
		return int64(v.S16())
	case engine.KindS32:
		return int64(v.S32())
	case engine.KindS64:
		return v.S64()
	case engine.KindF32:
		return finiteOrNull(float64(v.F32()))
	case engine.KindF64:
		return finiteOrNull(v.F64())
	case engine.KindList, engine.KindTuple:
		items := make([]any, 0, len(v.List()))
		for _, item := range v.List() {
			items = append(items, FromVal(item))
		}
		return items
	case engine.KindRecord:
		obj := make(map[string]any, len(v.Fields()))
		for _, field := range v.Fields() {
			obj[field.Name] = FromVal(field.Value)
		}
		return obj
	case engine.KindOption:
		if payload := v.Option(); payload != nil {
			return FromVal(*payload)
		}
		return nil
	case engine.KindVariant:
		name, payload := v.Case()
		obj := map[string]any{"type": name}
		if payload != nil {
			switch p := FromVal(*payload).(type) {
			case map[string]any:
				for k, pv := range p {
					obj[k] = pv
				}
			default:
				// Non-object payloads keep a "value" key so the result
				// remains a valid JSON object.
				obj["value"] = p
			}
		}
		return obj
	case engine.KindEnum:
		return v.Enum()
	case engine.KindFlags:
		items := make([]any, 0, len(v.Flags()))
		for _, name := range v.Flags() {
			items = append(items, name)
		}
		return items
	case engine.KindResult:
		ok, payload := v.Result()
		key := "error"
		if ok {
			key = "ok"
		}
		if payload != nil {
			return map[string]any{key: FromVal(*payload)}
		}
		return map[string]any{key: nil}
	}
	panic(fmt.Sprintf("type %s should be caught by validation", v.Kind()))
}

func finiteOrNull(f float64) any {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	return f
}
