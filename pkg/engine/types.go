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

package engine

import "fmt"

// Kind enumerates the Component Model value types.
type Kind uint8

const (
	KindBool Kind = iota
	KindU8
	KindU16
	KindU32
	KindU64
	KindS8
	KindS16
	KindS32
	KindS64
	KindF32
	KindF64
	KindChar
	KindString
	KindList
	KindRecord
	KindTuple
	KindVariant
	KindEnum
	KindOption
	KindResult
	KindFlags
	KindResource
	KindFuture
	KindStream
	KindErrorContext
)

// String returns the WIT spelling of the kind.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindS8:
		return "s8"
	case KindS16:
		return "s16"
	case KindS32:
		return "s32"
	case KindS64:
		return "s64"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	case KindChar:
		return "char"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindRecord:
		return "record"
	case KindTuple:
		return "tuple"
	case KindVariant:
		return "variant"
	case KindEnum:
		return "enum"
	case KindOption:
		return "option"
	case KindResult:
		return "result"
	case KindFlags:
		return "flags"
	case KindResource:
		return "resource"
	case KindFuture:
		return "future"
	case KindStream:
		return "stream"
	case KindErrorContext:
		return "error-context"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Type describes a Component Model value type.
type Type struct {
	kind   Kind
	elem   *Type   // list and option element
	fields []Field // record fields
	types  []Type  // tuple members
	cases  []Case  // variant cases
	names  []string
	ok     *Type
	err    *Type
}

// Field is a named record member.
type Field struct {
	Name string
	Type Type
}

// Case is a variant alternative with an optional payload.
type Case struct {
	Name string
	Type *Type
}

// Primitive constructors.

func Bool() Type   { return Type{kind: KindBool} }
func U8() Type     { return Type{kind: KindU8} }
func U16() Type    { return Type{kind: KindU16} }
func U32() Type    { return Type{kind: KindU32} }
func U64() Type    { return Type{kind: KindU64} }
func S8() Type     { return Type{kind: KindS8} }
func S16() Type    { return Type{kind: KindS16} }
func S32() Type    { return Type{kind: KindS32} }
func S64() Type    { return Type{kind: KindS64} }
func F32() Type    { return Type{kind: KindF32} }
func F64() Type    { return Type{kind: KindF64} }
func Char() Type   { return Type{kind: KindChar} }
func String() Type { return Type{kind: KindString} }

// List returns a list<elem> type.
func List(elem Type) Type { return Type{kind: KindList, elem: &elem} }

// Option returns an option<elem> type.
func Option(elem Type) Type { return Type{kind: KindOption, elem: &elem} }

// Record returns a record type with the given fields.
func Record(fields ...Field) Type { return Type{kind: KindRecord, fields: fields} }

// Tuple returns a tuple type with the given members.
func Tuple(types ...Type) Type { return Type{kind: KindTuple, types: types} }

// Variant returns a variant type with the given cases.
func Variant(cases ...Case) Type { return Type{kind: KindVariant, cases: cases} }

// Enum returns an enum type with the given value names.
func Enum(names ...string) Type { return Type{kind: KindEnum, names: names} }

// Flags returns a flags type with the given flag names.
func Flags(names ...string) Type { return Type{kind: KindFlags, names: names} }

// Result returns a result type. Either arm may be nil for an empty payload.
func Result(ok, err *Type) Type { return Type{kind: KindResult, ok: ok, err: err} }

// Resource returns an (unsupported at the invocation boundary) resource type.
func Resource() Type { return Type{kind: KindResource} }

// Future returns an (unsupported at the invocation boundary) future type.
func Future() Type { return Type{kind: KindFuture} }

// Stream returns an (unsupported at the invocation boundary) stream type.
func Stream() Type { return Type{kind: KindStream} }

// ErrorContext returns an (unsupported at the invocation boundary) error-context type.
func ErrorContext() Type { return Type{kind: KindErrorContext} }

func (t Type) Kind() Kind { return t.kind }

// Elem returns the element type of a list or option.
func (t Type) Elem() Type { return *t.elem }

// Fields returns the fields of a record.
func (t Type) Fields() []Field { return t.fields }

// Types returns the member types of a tuple.
func (t Type) Types() []Type { return t.types }

// Cases returns the cases of a variant.
func (t Type) Cases() []Case { return t.cases }

// Names returns the value names of an enum or flags type.
func (t Type) Names() []string { return t.names }

// ResultTypes returns the ok and err payload types of a result; either may be nil.
func (t Type) ResultTypes() (ok, err *Type) { return t.ok, t.err }

// Schema maps the type to a JSON-schema shape for function descriptions.
// Resource, future, stream, and error-context types are rejected so that
// functions carrying them are excluded during enumeration.
func Schema(t Type) (map[string]any, error) {
	switch t.kind {
	case KindBool:
		return map[string]any{"type": "boolean"}, nil
	case KindU8, KindU16, KindU32, KindU64, KindS8, KindS16, KindS32, KindS64:
		return map[string]any{"type": "integer"}, nil
	case KindF32, KindF64:
		return map[string]any{"type": "number"}, nil
	case KindChar:
		return map[string]any{"type": "string", "maxLength": 1, "minLength": 1}, nil
	case KindString, KindEnum:
		return map[string]any{"type": "string"}, nil
	case KindList:
		items, err := Schema(t.Elem())
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": "array", "items": items}, nil
	case KindTuple:
		items := make([]any, 0, len(t.types))
		for _, member := range t.types {
			s, err := Schema(member)
			if err != nil {
				return nil, err
			}
			items = append(items, s)
		}
		return map[string]any{"type": "array", "prefixItems": items}, nil
	case KindRecord:
		props := make(map[string]any, len(t.fields))
		required := make([]any, 0, len(t.fields))
		for _, f := range t.fields {
			s, err := Schema(f.Type)
			if err != nil {
				return nil, err
			}
			props[f.Name] = s
			if f.Type.Kind() != KindOption {
				required = append(required, f.Name)
			}
		}
		schema := map[string]any{"type": "object", "properties": props}
		if len(required) > 0 {
			schema["required"] = required
		}
		return schema, nil
	case KindVariant:
		for _, c := range t.cases {
			if c.Type != nil {
				if _, err := Schema(*c.Type); err != nil {
					return nil, err
				}
			}
		}
		return map[string]any{"type": "object"}, nil
	case KindOption:
		return Schema(t.Elem())
	case KindResult:
		if t.ok != nil {
			if _, err := Schema(*t.ok); err != nil {
				return nil, err
			}
		}
		if t.err != nil {
			if _, err := Schema(*t.err); err != nil {
				return nil, err
			}
		}
		return map[string]any{"type": "object"}, nil
	case KindFlags:
		return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t.kind)
}
