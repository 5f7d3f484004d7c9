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

import "math"

// Val is a Component Model value. The zero value is the boolean false.
type Val struct {
	kind   Kind
	b      bool
	num    uint64
	str    string
	vals   []Val
	fields []FieldVal
	names  []string
	inner  *Val
}

// FieldVal is a named record member value.
type FieldVal struct {
	Name  string
	Value Val
}

func BoolVal(b bool) Val     { return Val{kind: KindBool, b: b} }
func U8Val(v uint8) Val      { return Val{kind: KindU8, num: uint64(v)} }
func U16Val(v uint16) Val    { return Val{kind: KindU16, num: uint64(v)} }
func U32Val(v uint32) Val    { return Val{kind: KindU32, num: uint64(v)} }
func U64Val(v uint64) Val    { return Val{kind: KindU64, num: v} }
func S8Val(v int8) Val       { return Val{kind: KindS8, num: uint64(v)} }
func S16Val(v int16) Val     { return Val{kind: KindS16, num: uint64(v)} }
func S32Val(v int32) Val     { return Val{kind: KindS32, num: uint64(v)} }
func S64Val(v int64) Val     { return Val{kind: KindS64, num: uint64(v)} }
func F32Val(v float32) Val   { return Val{kind: KindF32, num: uint64(math.Float32bits(v))} }
func F64Val(v float64) Val   { return Val{kind: KindF64, num: math.Float64bits(v)} }
func CharVal(r rune) Val     { return Val{kind: KindChar, num: uint64(r)} }
func StringVal(s string) Val { return Val{kind: KindString, str: s} }

// ListVal returns a list value with the given elements.
func ListVal(elems ...Val) Val { return Val{kind: KindList, vals: elems} }

// TupleVal returns a tuple value with the given members.
func TupleVal(members ...Val) Val { return Val{kind: KindTuple, vals: members} }

// RecordVal returns a record value with the given fields.
func RecordVal(fields ...FieldVal) Val { return Val{kind: KindRecord, fields: fields} }

// VariantVal returns a variant value; payload may be nil.
func VariantVal(caseName string, payload *Val) Val {
	return Val{kind: KindVariant, str: caseName, inner: payload}
}

// EnumVal returns an enum value.
func EnumVal(name string) Val { return Val{kind: KindEnum, str: name} }

// SomeVal returns an option value carrying v.
func SomeVal(v Val) Val { return Val{kind: KindOption, inner: &v} }

// NoneVal returns the empty option value.
func NoneVal() Val { return Val{kind: KindOption} }

// OkVal returns a result value on the ok arm; payload may be nil.
func OkVal(payload *Val) Val { return Val{kind: KindResult, b: true, inner: payload} }

// ErrVal returns a result value on the error arm; payload may be nil.
func ErrVal(payload *Val) Val { return Val{kind: KindResult, b: false, inner: payload} }

// FlagsVal returns a flags value with the given set flag names.
func FlagsVal(names ...string) Val { return Val{kind: KindFlags, names: names} }

func (v Val) Kind() Kind { return v.kind }

func (v Val) Bool() bool       { return v.b }
func (v Val) U8() uint8        { return uint8(v.num) }
func (v Val) U16() uint16      { return uint16(v.num) }
func (v Val) U32() uint32      { return uint32(v.num) }
func (v Val) U64() uint64      { return v.num }
func (v Val) S8() int8         { return int8(v.num) }
func (v Val) S16() int16       { return int16(v.num) }
func (v Val) S32() int32       { return int32(v.num) }
func (v Val) S64() int64       { return int64(v.num) }
func (v Val) F32() float32     { return math.Float32frombits(uint32(v.num)) }
func (v Val) F64() float64     { return math.Float64frombits(v.num) }
func (v Val) Char() rune       { return rune(v.num) }
func (v Val) Str() string      { return v.str }
func (v Val) List() []Val      { return v.vals }
func (v Val) Tuple() []Val     { return v.vals }
func (v Val) Flags() []string  { return v.names }
func (v Val) Enum() string     { return v.str }
func (v Val) Fields() []FieldVal { return v.fields }

// Case returns the variant case name and its payload (nil if none).
func (v Val) Case() (string, *Val) { return v.str, v.inner }

// Option returns the payload of an option value, nil for none.
func (v Val) Option() *Val { return v.inner }

// Result reports the arm of a result value and its payload (nil if none).
func (v Val) Result() (ok bool, payload *Val) { return v.b, v.inner }
