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

package wazeroengine

import (
	"fmt"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/modulewise/composable-runtime/pkg/engine"
)

// Component binary section ids.
const (
	sectionCoreModule = 1
	sectionType       = 7
	sectionImport     = 10
	sectionExport     = 11
)

// Sorts used by import/export entries.
const (
	sortCore     = 0x00
	sortFunc     = 0x01
	sortInstance = 0x05
)

// isComponent reports whether the binary carries the component-model layer.
func isComponent(data []byte) bool {
	return len(data) >= 8 &&
		data[0] == 0x00 && data[1] == 0x61 && data[2] == 0x73 && data[3] == 0x6d &&
		data[6] == 0x01
}

// namedParam is a function parameter with its declared label.
type namedParam struct {
	name string
	typ  engine.Type
}

// funcType is a component-level function signature.
type funcType struct {
	params  []namedParam
	results []engine.Type
}

// instanceType collects the function exports of an instance type.
type instanceType struct {
	funcs map[string]*funcType
}

// typeEntry is one slot of the component type index space; at most one field
// is set. Unparsed entries stay empty.
type typeEntry struct {
	fn   *funcType
	inst *instanceType
	val  *engine.Type
}

// componentInfo is the parsed surface of a component binary.
type componentInfo struct {
	namespace string
	pkg       string

	imports []string
	exports []string

	// importFuncs and exportFuncs map interface ids to function signatures;
	// the empty interface key holds top-level function exports.
	importFuncs map[string]map[string]*funcType
	exportFuncs map[string]map[string]*funcType

	coreModules [][]byte
}

// parseComponent scans the component binary for core modules, imports,
// exports, and function signatures. The reader is bounded: constructs beyond
// its grammar subset end the enclosing section early instead of failing the
// parse, so metadata stays best-effort while section framing remains exact.
func parseComponent(data []byte) (*componentInfo, error) {
	if !isComponent(data) {
		return nil, fmt.Errorf("%w: not a component binary", engine.ErrParseFailed)
	}

	info := &componentInfo{
		importFuncs: make(map[string]map[string]*funcType),
		exportFuncs: make(map[string]map[string]*funcType),
	}
	var types []typeEntry

	r := &reader{data: data, off: 8}
	for !r.done() && r.err == nil {
		id := r.u8()
		size := r.uleb()
		if r.err != nil {
			break
		}
		start := r.off
		end := start + int(size)
		if end > len(data) {
			return nil, fmt.Errorf("%w: section %d exceeds binary size", engine.ErrParseFailed, id)
		}

		section := &reader{data: data[start:end]}
		switch id {
		case sectionCoreModule:
			info.coreModules = append(info.coreModules, data[start:end])
		case sectionType:
			parseTypeSection(section, &types)
		case sectionImport:
			parseImportSection(section, info, types)
		case sectionExport:
			parseExportSection(section, info, types)
		}

		r.off = end
	}
	if r.err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrParseFailed, r.err)
	}

	info.deriveIdentity()
	return info, nil
}

// deriveIdentity takes the WIT namespace and package from the first
// versioned interface id among exports, falling back to imports.
func (info *componentInfo) deriveIdentity() {
	for _, id := range append(append([]string{}, info.exports...), info.imports...) {
		if !strings.Contains(id, ":") {
			continue
		}
		ident, err := wit.ParseIdent(id)
		if err != nil {
			continue
		}
		info.namespace = ident.Namespace
		info.pkg = ident.Package
		return
	}
}

// metadata projects the parsed surface into the engine contract. Functions
// whose signatures use resources, futures, streams, or error-contexts are
// rejected here, so they never reach the invocation boundary.
func (info *componentInfo) metadata(exposed bool) *engine.Metadata {
	meta := &engine.Metadata{
		Namespace: info.namespace,
		Package:   info.pkg,
		Imports:   info.imports,
		Exports:   info.exports,
	}
	if !exposed {
		return meta
	}

	interfaces := 0
	for iface, funcs := range info.exportFuncs {
		if iface != "" && len(funcs) > 0 {
			interfaces++
		}
	}

	meta.Functions = make(map[string]engine.Function)
	for iface, funcs := range info.exportFuncs {
		for name, ft := range funcs {
			fn, ok := describeFunction(iface, name, ft)
			if !ok {
				continue
			}
			key := name
			if iface != "" && interfaces > 1 {
				key = shortInterfaceName(iface) + "." + name
			}
			meta.Functions[key] = fn
		}
	}
	return meta
}

func describeFunction(iface, name string, ft *funcType) (engine.Function, bool) {
	fn := engine.Function{Interface: iface, Name: name}
	if ft == nil {
		return fn, true
	}

	for _, param := range ft.params {
		schema, err := engine.Schema(param.typ)
		if err != nil {
			return engine.Function{}, false
		}
		fn.Params = append(fn.Params, engine.FunctionParam{
			Name:     param.name,
			Schema:   schema,
			Optional: param.typ.Kind() == engine.KindOption,
		})
	}
	if len(ft.results) == 1 {
		schema, err := engine.Schema(ft.results[0])
		if err != nil {
			return engine.Function{}, false
		}
		fn.Result = schema
	}
	return fn, true
}

// shortInterfaceName extracts "client" from "modulewise:test/client@0.1.0".
func shortInterfaceName(id string) string {
	if i := strings.Index(id, "/"); i >= 0 {
		id = id[i+1:]
	}
	if i := strings.Index(id, "@"); i >= 0 {
		id = id[:i]
	}
	return id
}

func parseTypeSection(r *reader, types *[]typeEntry) {
	count := r.uleb()
	for i := uint64(0); i < count && r.err == nil; i++ {
		entry, ok := parseTypeDef(r, *types)
		if !ok {
			return
		}
		*types = append(*types, entry)
	}
}

func parseTypeDef(r *reader, types []typeEntry) (typeEntry, bool) {
	switch tag := r.u8(); tag {
	case 0x40:
		ft, ok := parseFuncType(r, types)
		if !ok {
			return typeEntry{}, false
		}
		return typeEntry{fn: ft}, true
	case 0x42:
		inst, ok := parseInstanceType(r, types)
		if !ok {
			return typeEntry{}, false
		}
		return typeEntry{inst: inst}, true
	default:
		t, ok := parseValTypeTagged(r, tag, types)
		if !ok {
			return typeEntry{}, false
		}
		return typeEntry{val: &t}, true
	}
}

func parseFuncType(r *reader, types []typeEntry) (*funcType, bool) {
	ft := &funcType{}

	count := r.uleb()
	for i := uint64(0); i < count && r.err == nil; i++ {
		name := r.str()
		typ, ok := parseValType(r, types)
		if !ok {
			return nil, false
		}
		ft.params = append(ft.params, namedParam{name: name, typ: typ})
	}

	switch r.u8() {
	case 0x00:
		typ, ok := parseValType(r, types)
		if !ok {
			return nil, false
		}
		ft.results = []engine.Type{typ}
	case 0x01:
		if r.u8() != 0x00 {
			return nil, false
		}
	default:
		return nil, false
	}
	return ft, r.err == nil
}

func parseInstanceType(r *reader, _ []typeEntry) (*instanceType, bool) {
	inst := &instanceType{funcs: make(map[string]*funcType)}
	var local []typeEntry

	count := r.uleb()
	for i := uint64(0); i < count && r.err == nil; i++ {
		switch r.u8() {
		case 0x01: // type declaration
			entry, ok := parseTypeDef(r, local)
			if !ok {
				return inst, true
			}
			local = append(local, entry)
		case 0x02: // alias; sorts of type extend the local index space
			isType, ok := parseAlias(r)
			if !ok {
				return inst, true
			}
			if isType {
				local = append(local, typeEntry{})
			}
		case 0x04: // export declaration
			name, ok := parseExternName(r)
			if !ok {
				return inst, true
			}
			kind, idx, ok := parseExternDesc(r, local)
			if !ok {
				return inst, true
			}
			if kind == sortFunc && int(idx) < len(local) && local[idx].fn != nil {
				inst.funcs[name] = local[idx].fn
			} else if kind == sortFunc {
				inst.funcs[name] = nil
			}
		default:
			// Core types and nested declarations are beyond the reader's
			// grammar; keep what was collected.
			return inst, true
		}
	}
	return inst, r.err == nil
}

// parseAlias consumes an alias declaration and reports whether it defines a
// type in the local index space.
func parseAlias(r *reader) (isType bool, ok bool) {
	sort := r.u8()
	if sort == sortCore {
		r.u8()
	}
	switch r.u8() {
	case 0x00, 0x01:
		r.uleb()
		r.str()
	case 0x02:
		r.uleb()
		r.uleb()
	default:
		return false, false
	}
	return sort == 0x03, r.err == nil
}

func parseImportSection(r *reader, info *componentInfo, types []typeEntry) {
	count := r.uleb()
	for i := uint64(0); i < count && r.err == nil; i++ {
		name, ok := parseExternName(r)
		if !ok {
			return
		}
		kind, idx, ok := parseExternDesc(r, types)
		if !ok {
			return
		}

		info.imports = append(info.imports, name)
		if kind == sortInstance && int(idx) < len(types) && types[idx].inst != nil {
			info.importFuncs[name] = types[idx].inst.funcs
		}
	}
}

func parseExportSection(r *reader, info *componentInfo, types []typeEntry) {
	count := r.uleb()
	for i := uint64(0); i < count && r.err == nil; i++ {
		name, ok := parseExternName(r)
		if !ok {
			return
		}

		sort := r.u8()
		if sort == sortCore {
			r.u8()
		}
		r.uleb() // index within the sort's space

		declared := -1
		switch r.u8() {
		case 0x00:
		case 0x01:
			kind, idx, ok := parseExternDesc(r, types)
			if !ok {
				return
			}
			if kind == int(sort) || kind == sortInstance || kind == sortFunc {
				declared = int(idx)
			}
		default:
			return
		}

		switch sort {
		case sortInstance:
			info.exports = append(info.exports, name)
			funcs := map[string]*funcType{}
			if declared >= 0 && declared < len(types) && types[declared].inst != nil {
				funcs = types[declared].inst.funcs
			}
			info.exportFuncs[name] = funcs
		case sortFunc:
			top := info.exportFuncs[""]
			if top == nil {
				top = make(map[string]*funcType)
				info.exportFuncs[""] = top
			}
			if declared >= 0 && declared < len(types) && types[declared].fn != nil {
				top[name] = types[declared].fn
			} else {
				top[name] = nil
			}
		}
	}
}

// parseExternName reads an importname' / exportname' (kind byte + string).
func parseExternName(r *reader) (string, bool) {
	switch r.u8() {
	case 0x00, 0x01:
		return r.str(), r.err == nil
	}
	return "", false
}

// parseExternDesc reads an externdesc and returns its sort and type index
// where one applies.
func parseExternDesc(r *reader, types []typeEntry) (kind int, idx uint64, ok bool) {
	switch tag := r.u8(); tag {
	case 0x00: // core module
		r.u8()
		r.uleb()
		return int(tag), 0, r.err == nil
	case 0x01, 0x04, 0x05: // func, component, instance
		idx = r.uleb()
		return int(tag), idx, r.err == nil
	case 0x02: // value
		switch r.u8() {
		case 0x00:
			r.uleb()
		case 0x01:
			if _, ok := parseValType(r, types); !ok {
				return 0, 0, false
			}
		default:
			return 0, 0, false
		}
		return int(tag), 0, r.err == nil
	case 0x03: // type bound
		switch r.u8() {
		case 0x00:
			r.uleb()
		case 0x01:
		default:
			return 0, 0, false
		}
		return int(tag), 0, r.err == nil
	}
	return 0, 0, false
}

func parseValType(r *reader, types []typeEntry) (engine.Type, bool) {
	return parseValTypeTagged(r, r.u8(), types)
}

var primitiveTypes = map[byte]func() engine.Type{
	0x7f: engine.Bool,
	0x7e: engine.S8,
	0x7d: engine.U8,
	0x7c: engine.S16,
	0x7b: engine.U16,
	0x7a: engine.S32,
	0x79: engine.U32,
	0x78: engine.S64,
	0x77: engine.U64,
	0x76: engine.F32,
	0x75: engine.F64,
	0x74: engine.Char,
	0x73: engine.String,
}

func parseValTypeTagged(r *reader, tag byte, types []typeEntry) (engine.Type, bool) {
	if prim, ok := primitiveTypes[tag]; ok {
		return prim(), true
	}

	switch tag {
	case 0x72: // record
		count := r.uleb()
		fields := make([]engine.Field, 0, count)
		for i := uint64(0); i < count; i++ {
			name := r.str()
			typ, ok := parseValType(r, types)
			if !ok {
				return engine.Type{}, false
			}
			fields = append(fields, engine.Field{Name: name, Type: typ})
		}
		return engine.Record(fields...), r.err == nil
	case 0x71: // variant
		count := r.uleb()
		cases := make([]engine.Case, 0, count)
		for i := uint64(0); i < count; i++ {
			name := r.str()
			c := engine.Case{Name: name}
			if r.u8() == 0x01 {
				typ, ok := parseValType(r, types)
				if !ok {
					return engine.Type{}, false
				}
				c.Type = &typ
			}
			if r.u8() == 0x01 {
				r.uleb() // refines
			}
			cases = append(cases, c)
		}
		return engine.Variant(cases...), r.err == nil
	case 0x70: // list
		elem, ok := parseValType(r, types)
		if !ok {
			return engine.Type{}, false
		}
		return engine.List(elem), true
	case 0x6f: // tuple
		count := r.uleb()
		members := make([]engine.Type, 0, count)
		for i := uint64(0); i < count; i++ {
			member, ok := parseValType(r, types)
			if !ok {
				return engine.Type{}, false
			}
			members = append(members, member)
		}
		return engine.Tuple(members...), r.err == nil
	case 0x6e: // flags
		return engine.Flags(parseLabels(r)...), r.err == nil
	case 0x6d: // enum
		return engine.Enum(parseLabels(r)...), r.err == nil
	case 0x6b: // option
		elem, ok := parseValType(r, types)
		if !ok {
			return engine.Type{}, false
		}
		return engine.Option(elem), true
	case 0x6a: // result
		var okType, errType *engine.Type
		if r.u8() == 0x01 {
			typ, ok := parseValType(r, types)
			if !ok {
				return engine.Type{}, false
			}
			okType = &typ
		}
		if r.u8() == 0x01 {
			typ, ok := parseValType(r, types)
			if !ok {
				return engine.Type{}, false
			}
			errType = &typ
		}
		return engine.Result(okType, errType), r.err == nil
	case 0x69, 0x68: // own, borrow
		r.uleb()
		return engine.Resource(), r.err == nil
	case 0x66: // stream
		if r.u8() == 0x01 {
			if _, ok := parseValType(r, types); !ok {
				return engine.Type{}, false
			}
		}
		return engine.Stream(), r.err == nil
	case 0x65: // future
		if r.u8() == 0x01 {
			if _, ok := parseValType(r, types); !ok {
				return engine.Type{}, false
			}
		}
		return engine.Future(), r.err == nil
	case 0x64: // error-context
		return engine.ErrorContext(), true
	case 0x3f: // resource
		r.u8()
		if r.u8() == 0x01 {
			r.uleb()
		}
		return engine.Resource(), r.err == nil
	}

	// Anything else is a type index; small indices share the tag byte.
	idx := uint64(tag)
	if int(idx) < len(types) && types[idx].val != nil {
		return *types[idx].val, true
	}
	return engine.Type{}, false
}

func parseLabels(r *reader) []string {
	count := r.uleb()
	labels := make([]string, 0, count)
	for i := uint64(0); i < count && r.err == nil; i++ {
		labels = append(labels, r.str())
	}
	return labels
}

// reader is a bounds-checked little-endian binary reader with a sticky error.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) done() bool { return r.off >= len(r.data) }

func (r *reader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf(format, args...)
	}
}

func (r *reader) u8() byte {
	if r.err != nil {
		return 0
	}
	if r.off >= len(r.data) {
		r.fail("unexpected end of section at offset %d", r.off)
		return 0
	}
	b := r.data[r.off]
	r.off++
	return b
}

func (r *reader) uleb() uint64 {
	var result uint64
	var shift uint
	for {
		b := r.u8()
		if r.err != nil {
			return 0
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result
		}
		shift += 7
		if shift >= 64 {
			r.fail("uleb128 overflow at offset %d", r.off)
			return 0
		}
	}
}

func (r *reader) str() string {
	length := r.uleb()
	if r.err != nil {
		return ""
	}
	if r.off+int(length) > len(r.data) {
		r.fail("string of %d bytes exceeds section at offset %d", length, r.off)
		return ""
	}
	s := string(r.data[r.off : r.off+int(length)])
	r.off += int(length)
	return s
}
