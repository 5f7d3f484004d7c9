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
	"reflect"
	"testing"
)

// bin builds component binary fragments in the format the parser reads.
type bin struct {
	b []byte
}

func (w *bin) u8(v byte) *bin { w.b = append(w.b, v); return w }

func (w *bin) uleb(v uint64) *bin {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.b = append(w.b, b)
		if v == 0 {
			return w
		}
	}
}

func (w *bin) str(s string) *bin {
	w.uleb(uint64(len(s)))
	w.b = append(w.b, s...)
	return w
}

func (w *bin) raw(data []byte) *bin { w.b = append(w.b, data...); return w }

func component(sections ...[2]any) []byte {
	out := &bin{b: []byte{0x00, 0x61, 0x73, 0x6d, 0x0d, 0x00, 0x01, 0x00}}
	for _, section := range sections {
		id := section[0].(byte)
		payload := section[1].([]byte)
		out.u8(id).uleb(uint64(len(payload))).raw(payload)
	}
	return out.b
}

// clientComponent builds a component exporting
// modulewise:test/client@0.1.0 { query() } and importing a config store.
func clientComponent() []byte {
	types := &bin{}
	types.uleb(2)
	// type 0: instance type with query: func()
	types.u8(0x42).uleb(2)
	types.u8(0x01).u8(0x40).uleb(0).u8(0x01).u8(0x00) // local type 0: func() -> ()
	types.u8(0x04).u8(0x00).str("query").u8(0x01).uleb(0)
	// type 1: empty instance type for the import
	types.u8(0x42).uleb(0)

	imports := &bin{}
	imports.uleb(1)
	imports.u8(0x00).str("wasi:config/store@0.2.0-rc.1").u8(0x05).uleb(1)

	exports := &bin{}
	exports.uleb(1)
	exports.u8(0x00).str("modulewise:test/client@0.1.0").u8(0x05).uleb(0).u8(0x01).u8(0x05).uleb(0)

	core := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	return component(
		[2]any{byte(sectionCoreModule), core},
		[2]any{byte(sectionType), types.b},
		[2]any{byte(sectionImport), imports.b},
		[2]any{byte(sectionExport), exports.b},
	)
}

func TestIsComponent(t *testing.T) {
	t.Parallel()

	if !isComponent(clientComponent()) {
		t.Error("isComponent(component) = false, want true")
	}
	core := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	if isComponent(core) {
		t.Error("isComponent(core module) = true, want false")
	}
	if isComponent([]byte{0x00, 0x61}) {
		t.Error("isComponent(truncated) = true, want false")
	}
}

func TestParseComponent(t *testing.T) {
	t.Parallel()

	info, err := parseComponent(clientComponent())
	if err != nil {
		t.Fatalf("parseComponent() = %v", err)
	}

	if got, want := info.imports, []string{"wasi:config/store@0.2.0-rc.1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("imports = %v, want %v", got, want)
	}
	if got, want := info.exports, []string{"modulewise:test/client@0.1.0"}; !reflect.DeepEqual(got, want) {
		t.Errorf("exports = %v, want %v", got, want)
	}
	if got := len(info.coreModules); got != 1 {
		t.Errorf("len(coreModules) = %d, want 1", got)
	}
	if info.namespace != "modulewise" || info.pkg != "test" {
		t.Errorf("identity = %s:%s, want modulewise:test", info.namespace, info.pkg)
	}

	funcs := info.exportFuncs["modulewise:test/client@0.1.0"]
	if funcs == nil {
		t.Fatal("exported interface has no function table")
	}
	ft, ok := funcs["query"]
	if !ok || ft == nil {
		t.Fatalf("query signature missing: %v", funcs)
	}
	if len(ft.params) != 0 || len(ft.results) != 0 {
		t.Errorf("query signature = %+v, want no params, no results", ft)
	}
}

func TestParseComponentFunctionEnumeration(t *testing.T) {
	t.Parallel()

	meta := mustParse(t, clientComponent()).metadata(true)

	fn, ok := meta.Functions["query"]
	if !ok {
		t.Fatalf("Functions = %v, want query", meta.Functions)
	}
	if fn.Interface != "modulewise:test/client@0.1.0" {
		t.Errorf("Interface = %q", fn.Interface)
	}
	if len(fn.Params) != 0 || fn.Result != nil {
		t.Errorf("query = %+v, want no params, no result", fn)
	}

	unexposed := mustParse(t, clientComponent()).metadata(false)
	if unexposed.Functions != nil {
		t.Errorf("unexposed Functions = %v, want nil", unexposed.Functions)
	}
}

func TestParseTypedParams(t *testing.T) {
	t.Parallel()

	types := &bin{}
	types.uleb(1)
	// instance type with greet: func(name: string, count: option<u8>) -> string
	types.u8(0x42).uleb(2)
	types.u8(0x01).u8(0x40).
		uleb(2).
		str("name").u8(0x73).
		str("count").u8(0x6b).u8(0x7d).
		u8(0x00).u8(0x73)
	types.u8(0x04).u8(0x00).str("greet").u8(0x01).uleb(0)

	exports := &bin{}
	exports.uleb(1)
	exports.u8(0x00).str("modulewise:test/greeter@0.1.0").u8(0x05).uleb(0).u8(0x01).u8(0x05).uleb(0)

	data := component(
		[2]any{byte(sectionType), types.b},
		[2]any{byte(sectionExport), exports.b},
	)

	meta := mustParse(t, data).metadata(true)
	fn, ok := meta.Functions["greet"]
	if !ok {
		t.Fatalf("Functions = %v, want greet", meta.Functions)
	}

	if len(fn.Params) != 2 {
		t.Fatalf("len(Params) = %d, want 2", len(fn.Params))
	}
	if fn.Params[0].Name != "name" || fn.Params[0].Optional {
		t.Errorf("Params[0] = %+v", fn.Params[0])
	}
	if fn.Params[1].Name != "count" || !fn.Params[1].Optional {
		t.Errorf("Params[1] = %+v", fn.Params[1])
	}
	if got := fn.Result["type"]; got != "string" {
		t.Errorf("Result type = %v, want string", got)
	}
}

func TestResourceFunctionsAreRejected(t *testing.T) {
	t.Parallel()

	types := &bin{}
	types.uleb(1)
	// instance type with acquire: func() -> own<0>
	types.u8(0x42).uleb(2)
	types.u8(0x01).u8(0x40).uleb(0).u8(0x00).u8(0x69).uleb(0)
	types.u8(0x04).u8(0x00).str("acquire").u8(0x01).uleb(0)

	exports := &bin{}
	exports.uleb(1)
	exports.u8(0x00).str("modulewise:test/pool@0.1.0").u8(0x05).uleb(0).u8(0x01).u8(0x05).uleb(0)

	data := component(
		[2]any{byte(sectionType), types.b},
		[2]any{byte(sectionExport), exports.b},
	)

	meta := mustParse(t, data).metadata(true)
	if len(meta.Functions) != 0 {
		t.Errorf("Functions = %v, want resource-typed function rejected", meta.Functions)
	}
	if !reflect.DeepEqual(meta.Exports, []string{"modulewise:test/pool@0.1.0"}) {
		t.Errorf("Exports = %v", meta.Exports)
	}
}

func TestParseRejectsNonComponent(t *testing.T) {
	t.Parallel()

	if _, err := parseComponent([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}); err == nil {
		t.Error("parseComponent(core module) succeeded, want error")
	}
}

func mustParse(t *testing.T, data []byte) *componentInfo {
	t.Helper()

	info, err := parseComponent(data)
	if err != nil {
		t.Fatalf("parseComponent() = %v", err)
	}
	return info
}
