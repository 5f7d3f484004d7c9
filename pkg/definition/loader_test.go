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

package definition_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/modulewise/composable-runtime/pkg/definition"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "defs.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestLoadManifest(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, `
[infra]
uri = "wasmtime:some-infra"
enables = "unexposed"

[client]
uri = "client.wasm"
expects = ["infra"]
enables = "exposed"

[handler]
uri = "handler.wasm"
expects = ["client"]
exposed = true
config.greeting = "hello"
config.retries = 3
`)

	defs, err := definition.Load([]string{path})
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	if got, want := len(defs.Features), 1; got != want {
		t.Fatalf("len(Features) = %d, want %d", got, want)
	}
	infra := defs.Features[0]
	if infra.Name != "infra" || infra.URI != "wasmtime:some-infra" || infra.Enables != definition.EnableUnexposed {
		t.Errorf("infra = %+v", infra)
	}

	if got, want := len(defs.Components), 2; got != want {
		t.Fatalf("len(Components) = %d, want %d", got, want)
	}

	client := defs.Components[0]
	if client.Name != "client" {
		t.Fatalf("Components[0].Name = %q, want client (manifest order)", client.Name)
	}
	if client.Exposed {
		t.Error("client.Exposed = true, want false")
	}
	if got, want := client.Expects, []string{"infra"}; !reflect.DeepEqual(got, want) {
		t.Errorf("client.Expects = %v, want %v", got, want)
	}

	handler := defs.Components[1]
	if !handler.Exposed || handler.Enables != definition.EnableNone {
		t.Errorf("handler = %+v", handler)
	}
	wantConfig := map[string]any{"greeting": "hello", "retries": int64(3)}
	if !reflect.DeepEqual(handler.Config, wantConfig) {
		t.Errorf("handler.Config = %#v, want %#v", handler.Config, wantConfig)
	}
}

func TestLoadStandaloneWasm(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "greeter.wasm")
	if err := os.WriteFile(path, []byte{0x00, 0x61, 0x73, 0x6d}, 0o600); err != nil {
		t.Fatal(err)
	}

	defs, err := definition.Load([]string{path})
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	if got, want := len(defs.Components), 1; got != want {
		t.Fatalf("len(Components) = %d, want %d", got, want)
	}

	def := defs.Components[0]
	if def.Name != "greeter" {
		t.Errorf("Name = %q, want greeter", def.Name)
	}
	if !def.Exposed {
		t.Error("Exposed = false, want true")
	}
	if def.Enables != definition.EnableNone {
		t.Errorf("Enables = %q, want none", def.Enables)
	}
	if len(def.Expects) != 0 || len(def.Intercepts) != 0 {
		t.Errorf("Expects/Intercepts = %v/%v, want empty", def.Expects, def.Intercepts)
	}
}

func TestLoadOCIReference(t *testing.T) {
	t.Parallel()

	defs, err := definition.Load([]string{"oci://ghcr.io/modulewise/hello:0.1.0"})
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	if got, want := defs.Components[0].Name, "hello"; got != want {
		t.Errorf("Name = %q, want %q", got, want)
	}
	if got, want := defs.Components[0].URI, "oci://ghcr.io/modulewise/hello:0.1.0"; got != want {
		t.Errorf("URI = %q, want %q", got, want)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		manifest string
		want     error
	}{
		{
			"missing-uri",
			"[broken]\nexposed = true\n",
			definition.ErrManifestMalformed,
		},
		{
			"unknown-scope",
			"[c]\nuri = \"c.wasm\"\nenables = \"sometimes\"\n",
			definition.ErrScopeInvalid,
		},
		{
			"feature-package-scope",
			"[f]\nuri = \"wasmtime:wasip2\"\nenables = \"package\"\n",
			definition.ErrScopeInvalid,
		},
		{
			"redefined-table",
			"[dup]\nuri = \"a.wasm\"\n\n[dup]\nuri = \"b.wasm\"\n",
			definition.ErrManifestMalformed,
		},
		{
			"unexposed-undefined-expectation",
			"[c]\nuri = \"c.wasm\"\nexpects = [\"ghost\"]\n",
			definition.ErrDependencyUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			path := writeManifest(t, tc.manifest)
			if _, err := definition.Load([]string{path}); !errors.Is(err, tc.want) {
				t.Errorf("Load() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestDuplicateAcrossKinds(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, `
[shared]
uri = "wasmtime:wasip2"

[other]
uri = "other.wasm"
`)
	dir := t.TempDir()
	wasm := filepath.Join(dir, "shared.wasm")
	if err := os.WriteFile(wasm, []byte{0x00}, 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := definition.Load([]string{path, wasm}); !errors.Is(err, definition.ErrNameDuplicate) {
		t.Errorf("Load() = %v, want %v", err, definition.ErrNameDuplicate)
	}
}

func TestExposedToleratesUndefinedExpectation(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, `
[c]
uri = "c.wasm"
expects = ["ghost"]
exposed = true
`)

	if _, err := definition.Load([]string{path}); err != nil {
		t.Errorf("Load() = %v, want nil", err)
	}
}

func TestUnsupportedExtension(t *testing.T) {
	t.Parallel()

	if _, err := definition.Load([]string{"defs.yaml"}); !errors.Is(err, definition.ErrManifestMalformed) {
		t.Errorf("Load() = %v, want %v", err, definition.ErrManifestMalformed)
	}
}
