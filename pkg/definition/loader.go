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

package definition

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/distribution/reference"
)

const ociPrefix = "oci://"

// Load reads manifest files (.toml) and standalone component references
// (.wasm files and oci:// references) into definition lists.
func Load(paths []string) (*Definitions, error) {
	var manifests, components []string

	for _, path := range paths {
		switch {
		case strings.HasPrefix(path, ociPrefix):
			components = append(components, path)
		case filepath.Ext(path) == ".wasm":
			components = append(components, path)
		case filepath.Ext(path) == ".toml":
			manifests = append(manifests, path)
		default:
			return nil, fmt.Errorf("%w: unsupported file type: %s", ErrManifestMalformed, path)
		}
	}

	defs := &Definitions{}
	for _, path := range manifests {
		if err := parseManifest(path, defs); err != nil {
			return nil, err
		}
	}
	for _, path := range components {
		def, err := implicitComponent(path)
		if err != nil {
			return nil, err
		}
		defs.Components = append(defs.Components, *def)
	}

	if err := validate(defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// manifestEntry is the raw shape of a named manifest table. Unknown keys are
// ignored.
type manifestEntry struct {
	URI        string         `toml:"uri"`
	Enables    string         `toml:"enables"`
	Expects    []string       `toml:"expects"`
	Intercepts []string       `toml:"intercepts"`
	Precedence int32          `toml:"precedence"`
	Exposed    bool           `toml:"exposed"`
	Config     map[string]any `toml:"config"`
}

func parseManifest(path string, defs *Definitions) error {
	var doc map[string]toml.Primitive
	meta, err := toml.DecodeFile(path, &doc)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrManifestMalformed, path, err)
	}

	// meta.Keys preserves the order entries appear in the file, which fixes
	// tie-breaking downstream.
	for _, key := range meta.Keys() {
		if len(key) != 1 {
			continue
		}
		name := key[0]

		var entry manifestEntry
		if err := meta.PrimitiveDecode(doc[name], &entry); err != nil {
			return fmt.Errorf("%w: failed to parse definition %q: %v", ErrManifestMalformed, name, err)
		}
		if entry.URI == "" {
			return fmt.Errorf("%w: definition %q missing required 'uri' field", ErrManifestMalformed, name)
		}
		if entry.Enables == "" {
			entry.Enables = string(EnableNone)
		}

		config, err := jsonCompatible(entry.Config)
		if err != nil {
			return fmt.Errorf("%w: definition %q: %v", ErrManifestMalformed, name, err)
		}

		if strings.HasPrefix(entry.URI, "wasmtime:") || strings.HasPrefix(entry.URI, "host:") {
			defs.Features = append(defs.Features, RuntimeFeatureDefinition{
				Definition: Definition{URI: entry.URI, Enables: EnableScope(entry.Enables)},
				Name:       name,
				Config:     config,
			})
			continue
		}

		defs.Components = append(defs.Components, ComponentDefinition{
			Definition: Definition{URI: entry.URI, Enables: EnableScope(entry.Enables)},
			Name:       name,
			Expects:    entry.Expects,
			Intercepts: entry.Intercepts,
			Precedence: entry.Precedence,
			Exposed:    entry.Exposed,
			Config:     config,
		})
	}
	return nil
}

// implicitComponent synthesizes an exposed component definition for a
// standalone .wasm file or oci:// reference.
func implicitComponent(path string) (*ComponentDefinition, error) {
	name, err := componentName(path)
	if err != nil {
		return nil, err
	}
	return &ComponentDefinition{
		Definition: Definition{URI: path, Enables: EnableNone},
		Name:       name,
		Exposed:    true,
	}, nil
}

func componentName(path string) (string, error) {
	if !strings.HasPrefix(path, ociPrefix) {
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if stem == "" {
			return "", fmt.Errorf("%w: cannot derive component name from path: %s", ErrManifestMalformed, path)
		}
		return stem, nil
	}

	// oci://ghcr.io/modulewise/hello:0.1.0 -> hello
	ref := strings.TrimPrefix(path, ociPrefix)
	if _, err := reference.Parse(ref); err != nil {
		return "", fmt.Errorf("%w: invalid OCI reference %q: %v", ErrManifestMalformed, ref, err)
	}
	tag := strings.LastIndex(ref, ":")
	if tag < 0 {
		return "", fmt.Errorf("%w: OCI reference %q has no version tag", ErrManifestMalformed, ref)
	}
	repo := ref[:tag]
	if i := strings.LastIndex(repo, "/"); i >= 0 {
		repo = repo[i+1:]
	}
	return repo, nil
}

func validate(defs *Definitions) error {
	for _, def := range defs.Features {
		if err := validateFeatureScope(def.Enables, def.Name); err != nil {
			return err
		}
	}
	for _, def := range defs.Components {
		if err := validateComponentScope(def.Enables); err != nil {
			return err
		}
	}

	names := make(map[string]struct{}, len(defs.Features)+len(defs.Components))
	for _, def := range defs.Features {
		if _, taken := names[def.Name]; taken {
			return fmt.Errorf("%w: %q", ErrNameDuplicate, def.Name)
		}
		names[def.Name] = struct{}{}
	}
	for _, def := range defs.Components {
		if _, taken := names[def.Name]; taken {
			return fmt.Errorf("%w: %q", ErrNameDuplicate, def.Name)
		}
		names[def.Name] = struct{}{}
	}

	// An exposed component may expect a definition that is absent: it will be
	// skipped later when its import cannot be satisfied. For any other
	// component a missing expectation is fatal.
	for _, def := range defs.Components {
		for _, expected := range def.Expects {
			if _, known := names[expected]; known || def.Exposed {
				continue
			}
			return fmt.Errorf("%w: component %q expects undefined definition %q",
				ErrDependencyUnknown, def.Name, expected)
		}
	}
	return nil
}

// jsonCompatible normalizes TOML-decoded values to JSON-compatible shapes:
// datetimes become RFC 3339 strings; integers stay int64.
func jsonCompatible(m map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		cv, err := jsonCompatibleValue(v)
		if err != nil {
			return nil, fmt.Errorf("config key %q: %v", k, err)
		}
		out[k] = cv
	}
	return out, nil
}

func jsonCompatibleValue(v any) (any, error) {
	switch tv := v.(type) {
	case string, bool, int64, float64, nil:
		return tv, nil
	case time.Time:
		return tv.Format(time.RFC3339), nil
	case []any:
		out := make([]any, 0, len(tv))
		for _, item := range tv {
			ci, err := jsonCompatibleValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, ci)
		}
		return out, nil
	case map[string]any:
		return jsonCompatible(tv)
	}
	return nil, fmt.Errorf("unsupported config value type %T", v)
}
