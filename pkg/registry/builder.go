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

package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/modulewise/composable-runtime/pkg/definition"
	"github.com/modulewise/composable-runtime/pkg/engine"
	"github.com/modulewise/composable-runtime/pkg/fetch"
	"github.com/modulewise/composable-runtime/pkg/graph"
)

const configStorePrefix = "wasi:config/store"

// Builder walks a component graph into registries.
type Builder struct {
	Engine engine.Engine

	// Fetch reads component bytes for a URI; fetch.Bytes when nil.
	Fetch func(ctx context.Context, uri string) ([]byte, error)

	// Factories supplies host extensions keyed by the host:<name> suffix.
	Factories map[string]ExtensionFactory

	Log *zap.SugaredLogger
}

// Build materializes the runtime-feature registry, then builds each component
// in topological order. Failures are fatal unless the failing component is
// exposed, in which case it is skipped with a warning.
func (b *Builder) Build(ctx context.Context, g *graph.Graph) (*FeatureRegistry, *ComponentRegistry, error) {
	if b.Log == nil {
		b.Log = zap.NewNop().Sugar()
	}
	if b.Fetch == nil {
		b.Fetch = fetch.Bytes
	}

	features, err := b.buildFeatures(g)
	if err != nil {
		return nil, nil, err
	}

	built := make(map[string]*ComponentSpec)
	exposed := make(map[string]*ComponentSpec)
	enabling := make(map[string]*EnablingComponent)

	for _, idx := range g.BuildOrder() {
		node := g.Node(idx)
		if !node.IsComponent() {
			continue
		}
		def := node.Component

		scratch := &ComponentRegistry{components: built, enabling: enabling}
		spec, err := b.process(ctx, g, idx, scratch, features)
		if err != nil {
			if def.Exposed {
				b.Log.Warnf("skipping exposed component %q: %v", def.Name, err)
				continue
			}
			return nil, nil, err
		}

		built[def.Name] = spec
		if def.Exposed {
			exposed[def.Name] = spec
		}
		if def.Enables != definition.EnableNone {
			enabling[def.Name] = &EnablingComponent{
				Spec:    spec,
				Exposed: def.Exposed,
				Enables: def.Enables,
			}
		}
	}

	return features, &ComponentRegistry{components: exposed, enabling: enabling}, nil
}

func (b *Builder) buildFeatures(g *graph.Graph) (*FeatureRegistry, error) {
	features := make(map[string]*RuntimeFeature)

	for _, node := range g.Nodes() {
		if node.IsComponent() {
			continue
		}
		def := node.Feature

		feature := &RuntimeFeature{URI: def.URI, Enables: def.Enables}

		if name, ok := strings.CutPrefix(def.URI, "host:"); ok {
			factory := b.Factories[name]
			if factory == nil {
				return nil, fmt.Errorf("%w: host extension %q (URI: %q) not registered",
					ErrExtensionMissing, name, def.URI)
			}
			config, err := json.Marshal(def.Config)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %v", ErrExtensionConstructFailed, def.Name, err)
			}
			extension, err := factory(config)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %v", ErrExtensionConstructFailed, def.Name, err)
			}
			feature.Extension = extension
			feature.Interfaces = extension.Interfaces()
		} else {
			if len(def.Config) > 0 {
				b.Log.Warnf("config provided for built-in runtime feature %q is ignored", def.Name)
			}
			feature.Interfaces = builtinInterfaces(def.URI, b.Engine.WASIVersion(), b.Log)
		}

		features[def.Name] = feature
	}

	return &FeatureRegistry{features: features}, nil
}

func (b *Builder) process(
	ctx context.Context,
	g *graph.Graph,
	idx graph.NodeIndex,
	scratch *ComponentRegistry,
	features *FeatureRegistry,
) (*ComponentSpec, error) {
	def := g.Node(idx).Component

	bytes, err := b.Fetch(ctx, def.URI)
	if err != nil {
		return nil, fmt.Errorf("component %q: %w", def.Name, err)
	}

	metadata, err := b.Engine.Parse(ctx, bytes, def.Exposed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse component %q: %w", def.Name, err)
	}

	component, err := b.Engine.Compile(ctx, bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile component %q: %w", def.Name, err)
	}

	imports := slices.Clone(metadata.Imports)

	importsConfig := slices.ContainsFunc(imports, func(id string) bool {
		return strings.HasPrefix(id, configStorePrefix)
	})
	if importsConfig {
		config := def.Config
		if config == nil {
			config = map[string]any{}
		}
		component, err = component.ComposeWithConfig(config)
		if err != nil {
			return nil, fmt.Errorf("failed to compose component %q with config: %w", def.Name, err)
		}
		b.Log.Infof("composed component %q with config keys %v", def.Name, sortedKeys(config))
		imports = slices.DeleteFunc(imports, func(id string) bool {
			return strings.HasPrefix(id, configStorePrefix)
		})
	} else if def.Config != nil {
		b.Log.Warnf("config provided for component %q but component doesn't import %s",
			def.Name, configStorePrefix)
	}

	var runtimeFeatures []string
	for _, providerIdx := range g.Dependencies(idx) {
		provider := g.Node(providerIdx)

		if provider.IsComponent() {
			spec := scratch.EnabledDependency(def, metadata, provider.Name())
			if spec == nil {
				return nil, fmt.Errorf("%w: component %q requested dependency %q",
					ErrDependencyDisabled, def.Name, provider.Name())
			}

			component, err = component.Compose(spec.Component)
			if err != nil {
				return nil, fmt.Errorf("failed to compose component %q with dependency %q: %w",
					def.Name, spec.Name, err)
			}
			b.Log.Infof("composed component %q with dependency %q", def.Name, spec.Name)

			imports = slices.DeleteFunc(imports, func(id string) bool {
				return slices.Contains(spec.Exports, id)
			})
			for _, name := range spec.RuntimeFeatures {
				if !slices.Contains(runtimeFeatures, name) {
					runtimeFeatures = append(runtimeFeatures, name)
				}
			}
			continue
		}

		if features.EnabledFeature(def, provider.Name()) == nil {
			return nil, fmt.Errorf("%w: component %q requested runtime feature %q",
				ErrDependencyDisabled, def.Name, provider.Name())
		}
		if !slices.Contains(runtimeFeatures, provider.Name()) {
			runtimeFeatures = append(runtimeFeatures, provider.Name())
		}
	}

	var provided []string
	for _, name := range runtimeFeatures {
		if feature := features.Feature(name); feature != nil {
			provided = append(provided, feature.Interfaces...)
		}
	}
	var unsatisfied []string
	for _, required := range imports {
		if !slices.ContainsFunc(provided, func(p string) bool { return satisfies(p, required) }) {
			unsatisfied = append(unsatisfied, required)
		}
	}
	if len(unsatisfied) > 0 {
		return nil, fmt.Errorf("%w: component %q has unsatisfied imports: %v",
			ErrImportsUnsatisfied, def.Name, unsatisfied)
	}

	return &ComponentSpec{
		Name:            def.Name,
		Namespace:       metadata.Namespace,
		Package:         metadata.Package,
		Bytes:           bytes,
		Component:       component,
		Imports:         imports,
		Exports:         metadata.Exports,
		RuntimeFeatures: runtimeFeatures,
		Functions:       metadata.Functions,
	}, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
