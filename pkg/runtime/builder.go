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

package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/modulewise/composable-runtime/pkg/engine"
	"github.com/modulewise/composable-runtime/pkg/engine/wazeroengine"
	"github.com/modulewise/composable-runtime/pkg/graph"
	"github.com/modulewise/composable-runtime/pkg/registry"
)

// Builder configures and creates a Runtime from a component graph.
type Builder struct {
	graph     *graph.Graph
	factories map[string]registry.ExtensionFactory
	engine    engine.Engine
	fetch     func(ctx context.Context, uri string) ([]byte, error)
	cacheDir  string
	log       *zap.SugaredLogger
}

// NewBuilder returns a Builder for the given graph.
func NewBuilder(g *graph.Graph) *Builder {
	return &Builder{
		graph:     g,
		factories: make(map[string]registry.ExtensionFactory),
	}
}

// WithHostExtension registers an extension factory for the suffix of a
// host:<name> URI.
func (b *Builder) WithHostExtension(name string, factory registry.ExtensionFactory) *Builder {
	b.factories[name] = factory
	return b
}

// WithEngine overrides the default wazero engine.
func (b *Builder) WithEngine(e engine.Engine) *Builder {
	b.engine = e
	return b
}

// WithFetcher overrides how component bytes are read.
func (b *Builder) WithFetcher(fetch func(ctx context.Context, uri string) ([]byte, error)) *Builder {
	b.fetch = fetch
	return b
}

// WithCacheDir backs the default engine's compilation cache with a
// directory.
func (b *Builder) WithCacheDir(dir string) *Builder {
	b.cacheDir = dir
	return b
}

// WithLogger sets the runtime logger.
func (b *Builder) WithLogger(log *zap.SugaredLogger) *Builder {
	b.log = log
	return b
}

// Build constructs the registries and returns the Runtime.
func (b *Builder) Build(ctx context.Context) (*Runtime, error) {
	if b.log == nil {
		b.log = zap.NewNop().Sugar()
	}
	if b.engine == nil {
		eng, err := wazeroengine.New(ctx, wazeroengine.Config{CacheDir: b.cacheDir})
		if err != nil {
			return nil, err
		}
		b.engine = eng
	}

	builder := &registry.Builder{
		Engine:    b.engine,
		Fetch:     b.fetch,
		Factories: b.factories,
		Log:       b.log,
	}
	features, components, err := builder.Build(ctx, b.graph)
	if err != nil {
		return nil, err
	}

	return &Runtime{
		engine:     b.engine,
		components: components,
		features:   features,
		log:        b.log,
	}, nil
}
