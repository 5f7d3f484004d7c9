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
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/modulewise/composable-runtime/pkg/engine"
	"github.com/modulewise/composable-runtime/pkg/registry"
	"github.com/modulewise/composable-runtime/pkg/values"
)

// invoker assembles a linker and state per invocation, instantiates, and
// calls.
type invoker struct {
	engine   engine.Engine
	features *registry.FeatureRegistry
	log      *zap.SugaredLogger
}

// instantiate builds a fresh linker from the component's runtime features,
// assembles the WASI context and extension state bag, and instantiates.
func (inv invoker) instantiate(ctx context.Context, spec *registry.ComponentSpec, env [][2]string) (engine.Instance, error) {
	linker := inv.engine.NewLinker()
	linker.AllowShadowing(true)

	wasi := engine.WasiConfig{Env: env}
	needsHTTP := false

	for _, name := range spec.RuntimeFeatures {
		feature := inv.features.Feature(name)
		if feature == nil {
			continue
		}

		if suffix, ok := strings.CutPrefix(feature.URI, "wasmtime:"); ok {
			switch suffix {
			case "wasip2", "io", "random":
				if err := linker.AddWasmtimeFeature(suffix); err != nil {
					return nil, err
				}
			case "http":
				needsHTTP = true
				if err := linker.AddWasmtimeFeature(suffix); err != nil {
					return nil, err
				}
			case "inherit-stdio":
				wasi.InheritStdio = true
			case "inherit-network":
				wasi.InheritNetwork = true
			case "allow-ip-name-lookup":
				wasi.AllowIPNameLookup = true
			default:
				inv.log.Warnf("unknown wasmtime feature for linker: %s", feature.URI)
			}
			continue
		}

		if feature.Extension != nil {
			if err := feature.Extension.Link(linker); err != nil {
				return nil, fmt.Errorf("linking host extension %q: %w", name, err)
			}
		}
	}

	state := engine.NewState(wasi, needsHTTP)
	for _, name := range spec.RuntimeFeatures {
		feature := inv.features.Feature(name)
		if feature == nil || feature.Extension == nil {
			continue
		}
		provider, ok := feature.Extension.(registry.StateProvider)
		if !ok {
			continue
		}
		value, err := provider.CreateState()
		if err != nil {
			return nil, fmt.Errorf("creating state for host extension %q: %w", name, err)
		}
		if value == nil {
			continue
		}
		if !state.PutExtension(value) {
			return nil, fmt.Errorf("%w for feature %q", ErrExtensionStateDuplicate, name)
		}
	}

	instance, err := spec.Component.Instantiate(ctx, linker, state)
	if err != nil {
		return nil, fmt.Errorf("instantiating component %q: %w", spec.Name, err)
	}
	return instance, nil
}

func (inv invoker) invoke(
	ctx context.Context,
	spec *registry.ComponentSpec,
	fn engine.Function,
	args []any,
	env [][2]string,
) (any, error) {
	instance, err := inv.instantiate(ctx, spec, env)
	if err != nil {
		return nil, err
	}
	defer instance.Close(ctx)

	target, err := instance.GetFunction(fn.Interface, fn.Name)
	if err != nil {
		return nil, err
	}

	params := target.ParamTypes()
	if len(args) != len(params) {
		return nil, fmt.Errorf("wrong number of args: expected %d, got %d", len(params), len(args))
	}

	vals := make([]engine.Val, 0, len(args))
	for i, arg := range args {
		val, err := values.ToVal(arg, params[i])
		if err != nil {
			return nil, fmt.Errorf("error converting parameter %d: %w", i, err)
		}
		vals = append(vals, val)
	}

	results, err := target.Call(ctx, vals)
	if err != nil {
		return nil, err
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		value := results[0]
		if value.Kind() == engine.KindResult {
			if ok, payload := value.Result(); !ok {
				if payload == nil {
					return nil, ErrComponentReturnedError
				}
				rendered, err := json.Marshal(values.FromVal(*payload))
				if err != nil {
					return nil, ErrComponentReturnedError
				}
				return nil, fmt.Errorf("%w: %s", ErrComponentReturnedError, rendered)
			}
		}
		return values.FromVal(value), nil
	default:
		return reconstructReturn(results, fn), nil
	}
}

// reconstructReturn reassembles multiple results. When the function's
// declared return schema is an object with properties, the results are
// zipped to a record; anything else becomes an array.
func reconstructReturn(results []engine.Val, fn engine.Function) any {
	if fn.Result != nil && fn.Result["type"] == "object" {
		if props, ok := fn.Result["properties"].(map[string]any); ok && len(props) == len(results) {
			names := make([]string, 0, len(props))
			for name := range props {
				names = append(names, name)
			}
			sort.Strings(names)

			record := make(map[string]any, len(results))
			for i, name := range names {
				record[name] = values.FromVal(results[i])
			}
			return record
		}
	}

	out := make([]any, 0, len(results))
	for _, result := range results {
		out = append(out, values.FromVal(result))
	}
	return out
}
