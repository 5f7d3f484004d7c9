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
	"fmt"

	"go.uber.org/zap"

	"github.com/modulewise/composable-runtime/pkg/definition"
)

// RuntimeFeature is a materialized runtime-feature definition: the
// interfaces it provides and, for host:* features, the constructed extension.
type RuntimeFeature struct {
	URI        string
	Enables    definition.EnableScope
	Interfaces []string

	// Extension is the constructed host extension, nil for built-ins.
	Extension HostExtension
}

// FeatureRegistry resolves runtime features by name.
type FeatureRegistry struct {
	features map[string]*RuntimeFeature
}

// Feature returns the named runtime feature.
func (r *FeatureRegistry) Feature(name string) *RuntimeFeature {
	return r.features[name]
}

// EnabledFeature returns the named feature when its enables scope admits the
// requesting component. Runtime features never use package or namespace
// scoping; the loader rejects those up front.
func (r *FeatureRegistry) EnabledFeature(consumer *definition.ComponentDefinition, name string) *RuntimeFeature {
	feature := r.features[name]
	if feature == nil {
		return nil
	}
	switch feature.Enables {
	case definition.EnableAny:
		return feature
	case definition.EnableExposed:
		if consumer.Exposed {
			return feature
		}
	case definition.EnableUnexposed:
		if !consumer.Exposed {
			return feature
		}
	}
	return nil
}

// builtinInterfaces maps a wasmtime:* URI to the interfaces it provides, at
// the engine's WASI patch release. Unknown URIs are warned and provide
// nothing.
func builtinInterfaces(uri, version string, log *zap.SugaredLogger) []string {
	ids := func(names ...string) []string {
		out := make([]string, 0, len(names))
		for _, n := range names {
			out = append(out, fmt.Sprintf("%s@%s", n, version))
		}
		return out
	}

	switch uri {
	case "wasmtime:http":
		return ids("wasi:http/outgoing-handler", "wasi:http/types")
	case "wasmtime:io":
		return ids("wasi:io/error", "wasi:io/poll", "wasi:io/streams")
	case "wasmtime:random":
		return ids("wasi:random/random", "wasi:random/insecure-seed")
	case "wasmtime:inherit-network":
		return ids(
			"wasi:sockets/tcp",
			"wasi:sockets/udp",
			"wasi:sockets/network",
			"wasi:sockets/instance-network",
		)
	case "wasmtime:allow-ip-name-lookup":
		return ids("wasi:sockets/ip-name-lookup")
	case "wasmtime:inherit-stdio":
		return ids("wasi:cli/stdin", "wasi:cli/stdout", "wasi:cli/stderr")
	case "wasmtime:wasip2":
		return ids(
			"wasi:cli/environment",
			"wasi:cli/exit",
			"wasi:cli/stderr",
			"wasi:cli/stdin",
			"wasi:cli/stdout",
			"wasi:clocks/monotonic-clock",
			"wasi:clocks/wall-clock",
			"wasi:filesystem/preopens",
			"wasi:filesystem/types",
			"wasi:io/error",
			"wasi:io/poll",
			"wasi:io/streams",
			"wasi:random/random",
			"wasi:random/insecure-seed",
			"wasi:sockets/tcp",
			"wasi:sockets/udp",
			"wasi:sockets/network",
			"wasi:sockets/instance-network",
			"wasi:sockets/ip-name-lookup",
			"wasi:sockets/tcp-create-socket",
			"wasi:sockets/udp-create-socket",
		)
	}

	log.Warnf("unknown runtime feature URI: %s", uri)
	return nil
}
