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
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/modulewise/composable-runtime/pkg/engine"
)

func wasiInterface(name string) string {
	return fmt.Sprintf("%s@%s", name, wasiPatchVersion)
}

// addCLIBindings installs wasi:cli environment bindings backed by the
// invocation state.
func addCLIBindings(l *Linker) {
	env := wasiInterface("wasi:cli/environment")

	_ = l.define(env, "get-environment", func(_ context.Context, state *engine.State, _ []engine.Val) ([]engine.Val, error) {
		pairs := make([]engine.Val, 0, len(state.Wasi.Env))
		for _, pair := range state.Wasi.Env {
			pairs = append(pairs, engine.TupleVal(engine.StringVal(pair[0]), engine.StringVal(pair[1])))
		}
		return []engine.Val{engine.ListVal(pairs...)}, nil
	})
	_ = l.define(env, "get-arguments", func(context.Context, *engine.State, []engine.Val) ([]engine.Val, error) {
		return []engine.Val{engine.ListVal()}, nil
	})
	_ = l.define(env, "initial-cwd", func(context.Context, *engine.State, []engine.Val) ([]engine.Val, error) {
		return []engine.Val{engine.NoneVal()}, nil
	})

	_ = l.define(wasiInterface("wasi:cli/exit"), "exit", func(_ context.Context, _ *engine.State, args []engine.Val) ([]engine.Val, error) {
		if len(args) == 1 {
			if ok, _ := args[0].Result(); !ok {
				return nil, fmt.Errorf("guest exited with failure")
			}
		}
		return nil, nil
	})
}

// addClockBindings installs wasi:clocks bindings.
func addClockBindings(l *Linker) {
	start := time.Now()

	_ = l.define(wasiInterface("wasi:clocks/wall-clock"), "now", func(context.Context, *engine.State, []engine.Val) ([]engine.Val, error) {
		now := time.Now()
		return []engine.Val{engine.RecordVal(
			engine.FieldVal{Name: "seconds", Value: engine.U64Val(uint64(now.Unix()))},
			engine.FieldVal{Name: "nanoseconds", Value: engine.U32Val(uint32(now.Nanosecond()))},
		)}, nil
	})
	_ = l.define(wasiInterface("wasi:clocks/monotonic-clock"), "now", func(context.Context, *engine.State, []engine.Val) ([]engine.Val, error) {
		return []engine.Val{engine.U64Val(uint64(time.Since(start)))}, nil
	})
	_ = l.define(wasiInterface("wasi:clocks/monotonic-clock"), "resolution", func(context.Context, *engine.State, []engine.Val) ([]engine.Val, error) {
		return []engine.Val{engine.U64Val(1)}, nil
	})
}

// addRandomBindings installs wasi:random bindings backed by crypto/rand.
func addRandomBindings(l *Linker) {
	random := wasiInterface("wasi:random/random")

	_ = l.define(random, "get-random-bytes", func(_ context.Context, _ *engine.State, args []engine.Val) ([]engine.Val, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("get-random-bytes expects a length")
		}
		buf := make([]byte, args[0].U64())
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		out := make([]engine.Val, len(buf))
		for i, b := range buf {
			out[i] = engine.U8Val(b)
		}
		return []engine.Val{engine.ListVal(out...)}, nil
	})
	_ = l.define(random, "get-random-u64", func(context.Context, *engine.State, []engine.Val) ([]engine.Val, error) {
		return []engine.Val{engine.U64Val(randomU64())}, nil
	})
	_ = l.define(wasiInterface("wasi:random/insecure-seed"), "insecure-seed", func(context.Context, *engine.State, []engine.Val) ([]engine.Val, error) {
		return []engine.Val{engine.TupleVal(engine.U64Val(randomU64()), engine.U64Val(randomU64()))}, nil
	})
}

func randomU64() uint64 {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return binary.LittleEndian.Uint64(buf[:])
}
