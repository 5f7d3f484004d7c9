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
	"fmt"
	"math"

	"github.com/tetratelabs/wazero/api"

	"github.com/modulewise/composable-runtime/pkg/engine"
)

// The canonical ABI subset implemented at the core boundary: scalars, chars,
// and strings. Compound values flow only through host bindings, which operate
// on engine.Val directly.

const maxFlatResults = 1

// flattenType maps a component type to its core value representation.
func flattenType(t engine.Type) ([]api.ValueType, error) {
	switch t.Kind() {
	case engine.KindBool,
		engine.KindU8, engine.KindU16, engine.KindU32,
		engine.KindS8, engine.KindS16, engine.KindS32,
		engine.KindChar, engine.KindEnum:
		return []api.ValueType{api.ValueTypeI32}, nil
	case engine.KindU64, engine.KindS64:
		return []api.ValueType{api.ValueTypeI64}, nil
	case engine.KindF32:
		return []api.ValueType{api.ValueTypeF32}, nil
	case engine.KindF64:
		return []api.ValueType{api.ValueTypeF64}, nil
	case engine.KindString:
		return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil
	}
	return nil, fmt.Errorf("%w: %s at the core boundary", engine.ErrUnsupportedType, t.Kind())
}

func flattenTypes(types []engine.Type) ([]api.ValueType, error) {
	var flat []api.ValueType
	for _, t := range types {
		f, err := flattenType(t)
		if err != nil {
			return nil, err
		}
		flat = append(flat, f...)
	}
	return flat, nil
}

// realloc calls the module's canonical allocator.
func realloc(ctx context.Context, mod api.Module, size uint32) (uint32, error) {
	alloc := mod.ExportedFunction("cabi_realloc")
	if alloc == nil {
		return 0, fmt.Errorf("module %q does not export cabi_realloc", mod.Name())
	}
	results, err := alloc.Call(ctx, 0, 0, 1, uint64(size))
	if err != nil {
		return 0, fmt.Errorf("cabi_realloc: %w", err)
	}
	return uint32(results[0]), nil
}

// lowerVal pushes a value onto a core stack, allocating string contents in
// the target module's memory.
func lowerVal(ctx context.Context, mod api.Module, v engine.Val, stack *[]uint64) error {
	switch v.Kind() {
	case engine.KindBool:
		var b uint64
		if v.Bool() {
			b = 1
		}
		*stack = append(*stack, b)
	case engine.KindU8:
		*stack = append(*stack, uint64(v.U8()))
	case engine.KindU16:
		*stack = append(*stack, uint64(v.U16()))
	case engine.KindU32:
		*stack = append(*stack, uint64(v.U32()))
	case engine.KindU64:
		*stack = append(*stack, v.U64())
	case engine.KindS8:
		*stack = append(*stack, api.EncodeI32(int32(v.S8())))
	case engine.KindS16:
		*stack = append(*stack, api.EncodeI32(int32(v.S16())))
	case engine.KindS32:
		*stack = append(*stack, api.EncodeI32(v.S32()))
	case engine.KindS64:
		*stack = append(*stack, api.EncodeI64(v.S64()))
	case engine.KindF32:
		*stack = append(*stack, api.EncodeF32(v.F32()))
	case engine.KindF64:
		*stack = append(*stack, api.EncodeF64(v.F64()))
	case engine.KindChar:
		*stack = append(*stack, uint64(uint32(v.Char())))
	case engine.KindString:
		bytes := []byte(v.Str())
		ptr := uint32(0)
		if len(bytes) > 0 {
			var err error
			ptr, err = realloc(ctx, mod, uint32(len(bytes)))
			if err != nil {
				return err
			}
			if !mod.Memory().Write(ptr, bytes) {
				return fmt.Errorf("writing %d bytes at %d out of range", len(bytes), ptr)
			}
		}
		*stack = append(*stack, uint64(ptr), uint64(len(bytes)))
	default:
		return fmt.Errorf("%w: %s at the core boundary", engine.ErrUnsupportedType, v.Kind())
	}
	return nil
}

// liftVal pops a value of the given type from a core stack, reading string
// contents out of the module's memory.
func liftVal(mod api.Module, t engine.Type, stack []uint64, pos *int) (engine.Val, error) {
	take := func() uint64 {
		v := stack[*pos]
		*pos++
		return v
	}

	switch t.Kind() {
	case engine.KindBool:
		return engine.BoolVal(take() != 0), nil
	case engine.KindU8:
		return engine.U8Val(uint8(take())), nil
	case engine.KindU16:
		return engine.U16Val(uint16(take())), nil
	case engine.KindU32:
		return engine.U32Val(uint32(take())), nil
	case engine.KindU64:
		return engine.U64Val(take()), nil
	case engine.KindS8:
		return engine.S8Val(int8(api.DecodeI32(take()))), nil
	case engine.KindS16:
		return engine.S16Val(int16(api.DecodeI32(take()))), nil
	case engine.KindS32:
		return engine.S32Val(api.DecodeI32(take())), nil
	case engine.KindS64:
		return engine.S64Val(int64(take())), nil
	case engine.KindF32:
		return engine.F32Val(api.DecodeF32(take())), nil
	case engine.KindF64:
		return engine.F64Val(api.DecodeF64(take())), nil
	case engine.KindChar:
		return engine.CharVal(rune(uint32(take()))), nil
	case engine.KindString:
		ptr := uint32(take())
		length := uint32(take())
		return liftString(mod, ptr, length)
	}
	return engine.Val{}, fmt.Errorf("%w: %s at the core boundary", engine.ErrUnsupportedType, t.Kind())
}

func liftString(mod api.Module, ptr, length uint32) (engine.Val, error) {
	if length == 0 {
		return engine.StringVal(""), nil
	}
	bytes, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return engine.Val{}, fmt.Errorf("reading %d bytes at %d out of range", length, ptr)
	}
	return engine.StringVal(string(bytes)), nil
}

// liftFromMemory reads a value of the given type from the module's memory,
// returning the value and its aligned size.
func liftFromMemory(mod api.Module, t engine.Type, addr uint32) (engine.Val, uint32, error) {
	read32 := func(at uint32) (uint32, error) {
		v, ok := mod.Memory().ReadUint32Le(at)
		if !ok {
			return 0, fmt.Errorf("reading u32 at %d out of range", at)
		}
		return v, nil
	}

	switch t.Kind() {
	case engine.KindString:
		ptr, err := read32(addr)
		if err != nil {
			return engine.Val{}, 0, err
		}
		length, err := read32(addr + 4)
		if err != nil {
			return engine.Val{}, 0, err
		}
		v, err := liftString(mod, ptr, length)
		return v, 8, err
	case engine.KindU64, engine.KindS64, engine.KindF64:
		raw, ok := mod.Memory().ReadUint64Le(addr)
		if !ok {
			return engine.Val{}, 0, fmt.Errorf("reading u64 at %d out of range", addr)
		}
		stack := []uint64{raw}
		pos := 0
		v, err := liftVal(mod, t, stack, &pos)
		return v, 8, err
	default:
		raw, err := read32(addr)
		if err != nil {
			return engine.Val{}, 0, err
		}
		stack := []uint64{uint64(raw)}
		pos := 0
		v, err := liftVal(mod, t, stack, &pos)
		return v, 4, err
	}
}

// storeToMemory writes a value at addr, allocating string contents, and
// returns the aligned size written.
func storeToMemory(ctx context.Context, mod api.Module, v engine.Val, addr uint32) (uint32, error) {
	switch v.Kind() {
	case engine.KindString:
		bytes := []byte(v.Str())
		ptr := uint32(0)
		if len(bytes) > 0 {
			var err error
			ptr, err = realloc(ctx, mod, uint32(len(bytes)))
			if err != nil {
				return 0, err
			}
			if !mod.Memory().Write(ptr, bytes) {
				return 0, fmt.Errorf("writing %d bytes at %d out of range", len(bytes), ptr)
			}
		}
		if !mod.Memory().WriteUint32Le(addr, ptr) || !mod.Memory().WriteUint32Le(addr+4, uint32(len(bytes))) {
			return 0, fmt.Errorf("writing string header at %d out of range", addr)
		}
		return 8, nil
	case engine.KindU64, engine.KindS64, engine.KindF64:
		var stack []uint64
		if err := lowerVal(ctx, mod, v, &stack); err != nil {
			return 0, err
		}
		if !mod.Memory().WriteUint64Le(addr, stack[0]) {
			return 0, fmt.Errorf("writing u64 at %d out of range", addr)
		}
		return 8, nil
	default:
		var stack []uint64
		if err := lowerVal(ctx, mod, v, &stack); err != nil {
			return 0, err
		}
		if len(stack) != 1 || stack[0] > math.MaxUint32 {
			return 0, fmt.Errorf("%w: %s in spilled results", engine.ErrUnsupportedType, v.Kind())
		}
		if !mod.Memory().WriteUint32Le(addr, uint32(stack[0])) {
			return 0, fmt.Errorf("writing u32 at %d out of range", addr)
		}
		return 4, nil
	}
}
