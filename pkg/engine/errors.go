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

package engine

import "errors"

var (
	// ErrParseFailed reports a component binary that could not be parsed.
	ErrParseFailed = errors.New("failed to parse component")

	// ErrComposeFailed reports a failed composition.
	ErrComposeFailed = errors.New("failed to compose component")

	// ErrInstantiateFailed reports a failed instantiation.
	ErrInstantiateFailed = errors.New("failed to instantiate component")

	// ErrCallFailed reports a trapped or failed function call.
	ErrCallFailed = errors.New("function call failed")

	// ErrFunctionNotFound reports a missing function or interface export.
	ErrFunctionNotFound = errors.New("function not found")

	// ErrUnsupportedType reports a type unsupported at the invocation
	// boundary (resources, futures, streams, error-contexts).
	ErrUnsupportedType = errors.New("unsupported type")
)
