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

import "errors"

var (
	// ErrComponentNotFound reports an unknown component name.
	ErrComponentNotFound = errors.New("component not found")

	// ErrFunctionNotFound reports an unknown function on a known component.
	ErrFunctionNotFound = errors.New("function not found")

	// ErrExtensionStateDuplicate reports two host extensions producing state
	// of the same type.
	ErrExtensionStateDuplicate = errors.New("duplicate extension state type")

	// ErrComponentReturnedError reports a result-typed return whose error arm
	// was set; the payload is rendered as JSON in the message.
	ErrComponentReturnedError = errors.New("component returned error")
)
