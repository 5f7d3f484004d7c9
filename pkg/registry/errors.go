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

import "errors"

var (
	// ErrDependencyDisabled reports a dependency whose enables scope does not
	// admit the requesting component.
	ErrDependencyDisabled = errors.New("dependency access not enabled")

	// ErrImportsUnsatisfied reports imports with no providing runtime feature.
	ErrImportsUnsatisfied = errors.New("unsatisfied imports")

	// ErrExtensionMissing reports a host:* feature with no registered factory.
	ErrExtensionMissing = errors.New("host extension not registered")

	// ErrExtensionConstructFailed reports a factory that rejected its config.
	ErrExtensionConstructFailed = errors.New("host extension construction failed")
)
