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

// Function describes an exported callable, identified by an optional
// interface id and a name.
type Function struct {
	// Interface is the exported interface id containing the function, empty
	// for a top-level function export.
	Interface string `json:"interface,omitempty"`

	// Name is the function's export name.
	Name string `json:"name"`

	// Docs carries the WIT doc comment, when present.
	Docs string `json:"docs,omitempty"`

	Params []FunctionParam `json:"params"`

	// Result is the JSON-schema shape of the return value, nil when the
	// function returns nothing.
	Result map[string]any `json:"result,omitempty"`
}

// FunctionParam is a named, typed parameter.
type FunctionParam struct {
	Name     string         `json:"name"`
	Schema   map[string]any `json:"schema"`
	Optional bool           `json:"optional"`
}
