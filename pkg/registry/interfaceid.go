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
	"strings"

	"github.com/Masterminds/semver/v3"
)

// interfaceID is a versioned interface identifier, e.g.
// "wasi:io/streams@0.2.3".
type interfaceID struct {
	namespace string
	pkg       string
	iface     string
	version   *semver.Version
}

func parseInterfaceID(id string) (interfaceID, bool) {
	rest := id
	var version *semver.Version
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		v, err := semver.NewVersion(rest[at+1:])
		if err != nil {
			return interfaceID{}, false
		}
		version = v
		rest = rest[:at]
	}

	pkgPart, iface, _ := strings.Cut(rest, "/")
	namespace, pkg, ok := strings.Cut(pkgPart, ":")
	if !ok {
		return interfaceID{}, false
	}
	return interfaceID{namespace: namespace, pkg: pkg, iface: iface, version: version}, true
}

// satisfies reports whether a provided interface id covers a required one: an
// exact match, or the same interface at an equal major.minor with a provided
// patch at least the required patch. Prerelease versions must match exactly.
func satisfies(provided, required string) bool {
	if provided == required {
		return true
	}

	p, pok := parseInterfaceID(provided)
	r, rok := parseInterfaceID(required)
	if !pok || !rok {
		return false
	}
	if p.namespace != r.namespace || p.pkg != r.pkg || p.iface != r.iface {
		return false
	}
	if p.version == nil || r.version == nil {
		return false
	}
	if p.version.Prerelease() != "" || r.version.Prerelease() != "" {
		return p.version.Equal(r.version)
	}
	return p.version.Major() == r.version.Major() &&
		p.version.Minor() == r.version.Minor() &&
		p.version.Patch() >= r.version.Patch()
}
