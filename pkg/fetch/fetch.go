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

// Package fetch reads component bytes from local files and OCI registries.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/types"
)

// ErrBytesUnreadable reports a URI whose bytes could not be fetched.
var ErrBytesUnreadable = errors.New("unreadable component bytes")

// wasmMediaTypes are the layer media types accepted from OCI images.
var wasmMediaTypes = []types.MediaType{
	"application/wasm",
	"application/vnd.wasm.component",
}

// Bytes reads the component bytes behind a URI: an anonymous pull for
// oci://<ref>, a file read for file://<path> or a bare path.
func Bytes(ctx context.Context, uri string) ([]byte, error) {
	if ref, ok := strings.CutPrefix(uri, "oci://"); ok {
		return pull(ctx, ref)
	}
	path, isFile := strings.CutPrefix(uri, "file://")
	if !isFile && strings.Contains(uri, "://") {
		return nil, fmt.Errorf("%w: unsupported scheme in %q", ErrBytesUnreadable, uri)
	}

	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBytesUnreadable, err)
	}
	return bytes, nil
}

// pull fetches the first wasm layer of the referenced image anonymously.
func pull(ctx context.Context, ref string) ([]byte, error) {
	parsed, err := name.ParseReference(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid OCI reference %q: %v", ErrBytesUnreadable, ref, err)
	}

	img, err := remote.Image(parsed, remote.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: pulling %q: %v", ErrBytesUnreadable, ref, err)
	}

	layers, err := img.Layers()
	if err != nil {
		return nil, fmt.Errorf("%w: reading layers of %q: %v", ErrBytesUnreadable, ref, err)
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: no layers found in OCI image %q", ErrBytesUnreadable, ref)
	}

	for _, layer := range layers {
		mediaType, err := layer.MediaType()
		if err != nil {
			return nil, fmt.Errorf("%w: reading media type of %q: %v", ErrBytesUnreadable, ref, err)
		}
		if !accepted(mediaType) {
			continue
		}

		rc, err := layer.Compressed()
		if err != nil {
			return nil, fmt.Errorf("%w: reading layer of %q: %v", ErrBytesUnreadable, ref, err)
		}
		defer rc.Close()

		bytes, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: reading layer of %q: %v", ErrBytesUnreadable, ref, err)
		}
		return bytes, nil
	}

	return nil, fmt.Errorf("%w: no wasm layer found in OCI image %q", ErrBytesUnreadable, ref)
}

func accepted(mediaType types.MediaType) bool {
	for _, accept := range wasmMediaTypes {
		if mediaType == accept {
			return true
		}
	}
	return false
}
