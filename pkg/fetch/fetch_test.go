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

package fetch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/modulewise/composable-runtime/pkg/fetch"
)

func TestBytesFromPlainPath(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "c.wasm")
	want := []byte{0x00, 0x61, 0x73, 0x6d}
	if err := os.WriteFile(path, want, 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := fetch.Bytes(context.Background(), path)
	if err != nil {
		t.Fatalf("Bytes() = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Bytes() = %v, want %v", got, want)
	}
}

func TestBytesFromFileURI(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "c.wasm")
	if err := os.WriteFile(path, []byte{0x01}, 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := fetch.Bytes(context.Background(), "file://"+path); err != nil {
		t.Errorf("Bytes(file://) = %v", err)
	}
}

func TestBytesMissingFile(t *testing.T) {
	t.Parallel()

	_, err := fetch.Bytes(context.Background(), filepath.Join(t.TempDir(), "absent.wasm"))
	if !errors.Is(err, fetch.ErrBytesUnreadable) {
		t.Errorf("Bytes() = %v, want %v", err, fetch.ErrBytesUnreadable)
	}
}

func TestBytesRejectsUnknownScheme(t *testing.T) {
	t.Parallel()

	_, err := fetch.Bytes(context.Background(), "s3://bucket/component.wasm")
	if !errors.Is(err, fetch.ErrBytesUnreadable) {
		t.Errorf("Bytes() = %v, want %v", err, fetch.ErrBytesUnreadable)
	}
}
