// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
)

// LoadFixture reads a JSONC fixture from the package's testdata
// directory and returns it with comments and trailing commas stripped,
// ready for json.Unmarshal or wire transmission. Fixtures derived from
// captured traffic carry annotation comments; stripping happens here
// so the fixtures stay readable.
func LoadFixture(t interface {
	Helper()
	Fatalf(format string, args ...any)
}, name string) []byte {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading fixture %s: %v", path, err)
	}
	return jsonc.ToJSON(data)
}
