// Copyright 2026 The Dotnope Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterposerPathIn_MissingLibrary(t *testing.T) {
	_, err := interposerPathIn(t.TempDir())
	assert.Error(t, err, "expected an error when no sibling .so is present")
}

func TestInterposerPathIn_FindsSiblingLibrary(t *testing.T) {
	dir := t.TempDir()
	want := filepath.Join(dir, "dotnope-interposer.so")
	require.NoError(t, os.WriteFile(want, []byte{}, 0o755))

	got, err := interposerPathIn(dir)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
