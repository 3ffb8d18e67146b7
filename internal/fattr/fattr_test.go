// Copyright 2024 The EtherDFS Authors. All Rights Reserved.
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

package fattr

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/megapearl/etherdfs/internal/dosname"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupRegularFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "readme.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0644))
	mtime := time.Date(2025, 1, 15, 10, 30, 0, 0, time.Local)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	props, err := Lookup(path, false)

	require.NoError(t, err)
	assert.Equal(t, byte(dosname.AttrArchive), props.Attr)
	assert.Equal(t, uint32(11), props.Size)
	assert.Equal(t, PackDOSTime(mtime), props.Time)
}

func TestLookupDirectory(t *testing.T) {
	props, err := Lookup(t.TempDir(), false)

	require.NoError(t, err)
	assert.Equal(t, byte(dosname.AttrDir), props.Attr)
	assert.Zero(t, props.Size)
}

func TestLookupMissingPath(t *testing.T) {
	_, err := Lookup(filepath.Join(t.TempDir(), "nope"), false)

	assert.Error(t, err)
}

func TestSetAttrIsNoOpOffFAT(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	assert.NoError(t, SetAttr(path, dosname.AttrReadOnly, false))

	// The attribute is not persisted anywhere, so a fresh lookup still
	// synthesizes the archive bit.
	props, err := Lookup(path, false)
	require.NoError(t, err)
	assert.Equal(t, byte(dosname.AttrArchive), props.Attr)
}
