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

package hostfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadAt(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "readme.txt", "hello world")

	buf := make([]byte, 5)
	n, err := ReadAt(path, 0, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	// Reading past the data returns a short count, not an error.
	buf = make([]byte, 100)
	n, err = ReadAt(path, 6, buf)
	require.NoError(t, err)
	assert.Equal(t, "world", string(buf[:n]))

	n, err = ReadAt(path, 100, buf)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWriteAt(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "data.bin", "hello world")

	n, err := WriteAt(path, 6, []byte("WORLD"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello WORLD", string(content))
}

func TestWriteAtExtendsFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "data.bin", "ab")

	_, err := WriteAt(path, 4, []byte("cd"))
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', 'b', 0, 0, 'c', 'd'}, content)
}

func TestWriteAtEmptyDataTruncates(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "data.bin", "hello world")

	n, err := WriteAt(path, 5, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestDeleteGlobLiteral(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "old.txt", "x")

	n, err := DeleteGlob(path)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoFileExists(t, path)
}

func TestDeleteGlobPattern(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "1")
	writeFile(t, dir, "b.txt", "2")
	writeFile(t, dir, "c.doc", "3")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "d.txt"), 0755))

	// ????????.TXT matches the two files; the directory is skipped.
	n, err := DeleteGlob(filepath.Join(dir, "????????.txt"))

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoFileExists(t, filepath.Join(dir, "a.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "b.txt"))
	assert.FileExists(t, filepath.Join(dir, "c.doc"))
	assert.DirExists(t, filepath.Join(dir, "d.txt"))
}

func TestDeleteGlobNoMatchFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.doc", "1")

	_, err := DeleteGlob(filepath.Join(dir, "????????.txt"))

	assert.Error(t, err)
}
