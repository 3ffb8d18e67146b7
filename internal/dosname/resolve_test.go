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

package dosname

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestTree builds a host tree with mixed-case long names:
//
//	root/
//	  ReadMe.txt
//	  Games/
//	    Doom/
//	      doom.exe
func newTestTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "ReadMe.txt"), []byte("hello"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Games", "Doom"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Games", "Doom", "doom.exe"), nil, 0644))
	return root
}

func TestResolveMatchesCaseInsensitively(t *testing.T) {
	root := newTestTree(t)

	res := Resolve(root, `\README.TXT`)

	assert.True(t, res.Resolved)
	assert.Equal(t, filepath.Join(root, "ReadMe.txt"), res.HostPath)
}

func TestResolveNestedComponents(t *testing.T) {
	root := newTestTree(t)

	res := Resolve(root, `GAMES\DOOM\DOOM.EXE`)

	assert.True(t, res.Resolved)
	assert.Equal(t, filepath.Join(root, "Games", "Doom", "doom.exe"), res.HostPath)
}

func TestResolveStripsDrivePrefix(t *testing.T) {
	root := newTestTree(t)

	res := Resolve(root, `C:\GAMES`)

	assert.True(t, res.Resolved)
	assert.Equal(t, filepath.Join(root, "Games"), res.HostPath)
}

func TestResolveEmptyPathIsRoot(t *testing.T) {
	root := newTestTree(t)

	for _, p := range []string{"", `\`} {
		res := Resolve(root, p)
		assert.True(t, res.Resolved)
		assert.Equal(t, root, res.HostPath)
	}
}

func TestResolveMissingTailIsPartial(t *testing.T) {
	root := newTestTree(t)

	res := Resolve(root, `GAMES\NEW.TXT`)

	assert.False(t, res.Resolved)
	assert.Equal(t, filepath.Join(root, "Games", "new.txt"), res.HostPath,
		"the literal downcased tail is appended for create-style callers")
}

func TestResolveMissingMiddleStaysLiteral(t *testing.T) {
	root := newTestTree(t)

	res := Resolve(root, `NOPE\SUB\FILE.TXT`)

	assert.False(t, res.Resolved)
	assert.Equal(t, filepath.Join(root, "nope", "sub", "file.txt"), res.HostPath)
}

func TestResolveFileInMiddleFails(t *testing.T) {
	root := newTestTree(t)

	// README.TXT matches but is not a directory, so resolution stops there.
	res := Resolve(root, `README.TXT\MORE`)

	assert.False(t, res.Resolved)
}

func TestLiteral(t *testing.T) {
	assert.Equal(t, "/srv/dos/sub/newname.txt", Literal("/srv/dos", `C:\SUB\NEWNAME.TXT`))
	assert.Equal(t, "/srv/dos", Literal("/srv/dos", `\`))
}
