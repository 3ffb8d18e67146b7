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
	"path"
	"strings"
)

// A Resolution is the outcome of translating a DOS path against the host
// tree. When Resolved is false only a prefix of the components matched:
// HostPath is the resolved prefix with the remaining DOS tokens appended
// literally (downcased). Readers treat that as "not found"; create-style
// callers use it as the target to create.
type Resolution struct {
	HostPath string
	Resolved bool
}

// Resolve translates a `\`-separated DOS path into a host path under root.
// Each component is matched case-insensitively against the host directory's
// entries by comparing FCB forms; the first match wins, and the host-case
// name is kept. An optional drive prefix ("C:") is stripped.
func Resolve(root, dosPath string) Resolution {
	p := strings.ToLower(strings.ReplaceAll(dosPath, "\\", "/"))
	if len(p) >= 2 && p[1] == ':' {
		p = p[2:]
	}

	host := root
	resolved := true

	comps := make([]string, 0, 8)
	for _, c := range strings.Split(p, "/") {
		if c != "" {
			comps = append(comps, c)
		}
	}

	for i, comp := range comps {
		if !resolved {
			host = path.Join(host, comp)
			continue
		}

		name, isDir, ok := matchComponent(host, comp)
		if !ok || (i < len(comps)-1 && !isDir) {
			resolved = false
			host = path.Join(host, comp)
			continue
		}
		host = path.Join(host, name)
	}

	return Resolution{HostPath: host, Resolved: resolved}
}

// Literal normalizes a DOS path the way Resolve does (backslashes to
// slashes, downcased, drive prefix stripped) but performs no matching: the
// client-supplied name is taken as-is. Used where the caller dictates the
// stored name, such as a rename destination.
func Literal(root, dosPath string) string {
	p := strings.ToLower(strings.ReplaceAll(dosPath, "\\", "/"))
	if len(p) >= 2 && p[1] == ':' {
		p = p[2:]
	}
	return path.Join(root, p)
}

// matchComponent scans the host directory dir for an entry whose FCB form
// equals the target component's, returning the entry's real name.
func matchComponent(dir, comp string) (name string, isDir bool, ok bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false, false
	}

	target := ToFCB(comp)
	for _, e := range entries {
		if e.Name() == "." || e.Name() == ".." {
			continue
		}
		if ToFCB(e.Name()) == target {
			return e.Name(), e.IsDir(), true
		}
	}
	return "", false, false
}
