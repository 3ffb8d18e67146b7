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

// Package hostfs holds the thin verbs the dispatcher runs against the host
// tree. Each maps to a single host operation; callers inspect the returned
// error only far enough to pick a DOS status code.
package hostfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/megapearl/etherdfs/internal/dosname"
)

// ReadAt reads up to len(buf) bytes at off. A short count without error
// means end of file.
func ReadAt(path string, off uint32, buf []byte) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n, err := f.ReadAt(buf, int64(off))
	if err == io.EOF {
		err = nil
	}
	return n, err
}

// WriteAt writes data at off, extending the file as needed. An empty write
// reinterprets off as a truncation target, which is how DOS expresses
// truncate-to-length over the redirector interface.
func WriteAt(path string, off uint32, data []byte) (int, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if len(data) == 0 {
		if err := f.Truncate(int64(off)); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return f.WriteAt(data, int64(off))
}

// Create creates or truncates the file at path.
func Create(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	return f.Close()
}

// DeleteGlob removes the file(s) named by pattern. A pattern containing
// '?' is matched FCB-style against the directory's non-directory entries;
// a literal pattern unlinks exactly that path. Returns how many entries
// were unlinked.
func DeleteGlob(pattern string) (int, error) {
	base := filepath.Base(pattern)
	if !strings.ContainsRune(base, '?') {
		if err := os.Remove(pattern); err != nil {
			return 0, err
		}
		return 1, nil
	}

	dir := filepath.Dir(pattern)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	mask := dosname.ToFCB(base)
	deleted := 0
	var firstErr error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !dosname.MatchMask(mask, dosname.ToFCB(e.Name())) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		deleted++
	}
	if deleted == 0 && firstErr == nil {
		firstErr = fmt.Errorf("no match for %q", pattern)
	}
	return deleted, firstErr
}
