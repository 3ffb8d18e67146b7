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

// Package fattr maps host inodes onto DOS attribute bytes and DOS packed
// timestamps. Directories always report 0x10. On a FAT-backed drive the
// host's own attribute bits of regular files are authoritative, read and
// written through the FAT ioctls; everywhere else the attribute of a
// regular file is synthesized (0x20) and attribute writes are silently
// accepted.
package fattr

import (
	"os"

	"github.com/megapearl/etherdfs/internal/dosname"
)

const maxDOSSize = 0x7FFFFFFF

// Props describes one host inode in DOS terms.
type Props struct {
	Attr byte
	Time uint32
	Size uint32
}

// Lookup stats the host path and derives its DOS properties.
func Lookup(hostPath string, fatBacked bool) (Props, error) {
	fi, err := os.Stat(hostPath)
	if err != nil {
		return Props{}, err
	}
	return FromFileInfo(hostPath, fi, fatBacked), nil
}

// FromFileInfo derives DOS properties from an already-completed stat.
func FromFileInfo(hostPath string, fi os.FileInfo, fatBacked bool) Props {
	p := Props{Time: PackDOSTime(fi.ModTime())}

	if fi.IsDir() {
		p.Attr = dosname.AttrDir
		return p
	}

	size := fi.Size()
	if size > maxDOSSize {
		size = maxDOSSize
	}
	p.Size = uint32(size)

	if fatBacked {
		if attr, err := getFATAttr(hostPath); err == nil {
			p.Attr = attr
			return p
		}
	}
	p.Attr = dosname.AttrArchive
	return p
}

// SetAttr writes the DOS attribute byte through to the host. On non-FAT
// backing there is nowhere to store it and the call succeeds as a no-op.
func SetAttr(hostPath string, attr byte, fatBacked bool) error {
	if !fatBacked {
		return nil
	}
	return setFATAttr(hostPath, attr)
}
