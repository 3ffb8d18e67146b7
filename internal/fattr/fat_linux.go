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

//go:build linux

package fattr

import (
	"os"

	"golang.org/x/sys/unix"
)

// FAT ioctls from linux/msdos_fs.h.
const (
	fatIoctlGetAttributes = 0x80047210 // FAT_IOCTL_GET_ATTRIBUTES
	fatIoctlSetAttributes = 0x40047211 // FAT_IOCTL_SET_ATTRIBUTES
)

// IsFATBacked probes the filesystem type behind path. It is called once
// per drive at startup; a drive remounted later is not re-detected.
func IsFATBacked(path string) bool {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return false
	}
	return st.Type == unix.MSDOS_SUPER_MAGIC
}

func getFATAttr(path string) (byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	attr, err := unix.IoctlGetUint32(int(f.Fd()), fatIoctlGetAttributes)
	if err != nil {
		return 0, err
	}
	return byte(attr), nil
}

func setFATAttr(path string, attr byte) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return unix.IoctlSetPointerInt(int(f.Fd()), fatIoctlSetAttributes, int(attr))
}
