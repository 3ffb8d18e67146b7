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

package server

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"

	"github.com/megapearl/etherdfs/internal/dosname"
	"github.com/megapearl/etherdfs/internal/fattr"
	"github.com/megapearl/etherdfs/internal/fsdb"
	"github.com/megapearl/etherdfs/internal/logger"
)

// findFirst resolves the directory part of the search path, interns a slot
// for it, materializes a fresh listing snapshot on that slot and returns
// the first entry matching the mask and attribute filter along with its
// 1-based position. Positions index the snapshot, so a later FINDNEXT can
// continue the same listing from where this one stopped.
func (s *Server) findFirst(drv *Drive, p []byte) reply {
	if len(p) < 2 {
		return failure(StatusNoMoreFiles)
	}
	attr := p[0]
	search := payloadString(p[1:])

	dirPart, maskPart := splitSearchPath(search)
	res := dosname.Resolve(drv.Root, dirPart)
	if !res.Resolved {
		return failure(StatusNoMoreFiles)
	}

	slot := s.db.Intern(res.HostPath)
	snap, err := s.snapshotDir(drv, res.HostPath)
	if err != nil {
		logger.Debugf("findfirst %q: %v", res.HostPath, err)
		return failure(StatusNoMoreFiles)
	}
	s.db.SetSnapshot(slot, snap)

	mask := dosname.ToFCBMask(maskPart)
	isRoot := res.HostPath == drv.Root
	fp, pos, ok := scanSnapshot(snap, 0, mask, attr, isRoot)
	if !ok {
		return failure(StatusNoMoreFiles)
	}
	return answer(StatusOK, appendFindResult(fp, slot, pos))
}

// findNext continues a listing: same mask and attribute, starting one past
// the position the client saw last. Position zero rewinds by regenerating
// the snapshot, which also covers a slot whose snapshot was evicted.
func (s *Server) findNext(drv *Drive, p []byte) reply {
	if len(p) < 16 {
		return failure(StatusNoMoreFiles)
	}
	slot := binary.LittleEndian.Uint16(p)
	pos := binary.LittleEndian.Uint16(p[2:])
	attr := p[4]
	var mask [11]byte
	copy(mask[:], p[5:16])

	dirPath, ok := s.db.Lookup(slot)
	if !ok {
		return failure(StatusNoMoreFiles)
	}

	snap, have := s.db.Snapshot(slot)
	if !have || pos == 0 {
		var err error
		snap, err = s.snapshotDir(drv, dirPath)
		if err != nil {
			logger.Debugf("findnext %q: %v", dirPath, err)
			return failure(StatusNoMoreFiles)
		}
		s.db.SetSnapshot(slot, snap)
	}

	isRoot := dirPath == drv.Root
	fp, nextPos, found := scanSnapshot(snap, int(pos), mask, attr, isRoot)
	if !found {
		return failure(StatusNoMoreFiles)
	}
	return answer(StatusOK, appendFindResult(fp, slot, nextPos))
}

// snapshotDir captures one host directory scan as FileProps, sorted by host
// file name (the order os.ReadDir returns); the host's own enumeration
// order is not kept.
func (s *Server) snapshotDir(drv *Drive, dir string) ([]fsdb.FileProps, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	snap := make([]fsdb.FileProps, 0, len(entries))
	for _, e := range entries {
		fi, err := e.Info()
		if err != nil {
			continue
		}
		props := fattr.FromFileInfo(filepath.Join(dir, e.Name()), fi, drv.FATBacked)
		snap = append(snap, fsdb.FileProps{
			FCBName: dosname.ToFCB(e.Name()),
			Attr:    props.Attr,
			Time:    props.Time,
			Size:    props.Size,
		})
	}
	return snap, nil
}

// scanSnapshot finds the first entry at 0-based index >= start that passes
// the mask and attribute filter, returning its 1-based position. Dot-led
// names are suppressed in a drive's root directory, which cannot contain
// "." or ".." on a real FAT volume.
func scanSnapshot(snap []fsdb.FileProps, start int, mask [11]byte, attr byte, isRoot bool) (fsdb.FileProps, uint16, bool) {
	for i := start; i < len(snap); i++ {
		fp := snap[i]
		if isRoot && fp.FCBName[0] == '.' {
			continue
		}
		if !dosname.MatchMask(mask, fp.FCBName) {
			continue
		}
		if !dosname.AttrMatch(attr, fp.Attr) {
			continue
		}
		return fp, uint16(i + 1), true
	}
	return fsdb.FileProps{}, 0, false
}

// splitSearchPath separates the directory part of a search path from its
// final mask component.
func splitSearchPath(search string) (dir, mask string) {
	norm := strings.ReplaceAll(search, "\\", "/")
	if i := strings.LastIndexByte(norm, '/'); i >= 0 {
		return norm[:i], norm[i+1:]
	}
	return "", norm
}

func appendFindResult(fp fsdb.FileProps, slot uint16, pos uint16) []byte {
	b := appendFileProps(nil, fp)
	b = binary.LittleEndian.AppendUint16(b, slot)
	b = binary.LittleEndian.AppendUint16(b, pos)
	return b
}
