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
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"

	"github.com/megapearl/etherdfs/internal/dosname"
	"github.com/megapearl/etherdfs/internal/ethframe"
	"github.com/megapearl/etherdfs/internal/fattr"
	"github.com/megapearl/etherdfs/internal/fsdb"
	"github.com/megapearl/etherdfs/internal/hostfs"
	"github.com/megapearl/etherdfs/internal/logger"
)

// Subfunction opcodes (the DOS redirector's AL values).
const (
	alInstallChk = 0x00
	alRmDir      = 0x01
	alMkDir      = 0x03
	alChDir      = 0x05
	alClsFil     = 0x06
	alCmmtFil    = 0x07
	alReadFil    = 0x08
	alWriteFil   = 0x09
	alLock       = 0x0A
	alUnlock     = 0x0B
	alDiskSpace  = 0x0C
	alSetAttr    = 0x0E
	alGetAttr    = 0x0F
	alRename     = 0x11
	alDelete     = 0x13
	alOpen       = 0x16
	alCreate     = 0x17
	alFindFirst  = 0x1B
	alFindNext   = 0x1C
	alSkFmEnd    = 0x21
	alSpOpnFil   = 0x2E
)

// Largest read the reply frame can carry.
const maxReadChunk = ethframe.MaxReply - ethframe.HeaderSize

// DISKSPACE reports fixed 32 KiB clusters; cluster counts are capped so
// that the totals stay below 2 GiB, the most a DOS client can represent.
const (
	bytesPerCluster = 32768
	maxClusters     = 65535

	// diskSpaceAX is the DISKSPACE status word: media byte plus one
	// sector per cluster.
	diskSpaceAX Status = 0x0001
)

type reply struct {
	ax      Status
	payload []byte
	setAX   bool
	drop    bool
}

func answer(ax Status, payload []byte) reply {
	return reply{ax: ax, payload: payload, setAX: true}
}

func failure(ax Status) reply {
	return reply{ax: ax, setAX: true}
}

func success() reply {
	return reply{setAX: true}
}

func (s *Server) dispatch(req *ethframe.Request) reply {
	if req.Drive < 2 || req.Drive > 25 {
		return reply{drop: true}
	}
	drv := s.drives[req.Drive]
	if drv == nil {
		return reply{drop: true}
	}

	p := req.Payload
	switch req.AL {
	case alInstallChk:
		// The install check answer is a pure echo; the client looks for
		// its drive byte coming back, not for an AX value.
		return reply{}
	case alRmDir:
		return s.rmDir(drv, p)
	case alMkDir:
		return s.mkDir(drv, p)
	case alChDir:
		return s.chDir(drv, p)
	case alClsFil, alCmmtFil, alLock, alUnlock:
		return success()
	case alReadFil:
		return s.readFil(p)
	case alWriteFil:
		return s.writeFil(p)
	case alDiskSpace:
		return s.diskSpace(drv)
	case alSetAttr:
		return s.setAttr(drv, p)
	case alGetAttr:
		return s.getAttr(drv, p)
	case alRename:
		return s.rename(drv, p)
	case alDelete:
		return s.delete(drv, p)
	case alOpen:
		return s.open(drv, p)
	case alCreate:
		return s.create(drv, p)
	case alFindFirst:
		return s.findFirst(drv, p)
	case alFindNext:
		return s.findNext(drv, p)
	case alSkFmEnd:
		return s.seekFromEnd(p)
	case alSpOpnFil:
		return s.specialOpen(drv, p)
	}
	return reply{drop: true}
}

////////////////////////////////////////////////////////////////////////
// Directory operations
////////////////////////////////////////////////////////////////////////

func (s *Server) rmDir(drv *Drive, p []byte) reply {
	res := dosname.Resolve(drv.Root, payloadString(p))
	if err := os.Remove(res.HostPath); err != nil {
		logger.Debugf("rmdir %q: %v", res.HostPath, err)
		return failure(StatusWriteFault)
	}
	return success()
}

func (s *Server) mkDir(drv *Drive, p []byte) reply {
	res := dosname.Resolve(drv.Root, payloadString(p))
	if err := os.Mkdir(res.HostPath, 0777); err != nil {
		logger.Debugf("mkdir %q: %v", res.HostPath, err)
		return failure(StatusWriteFault)
	}
	return success()
}

func (s *Server) chDir(drv *Drive, p []byte) reply {
	res := dosname.Resolve(drv.Root, payloadString(p))
	if !res.Resolved {
		return failure(StatusPathNotFound)
	}
	fi, err := os.Stat(res.HostPath)
	if err != nil || !fi.IsDir() {
		return failure(StatusPathNotFound)
	}
	return success()
}

////////////////////////////////////////////////////////////////////////
// File I/O
////////////////////////////////////////////////////////////////////////

func (s *Server) readFil(p []byte) reply {
	if len(p) < 8 {
		return failure(StatusAccessDenied)
	}
	off := binary.LittleEndian.Uint32(p)
	handle := binary.LittleEndian.Uint16(p[4:])
	ln := int(binary.LittleEndian.Uint16(p[6:]))
	if ln > maxReadChunk {
		ln = maxReadChunk
	}

	path, ok := s.db.Lookup(handle)
	if !ok {
		return failure(StatusAccessDenied)
	}

	buf := make([]byte, ln)
	n, err := hostfs.ReadAt(path, off, buf)
	if err != nil {
		logger.Debugf("read %q off=%d len=%d: %v", path, off, ln, err)
		return failure(StatusAccessDenied)
	}
	return answer(StatusOK, buf[:n])
}

func (s *Server) writeFil(p []byte) reply {
	if len(p) < 6 {
		return failure(StatusAccessDenied)
	}
	off := binary.LittleEndian.Uint32(p)
	handle := binary.LittleEndian.Uint16(p[4:])

	path, ok := s.db.Lookup(handle)
	if !ok {
		return failure(StatusAccessDenied)
	}

	n, err := hostfs.WriteAt(path, off, p[6:])
	if err != nil {
		logger.Debugf("write %q off=%d len=%d: %v", path, off, len(p)-6, err)
		return failure(StatusAccessDenied)
	}
	return answer(StatusOK, binary.LittleEndian.AppendUint16(nil, uint16(n)))
}

func (s *Server) seekFromEnd(p []byte) reply {
	if len(p) < 6 {
		return failure(StatusFileNotFound)
	}
	off := int32(binary.LittleEndian.Uint32(p))
	handle := binary.LittleEndian.Uint16(p[4:])

	path, ok := s.db.Lookup(handle)
	if !ok {
		return failure(StatusFileNotFound)
	}
	fi, err := os.Stat(path)
	if err != nil {
		return failure(StatusFileNotFound)
	}

	// Seek-from-end takes a negative offset; a positive one clamps to the
	// file end, and a result before the file start clamps to zero.
	if off > 0 {
		off = 0
	}
	newOff := fi.Size() + int64(off)
	if newOff < 0 {
		newOff = 0
	}
	return answer(StatusOK, binary.LittleEndian.AppendUint32(nil, uint32(newOff)))
}

////////////////////////////////////////////////////////////////////////
// Metadata
////////////////////////////////////////////////////////////////////////

func (s *Server) diskSpace(drv *Drive) reply {
	total, free, err := hostfs.StatFS(drv.Root)
	if err != nil {
		logger.Debugf("statfs %q: %v", drv.Root, err)
	}

	totClust := total / bytesPerCluster
	if totClust > maxClusters {
		totClust = maxClusters
	}
	freeClust := free / bytesPerCluster
	if freeClust > maxClusters {
		freeClust = maxClusters
	}

	// BX, CX, DX; AX carries the fixed media byte + sectors-per-cluster.
	payload := make([]byte, 6)
	binary.LittleEndian.PutUint16(payload, uint16(totClust))
	binary.LittleEndian.PutUint16(payload[2:], bytesPerCluster)
	binary.LittleEndian.PutUint16(payload[4:], uint16(freeClust))
	return answer(diskSpaceAX, payload)
}

func (s *Server) setAttr(drv *Drive, p []byte) reply {
	if len(p) < 2 {
		return failure(StatusFileNotFound)
	}
	attr := p[0]
	res := dosname.Resolve(drv.Root, payloadString(p[1:]))
	if !res.Resolved {
		return failure(StatusFileNotFound)
	}
	if err := fattr.SetAttr(res.HostPath, attr, drv.FATBacked); err != nil {
		logger.Debugf("setattr %q: %v", res.HostPath, err)
		return failure(StatusFileNotFound)
	}
	return success()
}

func (s *Server) getAttr(drv *Drive, p []byte) reply {
	res := dosname.Resolve(drv.Root, payloadString(p))
	if !res.Resolved {
		return failure(StatusFileNotFound)
	}
	props, err := fattr.Lookup(res.HostPath, drv.FATBacked)
	if err != nil {
		return failure(StatusFileNotFound)
	}

	payload := make([]byte, 9)
	binary.LittleEndian.PutUint32(payload, props.Time)
	binary.LittleEndian.PutUint32(payload[4:], props.Size)
	payload[8] = props.Attr
	return answer(StatusOK, payload)
}

////////////////////////////////////////////////////////////////////////
// Rename and delete
////////////////////////////////////////////////////////////////////////

func (s *Server) rename(drv *Drive, p []byte) reply {
	if len(p) < 2 {
		return failure(StatusFileNotFound)
	}
	l1 := int(p[0])
	if l1 == 0 || 1+l1 >= len(p) {
		return failure(StatusFileNotFound)
	}
	src := dosname.Resolve(drv.Root, string(p[1:1+l1]))
	if !src.Resolved {
		return failure(StatusFileNotFound)
	}

	// The destination is deliberately not resolved: the name the client
	// sent (normalized and downcased) becomes the stored name, so the
	// client dictates the case of the result.
	dst := dosname.Literal(drv.Root, payloadString(p[1+l1:]))
	if _, err := os.Stat(dst); err == nil {
		return failure(StatusAccessDenied)
	}
	if err := os.Rename(src.HostPath, dst); err != nil {
		logger.Debugf("rename %q -> %q: %v", src.HostPath, dst, err)
		return failure(StatusAccessDenied)
	}
	return success()
}

func (s *Server) delete(drv *Drive, p []byte) reply {
	res := dosname.Resolve(drv.Root, payloadString(p))

	if !strings.ContainsRune(filepath.Base(res.HostPath), '?') {
		props, err := fattr.Lookup(res.HostPath, drv.FATBacked)
		if err != nil {
			return failure(StatusFileNotFound)
		}
		if props.Attr&dosname.AttrReadOnly != 0 {
			return failure(StatusAccessDenied)
		}
	}

	if _, err := hostfs.DeleteGlob(res.HostPath); err != nil {
		logger.Debugf("delete %q: %v", res.HostPath, err)
		return failure(StatusFileNotFound)
	}
	return success()
}

////////////////////////////////////////////////////////////////////////
// Open and create
////////////////////////////////////////////////////////////////////////

func (s *Server) open(drv *Drive, p []byte) reply {
	if len(p) < 3 {
		return failure(StatusFileNotFound)
	}
	openMode := binary.LittleEndian.Uint16(p)
	res := dosname.Resolve(drv.Root, payloadString(p[2:]))
	if !res.Resolved {
		return failure(StatusFileNotFound)
	}
	props, err := fattr.Lookup(res.HostPath, drv.FATBacked)
	if err != nil || props.Attr&(dosname.AttrDir|dosname.AttrVolume) != 0 {
		return failure(StatusFileNotFound)
	}

	handle := s.db.Intern(res.HostPath)
	return answer(StatusOK, appendOpenResult(res.HostPath, props, handle, byte(openMode)))
}

func (s *Server) create(drv *Drive, p []byte) reply {
	if len(p) < 3 {
		return failure(StatusFileNotFound)
	}
	attr := byte(binary.LittleEndian.Uint16(p))
	res := dosname.Resolve(drv.Root, payloadString(p[2:]))

	if err := hostfs.Create(res.HostPath); err != nil {
		logger.Debugf("create %q: %v", res.HostPath, err)
		return failure(StatusFileNotFound)
	}
	if attr != 0 {
		// Best effort; only meaningful on FAT backing.
		_ = fattr.SetAttr(res.HostPath, attr, drv.FATBacked)
	}

	props, err := fattr.Lookup(res.HostPath, drv.FATBacked)
	if err != nil {
		return failure(StatusFileNotFound)
	}
	handle := s.db.Intern(res.HostPath)
	return answer(StatusOK, appendOpenResult(res.HostPath, props, handle, 2))
}

// Special-open result dispositions.
const (
	spOpened    = 1
	spCreated   = 2
	spTruncated = 3
)

func (s *Server) specialOpen(drv *Drive, p []byte) reply {
	if len(p) < 7 {
		return failure(StatusFileNotFound)
	}
	action := binary.LittleEndian.Uint16(p[2:])
	openMode := binary.LittleEndian.Uint16(p[4:])
	res := dosname.Resolve(drv.Root, payloadString(p[6:]))

	props, statErr := fattr.Lookup(res.HostPath, drv.FATBacked)
	exists := res.Resolved && statErr == nil

	var spopres uint16
	switch {
	case !exists:
		if action&0x10 == 0 {
			return failure(StatusFileNotFound)
		}
		if err := hostfs.Create(res.HostPath); err != nil {
			logger.Debugf("spopnfil create %q: %v", res.HostPath, err)
			return failure(StatusFileNotFound)
		}
		spopres = spCreated
	case props.Attr&(dosname.AttrDir|dosname.AttrVolume) != 0:
		return failure(StatusFileNotFound)
	case action&0x0F == 1:
		spopres = spOpened
	case action&0x0F == 2:
		if err := hostfs.Create(res.HostPath); err != nil {
			logger.Debugf("spopnfil truncate %q: %v", res.HostPath, err)
			return failure(StatusFileNotFound)
		}
		spopres = spTruncated
	default:
		return failure(StatusFileNotFound)
	}

	props, err := fattr.Lookup(res.HostPath, drv.FATBacked)
	if err != nil {
		return failure(StatusFileNotFound)
	}
	handle := s.db.Intern(res.HostPath)
	payload := appendOpenResult(res.HostPath, props, handle, byte(openMode))
	return answer(StatusOK, binary.LittleEndian.AppendUint16(payload, spopres))
}

////////////////////////////////////////////////////////////////////////
// Helpers
////////////////////////////////////////////////////////////////////////

// payloadString extracts the DOS path or pattern occupying the rest of a
// request payload, stopping at a terminating NUL if the client sent one.
func payloadString(p []byte) string {
	if i := bytes.IndexByte(p, 0); i >= 0 {
		p = p[:i]
	}
	return string(p)
}

// appendFileProps serializes a directory entry the way every file-bearing
// answer carries it: 11-byte FCB name, attribute byte, DOS time, size.
func appendFileProps(b []byte, fp fsdb.FileProps) []byte {
	b = append(b, fp.FCBName[:]...)
	b = append(b, fp.Attr)
	b = binary.LittleEndian.AppendUint32(b, fp.Time)
	b = binary.LittleEndian.AppendUint32(b, fp.Size)
	return b
}

// appendOpenResult builds the common OPEN/CREATE/SPOPNFIL answer payload:
// FileProps, handle, result word (always 0) and the effective open mode.
func appendOpenResult(hostPath string, props fattr.Props, handle uint16, openMode byte) []byte {
	fp := fsdb.FileProps{
		FCBName: dosname.ToFCB(filepath.Base(hostPath)),
		Attr:    props.Attr,
		Time:    props.Time,
		Size:    props.Size,
	}
	b := appendFileProps(nil, fp)
	b = binary.LittleEndian.AppendUint16(b, handle)
	b = binary.LittleEndian.AppendUint16(b, 0)
	b = append(b, openMode)
	return b
}
