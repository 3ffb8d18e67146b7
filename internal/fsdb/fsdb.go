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

// Package fsdb maps host paths to stable 16-bit slot tokens. The slot index
// doubles as the wire-protocol file handle and as the directory token for
// FINDFIRST/FINDNEXT, whose listing snapshot is attached to the slot.
package fsdb

import (
	"time"

	"github.com/megapearl/etherdfs/internal/clock"
)

const (
	// NumSlots is the size of the slot table. Slot 0xFFFF is the "no slot"
	// sentinel and is never allocated.
	NumSlots = 65536

	// NoSlot is the reserved sentinel value.
	NoSlot uint16 = 0xFFFF

	// Slots untouched for this long are reclaimed when a new slot is
	// needed.
	idleTimeout = time.Hour
)

// FileProps is one directory entry as presented to the DOS client.
type FileProps struct {
	// FCBName is the canonical 11-byte 8.3 name, space-padded, uppercase.
	FCBName [11]byte

	// Attr is the DOS attribute byte.
	Attr byte

	// Time is the DOS-packed modification date and time.
	Time uint32

	// Size is the file size in bytes, clamped below 2 GiB.
	Size uint32
}

type entry struct {
	path     string
	lastUsed time.Time
	snapshot []FileProps // nil unless a FINDFIRST materialized a listing
	hasSnap  bool
}

// DB is the slot table. It is owned by the event loop and needs no locking.
type DB struct {
	slots  [NumSlots]*entry
	byPath map[string]uint16
	clock  clock.Clock
}

func New(c clock.Clock) *DB {
	return &DB{
		byPath: make(map[string]uint16),
		clock:  c,
	}
}

// Intern returns the slot holding this exact host path, allocating one if
// needed. The slot's last-used time is refreshed. Allocation takes the
// first free slot, opportunistically reclaiming idle entries as the scan
// passes them; if the table is full, the least recently used slot is
// evicted.
func (db *DB) Intern(path string) uint16 {
	now := db.clock.Now()

	if id, ok := db.byPath[path]; ok {
		db.slots[id].lastUsed = now
		return id
	}

	free := -1
	oldest := -1
	for i := 0; i < NumSlots-1; i++ {
		e := db.slots[i]
		if e == nil {
			if free == -1 {
				free = i
			}
			continue
		}
		if now.Sub(e.lastUsed) > idleTimeout {
			db.free(uint16(i))
			if free == -1 {
				free = i
			}
			continue
		}
		if free == -1 && (oldest == -1 || e.lastUsed.Before(db.slots[oldest].lastUsed)) {
			oldest = i
		}
	}

	id := free
	if id == -1 {
		db.free(uint16(oldest))
		id = oldest
	}

	db.slots[id] = &entry{path: path, lastUsed: now}
	db.byPath[path] = uint16(id)
	return uint16(id)
}

// Lookup returns the path held in the slot, or "" if the slot is empty.
func (db *DB) Lookup(id uint16) (string, bool) {
	if id == NoSlot || db.slots[id] == nil {
		return "", false
	}
	e := db.slots[id]
	e.lastUsed = db.clock.Now()
	return e.path, true
}

// Snapshot returns the directory listing attached to the slot, if any.
func (db *DB) Snapshot(id uint16) ([]FileProps, bool) {
	if id == NoSlot || db.slots[id] == nil || !db.slots[id].hasSnap {
		return nil, false
	}
	return db.slots[id].snapshot, true
}

// SetSnapshot attaches a directory listing to the slot, replacing any
// previous one.
func (db *DB) SetSnapshot(id uint16, props []FileProps) {
	if id == NoSlot || db.slots[id] == nil {
		return
	}
	db.slots[id].snapshot = props
	db.slots[id].hasSnap = true
}

// DropSnapshot discards the listing attached to the slot.
func (db *DB) DropSnapshot(id uint16) {
	if id == NoSlot || db.slots[id] == nil {
		return
	}
	db.slots[id].snapshot = nil
	db.slots[id].hasSnap = false
}

func (db *DB) free(id uint16) {
	e := db.slots[id]
	if e == nil {
		return
	}
	delete(db.byPath, e.path)
	db.slots[id] = nil
}
