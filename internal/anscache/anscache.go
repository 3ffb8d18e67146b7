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

// Package anscache memoizes the last reply sent to each client so that a
// retransmitted request (same MAC, same sequence byte) is answered with the
// byte-identical previous reply instead of re-running a possibly
// non-idempotent handler.
package anscache

import (
	"time"

	"github.com/megapearl/etherdfs/internal/clock"
	"github.com/megapearl/etherdfs/internal/ethframe"
)

// NumSlots is the number of clients tracked at once. The cache is
// associative on the client MAC; on miss the oldest slot is replaced.
const NumSlots = 16

type slot struct {
	mac   ethframe.HardwareAddr
	used  bool
	frame []byte // complete outgoing frame; nil when the request was dropped
	stamp time.Time
}

type Cache struct {
	slots [NumSlots]slot
	clock clock.Clock
}

func New(c clock.Clock) *Cache {
	return &Cache{clock: c}
}

// Probe returns the stored reply for this client if its sequence byte
// matches seq. Entries stored with a nil frame never match: the original
// request was silently ignored and a retransmit must be ignored the same
// way by re-dispatching into the same silence.
func (c *Cache) Probe(mac ethframe.HardwareAddr, seq byte) ([]byte, bool) {
	for i := range c.slots {
		s := &c.slots[i]
		if !s.used || s.mac != mac {
			continue
		}
		if len(s.frame) == 0 {
			return nil, false
		}
		if ethframe.ReplySeq(s.frame) != seq {
			return nil, false
		}
		return s.frame, true
	}
	return nil, false
}

// Store records the reply sent to mac, overwriting the client's existing
// slot or, for a new client, the oldest slot. A nil frame records "no reply
// was sent".
func (c *Cache) Store(mac ethframe.HardwareAddr, frame []byte) {
	target := -1
	oldest := -1
	for i := range c.slots {
		s := &c.slots[i]
		if s.used && s.mac == mac {
			target = i
			break
		}
		if !s.used {
			if target == -1 {
				target = i
			}
			continue
		}
		if oldest == -1 || s.stamp.Before(c.slots[oldest].stamp) {
			oldest = i
		}
	}
	if target == -1 {
		target = oldest
	}

	c.slots[target] = slot{
		mac:   mac,
		used:  true,
		frame: frame,
		stamp: c.clock.Now(),
	}
}
