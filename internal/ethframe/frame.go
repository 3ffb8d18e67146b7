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

// Package ethframe implements the EtherDFS wire format.
//
// Every EtherDFS frame shares a 60 byte header laid out over the raw
// Ethernet frame. Multi-byte fields are little-endian except the EtherType
// word, which is big-endian as required by Ethernet:
//
//	offset  size  meaning
//	     0     6  destination MAC
//	     6     6  source MAC
//	    12     2  EtherType 0xEDF5 (big-endian)
//	    14    38  opaque header bytes, echoed verbatim in replies
//	    52     2  total frame length; 0 means "use the link length"
//	    54     2  BSD checksum, valid iff bit 7 of byte 56 is set
//	    56     1  bits 0..6 protocol version (2), bit 7 checksum-present
//	    57     1  per-client sequence byte, echoed in replies
//	    58     1  low 5 bits drive number (0=A..25=Z), high 3 bits flags
//	    59     1  subfunction (AL); replies carry the AX word at 58..59
//	    60     N  request- or reply-specific payload
package ethframe

import (
	"encoding/binary"
	"fmt"
)

const (
	// EtherType carried by all EtherDFS frames.
	EtherType = 0xEDF5

	// ProtoVersion is the only protocol version this codec accepts.
	ProtoVersion = 2

	// HeaderSize is the size of the shared header, which is also the
	// minimum length of a valid frame (the Ethernet minimum).
	HeaderSize = 60

	// MaxFrame bounds the frames we receive; MaxReply bounds the frames we
	// build (header plus the largest reply payload).
	MaxFrame = 2048
	MaxReply = 1520
)

// Header field offsets.
const (
	offDst      = 0
	offSrc      = 6
	offType     = 12
	offLength   = 52
	offChecksum = 54
	offVersion  = 56
	offSeq      = 57
	offDrive    = 58
	offAL       = 59
	offAX       = 58
	OffPayload  = 60
)

const (
	versionMask  = 0x7f
	checksumFlag = 0x80
	driveMask    = 0x1f
)

// A HardwareAddr is a 6 byte Ethernet MAC address.
type HardwareAddr [6]byte

func (a HardwareAddr) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
}

// Request is a well-formed inbound frame. The raw bytes are retained
// because replies reuse the request header verbatim.
type Request struct {
	// Raw holds the frame truncated to its declared length. Never modified.
	Raw []byte

	Dst   HardwareAddr
	Src   HardwareAddr
	Seq   byte
	Drive byte // low 5 bits of byte 58
	Flags byte // high 3 bits of byte 58
	AL    byte

	// HasChecksum records whether the client requested checksumming; the
	// reply must carry a checksum iff it did.
	HasChecksum bool

	// Payload aliases Raw[60:].
	Payload []byte
}

// Parse validates a received frame and decodes the header. A nil Request
// with a non-nil error means the frame must be dropped silently.
func Parse(b []byte) (*Request, error) {
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("frame too short: %d bytes", len(b))
	}

	// A non-zero declared length truncates the frame (the link layer pads
	// short frames to the Ethernet minimum).
	declared := binary.LittleEndian.Uint16(b[offLength:])
	if declared != 0 {
		if int(declared) < HeaderSize || int(declared) > len(b) {
			return nil, fmt.Errorf("bad declared length %d (link length %d)", declared, len(b))
		}
		b = b[:declared]
	}

	if b[offVersion]&versionMask != ProtoVersion {
		return nil, fmt.Errorf("unsupported protocol version %d", b[offVersion]&versionMask)
	}

	hasChecksum := b[offVersion]&checksumFlag != 0
	if hasChecksum {
		want := binary.LittleEndian.Uint16(b[offChecksum:])
		if got := BSDChecksum(b[offVersion:]); got != want {
			return nil, fmt.Errorf("checksum mismatch: got 0x%04x, want 0x%04x", got, want)
		}
	}

	r := &Request{
		Raw:         b,
		Seq:         b[offSeq],
		Drive:       b[offDrive] & driveMask,
		Flags:       b[offDrive] &^ driveMask,
		AL:          b[offAL],
		HasChecksum: hasChecksum,
		Payload:     b[OffPayload:],
	}
	copy(r.Dst[:], b[offDst:])
	copy(r.Src[:], b[offSrc:])
	return r, nil
}

// BSDChecksum computes the 16-bit rotate-add checksum over b: for each byte
// the accumulator is rotated right by one bit, then the byte is added.
func BSDChecksum(b []byte) uint16 {
	var sum uint16
	for _, c := range b {
		sum = (sum >> 1) | (sum << 15)
		sum += uint16(c)
	}
	return sum
}

// BuildReply constructs the reply frame for req. The request header is
// reused: MACs are swapped with the source overwritten by the server MAC,
// the opaque bytes and the sequence byte are kept, the length field is set,
// and the checksum is recomputed iff the request carried one. The AX word
// overwrites bytes 58..59 unless setAX is false, in which case the
// request's drive and subfunction bytes are left in place (the install
// check relies on seeing its drive byte back).
func BuildReply(req *Request, serverMAC HardwareAddr, ax uint16, payload []byte, setAX bool) []byte {
	frame := make([]byte, HeaderSize+len(payload))
	copy(frame, req.Raw[:HeaderSize])

	// dst <- client, src <- us
	copy(frame[offDst:], req.Src[:])
	copy(frame[offSrc:], serverMAC[:])

	if setAX {
		binary.LittleEndian.PutUint16(frame[offAX:], ax)
	}
	copy(frame[OffPayload:], payload)
	binary.LittleEndian.PutUint16(frame[offLength:], uint16(len(frame)))

	if req.HasChecksum {
		frame[offVersion] |= checksumFlag
		binary.LittleEndian.PutUint16(frame[offChecksum:], BSDChecksum(frame[offVersion:]))
	} else {
		frame[offVersion] &^= checksumFlag
	}
	return frame
}

// ReplyDst returns the destination MAC of an already-built reply frame.
func ReplyDst(frame []byte) HardwareAddr {
	var a HardwareAddr
	copy(a[:], frame[offDst:])
	return a
}

// ReplySeq returns the sequence byte of an already-built reply frame.
func ReplySeq(frame []byte) byte {
	return frame[offSeq]
}
