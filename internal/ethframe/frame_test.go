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

package ethframe

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	clientMAC = HardwareAddr{0x02, 0, 0, 0, 0, 0x02}
	serverMAC = HardwareAddr{0x02, 0, 0, 0, 0, 0x01}
)

// testFrame builds a minimal well-formed request frame.
func testFrame(seq, drive, al byte, payload []byte, withChecksum bool) []byte {
	b := make([]byte, HeaderSize+len(payload))
	copy(b[0:], serverMAC[:])
	copy(b[6:], clientMAC[:])
	binary.BigEndian.PutUint16(b[12:], EtherType)
	binary.LittleEndian.PutUint16(b[52:], uint16(len(b)))
	b[56] = ProtoVersion
	b[57] = seq
	b[58] = drive
	b[59] = al
	copy(b[60:], payload)
	if withChecksum {
		b[56] |= 0x80
		binary.LittleEndian.PutUint16(b[54:], BSDChecksum(b[56:]))
	}
	return b
}

func TestBSDChecksum(t *testing.T) {
	testCases := []struct {
		name string
		in   []byte
		want uint16
	}{
		{"empty", nil, 0},
		{"single byte", []byte{0x01}, 0x0001},
		{"rotation", []byte{0x01, 0x00}, 0x8000},
		{"rotation and add", []byte{0x01, 0x01}, 0x8001},
		{"three bytes", []byte{0xff, 0xff, 0xff}, 0x41be},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, BSDChecksum(tc.in))
		})
	}
}

func TestParseValidFrame(t *testing.T) {
	req, err := Parse(testFrame(0x11, 2, 0x0f, []byte("README.TXT"), true))

	require.NoError(t, err)
	assert.Equal(t, clientMAC, req.Src)
	assert.Equal(t, serverMAC, req.Dst)
	assert.Equal(t, byte(0x11), req.Seq)
	assert.Equal(t, byte(2), req.Drive)
	assert.Equal(t, byte(0x0f), req.AL)
	assert.True(t, req.HasChecksum)
	assert.Equal(t, []byte("README.TXT"), req.Payload)
}

func TestParseDriveAndFlagsSplit(t *testing.T) {
	req, err := Parse(testFrame(0, 0xe5, 0, nil, false))

	require.NoError(t, err)
	assert.Equal(t, byte(0x05), req.Drive)
	assert.Equal(t, byte(0xe0), req.Flags)
}

func TestParseRejectsMalformedFrames(t *testing.T) {
	short := testFrame(0, 2, 0, nil, false)[:59]

	badVersion := testFrame(0, 2, 0, nil, false)
	badVersion[56] = 3

	badChecksum := testFrame(0, 2, 0, nil, true)
	badChecksum[54] ^= 0xff

	badLength := testFrame(0, 2, 0, nil, false)
	binary.LittleEndian.PutUint16(badLength[52:], 59)

	tooLongDeclared := testFrame(0, 2, 0, nil, false)
	binary.LittleEndian.PutUint16(tooLongDeclared[52:], 100)

	testCases := []struct {
		name  string
		frame []byte
	}{
		{"below minimum length", short},
		{"wrong protocol version", badVersion},
		{"checksum mismatch", badChecksum},
		{"declared length below header", badLength},
		{"declared length beyond link length", tooLongDeclared},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.frame)
			assert.Error(t, err)
		})
	}
}

func TestParseTruncatesToDeclaredLength(t *testing.T) {
	// Padding beyond the declared length must be invisible to the payload.
	b := testFrame(0, 2, 0x13, []byte("OLD.TXT"), false)
	padded := append(b, make([]byte, 20)...)

	req, err := Parse(padded)

	require.NoError(t, err)
	assert.Equal(t, []byte("OLD.TXT"), req.Payload)
}

func TestParseZeroLengthUsesLinkLength(t *testing.T) {
	b := testFrame(0, 2, 0, []byte("ABC"), false)
	binary.LittleEndian.PutUint16(b[52:], 0)

	req, err := Parse(b)

	require.NoError(t, err)
	assert.Equal(t, []byte("ABC"), req.Payload)
}

func TestBuildReplyReusesRequestHeader(t *testing.T) {
	raw := testFrame(0x42, 2, 0x0f, []byte("README.TXT"), false)
	// Scribble over the opaque area so the echo is observable.
	for i := 14; i < 52; i++ {
		raw[i] = byte(i)
	}
	req, err := Parse(raw)
	require.NoError(t, err)

	reply := BuildReply(req, serverMAC, 0, []byte{1, 2, 3}, true)

	assert.Equal(t, clientMAC[:], reply[0:6], "destination must be the client")
	assert.Equal(t, serverMAC[:], reply[6:12], "source must be the server")
	assert.Equal(t, raw[12:52], reply[12:52], "opaque header bytes must be echoed")
	assert.Equal(t, byte(0x42), reply[57], "sequence byte must be echoed")
	assert.Equal(t, uint16(63), binary.LittleEndian.Uint16(reply[52:]))
	assert.Equal(t, []byte{1, 2, 3}, reply[60:])
}

func TestBuildReplyChecksumDiscipline(t *testing.T) {
	withSum, err := Parse(testFrame(1, 2, 0, nil, true))
	require.NoError(t, err)
	withoutSum, err := Parse(testFrame(2, 2, 0, nil, false))
	require.NoError(t, err)

	reply := BuildReply(withSum, serverMAC, 0, []byte("data"), true)
	assert.NotZero(t, reply[56]&0x80, "checksum flag must be set")
	assert.Equal(t, BSDChecksum(reply[56:]), binary.LittleEndian.Uint16(reply[54:]))

	reply = BuildReply(withoutSum, serverMAC, 0, []byte("data"), true)
	assert.Zero(t, reply[56]&0x80, "checksum flag must be clear")
}

func TestBuildReplyAXPlacement(t *testing.T) {
	req, err := Parse(testFrame(1, 2, 0x0f, nil, false))
	require.NoError(t, err)

	reply := BuildReply(req, serverMAC, 0x0012, nil, true)
	assert.Equal(t, uint16(0x0012), binary.LittleEndian.Uint16(reply[58:]))

	// Without setAX the drive and subfunction bytes survive.
	reply = BuildReply(req, serverMAC, 0x0012, nil, false)
	assert.Equal(t, byte(2), reply[58])
	assert.Equal(t, byte(0x0f), reply[59])
}

func TestHardwareAddrString(t *testing.T) {
	assert.Equal(t, "02:00:00:00:00:02", clientMAC.String())
}
