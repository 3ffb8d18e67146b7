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

package rawsock

import (
	"fmt"
	"net"

	"github.com/megapearl/etherdfs/internal/ethframe"
	"golang.org/x/sys/unix"
)

// Socket is a non-blocking AF_PACKET socket bound to one interface and
// filtered to the EtherDFS EtherType. Requires CAP_NET_RAW, plus
// CAP_NET_ADMIN for promiscuous mode.
type Socket struct {
	fd      int
	ifindex int
	mac     ethframe.HardwareAddr
}

// Open binds a raw L2 socket to the named interface in promiscuous mode.
// Any failure here is fatal for the caller: there is no transport without
// the socket.
func Open(ifname string) (*Socket, error) {
	ifi, err := net.InterfaceByName(ifname)
	if err != nil {
		return nil, fmt.Errorf("interface %q: %w", ifname, err)
	}
	if len(ifi.HardwareAddr) != 6 {
		return nil, fmt.Errorf("interface %q has no Ethernet address", ifname)
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(ethframe.EtherType)))
	if err != nil {
		return nil, fmt.Errorf("socket(AF_PACKET): %w", err)
	}

	sll := &unix.SockaddrLinklayer{
		Protocol: htons(ethframe.EtherType),
		Ifindex:  ifi.Index,
	}
	if err := unix.Bind(fd, sll); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind to %q: %w", ifname, err)
	}

	mreq := &unix.PacketMreq{
		Ifindex: int32(ifi.Index),
		Type:    unix.PACKET_MR_PROMISC,
	}
	if err := unix.SetsockoptPacketMreq(fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, mreq); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("enable promiscuous mode on %q: %w", ifname, err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set non-blocking: %w", err)
	}

	s := &Socket{fd: fd, ifindex: ifi.Index}
	copy(s.mac[:], ifi.HardwareAddr)
	return s, nil
}

// HardwareAddr returns the bound interface's MAC address, which is the
// server's address on the wire.
func (s *Socket) HardwareAddr() ethframe.HardwareAddr {
	return s.mac
}

// How long one readiness wait may block. The wait has to return
// periodically so the event loop can observe a pending shutdown.
const waitTimeoutMs = 1000

// Wait blocks until the socket is readable. It returns with ok=false when
// the wait timed out or was interrupted by a signal, so the caller can
// re-check its shutdown flag.
func (s *Socket) Wait() (ok bool, err error) {
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, waitTimeoutMs)
	if err == unix.EINTR {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("poll: %w", err)
	}
	return n > 0, nil
}

// Recv reads one frame into buf and returns the number of bytes read.
// Returns n=0 when no frame is pending (the socket is non-blocking).
func (s *Socket) Recv(buf []byte) (int, error) {
	n, _, err := unix.Recvfrom(s.fd, buf, 0)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("recvfrom: %w", err)
	}
	return n, nil
}

// Send transmits one complete frame, best effort. The destination address
// is taken from the frame itself.
func (s *Socket) Send(frame []byte) error {
	dst := ethframe.ReplyDst(frame)
	sll := &unix.SockaddrLinklayer{
		Protocol: htons(ethframe.EtherType),
		Ifindex:  s.ifindex,
		Halen:    6,
	}
	copy(sll.Addr[:], dst[:])
	if err := unix.Sendto(s.fd, frame, 0, sll); err != nil {
		return fmt.Errorf("sendto %s: %w", dst, err)
	}
	return nil
}

func (s *Socket) Close() error {
	return unix.Close(s.fd)
}

// htons converts to network byte order on little-endian hosts.
func htons(v uint16) uint16 {
	return v<<8 | v>>8
}
