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

// Package server contains the request dispatcher and the event loop that
// tie the transport, the caches and the host filesystem together. One
// thread owns everything: a frame is received, dispatched to completion and
// answered before the next one is read, so the per-client ordering on the
// wire is the arrival ordering and no state needs locking.
package server

import (
	"github.com/megapearl/etherdfs/internal/anscache"
	"github.com/megapearl/etherdfs/internal/clock"
	"github.com/megapearl/etherdfs/internal/ethframe"
	"github.com/megapearl/etherdfs/internal/fsdb"
	"github.com/megapearl/etherdfs/internal/logger"
)

// Status is a DOS error code surfaced to the client in AX.
type Status uint16

const (
	StatusOK           Status = 0
	StatusFileNotFound Status = 2
	StatusPathNotFound Status = 3
	StatusAccessDenied Status = 5
	StatusNoMoreFiles  Status = 18
	StatusWriteFault   Status = 29
)

// Drive is one exported host directory. The FAT flag is probed once at
// startup; a filesystem remounted underneath a running server is not
// re-detected.
type Drive struct {
	Root      string
	FATBacked bool
}

// DriveTable maps drive numbers (0=A..25=Z) to exported roots. Only
// entries 2..25 (C:..Z:) are ever populated.
type DriveTable [26]*Drive

// Transport is the raw-frame I/O surface the loop runs on.
type Transport interface {
	HardwareAddr() ethframe.HardwareAddr
	Wait() (ok bool, err error)
	Recv(buf []byte) (int, error)
	Send(frame []byte) error
	Close() error
}

type Server struct {
	sock    Transport
	mac     ethframe.HardwareAddr
	drives  DriveTable
	db      *fsdb.DB
	answers *anscache.Cache

	served  uint64
	dropped uint64
}

func New(sock Transport, drives DriveTable, clk clock.Clock) *Server {
	return &Server{
		sock:    sock,
		mac:     sock.HardwareAddr(),
		drives:  drives,
		db:      fsdb.New(clk),
		answers: anscache.New(clk),
	}
}

// Handle processes one raw inbound frame and returns the reply frame to
// transmit, or nil when the frame must be ignored. Retransmits are served
// from the answer cache without re-dispatching.
func (s *Server) Handle(raw []byte) []byte {
	req, err := ethframe.Parse(raw)
	if err != nil {
		logger.Tracef("dropping frame: %v", err)
		s.dropped++
		return nil
	}

	// In promiscuous mode we also see our own transmissions.
	if req.Src == s.mac {
		return nil
	}

	if cached, ok := s.answers.Probe(req.Src, req.Seq); ok {
		logger.Tracef("%s seq=0x%02x: retransmit, replaying cached answer", req.Src, req.Seq)
		return cached
	}

	rep := s.dispatch(req)
	if rep.drop {
		logger.Tracef("%s seq=0x%02x al=0x%02x drive=%d: ignored", req.Src, req.Seq, req.AL, req.Drive)
		s.dropped++
		s.answers.Store(req.Src, nil)
		return nil
	}

	frame := ethframe.BuildReply(req, s.mac, uint16(rep.ax), rep.payload, rep.setAX)
	s.answers.Store(req.Src, frame)
	s.served++
	return frame
}

// Run is the event loop: wait for readiness, receive one frame, dispatch,
// send the reply, repeat. It returns when stop is closed or the socket
// fails hard.
func (s *Server) Run(stop <-chan struct{}) error {
	buf := make([]byte, ethframe.MaxFrame)
	for {
		select {
		case <-stop:
			logger.Infof("shutting down: %d frames served, %d ignored", s.served, s.dropped)
			return nil
		default:
		}

		ok, err := s.sock.Wait()
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		n, err := s.sock.Recv(buf)
		if err != nil {
			logger.Warnf("receive: %v", err)
			continue
		}
		if n == 0 {
			continue
		}

		if reply := s.Handle(buf[:n]); reply != nil {
			if err := s.sock.Send(reply); err != nil {
				logger.Warnf("send: %v", err)
			}
		}
	}
}
