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

//go:build !linux

package rawsock

import (
	"errors"

	"github.com/megapearl/etherdfs/internal/ethframe"
)

var errUnsupported = errors.New("raw Ethernet sockets are only supported on linux")

type Socket struct{}

func Open(ifname string) (*Socket, error) {
	return nil, errUnsupported
}

func (s *Socket) HardwareAddr() ethframe.HardwareAddr { return ethframe.HardwareAddr{} }

func (s *Socket) Wait() (bool, error) { return false, errUnsupported }

func (s *Socket) Recv(buf []byte) (int, error) { return 0, errUnsupported }

func (s *Socket) Send(frame []byte) error { return errUnsupported }

func (s *Socket) Close() error { return nil }
