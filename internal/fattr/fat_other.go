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

package fattr

import "errors"

var errNoFAT = errors.New("FAT attribute ioctls are only supported on linux")

func IsFATBacked(path string) bool { return false }

func getFATAttr(path string) (byte, error) { return 0, errNoFAT }

func setFATAttr(path string, attr byte) error { return errNoFAT }
