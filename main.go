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

// An EtherDFS file server: serves host directories as DOS drives over raw
// Ethernet frames (EtherType 0xEDF5), without an IP stack.
//
// Usage:
//
//	ethersrv [flags] interface path [path...]
package main

import "github.com/megapearl/etherdfs/cmd"

func main() {
	cmd.Execute()
}
