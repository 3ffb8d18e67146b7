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

package fattr

import "time"

// DOS packed date+time, as stored in FAT directory entries:
//
//	bits 31..25  year - 1980
//	bits 24..21  month (1..12)
//	bits 20..16  day (1..31)
//	bits 15..11  hour (0..23)
//	bits 10..5   minute (0..59)
//	bits 4..0    second / 2 (0..29)

// PackDOSTime converts a host timestamp to DOS packed form. Times before
// 1980 pack as 0 and years after 2107 clamp to 2107; seconds lose their
// low bit.
func PackDOSTime(t time.Time) uint32 {
	year := t.Year()
	if year < 1980 {
		return 0
	}
	if year > 2107 {
		year = 2107
	}
	return uint32(year-1980)<<25 |
		uint32(t.Month())<<21 |
		uint32(t.Day())<<16 |
		uint32(t.Hour())<<11 |
		uint32(t.Minute())<<5 |
		uint32(t.Second())>>1
}

// UnpackDOSTime converts a DOS packed timestamp back to a host timestamp in
// the local time zone.
func UnpackDOSTime(v uint32) time.Time {
	return time.Date(
		int(v>>25)+1980,
		time.Month(v>>21&0xf),
		int(v>>16&0x1f),
		int(v>>11&0x1f),
		int(v>>5&0x3f),
		int(v&0x1f)*2,
		0,
		time.Local,
	)
}
