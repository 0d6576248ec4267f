// Copyright (c) 2025 Niema Moshiri and The Zaparoo Project.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of go-cdi2iso.
//
// go-cdi2iso is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-cdi2iso is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-cdi2iso.  If not, see <https://www.gnu.org/licenses/>.

package chd

import (
	"fmt"
)

// CD frame geometry.
const (
	cdSectorBytes  = 2352
	cdSubcodeBytes = 96
	cdFrameBytes   = cdSectorBytes + cdSubcodeBytes
)

var cdSyncHeader = [12]byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00}

// cdCodec decodes CD hunks: sector data and subcode are compressed
// separately and interleaved back into 2448-byte frames.
//
// Hunk layout:
//
//	ecc bitmap    (frames+7)/8 bytes, bit set when sync and ECC were stripped
//	base length   2 bytes (3 when the hunk is 64KiB or larger), big-endian
//	base data     sector data of every frame
//	subcode data  the rest
type cdCodec struct {
	base    decompressor
	subcode decompressor
	sectors []byte
	subs    []byte
}

func (c *cdCodec) decompress(dst, src []byte) error {
	frames := len(dst) / cdFrameBytes
	eccBytes := (frames + 7) / 8
	lenBytes := 2
	if len(dst) >= 1<<16 {
		lenBytes = 3
	}
	headerBytes := eccBytes + lenBytes
	if len(src) < headerBytes {
		return fmt.Errorf("%w: cd hunk shorter than its header", ErrDecompressFailed)
	}

	baseLen := 0
	for _, b := range src[eccBytes:headerBytes] {
		baseLen = baseLen<<8 | int(b)
	}
	if headerBytes+baseLen > len(src) {
		return fmt.Errorf("%w: cd base length %d exceeds hunk", ErrDecompressFailed, baseLen)
	}

	c.sectors = resize(c.sectors, frames*cdSectorBytes)
	c.subs = resize(c.subs, frames*cdSubcodeBytes)

	if err := c.base.decompress(c.sectors, src[headerBytes:headerBytes+baseLen]); err != nil {
		return fmt.Errorf("cd sector data: %w", err)
	}
	if rest := src[headerBytes+baseLen:]; len(rest) == 0 || c.subcode.decompress(c.subs, rest) != nil {
		// Subcode is not needed to recover user data.
		clear(c.subs)
	}

	assembleFrames(dst, c.sectors, c.subs, src[:eccBytes])
	return nil
}

// assembleFrames interleaves sector and subcode data into dst and restores
// the sync header of every frame flagged in ecc. Regenerating the stripped
// ECC bytes is not attempted.
func assembleFrames(dst, sectors, subs, ecc []byte) {
	frames := len(dst) / cdFrameBytes
	for i := range frames {
		frame := dst[i*cdFrameBytes : (i+1)*cdFrameBytes]
		copy(frame, sectors[i*cdSectorBytes:(i+1)*cdSectorBytes])
		copy(frame[cdSectorBytes:], subs[i*cdSubcodeBytes:(i+1)*cdSubcodeBytes])

		if ecc != nil && ecc[i/8]&(1<<(i%8)) != 0 {
			copy(frame, cdSyncHeader[:])
		}
	}
}

func resize(buf []byte, n int) []byte {
	if cap(buf) < n {
		return make([]byte, n)
	}
	return buf[:n]
}
