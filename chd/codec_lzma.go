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
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

// lzmaProps encodes lc=3, lp=0, pb=2.
const lzmaProps = 0x5D

// lzmaCodec decodes headerless LZMA streams. The encoder settings are
// implied: level 8 with the dictionary reduced to fit the output size.
type lzmaCodec struct{}

// lzmaDictSize returns the dictionary size an LZMA encoder at level 8
// settles on for an input of size bytes.
func lzmaDictSize(size uint32) uint32 {
	for i := uint32(11); i <= 30; i++ {
		if size <= 2<<i {
			return 2 << i
		}
		if size <= 3<<i {
			return 3 << i
		}
	}
	return 1 << 26
}

func (lzmaCodec) decompress(dst, src []byte) error {
	var header [13]byte
	header[0] = lzmaProps
	binary.LittleEndian.PutUint32(header[1:5], lzmaDictSize(uint32(len(dst)))) //nolint:gosec // Bounded by MaxHunkBytes
	binary.LittleEndian.PutUint64(header[5:], uint64(len(dst)))

	reader, err := lzma.NewReader(io.MultiReader(bytes.NewReader(header[:]), bytes.NewReader(src)))
	if err != nil {
		return fmt.Errorf("%w: lzma init: %w", ErrDecompressFailed, err)
	}
	if _, err := io.ReadFull(reader, dst); err != nil {
		return fmt.Errorf("%w: lzma: %w", ErrDecompressFailed, err)
	}
	return nil
}
