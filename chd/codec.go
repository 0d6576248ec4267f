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
	"encoding/binary"
	"fmt"
)

// Codec tags as stored in V5 headers (four ASCII characters, big-endian).
const (
	CodecNone    uint32 = 0
	CodecZlib    uint32 = 0x7A6C6962 // "zlib"
	CodecLZMA    uint32 = 0x6C7A6D61 // "lzma"
	CodecHuffman uint32 = 0x68756666 // "huff"
	CodecFLAC    uint32 = 0x666C6163 // "flac"
	CodecZstd    uint32 = 0x7A737464 // "zstd"
	CodecCDZlib  uint32 = 0x63647A6C // "cdzl"
	CodecCDLZMA  uint32 = 0x63646C7A // "cdlz"
	CodecCDFLAC  uint32 = 0x6364666C // "cdfl"
	CodecCDZstd  uint32 = 0x63647A73 // "cdzs"
)

// CodecName returns the four-character name of a codec tag.
func CodecName(tag uint32) string {
	if tag == CodecNone {
		return "none"
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], tag)
	return string(b[:])
}

// decompressor inflates src into dst. dst has exactly the expected
// decompressed length; producing fewer bytes is an error.
type decompressor interface {
	decompress(dst, src []byte) error
}

// newDecompressor returns a decompressor for tag.
func newDecompressor(tag uint32) (decompressor, error) {
	switch tag {
	case CodecZlib:
		return &zlibCodec{}, nil
	case CodecZstd:
		return newZstdCodec()
	case CodecLZMA:
		return lzmaCodec{}, nil
	case CodecFLAC:
		return flacCodec{}, nil
	case CodecCDZlib:
		return &cdCodec{base: &zlibCodec{}, subcode: &zlibCodec{}}, nil
	case CodecCDLZMA:
		return &cdCodec{base: lzmaCodec{}, subcode: &zlibCodec{}}, nil
	case CodecCDZstd:
		z, err := newZstdCodec()
		if err != nil {
			return nil, err
		}
		return &cdCodec{base: z, subcode: z}, nil
	case CodecCDFLAC:
		return &cdFLACCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCodec, CodecName(tag))
	}
}

// closeDecompressor releases decoder resources held by d, if any.
func closeDecompressor(d decompressor) {
	if c, ok := d.(interface{ close() }); ok {
		c.close()
	}
}
