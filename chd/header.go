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
	"io"
)

var chdMagic = [8]byte{'M', 'C', 'o', 'm', 'p', 'r', 'H', 'D'}

// Header lengths per version.
const (
	headerSizeV3 = 120
	headerSizeV4 = 108
	headerSizeV5 = 124
)

// defaultUnitBytes is one CD frame: a 2352-byte sector plus 96 subcode bytes.
const defaultUnitBytes = 2448

// V3/V4 header compression values.
const (
	legacyCompressionNone  = 0
	legacyCompressionZlib  = 1
	legacyCompressionZlibP = 2
)

// Header holds the fields of a CHD header needed to read hunks.
type Header struct {
	Version      uint32
	HeaderSize   uint32
	Compressors  [4]uint32 // V5 codec tags
	Compression  uint32    // V3/V4 compression type
	TotalHunks   uint32    // V3/V4 hunk count
	LogicalBytes uint64
	MapOffset    uint64
	MetaOffset   uint64
	HunkBytes    uint32
	UnitBytes    uint32
}

// readHeader parses the header at the start of r.
func readHeader(r io.ReaderAt) (*Header, error) {
	prefix := make([]byte, 16)
	if _, err := r.ReadAt(prefix, 0); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if [8]byte(prefix[:8]) != chdMagic {
		return nil, ErrInvalidMagic
	}

	hdr := &Header{
		HeaderSize: binary.BigEndian.Uint32(prefix[8:12]),
		Version:    binary.BigEndian.Uint32(prefix[12:16]),
	}

	want := map[uint32]uint32{3: headerSizeV3, 4: headerSizeV4, 5: headerSizeV5}[hdr.Version]
	if want == 0 {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedVersion, hdr.Version)
	}
	if hdr.HeaderSize < want {
		return nil, fmt.Errorf("%w: header size %d for version %d", ErrInvalidHeader, hdr.HeaderSize, hdr.Version)
	}

	buf := make([]byte, want)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	if hdr.Version == 5 {
		hdr.decodeV5(buf)
	} else {
		hdr.decodeLegacy(buf)
	}
	return hdr, hdr.validate()
}

// decodeV5 reads the version 5 layout:
//
//	0x10 compressors[4]  0x20 logical bytes  0x28 map offset
//	0x30 meta offset     0x38 hunk bytes     0x3C unit bytes
func (h *Header) decodeV5(buf []byte) {
	be := binary.BigEndian
	for i := range h.Compressors {
		h.Compressors[i] = be.Uint32(buf[0x10+4*i:])
	}
	h.LogicalBytes = be.Uint64(buf[0x20:])
	h.MapOffset = be.Uint64(buf[0x28:])
	h.MetaOffset = be.Uint64(buf[0x30:])
	h.HunkBytes = be.Uint32(buf[0x38:])
	h.UnitBytes = be.Uint32(buf[0x3C:])
}

// decodeLegacy reads the version 3 and 4 layouts, which share their first fields:
//
//	0x10 flags  0x14 compression  0x18 total hunks  0x1C logical bytes  0x24 meta offset
//
// Hunk bytes sit at 0x4C in V3 (after two MD5 digests) and at 0x2C in V4.
// The map follows the header directly.
func (h *Header) decodeLegacy(buf []byte) {
	be := binary.BigEndian
	h.Compression = be.Uint32(buf[0x14:])
	h.TotalHunks = be.Uint32(buf[0x18:])
	h.LogicalBytes = be.Uint64(buf[0x1C:])
	h.MetaOffset = be.Uint64(buf[0x24:])
	if h.Version == 3 {
		h.HunkBytes = be.Uint32(buf[0x4C:])
	} else {
		h.HunkBytes = be.Uint32(buf[0x2C:])
	}
	h.UnitBytes = defaultUnitBytes
	h.MapOffset = uint64(h.HeaderSize)
}

func (h *Header) validate() error {
	if h.HunkBytes == 0 || h.HunkBytes > MaxHunkBytes {
		return fmt.Errorf("%w: hunk bytes %d", ErrInvalidHeader, h.HunkBytes)
	}
	if h.UnitBytes == 0 {
		h.UnitBytes = defaultUnitBytes
	}
	if h.NumHunks() > MaxNumHunks {
		return fmt.Errorf("%w: too many hunks (%d > %d)", ErrInvalidHeader, h.NumHunks(), MaxNumHunks)
	}
	return nil
}

// NumHunks returns the number of hunks in the image.
func (h *Header) NumHunks() uint32 {
	if h.TotalHunks > 0 {
		return h.TotalHunks
	}
	if h.HunkBytes == 0 {
		return 0
	}
	//nolint:gosec // Bounded by MaxNumHunks during validation
	return uint32((h.LogicalBytes + uint64(h.HunkBytes) - 1) / uint64(h.HunkBytes))
}

// IsCompressed reports whether any hunk may be compressed.
func (h *Header) IsCompressed() bool {
	if h.Version == 5 {
		return h.Compressors[0] != CodecNone
	}
	return h.Compression != legacyCompressionNone
}

// codecTags returns the codec tag for each compressed hunk type.
func (h *Header) codecTags() [4]uint32 {
	if h.Version == 5 {
		return h.Compressors
	}
	switch h.Compression {
	case legacyCompressionZlib, legacyCompressionZlibP:
		return [4]uint32{CodecZlib}
	default:
		return [4]uint32{}
	}
}
