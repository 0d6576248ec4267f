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

// Hunk kinds. The first seven values match the V5 map encoding.
const (
	hunkCodec0 uint8 = iota
	hunkCodec1
	hunkCodec2
	hunkCodec3
	hunkRaw
	hunkSelf
	hunkParent
	hunkMini // legacy: the offset field holds an 8-byte pattern
	hunkZero
)

// Additional codes of the compressed V5 map.
const (
	mapRLESmall uint8 = iota + 7
	mapRLELarge
	mapSelf0
	mapSelf1
	mapParentSelf
	mapParent0
	mapParent1
)

// Legacy (V3/V4) map entry types.
const (
	legacyCompressed   = 1
	legacyUncompressed = 2
	legacyMini         = 3
	legacySelf         = 4
	legacyParent       = 5
)

const (
	legacyEntryBytes = 16
	rawEntryBytes    = 4
	mapHeaderBytes   = 16
)

// hunkEntry locates one hunk. For hunkSelf, offset is the source hunk
// index; for hunkParent, a unit offset into the parent image.
type hunkEntry struct {
	kind   uint8
	offset uint64
	length uint32
}

func (img *Image) readMap() error {
	h := img.header
	switch {
	case h.Version < 5:
		return img.readLegacyMap()
	case !h.IsCompressed():
		return img.readRawMap()
	default:
		return img.readCompressedMap()
	}
}

func (img *Image) readLegacyMap() error {
	n := img.header.NumHunks()
	buf := make([]byte, int(n)*legacyEntryBytes)
	if _, err := img.r.ReadAt(buf, int64(img.header.MapOffset)); err != nil { //nolint:gosec // Offset from header
		return fmt.Errorf("read hunk map: %w", err)
	}

	img.hunks = make([]hunkEntry, n)
	for i := range img.hunks {
		raw := buf[i*legacyEntryBytes:]
		e := hunkEntry{
			offset: binary.BigEndian.Uint64(raw[0:]),
			length: uint32(binary.BigEndian.Uint16(raw[12:])) | uint32(raw[14])<<16,
		}
		switch raw[15] & 0x0F {
		case legacyCompressed:
			e.kind = hunkCodec0
		case legacyUncompressed:
			e.kind = hunkRaw
		case legacyMini:
			e.kind = hunkMini
		case legacySelf:
			e.kind = hunkSelf
		case legacyParent:
			e.kind = hunkParent
		default:
			return fmt.Errorf("%w: hunk %d has map type %d", ErrInvalidHeader, i, raw[15]&0x0F)
		}
		img.hunks[i] = e
	}
	return nil
}

// readRawMap reads the map of an uncompressed V5 image: one 32-bit hunk
// number per hunk, zero meaning the hunk is all zeroes.
func (img *Image) readRawMap() error {
	n := img.header.NumHunks()
	buf := make([]byte, int(n)*rawEntryBytes)
	if _, err := img.r.ReadAt(buf, int64(img.header.MapOffset)); err != nil { //nolint:gosec // Offset from header
		return fmt.Errorf("read hunk map: %w", err)
	}

	hunkBytes := uint64(img.header.HunkBytes)
	img.hunks = make([]hunkEntry, n)
	for i := range img.hunks {
		block := uint64(binary.BigEndian.Uint32(buf[i*rawEntryBytes:]))
		if block == 0 {
			img.hunks[i] = hunkEntry{kind: hunkZero}
			continue
		}
		img.hunks[i] = hunkEntry{kind: hunkRaw, offset: block * hunkBytes, length: img.header.HunkBytes}
	}
	return nil
}

// readCompressedMap decodes the Huffman-coded V5 map. Hunk kinds come
// first with run-length encoding, then per-hunk lengths and references.
func (img *Image) readCompressedMap() error {
	h := img.header
	var hdr [mapHeaderBytes]byte
	if _, err := img.r.ReadAt(hdr[:], int64(h.MapOffset)); err != nil { //nolint:gosec // Offset from header
		return fmt.Errorf("read map header: %w", err)
	}

	mapBytes := binary.BigEndian.Uint32(hdr[0:])
	if mapBytes > MaxCompMapLen {
		return fmt.Errorf("%w: compressed map of %d bytes", ErrInvalidHeader, mapBytes)
	}
	firstOffset := uint64(binary.BigEndian.Uint16(hdr[4:]))<<32 | uint64(binary.BigEndian.Uint32(hdr[6:]))
	lengthBits, selfBits, parentBits := uint(hdr[12]), uint(hdr[13]), uint(hdr[14])
	if lengthBits > 32 || selfBits > 32 || parentBits > 32 {
		return fmt.Errorf("%w: map field widths %d/%d/%d", ErrInvalidHeader, lengthBits, selfBits, parentBits)
	}

	data := make([]byte, mapBytes)
	if _, err := img.r.ReadAt(data, int64(h.MapOffset)+mapHeaderBytes); err != nil { //nolint:gosec // Offset from header
		return fmt.Errorf("read compressed map: %w", err)
	}

	br := newBitReader(data)
	decoder := newHuffmanDecoder(16, 8)
	if err := decoder.importTreeRLE(br); err != nil {
		return err
	}

	kinds := make([]uint8, h.NumHunks())
	var last uint8
	repeat := 0
	for i := range kinds {
		if repeat > 0 {
			kinds[i] = last
			repeat--
			continue
		}
		switch v := uint8(decoder.decode(br)); v { //nolint:gosec // 16 symbols
		case mapRLESmall:
			kinds[i] = last
			repeat = 2 + int(decoder.decode(br))
		case mapRLELarge:
			kinds[i] = last
			repeat = 2 + 16 + int(decoder.decode(br))<<4
			repeat += int(decoder.decode(br))
		default:
			kinds[i] = v
			last = v
		}
	}

	unitsPerHunk := uint64(h.HunkBytes / h.UnitBytes)
	offset := firstOffset
	var lastSelf, lastParent uint64
	img.hunks = make([]hunkEntry, len(kinds))
	for i, kind := range kinds {
		e := hunkEntry{kind: kind, offset: offset}
		switch kind {
		case hunkCodec0, hunkCodec1, hunkCodec2, hunkCodec3:
			e.length = br.read(lengthBits)
			offset += uint64(e.length)
			br.read(16) // crc16
		case hunkRaw:
			e.length = h.HunkBytes
			offset += uint64(e.length)
			br.read(16)
		case hunkSelf:
			lastSelf = uint64(br.read(selfBits))
			e.offset = lastSelf
		case hunkParent:
			lastParent = uint64(br.read(parentBits))
			e.offset = lastParent
		case mapSelf0, mapSelf1:
			if kind == mapSelf1 {
				lastSelf++
			}
			e.kind, e.offset = hunkSelf, lastSelf
		case mapParentSelf:
			lastParent = uint64(i) * uint64(h.HunkBytes) / uint64(h.UnitBytes) //nolint:gosec // Bounded by MaxNumHunks
			e.kind, e.offset = hunkParent, lastParent
		case mapParent0, mapParent1:
			if kind == mapParent1 {
				lastParent += unitsPerHunk
			}
			e.kind, e.offset = hunkParent, lastParent
		default:
			return fmt.Errorf("%w: hunk %d has map type %d", ErrInvalidHeader, i, kind)
		}
		img.hunks[i] = e
	}
	return nil
}
