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
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz/lzma"
)

// cdFrames returns n 2448-byte frames, each opening with a sync header and
// carrying its index in every payload byte.
func cdFrames(n int) []byte {
	out := make([]byte, n*cdFrameBytes)
	for i := range n {
		frame := out[i*cdFrameBytes : (i+1)*cdFrameBytes]
		copy(frame, cdSyncHeader[:])
		frame[15] = 1 // mode 1
		for j := 16; j < cdSectorBytes; j++ {
			frame[j] = byte(i + j)
		}
		for j := cdSectorBytes; j < cdFrameBytes; j++ {
			frame[j] = 0xA0 | byte(i&0x0F)
		}
	}
	return out
}

func deflateBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		t.Fatalf("flate.NewWriter: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("deflate: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close deflater: %v", err)
	}
	return buf.Bytes()
}

func zstdBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("zstd.NewWriter: %v", err)
	}
	defer func() { _ = enc.Close() }()
	return enc.EncodeAll(data, nil)
}

// lzmaBytes compresses data into a headerless LZMA stream with the
// properties lzmaCodec assumes.
func lzmaBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	cfg := lzma.WriterConfig{
		Properties:   &lzma.Properties{LC: 3, LP: 0, PB: 2},
		DictCap:      int(lzmaDictSize(uint32(len(data)))), //nolint:gosec // Test sizes
		SizeInHeader: true,
		Size:         int64(len(data)),
	}
	w, err := cfg.NewWriter(&buf)
	if err != nil {
		t.Fatalf("lzma writer: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("lzma write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("lzma close: %v", err)
	}
	return buf.Bytes()[13:]
}

// cdHunk compresses frames the way a CD codec stores them, stripping the
// sync header of every frame and flagging it in the ECC bitmap.
func cdHunk(frames []byte, base, subcode func([]byte) []byte) []byte {
	n := len(frames) / cdFrameBytes
	sectors := make([]byte, 0, n*cdSectorBytes)
	subs := make([]byte, 0, n*cdSubcodeBytes)
	ecc := make([]byte, (n+7)/8)
	for i := range n {
		frame := frames[i*cdFrameBytes : (i+1)*cdFrameBytes]
		sector := bytes.Clone(frame[:cdSectorBytes])
		clear(sector[:len(cdSyncHeader)])
		ecc[i/8] |= 1 << (i % 8)
		sectors = append(sectors, sector...)
		subs = append(subs, frame[cdSectorBytes:]...)
	}

	packed := base(sectors)
	out := append([]byte{}, ecc...)
	if len(frames) >= 1<<16 {
		out = append(out, byte(len(packed)>>16))
	}
	out = append(out, byte(len(packed)>>8), byte(len(packed)))
	out = append(out, packed...)
	return append(out, subcode(subs)...)
}

// legacyEntry is one V3/V4 map entry.
type legacyEntry struct {
	kind   byte
	offset uint64
	length uint32
}

// buildV4 lays out a V4 image: header, map, then hunk payloads in order.
// Entries with a nil payload keep the offset given in entries.
func buildV4(compression, hunkBytes uint32, logical uint64, entries []legacyEntry, payloads [][]byte) []byte {
	header := make([]byte, headerSizeV4)
	copy(header, chdMagic[:])
	be := binary.BigEndian
	be.PutUint32(header[8:], headerSizeV4)
	be.PutUint32(header[12:], 4)
	be.PutUint32(header[0x14:], compression)
	be.PutUint32(header[0x18:], uint32(len(entries))) //nolint:gosec // Test sizes
	be.PutUint64(header[0x1C:], logical)
	be.PutUint32(header[0x2C:], hunkBytes)

	dataStart := uint64(headerSizeV4 + legacyEntryBytes*len(entries)) //nolint:gosec // Test sizes
	mapBytes := make([]byte, legacyEntryBytes*len(entries))
	var data []byte
	for i, e := range entries {
		if payloads[i] != nil {
			e.offset = dataStart + uint64(len(data))
			e.length = uint32(len(payloads[i])) //nolint:gosec // Test sizes
			data = append(data, payloads[i]...)
		}
		raw := mapBytes[i*legacyEntryBytes:]
		be.PutUint64(raw[0:], e.offset)
		be.PutUint16(raw[12:], uint16(e.length)) //nolint:gosec // Low 16 bits
		raw[14] = byte(e.length >> 16)
		raw[15] = e.kind
	}

	out := append(header, mapBytes...)
	return append(out, data...)
}

// buildV5Header returns a V5 header with the map at headerSizeV5.
func buildV5Header(compressors [4]uint32, logical uint64, hunkBytes uint32) []byte {
	header := make([]byte, headerSizeV5)
	copy(header, chdMagic[:])
	be := binary.BigEndian
	be.PutUint32(header[8:], headerSizeV5)
	be.PutUint32(header[12:], 5)
	for i, c := range compressors {
		be.PutUint32(header[0x10+4*i:], c)
	}
	be.PutUint64(header[0x20:], logical)
	be.PutUint64(header[0x28:], headerSizeV5)
	be.PutUint32(header[0x38:], hunkBytes)
	be.PutUint32(header[0x3C:], cdFrameBytes)
	return header
}

// bitWriter packs MSB-first bit fields.
type bitWriter struct {
	out   []byte
	nbits uint
}

func (w *bitWriter) write(v uint32, n uint) {
	for i := int(n) - 1; i >= 0; i-- {
		if w.nbits%8 == 0 {
			w.out = append(w.out, 0)
		}
		if v&(1<<uint(i)) != 0 {
			w.out[len(w.out)-1] |= 0x80 >> (w.nbits % 8)
		}
		w.nbits++
	}
}
