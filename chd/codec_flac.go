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

	"github.com/mewkiz/flac"
)

// Audio parameters every CHD FLAC stream is encoded with.
const (
	flacSampleRate = 44100
	flacChannels   = 2
	flacDepth      = 16
)

// flacCodec decodes headerless FLAC hunks. The first byte selects the
// sample byte order of the output: 'L' little-endian, 'B' big-endian.
type flacCodec struct{}

func (flacCodec) decompress(dst, src []byte) error {
	if len(src) == 0 {
		return fmt.Errorf("%w: flac: empty hunk", ErrDecompressFailed)
	}

	var bigEndian bool
	switch src[0] {
	case 'L':
	case 'B':
		bigEndian = true
	default:
		return fmt.Errorf("%w: flac: unknown byte order %q", ErrDecompressFailed, src[0])
	}
	return decodeFLAC(dst, src[1:], flacBlockSize(len(dst), 2048), bigEndian)
}

// cdFLACCodec decodes CD hunks whose sector data is one big-endian FLAC
// stream. The deflated subcode that follows it is not located, so
// subcode bytes come back zeroed.
type cdFLACCodec struct {
	sectors []byte
	subs    []byte
}

func (c *cdFLACCodec) decompress(dst, src []byte) error {
	frames := len(dst) / cdFrameBytes
	c.sectors = resize(c.sectors, frames*cdSectorBytes)
	c.subs = resize(c.subs, frames*cdSubcodeBytes)
	clear(c.subs)

	if err := decodeFLAC(c.sectors, src, flacBlockSize(len(c.sectors), cdSectorBytes), true); err != nil {
		return fmt.Errorf("cd sector data: %w", err)
	}
	assembleFrames(dst, c.sectors, c.subs, nil)
	return nil
}

// flacBlockSize halves a quarter of size until it fits limit.
func flacBlockSize(size, limit int) uint16 {
	block := size / 4
	for block > limit {
		block /= 2
	}
	return uint16(block) //nolint:gosec // At most limit
}

// flacStreamHeader builds the "fLaC" signature and STREAMINFO block that
// CHD hunks omit.
func flacStreamHeader(blockSize uint16) []byte {
	header := make([]byte, 4+4+34)
	copy(header, "fLaC")
	header[4] = 0x80 // last metadata block, type STREAMINFO
	header[7] = 34

	info := header[8:]
	binary.BigEndian.PutUint16(info[0:], blockSize)
	binary.BigEndian.PutUint16(info[2:], blockSize)
	// sample rate:20 channels-1:3 depth-1:5 total samples:36 (unknown)
	packed := uint64(flacSampleRate)<<44 | uint64(flacChannels-1)<<41 | uint64(flacDepth-1)<<36
	binary.BigEndian.PutUint64(info[10:], packed)
	return header
}

// decodeFLAC fills dst with interleaved 16-bit stereo samples.
func decodeFLAC(dst, src []byte, blockSize uint16, bigEndian bool) error {
	stream, err := flac.New(io.MultiReader(bytes.NewReader(flacStreamHeader(blockSize)), bytes.NewReader(src)))
	if err != nil {
		return fmt.Errorf("%w: flac init: %w", ErrDecompressFailed, err)
	}
	defer func() { _ = stream.Close() }()

	var order binary.ByteOrder = binary.LittleEndian
	if bigEndian {
		order = binary.BigEndian
	}

	off := 0
	for off < len(dst) {
		frame, err := stream.ParseNext()
		if err != nil {
			return fmt.Errorf("%w: flac frame at byte %d: %w", ErrDecompressFailed, off, err)
		}
		if len(frame.Subframes) != flacChannels {
			return fmt.Errorf("%w: flac frame has %d channels", ErrDecompressFailed, len(frame.Subframes))
		}

		left, right := frame.Subframes[0].Samples, frame.Subframes[1].Samples
		for i := range frame.Subframes[0].NSamples {
			if off+4 > len(dst) {
				return nil
			}
			order.PutUint16(dst[off:], uint16(left[i]))    //nolint:gosec // 16-bit samples
			order.PutUint16(dst[off+2:], uint16(right[i])) //nolint:gosec // 16-bit samples
			off += 4
		}
	}
	return nil
}
