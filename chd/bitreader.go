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

import "fmt"

// bitReader reads MSB-first bit fields from a byte slice.
// Reads past the end yield zero bits, as the map decoder expects.
type bitReader struct {
	data  []byte
	pos   int
	acc   uint64
	count uint
}

func newBitReader(data []byte) *bitReader {
	return &bitReader{data: data}
}

func (b *bitReader) fill(n uint) {
	for b.count < n {
		var next byte
		if b.pos < len(b.data) {
			next = b.data[b.pos]
			b.pos++
		}
		b.acc = b.acc<<8 | uint64(next)
		b.count += 8
	}
}

// peek returns the next n bits (n <= 32) without consuming them.
func (b *bitReader) peek(n uint) uint32 {
	if n == 0 {
		return 0
	}
	b.fill(n)
	//nolint:gosec // Masked to at most 32 bits
	return uint32((b.acc >> (b.count - n)) & (1<<n - 1))
}

func (b *bitReader) skip(n uint) {
	b.count -= n
}

func (b *bitReader) read(n uint) uint32 {
	v := b.peek(n)
	b.skip(n)
	return v
}

// huffmanDecoder decodes canonical Huffman codes whose lengths are
// transmitted with the run-length scheme used by CHD hunk maps.
type huffmanDecoder struct {
	maxBits uint
	lengths []uint8
	lookup  []uint32 // symbol<<5 | code length
}

func newHuffmanDecoder(numCodes int, maxBits uint) *huffmanDecoder {
	return &huffmanDecoder{
		maxBits: maxBits,
		lengths: make([]uint8, numCodes),
		lookup:  make([]uint32, 1<<maxBits),
	}
}

// importTreeRLE reads the code lengths. A length of 1 is escaped: it is
// followed by either another 1 (a literal 1) or a length and a repeat count.
func (d *huffmanDecoder) importTreeRLE(br *bitReader) error {
	fieldBits := uint(3)
	switch {
	case d.maxBits >= 16:
		fieldBits = 5
	case d.maxBits >= 8:
		fieldBits = 4
	}

	for sym := 0; sym < len(d.lengths); {
		length := br.read(fieldBits)
		if length != 1 {
			d.lengths[sym] = uint8(length) //nolint:gosec // At most 5 bits
			sym++
			continue
		}

		length = br.read(fieldBits)
		if length == 1 {
			d.lengths[sym] = 1
			sym++
			continue
		}

		repeat := int(br.read(fieldBits)) + 3
		if sym+repeat > len(d.lengths) {
			return fmt.Errorf("%w: huffman run exceeds code table", ErrInvalidHeader)
		}
		for range repeat {
			d.lengths[sym] = uint8(length) //nolint:gosec // At most 5 bits
			sym++
		}
	}

	return d.buildLookup()
}

// buildLookup assigns canonical codes, longest first, and fills the table
// indexed by the next maxBits bits of input.
func (d *huffmanDecoder) buildLookup() error {
	var histogram [33]uint32
	for _, l := range d.lengths {
		if uint(l) > d.maxBits {
			return fmt.Errorf("%w: huffman code longer than %d bits", ErrInvalidHeader, d.maxBits)
		}
		histogram[l]++
	}

	var start uint32
	for length := 32; length > 0; length-- {
		next := (start + histogram[length]) >> 1
		if length != 1 && next*2 != start+histogram[length] {
			return fmt.Errorf("%w: inconsistent huffman tree", ErrInvalidHeader)
		}
		histogram[length] = start
		start = next
	}

	for sym, l := range d.lengths {
		if l == 0 {
			continue
		}
		code := histogram[l]
		histogram[l]++

		shift := d.maxBits - uint(l)
		first := code << shift
		last := (code+1)<<shift - 1
		if int(last) >= len(d.lookup) {
			return fmt.Errorf("%w: huffman code out of range", ErrInvalidHeader)
		}
		for i := first; i <= last; i++ {
			d.lookup[i] = uint32(sym)<<5 | uint32(l) //nolint:gosec // Symbol count is small
		}
	}
	return nil
}

func (d *huffmanDecoder) decode(br *bitReader) uint32 {
	entry := d.lookup[br.peek(d.maxBits)]
	br.skip(uint(entry & 0x1F))
	return entry >> 5
}
