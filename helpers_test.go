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

package cdi2iso

import (
	"bytes"
	"errors"
	"io"
)

// memDest is an in-memory Destination.
type memDest struct {
	data []byte
	pos  int64
}

func (d *memDest) Write(p []byte) (int, error) {
	end := d.pos + int64(len(p))
	if end > int64(len(d.data)) {
		d.data = append(d.data, make([]byte, end-int64(len(d.data)))...)
	}
	copy(d.data[d.pos:], p)
	d.pos = end
	return len(p), nil
}

func (d *memDest) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		d.pos = offset
	case io.SeekCurrent:
		d.pos += offset
	case io.SeekEnd:
		d.pos = int64(len(d.data)) + offset
	}
	return d.pos, nil
}

func (d *memDest) Truncate(size int64) error {
	d.data = d.data[:size]
	return nil
}

var errInjected = errors.New("injected failure")

// failingDest fails every write.
type failingDest struct{ memDest }

func (*failingDest) Write([]byte) (int, error) { return 0, errInjected }

// failingSource fails reads beyond limit.
type failingSource struct {
	*bytes.Reader
	limit int64
}

func (s *failingSource) Read(p []byte) (int, error) {
	pos, _ := s.Seek(0, io.SeekCurrent)
	if pos >= s.limit {
		return 0, errInjected
	}
	if rest := s.limit - pos; int64(len(p)) > rest {
		p = p[:rest]
	}
	return s.Reader.Read(p)
}

// growingSource reports extra more bytes at its end than it can deliver,
// like a file truncated while it is being converted.
type growingSource struct {
	*bytes.Reader
	extra int64
}

func (s *growingSource) Seek(offset int64, whence int) (int64, error) {
	pos, err := s.Reader.Seek(offset, whence)
	if whence == io.SeekEnd {
		pos += s.extra
	}
	return pos, err
}

// payloadByte is the content of byte j of the user data of sector i.
func payloadByte(i, j int) byte {
	return byte(i*7 + j)
}

// buildImage returns sectors sectors in layout l. Raw layouts open every
// sector with the sync header; header, ECC and subcode bytes are 0x55.
func buildImage(l Layout, sectors int) []byte {
	size := int(l.SectorSize)
	out := make([]byte, sectors*size)
	for i := range sectors {
		sector := out[i*size : (i+1)*size]
		for j := range sector {
			sector[j] = 0x55
		}
		if l.Kind != KindPlain {
			copy(sector, syncHeader)
		}
		for j := range PayloadSize {
			sector[int(l.HeaderLen)+j] = payloadByte(i, j)
		}
	}
	return out
}

// expectedISO returns the bytes Convert should write for buildImage(_, sectors).
func expectedISO(sectors int) []byte {
	var out []byte
	for i := SkippedSectors; i < sectors; i++ {
		n := PayloadSize
		if i == sectors-1 {
			n = FinalSectorBytes
		}
		for j := range n {
			out = append(out, payloadByte(i, j))
		}
	}
	return out
}
