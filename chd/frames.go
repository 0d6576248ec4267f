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
	"errors"
	"fmt"
	"io"
)

var errNegativePosition = errors.New("chd: negative position")

// FrameReader reads the logical bytes of an Image. It implements
// io.Reader, io.Seeker and io.ReaderAt.
type FrameReader struct {
	img *Image
	pos int64
}

func (f *FrameReader) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, f.pos)
	f.pos += int64(n)
	if errors.Is(err, io.EOF) && n > 0 {
		err = nil
	}
	return n, err
}

// ReadAt reads len(p) bytes at off, crossing hunk boundaries as needed.
func (f *FrameReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errNegativePosition
	}
	size := f.img.Size()
	hunkBytes := int64(f.img.header.HunkBytes)

	read := 0
	for read < len(p) {
		if off >= size {
			return read, io.EOF
		}
		data, err := f.img.hunk(uint32(off / hunkBytes)) //nolint:gosec // Bounded by MaxNumHunks
		if err != nil {
			return read, err
		}
		start := off % hunkBytes
		end := min(hunkBytes, size-(off-start))
		n := copy(p[read:], data[start:end])
		read += n
		off += int64(n)
	}
	return read, nil
}

func (f *FrameReader) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = f.pos + offset
	case io.SeekEnd:
		pos = f.img.Size() + offset
	default:
		return 0, fmt.Errorf("chd: invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, errNegativePosition
	}
	f.pos = pos
	return pos, nil
}
