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
	"fmt"
	"io"
	"strings"
)

// ErrNoVolume is returned when no volume descriptor is found.
var ErrNoVolume = errors.New("volume descriptor not found")

// Standard identifiers of a primary volume descriptor.
var (
	standardISO9660 = []byte("CD001")
	standardCDI     = []byte("CD-I ")
)

// volumeSectors are searched in order. Images that include the 150-sector
// lead-in carry the descriptor 150 sectors later than bare tracks.
var volumeSectors = []int64{SkippedSectors + 16, 16}

// descriptorLen covers every field read from a descriptor.
const descriptorLen = 574

// Volume holds the identifiers of an ISO 9660 primary volume descriptor or
// a CD-i disc label. Both share the same field offsets.
type Volume struct {
	Standard  string `json:"standard"`
	Sector    int64  `json:"sector"`
	System    string `json:"system,omitempty"`
	ID        string `json:"id,omitempty"`
	Publisher string `json:"publisher,omitempty"`
	Preparer  string `json:"preparer,omitempty"`
}

// ReadVolume locates the volume descriptor of r, whose sectors follow
// layout. The read position of r is left unspecified.
func ReadVolume(r io.ReadSeeker, layout Layout) (*Volume, error) {
	buf := make([]byte, descriptorLen)
	for _, sector := range volumeSectors {
		offset := sector*int64(layout.SectorSize) + int64(layout.HeaderLen)
		if _, err := r.Seek(offset, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seek to sector %d: %w", sector, err)
		}
		_, err := io.ReadFull(r, buf)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read sector %d: %w", sector, err)
		}

		// Type 1 is the primary descriptor.
		if buf[0] != 1 {
			continue
		}
		std := buf[1:6]
		if !bytes.Equal(std, standardISO9660) && !bytes.Equal(std, standardCDI) {
			continue
		}
		return &Volume{
			Standard:  strings.TrimSpace(string(std)),
			Sector:    sector,
			System:    field(buf[8:40]),
			ID:        field(buf[40:72]),
			Publisher: field(buf[318:446]),
			Preparer:  field(buf[446:574]),
		}, nil
	}
	return nil, ErrNoVolume
}

func field(b []byte) string {
	return strings.TrimSpace(strings.TrimRight(string(b), "\x00"))
}
