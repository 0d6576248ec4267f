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
	"testing"
)

// putDescriptor writes a primary volume descriptor into the payload of sector.
func putDescriptor(image []byte, l Layout, sector int, standard, system, id string) {
	d := image[sector*int(l.SectorSize)+int(l.HeaderLen):]
	d[0] = 1
	copy(d[1:6], standard)
	copy(d[8:40], padded(system, 32))
	copy(d[40:72], padded(id, 32))
	copy(d[318:446], padded("PHILIPS", 128))
}

func padded(s string, n int) []byte {
	return append([]byte(s), bytes.Repeat([]byte{' '}, n-len(s))...)
}

func TestReadVolume(t *testing.T) {
	t.Parallel()

	cdi := buildImage(RawLayout, 170)
	putDescriptor(cdi, RawLayout, 166, "CD-I ", "CD-RTOS CD-BRIDGE", "HOTEL_MARIO")

	iso := buildImage(PlainLayout, 20)
	putDescriptor(iso, PlainLayout, 16, "CD001", "", "DATA_DISC")

	tests := []struct {
		name     string
		data     []byte
		layout   Layout
		standard string
		id       string
		sector   int64
	}{
		{name: "cd-i label after lead-in", data: cdi, layout: RawLayout, standard: "CD-I", id: "HOTEL_MARIO", sector: 166},
		{name: "iso descriptor in bare track", data: iso, layout: PlainLayout, standard: "CD001", id: "DATA_DISC", sector: 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			vol, err := ReadVolume(bytes.NewReader(tt.data), tt.layout)
			if err != nil {
				t.Fatalf("ReadVolume: %v", err)
			}
			if vol.Standard != tt.standard || vol.ID != tt.id || vol.Sector != tt.sector {
				t.Errorf("volume = %+v", vol)
			}
			if vol.Publisher != "PHILIPS" {
				t.Errorf("Publisher = %q", vol.Publisher)
			}
		})
	}
}

func TestReadVolumeNotFound(t *testing.T) {
	t.Parallel()

	for _, data := range [][]byte{buildImage(RawLayout, 170), buildImage(RawLayout, 2), nil} {
		if _, err := ReadVolume(bytes.NewReader(data), RawLayout); !errors.Is(err, ErrNoVolume) {
			t.Errorf("err = %v, want ErrNoVolume", err)
		}
	}
}
