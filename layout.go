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

// Package cdi2iso converts raw CDI disc images into plain ISO-9660 sector streams.
// It detects the physical sector layout of the source by probing for the CD
// sync pattern at fixed offsets, then copies the 2048-byte user data of every
// sector into the destination while skipping sector headers and ECC bytes.
package cdi2iso

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// PayloadSize is the number of user data bytes carried by every sector.
const PayloadSize = 2048

// syncHeader is the 12-byte pattern that opens every raw CD sector.
var syncHeader = []byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00}

// Kind identifies a recognized physical sector layout.
type Kind int

// Recognized layouts, in probing order.
const (
	KindPlain Kind = iota // 2048-byte user data sectors
	KindRaw               // 2352-byte raw sectors
	KindPQ                // 2368-byte sectors with PQ subchannel
	KindCDG               // 2448-byte sectors with full subchannel
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindRaw:
		return "raw"
	case KindPQ:
		return "pq"
	case KindCDG:
		return "cd+g"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// detectedLine is the log line emitted once a layout is chosen.
func (k Kind) detectedLine() string {
	switch k {
	case KindPlain:
		return logNormalImage
	case KindRaw:
		return logRawImage
	case KindPQ:
		return logPQImage
	default:
		return logCDGImage
	}
}

// Layout describes where user data sits inside each physical sector.
type Layout struct {
	Kind       Kind   `json:"kind"`
	SectorSize uint32 `json:"sector_size"`
	HeaderLen  uint32 `json:"header_len"`
	EccLen     uint32 `json:"ecc_len"`
	PayloadLen uint32 `json:"payload_len"`
}

// Known layouts.
var (
	PlainLayout = Layout{Kind: KindPlain, SectorSize: 2048, HeaderLen: 0, EccLen: 0, PayloadLen: PayloadSize}
	RawLayout   = Layout{Kind: KindRaw, SectorSize: 2352, HeaderLen: 16, EccLen: 288, PayloadLen: PayloadSize}
	PQLayout    = Layout{Kind: KindPQ, SectorSize: 2368, HeaderLen: 16, EccLen: 304, PayloadLen: PayloadSize}
	CDGLayout   = Layout{Kind: KindCDG, SectorSize: 2448, HeaderLen: 16, EccLen: 384, PayloadLen: PayloadSize}
)

// Valid reports whether header, payload and ECC fit inside one sector.
func (l Layout) Valid() bool {
	if l.SectorSize == 0 || l.PayloadLen != PayloadSize {
		return false
	}
	return uint64(l.HeaderLen)+uint64(l.PayloadLen)+uint64(l.EccLen) <= uint64(l.SectorSize)
}

// probeRule maps a sync pattern hit at Offset to a layout.
type probeRule struct {
	offset int64
	layout Layout
}

// probeRules are evaluated in order after a sync pattern is found at offset 0.
// The first hit wins; CDGLayout is assumed when none hits.
var probeRules = []probeRule{
	{offset: 2352, layout: RawLayout},
	{offset: 2368, layout: PQLayout},
}

// classifyProbes picks a layout using probe, which reports whether the sync
// pattern is present at the given offset. It performs no I/O of its own.
func classifyProbes(probe func(offset int64) (bool, error)) (Layout, error) {
	synced, err := probe(0)
	if err != nil {
		return Layout{}, err
	}
	if !synced {
		return PlainLayout, nil
	}

	for _, rule := range probeRules {
		hit, err := probe(rule.offset)
		if err != nil {
			return Layout{}, err
		}
		if hit {
			return checked(rule.layout), nil
		}
	}

	// No further discriminator exists: unknown or malformed containers
	// that start with a sync pattern degrade to the widest layout.
	return CDGLayout, nil
}

// checked falls back to the most permissive layout when l is inconsistent.
func checked(l Layout) Layout {
	if !l.Valid() {
		return CDGLayout
	}
	return l
}

// Classify determines the sector layout of r.
// The read position of r is left wherever the last probe left it.
// A source too short to hold a probe window counts as a miss at that offset.
func Classify(r io.ReadSeeker) (Layout, error) {
	buf := make([]byte, len(syncHeader))
	return classifyProbes(func(offset int64) (bool, error) {
		return probeSync(r, offset, buf)
	})
}

// Detect classifies r and rewinds it.
func Detect(r io.ReadSeeker) (Layout, error) {
	layout, err := Classify(r)
	if err != nil {
		return Layout{}, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Layout{}, fmt.Errorf("rewind source: %w", err)
	}
	return layout, nil
}

// probeSync reports whether the sync pattern is present at offset.
func probeSync(r io.ReadSeeker, offset int64, buf []byte) (bool, error) {
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return false, fmt.Errorf("seek to probe offset %d: %w", offset, err)
	}

	_, err := io.ReadFull(r, buf)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read probe at offset %d: %w", offset, err)
	}

	return bytes.Equal(buf, syncHeader), nil
}
