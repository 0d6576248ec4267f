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
	"fmt"

	"github.com/klauspost/compress/zstd"
)

type zstdCodec struct {
	decoder *zstd.Decoder
}

func newZstdCodec() (*zstdCodec, error) {
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &zstdCodec{decoder: decoder}, nil
}

func (c *zstdCodec) decompress(dst, src []byte) error {
	out, err := c.decoder.DecodeAll(src, dst[:0])
	if err != nil {
		return fmt.Errorf("%w: zstd: %w", ErrDecompressFailed, err)
	}
	if len(out) != len(dst) {
		return fmt.Errorf("%w: zstd: got %d bytes, want %d", ErrDecompressFailed, len(out), len(dst))
	}
	return nil
}

func (c *zstdCodec) close() {
	c.decoder.Close()
}
