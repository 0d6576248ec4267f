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
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// zlibCodec inflates raw deflate streams (no zlib header).
type zlibCodec struct {
	src    bytes.Reader
	reader io.ReadCloser
}

func (c *zlibCodec) decompress(dst, src []byte) error {
	c.src.Reset(src)
	if c.reader == nil {
		c.reader = flate.NewReader(&c.src)
	} else if err := c.reader.(flate.Resetter).Reset(&c.src, nil); err != nil {
		return fmt.Errorf("%w: reset inflater: %w", ErrDecompressFailed, err)
	}

	if _, err := io.ReadFull(c.reader, dst); err != nil {
		return fmt.Errorf("%w: zlib: %w", ErrDecompressFailed, err)
	}
	return nil
}
