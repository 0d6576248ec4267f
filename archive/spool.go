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

package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// spoolChunk is the copy granularity; cancellation is observed between chunks.
const spoolChunk = 1 << 20

// SpooledFile is an archive member extracted to a temporary file.
// Closing it removes the file.
type SpooledFile struct {
	file *os.File
	size int64
}

// File returns the open temporary file, positioned at the start.
func (sf *SpooledFile) File() *os.File { return sf.file }

// Size returns the number of bytes extracted.
func (sf *SpooledFile) Size() int64 { return sf.size }

// Close closes and removes the temporary file.
func (sf *SpooledFile) Close() error {
	closeErr := sf.file.Close()
	removeErr := os.Remove(sf.file.Name())
	if errors.Is(removeErr, os.ErrNotExist) {
		removeErr = nil
	}
	return errors.Join(closeErr, removeErr)
}

// Spool extracts member from arc into a temporary file in dir (os.TempDir when
// empty) so it can be read with random access.
func Spool(ctx context.Context, arc Archive, member, dir string) (*SpooledFile, error) {
	reader, size, err := arc.Open(member)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	file, err := os.CreateTemp(dir, "cdi2iso-*.img")
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	spooled := &SpooledFile{file: file}

	written, err := copyContext(ctx, file, reader)
	if err == nil && size >= 0 && written != size {
		err = fmt.Errorf("extracted %d of %d bytes: %w", written, size, io.ErrUnexpectedEOF)
	}
	if err == nil {
		_, err = file.Seek(0, io.SeekStart)
	}
	if err != nil {
		_ = spooled.Close()
		return nil, err
	}

	spooled.size = written
	return spooled, nil
}

// copyContext copies src to dst in chunks, stopping when ctx is done.
func copyContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err //nolint:wrapcheck // Context errors are matched by callers
		}
		n, err := io.CopyN(dst, src, spoolChunk)
		total += n
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, fmt.Errorf("extract member: %w", err)
		}
	}
}
