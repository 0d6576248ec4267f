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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nwaples/rardecode/v2"
)

// RARArchive provides access to members of a RAR archive.
// RAR is read sequentially, so every call rescans from the start.
type RARArchive struct {
	file *os.File
	path string
}

// OpenRAR opens a RAR archive for reading.
func OpenRAR(path string) (*RARArchive, error) {
	file, err := os.Open(path) //nolint:gosec // User-provided path is expected
	if err != nil {
		return nil, fmt.Errorf("open RAR archive: %w", err)
	}
	return &RARArchive{file: file, path: path}, nil
}

// Path returns the archive location.
func (ra *RARArchive) Path() string { return ra.path }

// scan walks the headers of the archive, stopping when visit returns true.
func (ra *RARArchive) scan(visit func(*rardecode.FileHeader, *rardecode.Reader) bool) error {
	if _, err := ra.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek RAR archive: %w", err)
	}
	reader, err := rardecode.NewReader(ra.file)
	if err != nil {
		return fmt.Errorf("create RAR reader: %w", err)
	}

	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read RAR header: %w", err)
		}
		if header.IsDir {
			continue
		}
		if visit(header, reader) {
			return nil
		}
	}
}

// List returns all regular files in the RAR archive.
func (ra *RARArchive) List() ([]FileInfo, error) {
	var files []FileInfo
	err := ra.scan(func(header *rardecode.FileHeader, _ *rardecode.Reader) bool {
		files = append(files, FileInfo{Name: header.Name, Size: header.UnPackedSize})
		return false
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Open positions the archive at a member and returns a reader for it.
// The reader is valid until the next call on ra.
func (ra *RARArchive) Open(name string) (io.ReadCloser, int64, error) {
	var (
		found io.ReadCloser
		size  int64
	)
	err := ra.scan(func(header *rardecode.FileHeader, reader *rardecode.Reader) bool {
		if !sameMember(header.Name, name) {
			return false
		}
		found, size = io.NopCloser(reader), header.UnPackedSize
		return true
	})
	if err != nil {
		return nil, 0, err
	}
	if found == nil {
		return nil, 0, FileNotFoundError{Archive: ra.path, InternalPath: name}
	}
	return found, size, nil
}

// Close closes the RAR archive.
func (ra *RARArchive) Close() error {
	return ra.file.Close() //nolint:wrapcheck // Close error passthrough is intentional
}
