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
	"fmt"
	"io"

	"github.com/bodgit/sevenzip"
)

// SevenZipArchive provides access to members of a 7z archive.
type SevenZipArchive struct {
	reader *sevenzip.ReadCloser
	path   string
}

// OpenSevenZip opens a 7z archive for reading.
func OpenSevenZip(path string) (*SevenZipArchive, error) {
	reader, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open 7z archive: %w", err)
	}
	return &SevenZipArchive{reader: reader, path: path}, nil
}

// Path returns the archive location.
func (sza *SevenZipArchive) Path() string { return sza.path }

// List returns all regular files in the 7z archive.
func (sza *SevenZipArchive) List() ([]FileInfo, error) {
	files := make([]FileInfo, 0, len(sza.reader.File))
	for _, file := range sza.reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		//nolint:gosec // Member sizes fit in int64
		files = append(files, FileInfo{Name: file.Name, Size: int64(file.UncompressedSize)})
	}
	return files, nil
}

// Open opens a member of the 7z archive. Solid archives decode every
// preceding member of the same folder first, so this may take a while.
func (sza *SevenZipArchive) Open(name string) (io.ReadCloser, int64, error) {
	for _, file := range sza.reader.File {
		if !sameMember(file.Name, name) {
			continue
		}
		reader, err := file.Open()
		if err != nil {
			return nil, 0, fmt.Errorf("open file in 7z: %w", err)
		}
		return reader, int64(file.UncompressedSize), nil //nolint:gosec // Member sizes fit in int64
	}
	return nil, 0, FileNotFoundError{Archive: sza.path, InternalPath: name}
}

// Close closes the 7z archive.
func (sza *SevenZipArchive) Close() error {
	return sza.reader.Close() //nolint:wrapcheck // Close error passthrough is intentional
}
