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

	"github.com/klauspost/compress/zip"
)

// ZIPArchive provides access to members of a ZIP archive.
type ZIPArchive struct {
	reader *zip.ReadCloser
	path   string
}

// OpenZIP opens a ZIP archive for reading.
func OpenZIP(path string) (*ZIPArchive, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open ZIP archive: %w", err)
	}
	return &ZIPArchive{reader: reader, path: path}, nil
}

// Path returns the archive location.
func (za *ZIPArchive) Path() string { return za.path }

// List returns all regular files in the ZIP archive.
func (za *ZIPArchive) List() ([]FileInfo, error) {
	files := make([]FileInfo, 0, len(za.reader.File))
	for _, file := range za.reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		//nolint:gosec // Member sizes fit in int64
		files = append(files, FileInfo{Name: file.Name, Size: int64(file.UncompressedSize64)})
	}
	return files, nil
}

// Open opens a member of the ZIP archive.
func (za *ZIPArchive) Open(name string) (io.ReadCloser, int64, error) {
	for _, file := range za.reader.File {
		if !sameMember(file.Name, name) {
			continue
		}
		reader, err := file.Open()
		if err != nil {
			return nil, 0, fmt.Errorf("open file in ZIP: %w", err)
		}
		return reader, int64(file.UncompressedSize64), nil //nolint:gosec // Member sizes fit in int64
	}
	return nil, 0, FileNotFoundError{Archive: za.path, InternalPath: name}
}

// Close closes the ZIP archive.
func (za *ZIPArchive) Close() error {
	return za.reader.Close() //nolint:wrapcheck // Close error passthrough is intentional
}
